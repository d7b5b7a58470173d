package executors

import (
	"context"
	"testing"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/stretchr/testify/assert"
)

func TestValidateUsername_AcceptsLowercaseStart(t *testing.T) {
	assert.NoError(t, validateUsername("deploy"))
	assert.NoError(t, validateUsername("_svc"))
	assert.NoError(t, validateUsername("svc-01"))
}

func TestValidateUsername_RejectsUppercaseOrLeadingDigit(t *testing.T) {
	assert.Error(t, validateUsername("Deploy"))
	assert.Error(t, validateUsername("1svc"))
	assert.Error(t, validateUsername(""))
}

func TestValidateGroupname_AcceptsMixedCase(t *testing.T) {
	assert.NoError(t, validateGroupname("Admins"))
	assert.NoError(t, validateGroupname("_wheel"))
}

func TestValidateID_RejectsOutOfRange(t *testing.T) {
	assert.NoError(t, validateID(0))
	assert.NoError(t, validateID(maxID))
	assert.Error(t, validateID(-1))
	assert.Error(t, validateID(maxID+1))
}

func TestUserCreateParams_RejectsConflictingZFSFlags(t *testing.T) {
	p := UserCreateParams{Username: "deploy", ForceZFS: true, PreventZFS: true}
	err := p.validate()
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestUserCreateParams_SystemUIDWarning(t *testing.T) {
	p := UserCreateParams{Username: "webadmin", UID: 50}
	assert.NoError(t, p.validate())
	assert.Contains(t, p.systemUIDWarning(), "system UID range")

	p.UID = 1000
	assert.Empty(t, p.systemUIDWarning())
}

func TestUserCreate_RejectsInvalidUsername(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.userCreate(context.Background(), []byte(`{"username":"Bad Name"}`), nil)
	assert.False(t, result.Success)
}

func TestUserModify_RejectsEmptyFieldSet(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.userModify(context.Background(), []byte(`{"username":"deploy"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no fields to modify")
}

func TestGroupModify_RejectsEmptyFieldSet(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.groupModify(context.Background(), []byte(`{"name":"wheel"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "no fields to modify")
}

func TestUserSetPassword_RejectsEmptyPassword(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.userSetPassword(context.Background(), []byte(`{"username":"deploy","password":""}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "password is required")
}

func TestShQuote_EscapesEmbeddedSingleQuotes(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, shQuote("it's"))
}
