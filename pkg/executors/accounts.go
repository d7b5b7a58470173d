package executors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

var (
	userNamePattern  = regexp.MustCompile(`^[a-z_][a-z0-9_-]*$`)
	groupNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

const maxID = 2147483647

func validateUsername(name string) error {
	if !userNamePattern.MatchString(name) {
		return fmt.Errorf("username %q does not match ^[a-z_][a-z0-9_-]*$", name)
	}
	return nil
}

func validateGroupname(name string) error {
	if !groupNamePattern.MatchString(name) {
		return fmt.Errorf("group name %q does not match ^[A-Za-z_][A-Za-z0-9_-]*$", name)
	}
	return nil
}

func validateID(id int) error {
	if id < 0 || id > maxID {
		return fmt.Errorf("id %d is out of range [0, %d]", id, maxID)
	}
	return nil
}

// UserCreateParams is the user_create task metadata.
type UserCreateParams struct {
	Username    string   `json:"username"`
	UID         int      `json:"uid,omitempty"`
	GID         int      `json:"gid,omitempty"`
	Comment     string   `json:"comment,omitempty"`
	Home        string   `json:"home,omitempty"`
	Shell       string   `json:"shell,omitempty"`
	Authorizations []string `json:"authorizations,omitempty"`
	Profiles    []string `json:"profiles,omitempty"`
	ForceZFS    bool     `json:"force_zfs,omitempty"`
	PreventZFS  bool     `json:"prevent_zfs,omitempty"`
}

func (p UserCreateParams) validate() error {
	if err := validateUsername(p.Username); err != nil {
		return err
	}
	if p.UID != 0 {
		if err := validateID(p.UID); err != nil {
			return err
		}
	}
	if p.ForceZFS && p.PreventZFS {
		return fmt.Errorf("force_zfs and prevent_zfs are mutually exclusive")
	}
	return nil
}

// systemUIDWarning reports the system UID range (0-99) so it can be
// surfaced in the result message; requested UIDs in this range are
// allowed, not rejected.
func (p UserCreateParams) systemUIDWarning() string {
	if p.UID != 0 && p.UID < 100 {
		return fmt.Sprintf("uid %d falls within the system UID range (0-99)", p.UID)
	}
	return ""
}

func (d *Deps) userCreate(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p UserCreateParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := p.validate(); err != nil {
		return fail("%v", err)
	}

	args := []string{"pfexec", "useradd"}
	if p.UID != 0 {
		args = append(args, "-u", fmt.Sprintf("%d", p.UID))
	}
	if p.GID != 0 {
		args = append(args, "-g", fmt.Sprintf("%d", p.GID))
	}
	if p.Comment != "" {
		args = append(args, "-c", shQuote(p.Comment))
	}
	if p.Home != "" {
		args = append(args, "-d", p.Home)
	}
	if p.Shell != "" {
		args = append(args, "-s", p.Shell)
	}
	if len(p.Authorizations) > 0 {
		args = append(args, "-A", strings.Join(p.Authorizations, ","))
	}
	if p.ForceZFS {
		args = append(args, "-Z")
	}
	if p.PreventZFS {
		args = append(args, "-z")
	}
	args = append(args, p.Username)

	result := d.Runner.Run(ctx, strings.Join(args, " "), 30*time.Second)
	if !result.Success {
		return fail("useradd failed: %s", result.Error)
	}
	msg := fmt.Sprintf("user %s created", p.Username)
	if warning := p.systemUIDWarning(); warning != "" {
		msg = fmt.Sprintf("%s (warning: %s)", msg, warning)
	}
	return ok(msg)
}

// UserModifyParams is the user_modify task metadata.
type UserModifyParams struct {
	Username string   `json:"username"`
	Comment  string   `json:"comment,omitempty"`
	Home     string   `json:"home,omitempty"`
	Shell    string   `json:"shell,omitempty"`
	Authorizations []string `json:"authorizations,omitempty"`
}

func (d *Deps) userModify(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p UserModifyParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Username); err != nil {
		return fail("%v", err)
	}

	args := []string{"pfexec", "usermod"}
	if p.Comment != "" {
		args = append(args, "-c", shQuote(p.Comment))
	}
	if p.Home != "" {
		args = append(args, "-d", p.Home)
	}
	if p.Shell != "" {
		args = append(args, "-s", p.Shell)
	}
	if len(p.Authorizations) > 0 {
		args = append(args, "-A", strings.Join(p.Authorizations, ","))
	}
	if len(args) == 2 {
		return fail("no fields to modify")
	}
	args = append(args, p.Username)

	result := d.Runner.Run(ctx, strings.Join(args, " "), 30*time.Second)
	if !result.Success {
		return fail("usermod failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("user %s modified", p.Username))
}

// UserDeleteParams is the user_delete task metadata.
type UserDeleteParams struct {
	Username string `json:"username"`
	RemoveHome bool `json:"remove_home,omitempty"`
}

func (d *Deps) userDelete(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p UserDeleteParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Username); err != nil {
		return fail("%v", err)
	}

	cmd := "pfexec userdel"
	if p.RemoveHome {
		cmd += " -r"
	}
	cmd += " " + p.Username

	result := d.Runner.Run(ctx, cmd, 30*time.Second)
	if !result.Success {
		return fail("userdel failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("user %s deleted", p.Username))
}

// UserSetPasswordParams is the user_set_password task metadata. The
// password value itself is never logged by the runner (captured only in
// the subprocess argv, not echoed back in output).
type UserSetPasswordParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (d *Deps) userSetPassword(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p UserSetPasswordParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Username); err != nil {
		return fail("%v", err)
	}
	if p.Password == "" {
		return fail("password is required")
	}

	cmd := fmt.Sprintf("printf '%%s:%%s' %s %s | pfexec chpasswd", p.Username, shQuote(p.Password))
	result := d.Runner.Run(ctx, cmd, 10*time.Second)
	if !result.Success {
		return fail("password update failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("password updated for %s", p.Username))
}

// UserLockParams is shared by user_lock/user_unlock.
type UserLockParams struct {
	Username string `json:"username"`
}

func (d *Deps) userLock(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runPasswdFlag(ctx, metadata, "-l", "locked")
}

func (d *Deps) userUnlock(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runPasswdFlag(ctx, metadata, "-u", "unlocked")
}

func (d *Deps) runPasswdFlag(ctx context.Context, metadata []byte, flag, verb string) types.HandlerResult {
	var p UserLockParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Username); err != nil {
		return fail("%v", err)
	}

	result := d.Runner.Run(ctx, fmt.Sprintf("pfexec passwd %s %s", flag, p.Username), 10*time.Second)
	if !result.Success {
		return fail("passwd %s failed: %s", flag, result.Error)
	}
	return ok(fmt.Sprintf("user %s %s", p.Username, verb))
}

// GroupCreateParams is the group_create task metadata.
type GroupCreateParams struct {
	Name string `json:"name"`
	GID  int    `json:"gid,omitempty"`
}

func (d *Deps) groupCreate(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p GroupCreateParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateGroupname(p.Name); err != nil {
		return fail("%v", err)
	}
	if p.GID != 0 {
		if err := validateID(p.GID); err != nil {
			return fail("%v", err)
		}
	}

	cmd := "pfexec groupadd"
	if p.GID != 0 {
		cmd += fmt.Sprintf(" -g %d", p.GID)
	}
	cmd += " " + p.Name

	result := d.Runner.Run(ctx, cmd, 30*time.Second)
	if !result.Success {
		return fail("groupadd failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("group %s created", p.Name))
}

// GroupModifyParams is the group_modify task metadata.
type GroupModifyParams struct {
	Name    string `json:"name"`
	NewName string `json:"new_name,omitempty"`
	GID     int    `json:"gid,omitempty"`
}

func (d *Deps) groupModify(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p GroupModifyParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateGroupname(p.Name); err != nil {
		return fail("%v", err)
	}

	args := []string{"pfexec", "groupmod"}
	if p.GID != 0 {
		args = append(args, "-g", fmt.Sprintf("%d", p.GID))
	}
	if p.NewName != "" {
		args = append(args, "-n", p.NewName)
	}
	if len(args) == 2 {
		return fail("no fields to modify")
	}
	args = append(args, p.Name)

	result := d.Runner.Run(ctx, strings.Join(args, " "), 30*time.Second)
	if !result.Success {
		return fail("groupmod failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("group %s modified", p.Name))
}

// GroupDeleteParams is the group_delete task metadata.
type GroupDeleteParams struct {
	Name string `json:"name"`
}

func (d *Deps) groupDelete(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p GroupDeleteParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateGroupname(p.Name); err != nil {
		return fail("%v", err)
	}

	result := d.Runner.Run(ctx, fmt.Sprintf("pfexec groupdel %s", p.Name), 30*time.Second)
	if !result.Success {
		return fail("groupdel failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("group %s deleted", p.Name))
}

// RoleCreateParams is the role_create task metadata.
type RoleCreateParams struct {
	Name           string   `json:"name"`
	Authorizations []string `json:"authorizations,omitempty"`
	Profiles       []string `json:"profiles,omitempty"`
	Description    string   `json:"description,omitempty"`
}

func (d *Deps) roleCreate(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p RoleCreateParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Name); err != nil {
		return fail("role name: %v", err)
	}

	args := []string{"pfexec", "roleadd"}
	if len(p.Authorizations) > 0 {
		args = append(args, "-A", strings.Join(p.Authorizations, ","))
	}
	if len(p.Profiles) > 0 {
		args = append(args, "-P", strings.Join(p.Profiles, ","))
	}
	if p.Description != "" {
		args = append(args, "-c", shQuote(p.Description))
	}
	args = append(args, p.Name)

	result := d.Runner.Run(ctx, strings.Join(args, " "), 30*time.Second)
	if !result.Success {
		return fail("roleadd failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("role %s created", p.Name))
}

// RoleModifyParams is the role_modify task metadata.
type RoleModifyParams struct {
	Name           string   `json:"name"`
	Authorizations []string `json:"authorizations,omitempty"`
	Profiles       []string `json:"profiles,omitempty"`
}

func (d *Deps) roleModify(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p RoleModifyParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Name); err != nil {
		return fail("role name: %v", err)
	}

	args := []string{"pfexec", "rolemod"}
	if len(p.Authorizations) > 0 {
		args = append(args, "-A", strings.Join(p.Authorizations, ","))
	}
	if len(p.Profiles) > 0 {
		args = append(args, "-P", strings.Join(p.Profiles, ","))
	}
	if len(args) == 2 {
		return fail("no fields to modify")
	}
	args = append(args, p.Name)

	result := d.Runner.Run(ctx, strings.Join(args, " "), 30*time.Second)
	if !result.Success {
		return fail("rolemod failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("role %s modified", p.Name))
}

// RoleDeleteParams is the role_delete task metadata.
type RoleDeleteParams struct {
	Name string `json:"name"`
}

func (d *Deps) roleDelete(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p RoleDeleteParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := validateUsername(p.Name); err != nil {
		return fail("role name: %v", err)
	}

	result := d.Runner.Run(ctx, fmt.Sprintf("pfexec roledel %s", p.Name), 30*time.Second)
	if !result.Success {
		return fail("roledel failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("role %s deleted", p.Name))
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
