package executors

import "testing"
import "github.com/stretchr/testify/assert"

const pkgUpdateSample = `
Packages to update:
            pkg://omnios/library/zlib@1.3-0
            pkg://omnios/system/kernel@0.5.11-0

Create boot environment: omnios-r151048-backup
`

func TestParsePkgChanges_ExtractsChangedPackages(t *testing.T) {
	changes := parsePkgChanges(pkgUpdateSample)
	assert.Len(t, changes, 1)
	assert.Contains(t, changes[0].Packages, "pkg://omnios/library/zlib@1.3-0")
}

func TestParsePkgChanges_NoChangesWhenNoUpdateHeader(t *testing.T) {
	changes := parsePkgChanges("No updates available for this image.\n")
	assert.Empty(t, changes)
}

func TestBeRegexp_ExtractsBootEnvironmentName(t *testing.T) {
	matches := beRegexp.FindStringSubmatch(pkgUpdateSample)
	if assert.Len(t, matches, 2) {
		assert.Contains(t, matches[1], "omnios-r151048-backup")
	}
}
