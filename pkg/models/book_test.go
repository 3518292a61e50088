package models

import (
	"testing"

	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
)

func TestArtifactVisibility_Visible(t *testing.T) {
	tests := []struct {
		name     string
		v        *ArtifactVisibility
		expected bool
	}{
		{"nil", nil, true},
		{"empty", &ArtifactVisibility{}, true},
		{"harvester only", &ArtifactVisibility{Harvester: pointerutil.Bool(false)}, false},
		{"librarian overrides harvester", &ArtifactVisibility{Harvester: pointerutil.Bool(false), Librarian: pointerutil.Bool(true)}, true},
		{"user overrides librarian", &ArtifactVisibility{Librarian: pointerutil.Bool(true), User: pointerutil.Bool(false)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.v.Visible())
		})
	}
}

func TestShow_HasBloomPub(t *testing.T) {
	var show *Show
	assert.True(t, show.HasBloomPub())
	assert.True(t, (&Show{}).HasBloomPub())
	assert.False(t, (&Show{BloomReader: &ArtifactVisibility{User: pointerutil.Bool(false)}}).HasBloomPub())
	assert.True(t, (&Show{Epub: &ArtifactVisibility{User: pointerutil.Bool(false)}}).HasBloomPub())
}

func TestBook_IsCounted(t *testing.T) {
	assert.True(t, (&Book{}).IsCounted())
	assert.True(t, (&Book{InCirculation: pointerutil.Bool(true), Draft: pointerutil.Bool(false)}).IsCounted())
	assert.False(t, (&Book{InCirculation: pointerutil.Bool(false)}).IsCounted())
	assert.False(t, (&Book{Draft: pointerutil.Bool(true)}).IsCounted())
	assert.False(t, (&Book{Rebrand: pointerutil.Bool(true)}).IsCounted())
}

func TestACL_AllowsWrite(t *testing.T) {
	acl := &ACL{PublicRead: true, RoleWrite: []string{RoleModerator}, UserWrite: []string{"u1"}}

	assert.True(t, acl.AllowsWrite(&User{ID: "u1"}))
	assert.True(t, acl.AllowsWrite(&User{ID: "m1", Roles: []string{RoleModerator}}))
	assert.False(t, acl.AllowsWrite(&User{ID: "u2"}))
	assert.False(t, acl.AllowsWrite(nil))

	var open *ACL
	assert.True(t, open.AllowsWrite(&User{ID: "u2"}))
}
