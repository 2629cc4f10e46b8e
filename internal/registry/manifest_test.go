package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"overlayd/pkg/types"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{"name":"x","overlay":{"type":"view","id":"Strudel","viewEntry":"./public"}}`))
	require.NoError(t, err)
	assert.Equal(t, types.RoleView, m.Role)
	assert.Equal(t, "strudel", m.ID)
	assert.Equal(t, "public", m.EntryPath)
}

func TestParseManifest_EntryKeyFollowsRole(t *testing.T) {
	// A controller manifest ignores a viewEntry key.
	m, err := ParseManifest([]byte(`{"overlay":{"type":"controller","id":"k","viewEntry":"web"}}`))
	require.NoError(t, err)
	assert.Empty(t, m.EntryPath)
}

func TestParseManifest_Rejects(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"overlay":`,
		"not an object":    `{"overlay":"view"}`,
		"unknown role":     `{"overlay":{"type":"View","id":"x"}}`,
		"empty id":         `{"overlay":{"type":"view","id":""}}`,
		"escaping entry":   `{"overlay":{"type":"view","id":"x","viewEntry":"../other"}}`,
		"absolute entry":   `{"overlay":{"type":"view","id":"x","viewEntry":"/etc"}}`,
		"wrong field type": `{"overlay":{"type":"view","id":7}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestParseManifest_NoBlock(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name":"left-pad"}`))
	assert.True(t, errors.Is(err, errNoManifest))
}

func TestParseManifest_IDAlwaysLowercased(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.StringMatching(`[A-Za-z][A-Za-z0-9-]{0,15}`).Draw(t, "id")
		role := rapid.SampledFrom(types.Roles).Draw(t, "role")
		m, err := ParseManifest([]byte(`{"overlay":{"type":"` + string(role) + `","id":"` + id + `"}}`))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if m.ID != strings.ToLower(id) {
			t.Fatalf("id %q stored as %q", id, m.ID)
		}
	})
}
