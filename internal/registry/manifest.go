package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"overlayd/pkg/types"
)

// Manifest is the decoded overlay block of a package descriptor.
type Manifest struct {
	Role      types.PluginRole
	ID        string
	EntryPath string
}

// rawManifest mirrors the JSON shape; only the entry key matching the
// declared role is honored.
type rawManifest struct {
	Type             string `json:"type"`
	ID               string `json:"id"`
	ViewEntry        string `json:"viewEntry"`
	ControllerEntry  string `json:"controllerEntry"`
	ApplicationEntry string `json:"applicationEntry"`
}

var (
	errNoManifest  = errors.New("no overlay manifest")
	errUnknownRole = errors.New("unknown overlay role")
	errEmptyID     = errors.New("empty overlay id")
)

// ParseManifest extracts and validates the overlay block from a package
// descriptor. Descriptors without the block return errNoManifest.
func ParseManifest(descriptor []byte) (Manifest, error) {
	if !gjson.ValidBytes(descriptor) {
		return Manifest{}, fmt.Errorf("invalid descriptor JSON")
	}
	block := gjson.GetBytes(descriptor, ManifestField)
	if !block.Exists() {
		return Manifest{}, errNoManifest
	}
	if !block.IsObject() {
		return Manifest{}, fmt.Errorf("%s field is %s, not an object", ManifestField, block.Type)
	}
	var raw rawManifest
	if err := json.Unmarshal([]byte(block.Raw), &raw); err != nil {
		return Manifest{}, fmt.Errorf("decode %s: %w", ManifestField, err)
	}
	role, ok := types.ParseRole(raw.Type)
	if !ok {
		return Manifest{}, fmt.Errorf("%w: %q", errUnknownRole, raw.Type)
	}
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Manifest{}, errEmptyID
	}
	var entry string
	switch role {
	case types.RoleView:
		entry = raw.ViewEntry
	case types.RoleController:
		entry = raw.ControllerEntry
	case types.RoleApplication:
		entry = raw.ApplicationEntry
	}
	entry, err := cleanEntry(entry)
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{Role: role, ID: strings.ToLower(id), EntryPath: entry}, nil
}

// cleanEntry keeps entry paths inside the package root.
func cleanEntry(entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", nil
	}
	if filepath.IsAbs(entry) {
		return "", fmt.Errorf("entry path %q must be relative", entry)
	}
	c := filepath.Clean(filepath.FromSlash(entry))
	if c == "." {
		return "", nil
	}
	if c == ".." || strings.HasPrefix(c, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry path %q escapes the package", entry)
	}
	return c, nil
}
