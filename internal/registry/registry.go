// Package registry indexes overlay plugin packages found in an installed
// package directory. A Registry is built fresh by each Scan and never
// updated in place.
package registry

import (
	"path/filepath"
	"sort"
	"strings"

	"overlayd/pkg/types"
)

// Registry holds validated plugin records keyed by lowercased id.
type Registry struct {
	Views        map[string]types.PluginRecord
	Controllers  map[string]types.PluginRecord
	Applications map[string]types.PluginRecord
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		Views:        make(map[string]types.PluginRecord),
		Controllers:  make(map[string]types.PluginRecord),
		Applications: make(map[string]types.PluginRecord),
	}
}

// Map returns the role's record map, or nil for an unknown role.
func (r *Registry) Map(role types.PluginRole) map[string]types.PluginRecord {
	if r == nil {
		return nil
	}
	switch role {
	case types.RoleView:
		return r.Views
	case types.RoleController:
		return r.Controllers
	case types.RoleApplication:
		return r.Applications
	}
	return nil
}

// Lookup finds a record by role and case-insensitive id.
func (r *Registry) Lookup(role types.PluginRole, id string) (types.PluginRecord, bool) {
	rec, ok := r.Map(role)[strings.ToLower(id)]
	return rec, ok
}

// EntryDir is the directory holding a record's contract files.
func EntryDir(rec types.PluginRecord) string {
	return filepath.Join(rec.RootDir, rec.EntrySubpath)
}

// Records returns the role's records sorted by id.
func (r *Registry) Records(role types.PluginRole) []types.PluginRecord {
	m := r.Map(role)
	out := make([]types.PluginRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns the role's ids sorted.
func (r *Registry) IDs(role types.PluginRole) []string {
	m := r.Map(role)
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len counts records across all roles.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Views) + len(r.Controllers) + len(r.Applications)
}

// add stores rec; a later package with the same role and id wins.
func (r *Registry) add(rec types.PluginRecord) {
	r.Map(rec.Role)[rec.ID] = rec
}
