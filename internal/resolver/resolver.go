// Package resolver maps plugin ids to the directories that hold their entry
// files. Configured search roots are consulted first, in order; the package
// registry is the fallback.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"overlayd/internal/common/fsutil"
	"overlayd/internal/registry"
	"overlayd/pkg/types"
)

// Resolver is built once per process (or test) and never rescans.
type Resolver struct {
	base        string
	packagesDir string
	paths       PathConfig
	scan        bool
	reg         *registry.Registry
	log         zerolog.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	explicit    FileConfig
	packagesDir string
	log         zerolog.Logger
}

// WithConfig supplies a config that takes priority over overlay.config.json.
func WithConfig(fc FileConfig) Option {
	return func(o *options) { o.explicit = fc }
}

// WithPackagesDir overrides the installed-package directory.
func WithPackagesDir(dir string) Option {
	return func(o *options) { o.packagesDir = dir }
}

// WithLogger sets the logger for discovery warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New loads the path config for baseDir and, unless disabled, scans the
// package directory. Only an unreadable base directory is an error.
func New(baseDir string, opts ...Option) (*Resolver, error) {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	expanded, err := fsutil.ExpandHome(baseDir)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if _, err := os.Stat(base); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("base dir: %w", err)
	}

	file := loadFileConfig(base, o.log)
	r := &Resolver{
		base:  base,
		paths: mergePaths(base, o.explicit, file),
		scan:  scanEnabled(o.explicit, file),
		log:   o.log,
	}
	pkgDir := o.packagesDir
	if pkgDir == "" {
		pkgDir = DefaultPackagesDir
	}
	if r.packagesDir, err = fsutil.Resolve(base, pkgDir); err != nil {
		return nil, err
	}
	if r.scan {
		reg, err := registry.NewScanner(o.log).Scan(r.packagesDir)
		if err != nil {
			o.log.Warn().Err(err).Str("dir", r.packagesDir).Msg("resolver event=scan_failed")
			reg = registry.New()
		}
		r.reg = reg
	}
	return r, nil
}

// BaseDir returns the absolute base directory.
func (r *Resolver) BaseDir() string { return r.base }

// PackagesDir returns the absolute installed-package directory.
func (r *Resolver) PackagesDir() string { return r.packagesDir }

// Paths returns the effective search roots.
func (r *Resolver) Paths() PathConfig { return r.paths }

// ScanEnabled reports whether the package registry is consulted at all.
func (r *Resolver) ScanEnabled() bool { return r.scan }

// Registry returns the scanned registry, or an empty one when scanning is
// disabled.
func (r *Resolver) Registry() *registry.Registry {
	if r.reg == nil {
		return registry.New()
	}
	return r.reg
}

func (r *Resolver) lookup(role types.PluginRole, id string) (string, bool) {
	if !r.scan || r.reg == nil {
		return "", false
	}
	rec, ok := r.reg.Lookup(role, id)
	if !ok {
		return "", false
	}
	return registry.EntryDir(rec), true
}

// ResolveViewPath returns the directory of view id.
func (r *Resolver) ResolveViewPath(id string) (string, bool) {
	id = normalize(id)
	if id == "" {
		return "", false
	}
	for _, dir := range r.paths.Views {
		p := filepath.Join(dir, id)
		if fsutil.IsFile(filepath.Join(p, registry.EntryPageFile)) {
			return p, true
		}
	}
	return r.lookup(types.RoleView, id)
}

// ResolveViewHTML returns the view's entry page path.
func (r *Resolver) ResolveViewHTML(id string) (string, bool) {
	return r.viewFile(id, registry.EntryPageFile)
}

// ResolveLifecycleManagerPath returns the view's lifecycle controller path.
func (r *Resolver) ResolveLifecycleManagerPath(id string) (string, bool) {
	return r.viewFile(id, registry.LifecycleFile)
}

func (r *Resolver) viewFile(id, name string) (string, bool) {
	dir, ok := r.ResolveViewPath(id)
	if !ok {
		return "", false
	}
	p := filepath.Join(dir, name)
	if !fsutil.IsFile(p) {
		return "", false
	}
	return p, true
}

// ResolveControllerPath returns the directory holding the controller's executor.
func (r *Resolver) ResolveControllerPath(name string) (string, bool) {
	name = normalize(name)
	if name == "" {
		return "", false
	}
	for _, dir := range r.paths.Controllers {
		p := filepath.Join(dir, name)
		if fsutil.IsFile(filepath.Join(p, registry.ExecutorFile)) {
			return p, true
		}
	}
	return r.lookup(types.RoleController, name)
}

// ResolveExecutorPath returns the controller's executor file.
func (r *Resolver) ResolveExecutorPath(name string) (string, bool) {
	dir, ok := r.ResolveControllerPath(name)
	if !ok {
		return "", false
	}
	p := filepath.Join(dir, registry.ExecutorFile)
	if !fsutil.IsFile(p) {
		return "", false
	}
	return p, true
}

// ResolveApplicationPath returns the application profile directory.
//
// Names match case-insensitively in both phases: the directory phase tries
// the lowercased name first and then any directory whose name folds to it.
func (r *Resolver) ResolveApplicationPath(name string) (string, bool) {
	name = normalize(name)
	if name == "" {
		return "", false
	}
	for _, dir := range r.paths.Applications {
		p := filepath.Join(dir, name)
		if fsutil.IsDir(filepath.Join(p, registry.ConfigDir)) {
			return p, true
		}
		if p, ok := findFolded(dir, name); ok {
			return p, true
		}
	}
	return r.lookup(types.RoleApplication, name)
}

func findFolded(dir, name string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !strings.EqualFold(e.Name(), name) || !fsutil.EntryIsDir(dir, e) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if fsutil.IsDir(filepath.Join(p, registry.ConfigDir)) {
			return p, true
		}
	}
	return "", false
}

// ListApplicationNames unions directory-scanned names with registry ids.
// Directory names keep their on-disk case. The result is sorted.
func (r *Resolver) ListApplicationNames() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	for _, dir := range r.paths.Applications {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if fsutil.IsHidden(e.Name()) || !fsutil.EntryIsDir(dir, e) {
				continue
			}
			if fsutil.IsDir(filepath.Join(dir, e.Name(), registry.ConfigDir)) {
				add(e.Name())
			}
		}
	}
	if r.scan && r.reg != nil {
		for _, id := range r.reg.IDs(types.RoleApplication) {
			add(id)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve dispatches on role; it backs the CLI and HTTP lookups.
func (r *Resolver) Resolve(role types.PluginRole, id string) (string, bool) {
	switch role {
	case types.RoleView:
		return r.ResolveViewPath(id)
	case types.RoleController:
		return r.ResolveControllerPath(id)
	case types.RoleApplication:
		return r.ResolveApplicationPath(id)
	}
	return "", false
}

// normalize lower-cases id for lookup. Ids that are not a single path
// element ("", ".", "..", or anything with a separator) come back empty and
// resolve to nothing.
func normalize(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`+"\x00") {
		return ""
	}
	return id
}
