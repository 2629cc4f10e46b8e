package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"overlayd/internal/common/fsutil"
	"overlayd/pkg/types"
)

// Scanner discovers overlay packages in an installed-package directory.
type Scanner struct {
	log zerolog.Logger
}

// NewScanner returns a Scanner that reports skipped packages to log.
func NewScanner(log zerolog.Logger) *Scanner {
	return &Scanner{log: log}
}

// Scan is a convenience wrapper around a Scanner with logging disabled.
func Scan(dir string) (*Registry, error) {
	return NewScanner(zerolog.Nop()).Scan(dir)
}

// Scan reads every immediate subdirectory of dir (and one level under
// @scope folders) and indexes packages whose manifest passes its role
// contract. A missing dir yields an empty registry. Malformed packages are
// skipped, never fatal. Entries are visited in name order and a later
// package with the same role and id replaces an earlier one.
func (s *Scanner) Scan(dir string) (*Registry, error) {
	reg := New()
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return reg, nil
		}
		return nil, fmt.Errorf("stat package dir: %w", err)
	}
	if !fi.IsDir() {
		return reg, nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if fsutil.IsHidden(name) || !fsutil.EntryIsDir(abs, e) {
			continue
		}
		p := filepath.Join(abs, name)
		if strings.HasPrefix(name, "@") {
			s.scanScope(reg, p)
			continue
		}
		s.scanPackage(reg, p)
	}
	return reg, nil
}

func (s *Scanner) scanScope(reg *Registry, scopeDir string) {
	entries, err := os.ReadDir(scopeDir)
	if err != nil {
		s.log.Warn().Err(err).Str("dir", scopeDir).Msg("registry event=scope_unreadable")
		return
	}
	for _, e := range entries {
		if fsutil.IsHidden(e.Name()) || !fsutil.EntryIsDir(scopeDir, e) {
			continue
		}
		s.scanPackage(reg, filepath.Join(scopeDir, e.Name()))
	}
}

func (s *Scanner) scanPackage(reg *Registry, pkgDir string) {
	b, err := os.ReadFile(filepath.Join(pkgDir, DescriptorFile))
	if err != nil {
		// Plain dependencies without a descriptor are common; stay quiet.
		return
	}
	m, err := ParseManifest(b)
	if err != nil {
		if !errors.Is(err, errNoManifest) {
			s.log.Warn().Err(err).Str("package", pkgDir).Msg("registry event=manifest_skip")
		}
		return
	}
	entryDir := filepath.Join(pkgDir, m.EntryPath)
	if !SatisfiesContract(m.Role, entryDir) {
		s.log.Warn().Str("package", pkgDir).Str("role", string(m.Role)).Str("id", m.ID).
			Msg("registry event=contract_fail")
		return
	}
	if prev, ok := reg.Lookup(m.Role, m.ID); ok {
		s.log.Warn().Str("role", string(m.Role)).Str("id", m.ID).Str("replaced", prev.RootDir).Str("dir", pkgDir).
			Msg("registry event=duplicate_id")
	}
	reg.add(types.PluginRecord{Role: m.Role, ID: m.ID, RootDir: pkgDir, EntrySubpath: m.EntryPath})
	s.log.Debug().Str("role", string(m.Role)).Str("id", m.ID).Str("dir", pkgDir).Msg("registry event=package_found")
}
