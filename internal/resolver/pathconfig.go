package resolver

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"overlayd/internal/common/fsutil"
)

// ConfigFileName is the optional path/behavior config read from the base directory.
const ConfigFileName = "overlay.config.json"

// Built-in search roots, relative to the base directory.
var (
	DefaultViewDirs        = []string{filepath.Join("src", "views")}
	DefaultControllerDirs  = []string{"controllers"}
	DefaultApplicationDirs = []string{"applications"}
)

// DefaultPackagesDir is the installed-package directory scanned for manifests.
const DefaultPackagesDir = "node_modules"

// PathsConfig lists search roots per role. A nil slice means "not set".
type PathsConfig struct {
	Views        []string `json:"views,omitempty"`
	Controllers  []string `json:"controllers,omitempty"`
	Applications []string `json:"applications,omitempty"`
}

// FileConfig is the JSON shape of overlay.config.json. It doubles as the
// explicit config a caller may hand to New.
type FileConfig struct {
	Paths           *PathsConfig `json:"paths,omitempty"`
	ScanNodeModules *bool        `json:"scanNodeModules,omitempty"`
}

// PathConfig is the effective, absolute search roots per role.
type PathConfig struct {
	Views        []string
	Controllers  []string
	Applications []string
}

// loadFileConfig reads base/ConfigFileName. Absence and parse failures both
// yield an empty config; parse failures are logged.
func loadFileConfig(base string, log zerolog.Logger) FileConfig {
	p := filepath.Join(base, ConfigFileName)
	b, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", p).Msg("resolver event=config_unreadable")
		}
		return FileConfig{}
	}
	var fc FileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		log.Warn().Err(err).Str("file", p).Msg("resolver event=config_malformed")
		return FileConfig{}
	}
	return fc
}

// mergePaths applies explicit > file > default per role and makes every
// root absolute relative to base.
func mergePaths(base string, explicit, file FileConfig) PathConfig {
	pick := func(get func(*PathsConfig) []string, def []string) []string {
		var src []string
		switch {
		case explicit.Paths != nil && get(explicit.Paths) != nil:
			src = get(explicit.Paths)
		case file.Paths != nil && get(file.Paths) != nil:
			src = get(file.Paths)
		default:
			src = def
		}
		out := make([]string, 0, len(src))
		for _, d := range src {
			if d == "" {
				continue
			}
			abs, err := fsutil.Resolve(base, d)
			if err != nil {
				continue
			}
			out = append(out, abs)
		}
		return out
	}
	return PathConfig{
		Views:        pick(func(p *PathsConfig) []string { return p.Views }, DefaultViewDirs),
		Controllers:  pick(func(p *PathsConfig) []string { return p.Controllers }, DefaultControllerDirs),
		Applications: pick(func(p *PathsConfig) []string { return p.Applications }, DefaultApplicationDirs),
	}
}

// scanEnabled applies explicit > file > true.
func scanEnabled(explicit, file FileConfig) bool {
	if explicit.ScanNodeModules != nil {
		return *explicit.ScanNodeModules
	}
	if file.ScanNodeModules != nil {
		return *file.ScanNodeModules
	}
	return true
}
