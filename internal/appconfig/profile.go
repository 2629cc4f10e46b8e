package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"overlayd/internal/registry"
	"overlayd/pkg/types"
)

// ErrApplicationNotFound is returned when the resolver has no directory for
// the requested application.
var ErrApplicationNotFound = errors.New("application not found")

// ApplicationResolver is the part of the path resolver Load needs.
type ApplicationResolver interface {
	ResolveApplicationPath(name string) (string, bool)
}

// Profile is one application's loaded configuration.
type Profile struct {
	Application string
	Dir         string
	Options     []types.WheelOption
	Settings    map[string]any
}

// ConfigDir is the profile's config directory.
func (p *Profile) ConfigDir() string { return filepath.Join(p.Dir, registry.ConfigDir) }

// OptionsPath is the profile's options file.
func (p *Profile) OptionsPath() string { return filepath.Join(p.ConfigDir(), OptionsFile) }

// SettingsPath is the profile's optional settings file.
func (p *Profile) SettingsPath() string { return filepath.Join(p.ConfigDir(), SettingsFile) }

// Load resolves application and reads its options and settings.
func Load(r ApplicationResolver, application string) (*Profile, error) {
	dir, ok := r.ResolveApplicationPath(application)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, application)
	}
	return LoadDir(application, dir)
}

// LoadDir reads a profile from an already resolved application directory.
// A missing settings file yields empty settings.
func LoadDir(application, dir string) (*Profile, error) {
	p := &Profile{Application: application, Dir: dir}
	opts, err := LoadOptions(p.OptionsPath())
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	p.Options = opts
	p.Settings, err = loadSettings(p.SettingsPath())
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return p, nil
}

// LoadSettings reads the optional settings file of an application directory.
func LoadSettings(dir string) (map[string]any, error) {
	return loadSettings(filepath.Join(dir, registry.ConfigDir, SettingsFile))
}

func loadSettings(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ControllerScripts returns the distinct controller names the options
// reference, sorted.
func (p *Profile) ControllerScripts() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, o := range p.Options {
		if o.Controller == "" {
			continue
		}
		if _, ok := seen[o.Controller]; ok {
			continue
		}
		seen[o.Controller] = struct{}{}
		out = append(out, o.Controller)
	}
	sort.Strings(out)
	return out
}

// EnabledOptions returns the options eligible for a spin, in file order.
func (p *Profile) EnabledOptions() []types.WheelOption {
	var out []types.WheelOption
	for _, o := range p.Options {
		if o.Enabled {
			out = append(out, o)
		}
	}
	return out
}

// Option looks up an option by exact name.
func (p *Profile) Option(name string) (types.WheelOption, bool) {
	for _, o := range p.Options {
		if o.Name == name {
			return o, true
		}
	}
	return types.WheelOption{}, false
}

// ApplicationConfigs is the config snapshot pushed to workers, keyed by
// application name.
func (p *Profile) ApplicationConfigs() map[string]any {
	settings := p.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return map[string]any{p.Application: settings}
}
