// Package appconfig loads an application's profile: the wheel options the
// overlay spins over and the per-application settings pushed to workers.
package appconfig

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"overlayd/pkg/types"
)

// File names under an application's config/ directory.
const (
	OptionsFile  = "wheel-options.json"
	SettingsFile = "settings.json"
)

type optionsDoc struct {
	Options []types.WheelOption `json:"options" yaml:"options" toml:"options"`
}

// LoadOptions reads a wheel options file. The document is either a bare list
// of options or an object with an "options" list. The format follows the
// extension: .json, .yaml/.yml or .toml (toml only supports the object form).
func LoadOptions(path string) ([]types.WheelOption, error) {
	if path == "" {
		return nil, fmt.Errorf("empty options path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts, err := DecodeOptions(filepath.Ext(path), b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return opts, nil
}

// DecodeOptions decodes options in the format named by ext.
func DecodeOptions(ext string, b []byte) ([]types.WheelOption, error) {
	var opts []types.WheelOption
	switch strings.ToLower(ext) {
	case ".json", "":
		trimmed := bytes.TrimSpace(b)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &opts); err != nil {
				return nil, err
			}
			break
		}
		var doc optionsDoc
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		opts = doc.Options
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(b, &node); err != nil {
			return nil, err
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			if err := node.Content[0].Decode(&opts); err != nil {
				return nil, err
			}
			break
		}
		var doc optionsDoc
		if err := node.Decode(&doc); err != nil {
			return nil, err
		}
		opts = doc.Options
	case ".toml":
		var doc optionsDoc
		if err := toml.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
		opts = doc.Options
	default:
		return nil, fmt.Errorf("unsupported options extension: %s", ext)
	}
	for i := range opts {
		opts[i].Name = strings.TrimSpace(opts[i].Name)
		opts[i].Application = strings.TrimSpace(opts[i].Application)
		opts[i].Controller = strings.TrimSpace(opts[i].Controller)
	}
	return opts, nil
}
