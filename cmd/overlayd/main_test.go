package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"overlayd/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// overlayTree lays out one local controller, one local application and one
// installed controller package.
func overlayTree(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "controllers", "console", "executor.lua"), "function handle() end\n")
	writeFile(t, filepath.Join(base, "applications", "Skyrim", "config", "wheel-options.json"), "[]")
	pkg := filepath.Join(base, "node_modules", "overlay-mod-file-writer")
	writeFile(t, filepath.Join(pkg, "package.json"), `{"name":"overlay-mod-file-writer","overlay":{"type":"controller","id":"Mod-File-Writer","controllerEntry":"dist"}}`)
	writeFile(t, filepath.Join(pkg, "dist", "executor.lua"), "function handle() end\n")
	return base
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := buildRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestResolveCmd(t *testing.T) {
	base := overlayTree(t)
	out, err := run(t, "resolve", "controller", "CONSOLE", "--base-dir", base)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.TrimSpace(out) != filepath.Join(base, "controllers", "console") {
		t.Fatalf("unexpected path %q", out)
	}

	out, err = run(t, "resolve", "controller", "mod-file-writer", "--base-dir", base)
	if err != nil {
		t.Fatalf("resolve package: %v", err)
	}
	if strings.TrimSpace(out) != filepath.Join(base, "node_modules", "overlay-mod-file-writer", "dist") {
		t.Fatalf("unexpected package path %q", out)
	}

	if _, err := run(t, "resolve", "view", "nope", "--base-dir", base); err == nil {
		t.Fatalf("expected not found error")
	}
	if _, err := run(t, "resolve", "theme", "x", "--base-dir", base); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestAppsCmd(t *testing.T) {
	base := overlayTree(t)
	out, err := run(t, "apps", "--base-dir", base)
	if err != nil {
		t.Fatalf("apps: %v", err)
	}
	if strings.TrimSpace(out) != "Skyrim" {
		t.Fatalf("unexpected apps %q", out)
	}
}

func TestPluginsListCmd(t *testing.T) {
	base := overlayTree(t)
	out, err := run(t, "plugins", "list", "--json", "--role", "controller", "--base-dir", base)
	if err != nil {
		t.Fatalf("plugins list: %v", err)
	}
	var recs []types.PluginRecord
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("json: %v (%q)", err, out)
	}
	if len(recs) != 1 || recs[0].ID != "mod-file-writer" || recs[0].EntrySubpath != "dist" {
		t.Fatalf("unexpected records: %+v", recs)
	}

	out, err = run(t, "plugins", "list", "--base-dir", base)
	if err != nil {
		t.Fatalf("plugins list table: %v", err)
	}
	if !strings.Contains(out, "ROLE") || !strings.Contains(out, "mod-file-writer") {
		t.Fatalf("unexpected table %q", out)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "overlayd.yaml")
	writeFile(t, cfgPath, "base_dir: /from/file\naddr: ':1111'\nlog_level: debug\n")
	t.Setenv("OVERLAYD_ADDR", ":2222")
	t.Setenv("OVERLAYD_BASE_DIR", "/from/env")

	root := buildRootCmd()
	cmd, _, err := root.Find([]string{"apps"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := cmd.ParseFlags([]string{"--base-dir", "/from/flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	rf := &rootFlags{configPath: cfgPath, baseDir: "/from/flag"}
	cfg, err := rf.load(cmd)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseDir != "/from/flag" {
		t.Fatalf("flag should win: %q", cfg.BaseDir)
	}
	if cfg.Addr != ":2222" {
		t.Fatalf("env should beat file: %q", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("file value lost: %q", cfg.LogLevel)
	}
	if cfg.MaxPending == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestWorkerCmd_RequiresDestination(t *testing.T) {
	if _, err := run(t, "worker"); err == nil || !strings.Contains(err.Error(), "--destination") {
		t.Fatalf("expected destination error, got %v", err)
	}
}

func TestSampleOverlay(t *testing.T) {
	base := filepath.Join("..", "..", "examples", "overlay")
	cfg := filepath.Join(base, "overlayd.yaml")

	out, err := run(t, "apps", "--config", cfg, "--base-dir", base)
	if err != nil {
		t.Fatalf("apps: %v", err)
	}
	if strings.TrimSpace(out) != "skyrim" {
		t.Fatalf("unexpected apps %q", out)
	}

	out, err = run(t, "resolve", "controller", "mod-file-writer", "--config", cfg, "--base-dir", base)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(strings.TrimSpace(out)) != "mod-file-writer" {
		t.Fatalf("unexpected path %q", out)
	}
}
