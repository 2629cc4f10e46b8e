package registry

import (
	"path/filepath"

	"overlayd/internal/common/fsutil"
	"overlayd/pkg/types"
)

// On-disk contract files, relative to a plugin's entry directory.
const (
	EntryPageFile  = "index.html"
	LifecycleFile  = "lifecycle.js"
	ExecutorFile   = "executor.lua"
	ConfigDir      = "config"
	DescriptorFile = "package.json"
	ManifestField  = "overlay"
)

// SatisfiesContract reports whether dir holds every file the role requires.
func SatisfiesContract(role types.PluginRole, dir string) bool {
	switch role {
	case types.RoleView:
		return fsutil.IsFile(filepath.Join(dir, EntryPageFile)) &&
			fsutil.IsFile(filepath.Join(dir, LifecycleFile))
	case types.RoleController:
		return fsutil.IsFile(filepath.Join(dir, ExecutorFile))
	case types.RoleApplication:
		return fsutil.IsDir(filepath.Join(dir, ConfigDir))
	}
	return false
}
