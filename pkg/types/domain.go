package types

import "strings"

// PluginRole is the role a package declares in its overlay manifest.
type PluginRole string

const (
	RoleView        PluginRole = "view"
	RoleController  PluginRole = "controller"
	RoleApplication PluginRole = "application"
)

// Roles lists every recognized role in a stable order.
var Roles = []PluginRole{RoleView, RoleController, RoleApplication}

// ParseRole matches s exactly against the recognized roles.
func ParseRole(s string) (PluginRole, bool) {
	switch PluginRole(s) {
	case RoleView, RoleController, RoleApplication:
		return PluginRole(s), true
	}
	return "", false
}

// PluginRecord is a manifest that passed its role's file contract.
type PluginRecord struct {
	// Role declared by the manifest.
	// example: controller
	Role PluginRole `json:"role" example:"controller"`
	// Lowercased identifier used for lookups.
	// example: mod-file-writer
	ID string `json:"id" example:"mod-file-writer"`
	// Absolute path of the package directory.
	// example: /opt/overlay/node_modules/overlay-mod-file-writer
	RootDir string `json:"root_dir" example:"/opt/overlay/node_modules/overlay-mod-file-writer"`
	// Entry subdirectory relative to RootDir ("" for the root itself).
	// example: dist
	EntrySubpath string `json:"entry_subpath,omitempty" example:"dist"`
}

// WheelOption is one selectable outcome from an application's options list.
type WheelOption struct {
	// Display name of the wheel slice.
	// example: Teleport to Whiterun
	Name string `json:"name" yaml:"name" toml:"name"`
	// Application profile the outcome targets.
	// example: skyrim
	Application string `json:"application,omitempty" yaml:"application,omitempty" toml:"application,omitempty"`
	// Controller that applies the outcome.
	// example: mod-file-writer
	Controller string `json:"controller,omitempty" yaml:"controller,omitempty" toml:"controller,omitempty"`
	// Controller specific payload.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty" toml:"config,omitempty"`
	// Disabled options stay in the file but are never spun.
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	// Optional command line handed to the controller verbatim.
	// example: coc Whiterun
	Command string `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty"`
	// Optional human readable description.
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// Destination returns the option's "<application>-<controller>" key and
// whether both halves are present.
func (o WheelOption) Destination() (string, bool) {
	return Destination(o.Application, o.Controller)
}

// Destination joins an application and controller into a queue key. Either
// half being blank means the pair is not dispatchable.
func Destination(application, controller string) (string, bool) {
	application = strings.TrimSpace(application)
	controller = strings.TrimSpace(controller)
	if application == "" || controller == "" {
		return "", false
	}
	return application + "-" + controller, true
}

// WheelResult is the record handed to a worker for one spin outcome.
type WheelResult struct {
	// Unique id assigned by the host.
	ID string `json:"id"`
	// Name of the option the wheel landed on.
	// example: Teleport to Whiterun
	Result string `json:"result"`
	// Unix milliseconds when the wheel stopped.
	Timestamp int64 `json:"timestamp"`
	// example: skyrim
	Application string `json:"application"`
	// example: mod-file-writer
	Controller string `json:"controller"`
	// Controller specific payload copied from the option.
	Config map[string]any `json:"config,omitempty"`
	// Command copied from the option, if any.
	Command string `json:"command,omitempty"`
}
