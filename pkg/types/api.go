package types

// ResultRequest feeds a wheel outcome into the host. Either Name (looked up in
// the active options) or Application+Controller must be set.
type ResultRequest struct {
	// Name of a configured wheel option.
	// example: Teleport to Whiterun
	Name string `json:"name,omitempty" example:"Teleport to Whiterun"`
	// example: skyrim
	Application string `json:"application,omitempty" example:"skyrim"`
	// example: mod-file-writer
	Controller string `json:"controller,omitempty" example:"mod-file-writer"`
	// Controller payload; overrides the option's config when Name is used.
	Config map[string]any `json:"config,omitempty"`
	// example: coc Whiterun
	Command string `json:"command,omitempty" example:"coc Whiterun"`
}

// DispatchResponse acknowledges an accepted result. Delivery is best-effort.
type DispatchResponse struct {
	// Destination queue the result was routed to.
	// example: skyrim-mod-file-writer
	Destination string `json:"destination" example:"skyrim-mod-file-writer"`
	// The item as forwarded to the worker.
	Item WheelResult `json:"item"`
}

// OptionsResponse wraps GET /options.
type OptionsResponse struct {
	// example: skyrim
	Application string        `json:"application" example:"skyrim"`
	Options     []WheelOption `json:"options"`
}

// PluginsResponse lists registry records by role.
type PluginsResponse struct {
	Views        []PluginRecord `json:"views"`
	Controllers  []PluginRecord `json:"controllers"`
	Applications []PluginRecord `json:"applications"`
	// False when package scanning is disabled by configuration.
	ScanEnabled bool `json:"scan_enabled"`
}

// ResolveResponse is returned by GET /plugins/{role}/{id}.
type ResolveResponse struct {
	// example: controller
	Role PluginRole `json:"role" example:"controller"`
	// example: mod-file-writer
	ID string `json:"id" example:"mod-file-writer"`
	// Directory that holds the plugin's entry files.
	// example: /opt/overlay/controllers/mod-file-writer
	Path string `json:"path" example:"/opt/overlay/controllers/mod-file-writer"`
}

// ApplicationsResponse wraps GET /applications.
type ApplicationsResponse struct {
	Applications []string `json:"applications"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// WorkerStatus summarizes one destination's worker handle.
type WorkerStatus struct {
	// example: skyrim-mod-file-writer
	Destination string `json:"destination" example:"skyrim-mod-file-writer"`
	// Lifecycle state: spawning or ready.
	// example: ready
	State string `json:"state" example:"ready"`
	// Process ID of the worker, when known.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Items held until the worker reports ready.
	// example: 0
	Pending int `json:"pending" example:"0"`
	// Unix seconds when the worker was spawned.
	StartedUnix int64 `json:"started_unix"`
}

// QueuesResponse is returned by GET /queues.
type QueuesResponse struct {
	// Cumulative dispatch attempts per destination. This is not a live depth.
	Stats   map[string]int `json:"stats"`
	Workers []WorkerStatus `json:"workers"`
	// Server uptime in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}
