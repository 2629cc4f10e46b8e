// Package queue routes work items to one worker process per destination.
// It is structured into small files by concern:
//
//   - manager.go: Manager type, queue table, dispatch and config fan-out.
//   - config.go: Config and package defaults; New applies defaults.
//   - handle.go: per-destination worker handle, its outbox writer and its
//     message loop.
//   - spawner.go: Spawner/Worker interfaces.
//   - spawner_process.go: ProcessSpawner, the os/exec implementation.
//   - errors.go: error types and helpers (IsSpawnFailed, IsNotFound, IsBadOption).
//   - events.go, eventpub_memory.go: lifecycle events for tests and tooling.
//   - metrics.go: Prometheus counters and gauges.
//   - status.go: Workers/Status snapshots for the HTTP surface.
//
// A destination is "<application>-<controller>". Its queue record exists
// from the first time the destination is derived from an option or
// dispatched to, and is never removed. Its worker handle moves through
// absent -> spawning -> ready and back to absent when the process exits.
//
// Delivery is best-effort: items that cannot be handed to a worker are
// logged and dropped, never surfaced to the caller.
package queue
