// Package rpc implements the daemon's local control channel: a
// newline-delimited JSON request/response protocol spoken over a Unix
// domain socket, the same wire shape the teacher's daemon used for its
// much larger bd command surface, narrowed here to fg's five
// daemon-administration operations. Issue CRUD never goes through this
// channel — only binding/sync/daemon lifecycle control does.
package rpc

import "encoding/json"

// Operation names understood by the daemon's control channel.
const (
	OpStatus      = "status"
	OpSyncNow     = "sync_now"
	OpReload      = "reload"
	OpEnqueueHint = "enqueue_hint"
	OpShutdown    = "shutdown"
)

// Request is a single control-channel call.
type Request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Response carries either Data or Error, never both.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// SyncNowArgs names a single binding to sync immediately; an empty
// Repo means "every bound repo".
type SyncNowArgs struct {
	Repo string `json:"repo,omitempty"`
}

// EnqueueHintArgs tells the daemon a repo just saw CLI activity, so its
// next sync tick should move to the "active" cadence tier rather than
// waiting out its current one.
type EnqueueHintArgs struct {
	Repo string `json:"repo"`
}

// BindingStatus is one row of StatusResponse.Bindings.
type BindingStatus struct {
	Repo          string `json:"repo" yaml:"repo"`
	Forge         string `json:"forge" yaml:"forge"`
	LastSyncAt    string `json:"last_sync_at,omitempty" yaml:"last_sync_at,omitempty"`
	LastSyncError string `json:"last_sync_error,omitempty" yaml:"last_sync_error,omitempty"`
	PendingWrites int    `json:"pending_writes" yaml:"pending_writes"`
	// Notices carries one line per write op that settled into a
	// terminal state short of success (superseded, payload-rejected,
	// needs-manual-resolution) since the last status read; each read
	// consumes and clears them.
	Notices []string `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// StatusResponse answers OpStatus. `fg daemon status --format=yaml`
// marshals this directly with gopkg.in/yaml.v3, the same library the
// teacher's config layer reads host config with.
type StatusResponse struct {
	Version       string          `json:"version" yaml:"version"`
	PID           int             `json:"pid" yaml:"pid"`
	StartedAt     string          `json:"started_at" yaml:"started_at"`
	UptimeSeconds float64         `json:"uptime_seconds" yaml:"uptime_seconds"`
	Bindings      []BindingStatus `json:"bindings" yaml:"bindings"`
}
