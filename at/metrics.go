package at

import "sync/atomic"

// Metrics tracks driver traffic and health counters. The counters are
// atomic so a monitoring goroutine may snapshot them while the single
// owning goroutine drives the module; they guard nothing else.
type Metrics struct {
	CommandsSent   atomic.Uint64
	CommandsFailed atomic.Uint64
	BytesWritten   atomic.Uint64
	BytesRead      atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of the driver counters.
type MetricsSnapshot struct {
	CommandsSent   uint64 `json:"commandsSent"`
	CommandsFailed uint64 `json:"commandsFailed"`
	BytesWritten   uint64 `json:"bytesWritten"`
	BytesRead      uint64 `json:"bytesRead"`
}

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		CommandsSent:   m.CommandsSent.Load(),
		CommandsFailed: m.CommandsFailed.Load(),
		BytesWritten:   m.BytesWritten.Load(),
		BytesRead:      m.BytesRead.Load(),
	}
}
