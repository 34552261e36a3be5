package bot

import "sync/atomic"

// Metrics holds process-wide counters reported by the health endpoint.
type Metrics struct {
	Received atomic.Int64
	Relayed  atomic.Int64
	Dropped  atomic.Int64
	Denied   atomic.Int64
	Failures atomic.Int64
}

func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"received": m.Received.Load(),
		"relayed":  m.Relayed.Load(),
		"dropped":  m.Dropped.Load(),
		"denied":   m.Denied.Load(),
		"failures": m.Failures.Load(),
	}
}
