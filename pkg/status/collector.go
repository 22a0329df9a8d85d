package status

import (
	"log/slog"
	"sync"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/core"
	"github.com/foundry-works/workspace-worker/pkg/security"
)

// PhaseEvent is one entry in the status tail: either an event the worker
// reported to the control-plane or a job failure it swallowed.
type PhaseEvent struct {
	Workspace string    `json:"workspace"`
	Event     string    `json:"event"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Collector keeps a bounded in-memory tail of recent phase events for the
// admin surface. It doubles as the worker's Observer (every emitted event)
// and Telemetry (every swallowed job error); nothing it holds is durable,
// by design.
type Collector struct {
	logger *slog.Logger

	mu   sync.Mutex
	buf  []PhaseEvent
	next int
	full bool
}

// NewCollector creates a collector retaining the last capacity events.
func NewCollector(capacity int, logger *slog.Logger) *Collector {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		logger: logger,
		buf:    make([]PhaseEvent, capacity),
	}
}

// Observe records one reported event. It satisfies worker.Observer.
func (c *Collector) Observe(workspace string, event core.Event, progress int) {
	c.record(PhaseEvent{
		Workspace: workspace,
		Event:     string(event),
		Progress:  progress,
		Time:      time.Now(),
	})
}

// Swallowed records one contained job failure. It satisfies
// worker.Telemetry, keeping swallowed errors visible to operators.
func (c *Collector) Swallowed(ws core.WorkspaceInfo, err error) {
	msg := security.SanitizeErrorMessage(err.Error())
	c.logger.Error("workspace job failed",
		"workspace", ws.Workspace, "mode", ws.EffectiveMode(), "error", msg)
	c.record(PhaseEvent{
		Workspace: ws.Workspace,
		Event:     "failed",
		Error:     msg,
		Time:      time.Now(),
	})
}

func (c *Collector) record(e PhaseEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[c.next] = e
	c.next++
	if c.next == len(c.buf) {
		c.next = 0
		c.full = true
	}
}

// Recent returns the retained events, oldest first.
func (c *Collector) Recent() []PhaseEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.full {
		out := make([]PhaseEvent, c.next)
		copy(out, c.buf[:c.next])
		return out
	}
	out := make([]PhaseEvent, 0, len(c.buf))
	out = append(out, c.buf[c.next:]...)
	out = append(out, c.buf[:c.next]...)
	return out
}
