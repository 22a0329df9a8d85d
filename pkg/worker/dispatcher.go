package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// PhaseFunc drives one lifecycle phase for one workspace. Implementations
// live in package phases; the dispatcher only routes.
type PhaseFunc func(ctx context.Context, ws core.WorkspaceInfo) error

// Dispatcher maps an observed workspace mode to the handler for that phase.
// It is pure routing: all side effects live in the handlers. Registration
// happens once during wiring, before the worker loop starts; the map is
// read-only afterwards.
type Dispatcher struct {
	handlers map[core.Mode]PhaseFunc
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[core.Mode]PhaseFunc),
		logger:   logger,
	}
}

// Register binds a handler to a mode. Registering an unknown mode or a nil
// handler is programmer error and panics, matching constructor-time option
// validation elsewhere in the module.
func (d *Dispatcher) Register(mode core.Mode, fn PhaseFunc) {
	if !mode.Known() {
		panic(fmt.Sprintf("worker: register handler for unknown mode %q", mode))
	}
	if fn == nil {
		panic(fmt.Sprintf("worker: nil handler for mode %q", mode))
	}
	d.handlers[mode] = fn
}

// Dispatch routes ws to the handler for its mode. An absent mode defaults
// to active. Unknown modes are logged and skipped without touching the
// workspace; they return ErrUnknownMode so callers can count them.
func (d *Dispatcher) Dispatch(ctx context.Context, ws core.WorkspaceInfo) error {
	mode := ws.EffectiveMode()
	if !mode.Known() {
		d.logger.Error("Unknown workspace mode", "workspace", ws.Workspace, "mode", mode)
		return core.ErrUnknownMode
	}

	fn, ok := d.handlers[mode]
	if !ok {
		d.logger.Error("no handler registered for mode", "workspace", ws.Workspace, "mode", mode)
		return fmt.Errorf("%w: %s", core.ErrNoHandlerForMode, mode)
	}
	return fn(ctx, ws)
}
