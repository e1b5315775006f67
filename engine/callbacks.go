package engine

import (
	"context"

	"github.com/hupe1980/answermesh/core"
)

// HookType defines the lifecycle points where hooks can be executed.
//
// Hooks let callers attach custom logic to the turn pipeline without
// modifying engine code: auditing, quota enforcement, metrics, alerting.
// They execute synchronously on the turn goroutine, so implementations must
// be fast and must not block on the turn's own event channel.
type HookType string

const (
	// HookBeforeTurn runs after the session is loaded and the turn lock is
	// held, before any model call. Returning an error aborts the turn.
	HookBeforeTurn HookType = "before_turn"

	// HookAfterTurn runs once the turn reached a terminal stage. Errors are
	// logged, never propagated.
	HookAfterTurn HookType = "after_turn"

	// HookOnVerdict runs when the turn's verdict is resolved, including the
	// degraded unverified forms. Errors are logged, never propagated.
	HookOnVerdict HookType = "on_verdict"

	// HookOnError runs when a turn fails. Errors are logged, never
	// propagated.
	HookOnError HookType = "on_error"
)

// HookContext carries the turn state visible to a hook.
type HookContext struct {
	RunID     string
	SessionID string
	Question  string
	Author    core.UserRef
	Stage     Stage
	Verdict   core.Verdict
	Err       error
}

// Hook is one lifecycle extension point.
type Hook interface {
	// Type returns the lifecycle point this hook handles.
	Type() HookType

	// Execute performs the hook logic. For HookBeforeTurn a non-nil error
	// aborts the turn; for all other types the error is only logged.
	Execute(ctx context.Context, hookCtx *HookContext) error
}

// FunctionHook wraps a plain function as a Hook.
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hookCtx *HookContext) error
}

// NewFunctionHook creates a function-based hook for the given lifecycle
// point.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hookCtx *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type implements Hook.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute implements Hook.
func (h *FunctionHook) Execute(ctx context.Context, hookCtx *HookContext) error {
	return h.fn(ctx, hookCtx)
}

// HookManager routes hook execution to the registered hooks per type.
//
// Registration is not synchronized; register all hooks before the first Ask.
// Execution afterwards is safe for concurrent turns.
type HookManager struct {
	hooks map[HookType][]Hook
}

// NewHookManager creates an empty manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[HookType][]Hook)}
}

// Register adds a hook for its declared type. Hooks run in registration
// order.
func (m *HookManager) Register(h Hook) {
	m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
}

// Execute runs all hooks of the given type in order and returns the first
// error.
func (m *HookManager) Execute(ctx context.Context, typ HookType, hookCtx *HookContext) error {
	for _, h := range m.hooks[typ] {
		if err := h.Execute(ctx, hookCtx); err != nil {
			return err
		}
	}
	return nil
}
