package core

import (
	"fmt"
	"sync"
)

// CallBudget caps how many completion calls one turn may spend across plan,
// draft, verify and their retries. The state machine bounds calls
// structurally already; the budget turns an orchestration bug into an error
// instead of unbounded spend.
type CallBudget struct {
	limit int
	used  int
	mu    sync.Mutex
}

// NewCallBudget creates a budget of limit calls. A zero limit means the
// budget never runs out.
func NewCallBudget(limit int) *CallBudget {
	return &CallBudget{limit: limit}
}

// Spend consumes one call and errors once the budget is exceeded.
func (b *CallBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.used++
	if b.limit > 0 && b.used > b.limit {
		return fmt.Errorf("turn exceeded its completion call budget: %d", b.limit)
	}

	return nil
}

// Used returns how many calls the turn has spent so far.
func (b *CallBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.used
}

// Remaining returns how many calls are left, or -1 when the budget is
// unlimited.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit == 0 {
		return -1
	}

	return b.limit - b.used
}
