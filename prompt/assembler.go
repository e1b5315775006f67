package prompt

import (
	"github.com/hupe1980/answermesh/core"
)

// Options configures the Assembler.
type Options struct {
	// MaxHistory bounds how many trailing history messages are considered
	// before token trimming. Zero or negative means no count bound.
	MaxHistory int
	// TokenBudget bounds the total token cost of the assembled prompt.
	TokenBudget int
	// Counter computes token costs. Defaults to EstimateTokens.
	Counter TokenCounter
}

// Assembler builds the prompt sequence for a completion call.
//
// Contract:
//   - The question is always last and is never dropped
//   - History is cut to the MaxHistory most recent messages, then trimmed
//     oldest-first until the sequence fits the budget; system-role history
//     outlives non-system history and is trimmed only when nothing else is
//     left to drop
//   - Instructions are part of the fixed footprint and never trimmed
//   - A question whose cost alone exceeds the budget fails with
//     core.ErrContextTooLarge, as does a fixed footprint that cannot fit
//   - Assembly is a pure function of its inputs.
type Assembler struct {
	opts Options
}

// New creates an Assembler.
func New(optFns ...func(o *Options)) *Assembler {
	opts := Options{
		MaxHistory:  20,
		TokenBudget: 3072,
		Counter:     EstimateTokens,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Counter == nil {
		opts.Counter = EstimateTokens
	}
	return &Assembler{opts: opts}
}

// Assemble produces the prompt sequence for instructions, history and the
// current question.
func (a *Assembler) Assemble(instructions string, history []*core.Message, question string) ([]core.PromptMessage, error) {
	count := a.opts.Counter
	budget := a.opts.TokenBudget

	questionCost := count(question)
	if budget > 0 && questionCost > budget {
		return nil, core.ErrContextTooLarge
	}

	fixed := questionCost
	if instructions != "" {
		fixed += count(instructions)
	}
	if budget > 0 && fixed > budget {
		return nil, core.ErrContextTooLarge
	}

	kept := history
	if a.opts.MaxHistory > 0 && len(kept) > a.opts.MaxHistory {
		kept = kept[len(kept)-a.opts.MaxHistory:]
	}
	// Work on an index list so drops preserve relative order.
	idx := make([]int, 0, len(kept))
	total := fixed
	for i, m := range kept {
		idx = append(idx, i)
		total += count(m.Content)
	}

	if budget > 0 {
		for total > budget && len(idx) > 0 {
			drop := -1
			for pos, i := range idx {
				if kept[i].Role != core.RoleSystem {
					drop = pos
					break
				}
			}
			if drop == -1 {
				drop = 0 // only system history left, trim oldest
			}
			total -= count(kept[idx[drop]].Content)
			idx = append(idx[:drop], idx[drop+1:]...)
		}
	}

	msgs := make([]core.PromptMessage, 0, len(idx)+2)
	if instructions != "" {
		msgs = append(msgs, core.PromptMessage{Role: core.RoleSystem, Content: instructions})
	}
	for _, i := range idx {
		msgs = append(msgs, core.PromptMessage{Role: kept[i].Role, Content: kept[i].Content})
	}
	msgs = append(msgs, core.PromptMessage{Role: core.RoleUser, Content: question})
	return msgs, nil
}
