package prompt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/internal/testutil"
)

func charCounter(s string) int { return len(s) }

func newTestAssembler(budget, maxHistory int) *Assembler {
	return New(func(o *Options) {
		o.TokenBudget = budget
		o.MaxHistory = maxHistory
		o.Counter = charCounter
	})
}

func totalCost(msgs []core.PromptMessage) int {
	total := 0
	for _, m := range msgs {
		total += len(m.Content)
	}
	return total
}

func TestAssemble_WithinBudgetKeepsEverything(t *testing.T) {
	hist := testutil.History("s1", "aaaa", "bbbb", "cccc")
	msgs, err := newTestAssembler(100, 20).Assemble("sys", hist, "q?")
	require.NoError(t, err)

	require.Len(t, msgs, 5)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "q?", msgs[len(msgs)-1].Content)
	assert.Equal(t, core.RoleUser, msgs[len(msgs)-1].Role)
}

func TestAssemble_DropsOldestFirst(t *testing.T) {
	hist := testutil.History("s1", "aaaa", "bbbb", "cccc")
	// budget fits question (2) + two newest history entries (8) only
	msgs, err := newTestAssembler(10, 20).Assemble("", hist, "q?")
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, "bbbb", msgs[0].Content)
	assert.Equal(t, "cccc", msgs[1].Content)
	assert.Equal(t, "q?", msgs[2].Content)
	assert.LessOrEqual(t, totalCost(msgs), 10)
}

func TestAssemble_SystemHistoryOutlivesChatter(t *testing.T) {
	sys := testutil.NewMessageBuilder().Session("s1").SystemText("SSSS").Build()
	hist := append([]*core.Message{sys}, testutil.History("s1", "aaaa", "bbbb")...)

	// room for question (2) + one more 4-char entry
	msgs, err := newTestAssembler(6, 20).Assemble("", hist, "q?")
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	assert.Equal(t, core.RoleSystem, msgs[0].Role)
	assert.Equal(t, "SSSS", msgs[0].Content)
	assert.Equal(t, "q?", msgs[1].Content)
}

func TestAssemble_SystemHistoryDroppedLast(t *testing.T) {
	sys := testutil.NewMessageBuilder().Session("s1").SystemText("SSSS").Build()
	hist := append([]*core.Message{sys}, testutil.History("s1", "aaaa")...)

	// budget only fits the question
	msgs, err := newTestAssembler(2, 20).Assemble("", hist, "q?")
	require.NoError(t, err)

	require.Len(t, msgs, 1)
	assert.Equal(t, "q?", msgs[0].Content)
}

func TestAssemble_QuestionAloneTooLarge(t *testing.T) {
	_, err := newTestAssembler(4, 20).Assemble("", nil, "way too long")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrContextTooLarge))
}

func TestAssemble_FixedFootprintTooLarge(t *testing.T) {
	// question fits alone but not next to the untrimmable instructions
	_, err := newTestAssembler(6, 20).Assemble("instr", nil, "q?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrContextTooLarge))
}

func TestAssemble_MaxHistoryWindow(t *testing.T) {
	hist := testutil.History("s1", "one", "two", "three", "four", "five")
	msgs, err := newTestAssembler(1000, 2).Assemble("", hist, "q?")
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, "four", msgs[0].Content)
	assert.Equal(t, "five", msgs[1].Content)
}

func TestAssemble_Deterministic(t *testing.T) {
	hist := testutil.History("s1", "alpha beta", "gamma delta", "epsilon")
	a := newTestAssembler(20, 10)

	first, err := a.Assemble("sys", hist, "the question")
	require.NoError(t, err)
	second, err := a.Assemble("sys", hist, "the question")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssemble_HistoryUntouched(t *testing.T) {
	hist := testutil.History("s1", "aaaa", "bbbb", "cccc", "dddd")
	before := make([]string, len(hist))
	for i, m := range hist {
		before[i] = m.Content
	}

	_, err := newTestAssembler(8, 20).Assemble("", hist, "q?")
	require.NoError(t, err)

	for i, m := range hist {
		assert.Equal(t, before[i], m.Content)
	}
}
