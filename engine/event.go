package engine

import (
	"time"

	"github.com/hupe1980/answermesh/core"
)

// Stage names one phase of the turn pipeline. Stages are emitted in order on
// the event stream; searching and replanning appear only when taken.
type Stage string

const (
	StageStart      Stage = "start"
	StagePlanning   Stage = "planning"
	StageSearching  Stage = "searching"
	StageDrafting   Stage = "drafting"
	StageVerifying  Stage = "verifying"
	StageReplanning Stage = "replanning"
	StageFinalizing Stage = "finalizing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// EventType discriminates the payload of an Event.
type EventType string

const (
	// EventStage marks a pipeline stage transition.
	EventStage EventType = "stage"
	// EventDelta carries one streamed fragment of the answer text.
	EventDelta EventType = "delta"
	// EventWarning reports a degraded-path notice (search unreachable,
	// verification failed, answer restarted by a replan).
	EventWarning EventType = "warning"
	// EventAnswer carries the final persisted answer. At most one per run.
	EventAnswer EventType = "answer"
)

// Answer is the terminal payload of a successful run.
type Answer struct {
	MessageID  int64           `json:"message_id"`
	Text       string          `json:"text"`
	Verdict    core.Verdict    `json:"verdict,omitempty"`
	Annotation core.Annotation `json:"annotation,omitempty"`
	Replans    int             `json:"replans"`
	ModelCalls int             `json:"model_calls"`
}

// Event is the unit of communication between a running turn and its caller.
// After emission it should be treated as immutable. Concatenating the Text of
// the delta events emitted after the most recent drafting stage event yields
// exactly the answer text that is verified and persisted; a replanning stage
// event tells the caller to discard deltas collected so far.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Stage     Stage     `json:"stage,omitempty"`
	Text      string    `json:"text,omitempty"`
	Answer    *Answer   `json:"answer,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(runID, sessionID string, typ EventType) Event {
	return Event{
		ID:        core.NewID(),
		RunID:     runID,
		SessionID: sessionID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

func newStageEvent(runID, sessionID string, stage Stage) Event {
	e := newEvent(runID, sessionID, EventStage)
	e.Stage = stage
	return e
}

func newDeltaEvent(runID, sessionID, text string) Event {
	e := newEvent(runID, sessionID, EventDelta)
	e.Text = text
	return e
}

func newWarningEvent(runID, sessionID, text string) Event {
	e := newEvent(runID, sessionID, EventWarning)
	e.Text = text
	return e
}

func newAnswerEvent(runID, sessionID string, a Answer) Event {
	e := newEvent(runID, sessionID, EventAnswer)
	e.Answer = &a
	return e
}

// IsDelta reports whether the event is a streamed answer fragment.
func (e Event) IsDelta() bool { return e.Type == EventDelta }

// IsFinal reports whether the event carries the final answer.
func (e Event) IsFinal() bool { return e.Type == EventAnswer }
