package core

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CompletionKind names the pipeline stage that issued a model call.
type CompletionKind string

const (
	CompletionPlan   CompletionKind = "plan"
	CompletionDraft  CompletionKind = "draft"
	CompletionVerify CompletionKind = "verify"
)

// CompletionOutcomeSuccess is the outcome value for calls that returned
// normally; failed calls record the provider error kind instead.
const CompletionOutcomeSuccess = "success"

// CompletionRecord is one observability row per model call. Prompts are never
// stored verbatim, only their digest. MessageID links the record to the
// persisted assistant message once one exists.
type CompletionRecord struct {
	ID               int64          `json:"id"`
	SessionID        string         `json:"session_id"`
	MessageID        *int64         `json:"message_id,omitempty"`
	Kind             CompletionKind `json:"kind"`
	Model            string         `json:"model"`
	PromptDigest     string         `json:"prompt_digest"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	LatencyMS        int64          `json:"latency_ms"`
	Outcome          string         `json:"outcome"`
	Created          time.Time      `json:"created"`
}

// PromptDigest returns the hex sha256 over the role/content sequence. Role
// and content are length-framed so distinct sequences cannot collide by
// concatenation.
func PromptDigest(messages []PromptMessage) string {
	h := sha256.New()
	var frame [8]byte
	writeFramed := func(s string) {
		n := len(s)
		for i := 0; i < 8; i++ {
			frame[i] = byte(n >> (8 * i))
		}
		h.Write(frame[:])
		h.Write([]byte(s))
	}
	for _, m := range messages {
		writeFramed(string(m.Role))
		writeFramed(m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
