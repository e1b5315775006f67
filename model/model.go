package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/answermesh/core"
)

// Request captures the normalized completion input produced by the engine.
type Request struct {
	Messages []core.PromptMessage `json:"messages"`
	Stream   bool                 `json:"stream,omitempty"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string `json:"id,omitempty"`
	Partial      bool   `json:"partial"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required by the engine to drive generation.
//
// Contract:
//   - The response channel is consumed exactly once; producers close both
//     channels when done
//   - Cancelling ctx abandons the stream without leaking the producer
//     goroutine
//   - Failures arrive on the error channel as *core.ProviderError with
//     Source core.ProviderLLM; adapters never retry internally.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a generation into the final text and usage. Intended for
// non-streamed calls (plan, verify); it concatenates partial chunks should a
// provider emit them anyway.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (string, *Usage, error) {
	var sb strings.Builder
	var usage *Usage
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				sb.WriteString(resp.Text)
				continue
			}
			if resp.Text != "" {
				sb.Reset()
				sb.WriteString(resp.Text)
			}
			if resp.Usage != nil {
				usage = resp.Usage
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", nil, err
			}
		}
	}
	return sb.String(), usage, nil
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		inputText := req.Messages[len(req.Messages)-1].Content
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		promptTokens := 0
		for _, msg := range req.Messages {
			promptTokens += len(msg.Content) / 4
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Partial:      false,
			Text:         full,
			FinishReason: "stop",
			Usage: &Usage{
				PromptTokens:     promptTokens,
				CompletionTokens: len(full) / 4,
				TotalTokens:      promptTokens + len(full)/4,
			},
		}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
