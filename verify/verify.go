// Package verify judges drafted answers against retrieved evidence with a
// single non-streamed completion call.
package verify

import (
	"context"
	"strings"
	"unicode"

	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/internal/util"
	"github.com/hupe1980/answermesh/model"
)

// DefaultTemplate is the built-in user prompt. Deployments override it via
// configuration; {question} and {search_result} are substituted, and the
// draft is appended unless the template claims it with {answer}.
const DefaultTemplate = "Question:\n{question}\n\nEvidence:\n{search_result}\n\n" +
	"Judge whether the evidence supports the draft answer. Reply with exactly one of: " +
	"supported, unsupported, insufficient evidence. Then give a one-line rationale."

// DefaultInstructions is the judge call's system prompt.
const DefaultInstructions = "You are a strict verification judge. Base your verdict " +
	"only on the evidence provided, never on prior knowledge."

// Judgement is the verifier's outcome for one draft.
type Judgement struct {
	Verdict   core.Verdict
	Rationale string
	Raw       string
}

// Options configures the Verifier.
type Options struct {
	// Template is the user prompt template with {question} and
	// {search_result} placeholders; {answer} is honored when present.
	Template string
	// Instructions is the system prompt for the judge call.
	Instructions string
}

// Verifier issues the verification call and parses its verdict.
type Verifier struct {
	model model.Model
	opts  Options
}

// New creates a Verifier backed by the given model.
func New(m model.Model, optFns ...func(o *Options)) *Verifier {
	opts := Options{Template: DefaultTemplate, Instructions: DefaultInstructions}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	return &Verifier{model: m, opts: opts}
}

// BuildPrompt renders the judge's user prompt for question, evidence and
// draft. Exposed for prompt inspection and tests.
func (v *Verifier) BuildPrompt(question, evidence, draft string) string {
	prompt := util.FillPlaceholders(v.opts.Template, map[string]string{
		"question":      question,
		"search_result": evidence,
		"answer":        draft,
	})
	if !strings.Contains(v.opts.Template, "{answer}") {
		prompt += "\n\nDraft answer:\n" + draft
	}
	return prompt
}

// PromptMessages returns the exact message sequence Judge sends, so callers
// can digest it for completion records.
func (v *Verifier) PromptMessages(question, evidence, draft string) []core.PromptMessage {
	msgs := make([]core.PromptMessage, 0, 2)
	if v.opts.Instructions != "" {
		msgs = append(msgs, core.PromptMessage{Role: core.RoleSystem, Content: v.opts.Instructions})
	}
	return append(msgs, core.PromptMessage{Role: core.RoleUser, Content: v.BuildPrompt(question, evidence, draft)})
}

// Judge verifies a draft against evidence. The call is never streamed. The
// returned usage covers the judge call for recording; on error the judgement
// is zero and the caller decides how to degrade.
func (v *Verifier) Judge(ctx context.Context, question, evidence, draft string) (Judgement, *model.Usage, error) {
	respCh, errCh := v.model.Generate(ctx, model.Request{Messages: v.PromptMessages(question, evidence, draft)})
	raw, usage, err := model.Collect(ctx, respCh, errCh)
	if err != nil {
		return Judgement{}, usage, err
	}
	return Judgement{
		Verdict:   ParseVerdict(raw),
		Rationale: strings.TrimSpace(raw),
		Raw:       raw,
	}, usage, nil
}

// ParseVerdict maps raw judge output onto the closed verdict set. The reply
// is scanned word by word, case-insensitively, and the first vocabulary hit
// decides; a leading "Verdict:" label, punctuation and prose around the
// verdict are ignored. A negation ahead of "supported" ("not supported",
// "cannot be supported") reads as unsupported, and anything unrecognized is
// insufficient-evidence, never supported.
func ParseVerdict(raw string) core.Verdict {
	words := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	negated := false
	for _, w := range words {
		switch w {
		case "not", "no", "cannot", "never":
			negated = true
		case "unsupported":
			return core.VerdictUnsupported
		case "supported":
			if negated {
				return core.VerdictUnsupported
			}
			return core.VerdictSupported
		case "insufficient":
			return core.VerdictInsufficient
		}
	}
	return core.VerdictInsufficient
}
