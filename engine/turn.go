package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/model"
	"github.com/hupe1980/answermesh/plan"
	"github.com/hupe1980/answermesh/prompt"
	"github.com/hupe1980/answermesh/verify"
)

// turn carries the state of one Ask run through the pipeline stages. A turn
// is owned by a single goroutine; nothing here needs synchronization.
type turn struct {
	engine   *Engine
	runID    string
	sess     *core.Session
	question string
	author   core.UserRef
	budget   *core.CallBudget
	events   chan Event

	history []*core.Message
	records []*core.CompletionRecord
	replans int
	started time.Time
}

// run drives the turn to a terminal stage. A nil return means the answer was
// persisted; any error has already been routed through the fail path and
// travels to the caller over the errors channel.
func (t *turn) run(ctx context.Context) error {
	e := t.engine
	t.started = time.Now()

	t.emitStage(ctx, StageStart)
	e.logger.Info("turn started run_id=%s session_id=%s category=%s", t.runID, t.sess.ID, t.sess.Category)

	if err := e.hooks.Execute(ctx, HookBeforeTurn, t.hookContext(StageStart)); err != nil {
		return t.fail(ctx, fmt.Errorf("before_turn hook: %w", err))
	}

	history, err := e.store.Messages(ctx, t.sess.ID, e.config.HistoryLimit)
	if err != nil {
		return t.fail(ctx, err)
	}
	t.history = history

	t.emitStage(ctx, StagePlanning)
	decision, err := t.plan(ctx)
	if err != nil {
		return t.fail(ctx, err)
	}

	for {
		var evidence []core.SearchResult

		if decision.SearchNeeded {
			t.emitStage(ctx, StageSearching)
			results, searchErr := t.searchEvidence(ctx, decision.Query)
			switch {
			case searchErr == nil:
				evidence = results
			case ctx.Err() != nil || !core.IsTransient(searchErr):
				return t.fail(ctx, searchErr)
			default:
				e.logger.Warn("search degraded, drafting without evidence run_id=%s: %v", t.runID, searchErr)
				t.emitWarning(ctx, "search is unavailable, answering without evidence")
			}
		}
		evidenceText := prompt.RenderEvidence(evidence)

		t.emitStage(ctx, StageDrafting)
		answer, draftErr := t.draft(ctx, evidenceText)
		if draftErr != nil {
			return t.draftFailed(ctx, answer, draftErr)
		}

		// Without evidence there is nothing to judge the draft against:
		// plain chat answers finalize unverified by nature, and a wanted
		// but missing search marks the answer degraded so the caller knows
		// verification never ran.
		if len(evidence) == 0 {
			if decision.SearchNeeded {
				return t.finalize(ctx, answer, core.VerdictUnverifiedDegraded, core.AnnotationNone)
			}
			return t.finalize(ctx, answer, core.VerdictNone, core.AnnotationNone)
		}

		t.emitStage(ctx, StageVerifying)
		judgement, verifyErr := t.verifyDraft(ctx, evidenceText, answer)
		if verifyErr != nil {
			if ctx.Err() != nil {
				return t.fail(ctx, verifyErr)
			}
			e.logger.Warn("verification failed, finalizing unverified run_id=%s: %v", t.runID, verifyErr)
			t.emitWarning(ctx, "verification is unavailable, answer is unverified")
			return t.finalize(ctx, answer, core.VerdictUnverified, core.AnnotationNone)
		}

		vc := t.hookContext(StageVerifying)
		vc.Verdict = judgement.Verdict
		t.notifyHooks(ctx, HookOnVerdict, vc)

		if judgement.Verdict == core.VerdictSupported || !t.canReplan() {
			return t.finalize(ctx, answer, judgement.Verdict, core.AnnotationNone)
		}

		t.replans++
		e.logger.Info("replanning after verdict run_id=%s verdict=%s cycle=%d", t.runID, judgement.Verdict, t.replans)
		t.emitStage(ctx, StageReplanning)
		t.emitWarning(ctx, "draft was not supported by the evidence, restarting the answer")

		// The verdict rationale joins the context so the next cycle can
		// steer its plan and query away from the failed attempt.
		t.history = append(t.history, &core.Message{
			SessionID: t.sess.ID,
			Role:      core.RoleSystem,
			Content: fmt.Sprintf(
				"A previous draft of this answer was judged %s by verification: %s\nRevise the approach and the search query.",
				judgement.Verdict, judgement.Rationale),
			Created: time.Now().UTC(),
		})

		t.emitStage(ctx, StagePlanning)
		decision, err = t.plan(ctx)
		if err != nil {
			return t.fail(ctx, err)
		}
		// A replan exists to gather better evidence; without a fresh search
		// the verdict could not change.
		if !decision.SearchNeeded {
			decision.SearchNeeded = true
			decision.Query = t.question
		}
	}
}

// canReplan reports whether another cycle is allowed: the replan budget has
// room and enough model calls remain for plan, draft and verify.
func (t *turn) canReplan() bool {
	if t.replans >= t.engine.config.ReplanLimit {
		return false
	}
	if rem := t.budget.Remaining(); rem >= 0 && rem < 3 {
		return false
	}
	return true
}

// plan decides search necessity for the current cycle. Chat sessions issue
// one recorded model call; search sessions decide without one.
func (t *turn) plan(ctx context.Context) (plan.Decision, error) {
	e := t.engine

	if t.sess.Category == core.CategorySearch {
		d, _, err := e.planner.Decide(ctx, t.sess.Category, nil, t.question)
		return d, err
	}

	msgs, err := e.assembler.Assemble(e.planner.Instructions(), t.history, t.question)
	if err != nil {
		return plan.Decision{}, err
	}
	digest := core.PromptDigest(msgs)

	var d plan.Decision
	err = e.retry.Do(ctx, func(ctx context.Context) error {
		if err := t.budget.Spend(); err != nil {
			return err
		}
		started := time.Now()
		var dec plan.Decision
		var usage *model.Usage
		callErr := t.withCallTimeout(ctx, core.ProviderLLM, func(ctx context.Context) error {
			var err error
			dec, usage, err = e.planner.Decide(ctx, t.sess.Category, msgs, t.question)
			return err
		})
		t.record(core.CompletionPlan, digest, usage, started, callErr)
		if callErr != nil {
			return callErr
		}
		d = dec
		return nil
	})
	if err != nil {
		return plan.Decision{}, err
	}

	if d.ExtraMarkers > 0 {
		e.logger.Warn("plan output repeated its markers run_id=%s extra=%d", t.runID, d.ExtraMarkers)
		t.emitWarning(ctx, "plan output repeated its markers, first occurrence used")
	}
	e.logger.Debug("plan decided run_id=%s search_needed=%t query=%q", t.runID, d.SearchNeeded, d.Query)
	return d, nil
}

// searchEvidence retrieves evidence with per-call timeout and transient
// retries. On exhaustion the typed provider error of the last attempt is
// returned so the caller can tell degradable failures from fatal ones.
func (t *turn) searchEvidence(ctx context.Context, query string) ([]core.SearchResult, error) {
	e := t.engine
	var results []core.SearchResult
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		return t.withCallTimeout(ctx, core.ProviderSearch, func(ctx context.Context) error {
			r, err := e.search.Search(ctx, query, e.config.SearchLimit)
			if err != nil {
				return err
			}
			results = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Debug("search returned run_id=%s query=%q results=%d", t.runID, query, len(results))
	return results, nil
}

// draft issues the streamed completion for the answer. Every delta is
// forwarded to the event stream and appended to one accumulator, so the
// returned text is byte-identical to what the caller saw. Transient failures
// are retried only while nothing has streamed yet; once bytes are out they
// cannot be unstreamed. On error the accumulated partial is returned with it.
func (t *turn) draft(ctx context.Context, evidenceText string) (string, error) {
	e := t.engine

	instructions := e.instructions
	if evidenceText != "" {
		instructions += "\n\nSearch results:\n" + evidenceText
	}
	msgs, err := e.assembler.Assemble(instructions, t.history, t.question)
	if err != nil {
		return "", err
	}
	digest := core.PromptDigest(msgs)

	var sb strings.Builder

	attempt := func(ctx context.Context) error {
		if err := t.budget.Spend(); err != nil {
			return err
		}
		started := time.Now()
		var usage *model.Usage
		callErr := t.withCallTimeout(ctx, core.ProviderLLM, func(ctx context.Context) error {
			respCh, errCh := e.model.Generate(ctx, model.Request{Messages: msgs, Stream: true})
			for respCh != nil || errCh != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case resp, ok := <-respCh:
					if !ok {
						respCh = nil
						continue
					}
					if resp.Usage != nil {
						usage = resp.Usage
					}
					if resp.Text == "" {
						continue
					}
					if !resp.Partial && sb.Len() > 0 {
						// Final chunk repeating already-streamed text.
						continue
					}
					sb.WriteString(resp.Text)
					t.emit(ctx, newDeltaEvent(t.runID, t.sess.ID, resp.Text))
				case err, ok := <-errCh:
					if !ok {
						errCh = nil
						continue
					}
					if err != nil {
						return err
					}
				}
			}
			return nil
		})
		t.record(core.CompletionDraft, digest, usage, started, callErr)
		return callErr
	}

	policy := e.retry
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.BaseDelay
	for n := 1; ; n++ {
		err := attempt(ctx)
		if err == nil {
			return sb.String(), nil
		}
		if sb.Len() > 0 || n >= attempts || !core.IsTransient(err) || ctx.Err() != nil {
			return sb.String(), err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return sb.String(), ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}

// draftFailed routes a drafting error: caller cancellation persists the
// partial as truncated when configured, a provider failure after partial
// output persists it as errored, anything before content fails the turn.
func (t *turn) draftFailed(ctx context.Context, partial string, err error) error {
	e := t.engine

	if ctx.Err() != nil {
		if e.config.PersistTruncated && partial != "" {
			e.logger.Warn("turn cancelled mid-stream, persisting truncated answer run_id=%s", t.runID)
			return t.finalize(ctx, partial, core.VerdictNone, core.AnnotationTruncated)
		}
		return t.fail(ctx, err)
	}
	if partial != "" {
		e.logger.Warn("provider failed mid-stream, persisting errored answer run_id=%s: %v", t.runID, err)
		t.emitWarning(ctx, "the answer was cut short by a provider failure")
		return t.finalize(ctx, partial, core.VerdictNone, core.AnnotationErrored)
	}
	return t.fail(ctx, err)
}

// verifyDraft judges the draft against the evidence with per-call timeout
// and transient retries.
func (t *turn) verifyDraft(ctx context.Context, evidenceText, draft string) (verify.Judgement, error) {
	e := t.engine
	digest := core.PromptDigest(e.verifier.PromptMessages(t.question, evidenceText, draft))

	var j verify.Judgement
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		if err := t.budget.Spend(); err != nil {
			return err
		}
		started := time.Now()
		var usage *model.Usage
		callErr := t.withCallTimeout(ctx, core.ProviderLLM, func(ctx context.Context) error {
			var err error
			j, usage, err = e.verifier.Judge(ctx, t.question, evidenceText, draft)
			return err
		})
		t.record(core.CompletionVerify, digest, usage, started, callErr)
		return callErr
	})
	if err != nil {
		return verify.Judgement{}, err
	}
	e.logger.Debug("verdict resolved run_id=%s verdict=%s", t.runID, j.Verdict)
	return j, nil
}

// finalize persists the turn while the session lock is still held: the user
// message, the assistant message with its verdict, the terminal annotation
// when one applies, every completion record linked to the new message, and
// the session timestamp bump. Stores implementing core.TurnFinalizer commit
// all of it in one atomic unit; otherwise the writes run stepwise and
// records plus the timestamp bump are best effort once the answer is in.
// Append order equals completion order either way because the lock
// serializes finalizes per session.
func (t *turn) finalize(ctx context.Context, text string, verdict core.Verdict, annotation core.Annotation) error {
	e := t.engine
	t.emitStage(ctx, StageFinalizing)

	// A cancelled caller must not abort persistence of a truncated answer.
	pctx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}

	userMsg := core.NewUserMessage(t.sess.ID, t.author, t.question)
	asst := core.NewAssistantMessage(t.sess.ID, text)
	asst.Verdict = verdict

	var msgID int64
	if fin, ok := e.store.(core.TurnFinalizer); ok {
		id, err := fin.FinalizeTurn(pctx, userMsg, asst, annotation, t.records)
		if err != nil {
			return t.fail(ctx, err)
		}
		msgID = id
	} else {
		var err error
		if _, err = e.store.AppendMessage(pctx, userMsg); err != nil {
			return t.fail(ctx, err)
		}
		if msgID, err = e.store.AppendMessage(pctx, asst); err != nil {
			return t.fail(ctx, err)
		}
		if annotation != core.AnnotationNone {
			if err := e.store.AnnotateMessage(pctx, msgID, annotation); err != nil {
				return t.fail(ctx, err)
			}
		}
		for _, rec := range t.records {
			id := msgID
			rec.MessageID = &id
			if err := e.store.RecordCompletion(pctx, rec); err != nil {
				e.logger.Error("completion record not persisted run_id=%s kind=%s: %v", t.runID, rec.Kind, err)
			}
		}
		if err := e.store.UpdateSessionTimestamp(pctx, t.sess.ID); err != nil {
			e.logger.Error("session timestamp not updated run_id=%s: %v", t.runID, err)
		}
	}

	t.emit(ctx, newAnswerEvent(t.runID, t.sess.ID, Answer{
		MessageID:  msgID,
		Text:       text,
		Verdict:    verdict,
		Annotation: annotation,
		Replans:    t.replans,
		ModelCalls: t.budget.Used(),
	}))
	t.emitStage(ctx, StageDone)

	hc := t.hookContext(StageDone)
	hc.Verdict = verdict
	t.notifyHooks(ctx, HookAfterTurn, hc)

	e.logger.Info("turn finished run_id=%s session_id=%s verdict=%s replans=%d model_calls=%d duration=%s",
		t.runID, t.sess.ID, verdict, t.replans, t.budget.Used(), time.Since(t.started))
	return nil
}

// fail routes the turn to the failed stage. Nothing is persisted; the error
// travels to the caller over the errors channel.
func (t *turn) fail(ctx context.Context, err error) error {
	e := t.engine
	t.emitStage(ctx, StageFailed)

	hc := t.hookContext(StageFailed)
	hc.Err = err
	t.notifyHooks(ctx, HookOnError, hc)

	e.logger.Error("turn failed run_id=%s session_id=%s duration=%s: %v",
		t.runID, t.sess.ID, time.Since(t.started), err)
	return err
}

// withCallTimeout bounds one provider call and normalizes a per-call
// deadline into the typed transient timeout error for the given boundary.
// Parent cancellation is never reclassified.
func (t *turn) withCallTimeout(ctx context.Context, source core.ProviderSource, op func(context.Context) error) error {
	callCtx := ctx
	if d := t.engine.config.CallTimeout; d > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	err := op(callCtx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	var pe *core.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if source == core.ProviderSearch {
			return core.NewSearchError(core.ErrorKindTimeout, err)
		}
		return core.NewLLMError(core.ErrorKindTimeout, err)
	}
	return err
}

// record captures one model call for persistence at finalize. Failed calls
// record the provider error kind as outcome.
func (t *turn) record(kind core.CompletionKind, digest string, usage *model.Usage, started time.Time, callErr error) {
	rec := &core.CompletionRecord{
		SessionID:    t.sess.ID,
		Kind:         kind,
		Model:        t.engine.model.Info().Name,
		PromptDigest: digest,
		LatencyMS:    time.Since(started).Milliseconds(),
		Outcome:      core.CompletionOutcomeSuccess,
		Created:      time.Now().UTC(),
	}
	if usage != nil {
		rec.PromptTokens = usage.PromptTokens
		rec.CompletionTokens = usage.CompletionTokens
	}
	if callErr != nil {
		var pe *core.ProviderError
		if errors.As(callErr, &pe) {
			rec.Outcome = string(pe.Kind)
		} else {
			rec.Outcome = "error"
		}
	}
	t.records = append(t.records, rec)
}

func (t *turn) hookContext(stage Stage) *HookContext {
	return &HookContext{
		RunID:     t.runID,
		SessionID: t.sess.ID,
		Question:  t.question,
		Author:    t.author,
		Stage:     stage,
	}
}

func (t *turn) notifyHooks(ctx context.Context, typ HookType, hc *HookContext) {
	if err := t.engine.hooks.Execute(ctx, typ, hc); err != nil {
		t.engine.logger.Warn("hook failed type=%s run_id=%s: %v", typ, t.runID, err)
	}
}

// emit forwards an event unless the caller is gone. A full buffer blocks the
// turn until the caller drains or cancels.
func (t *turn) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *turn) emitStage(ctx context.Context, stage Stage) {
	t.emit(ctx, newStageEvent(t.runID, t.sess.ID, stage))
}

func (t *turn) emitWarning(ctx context.Context, text string) {
	t.emit(ctx, newWarningEvent(t.runID, t.sess.ID, text))
}
