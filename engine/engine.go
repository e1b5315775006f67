package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/logging"
	"github.com/hupe1980/answermesh/model"
	"github.com/hupe1980/answermesh/plan"
	"github.com/hupe1980/answermesh/prompt"
	"github.com/hupe1980/answermesh/search"
	"github.com/hupe1980/answermesh/session"
	"github.com/hupe1980/answermesh/verify"
)

// DefaultInstructions is the drafting system prompt used when the caller does
// not configure one. Evidence, when present, is appended beneath it.
const DefaultInstructions = "You are a helpful assistant. Answer the user's latest question directly " +
	"and concisely. When search results are provided, ground your answer in them and do not invent sources."

// Config defines tuning parameters for the engine's turn behavior.
type Config struct {
	// HistoryLimit bounds how many trailing messages are loaded as context
	// for planning and drafting.
	HistoryLimit int

	// ReplanLimit bounds how often an unsupported or insufficient verdict
	// may restart the search/draft/verify loop within one turn.
	ReplanLimit int

	// MaxModelCalls caps completion calls per turn, retries included. Zero
	// means uncapped.
	MaxModelCalls int

	// CallTimeout bounds each individual model or search call. Zero means
	// no per-call timeout.
	CallTimeout time.Duration

	// SearchLimit caps results requested per search call.
	SearchLimit int

	// RejectConcurrent rejects a second turn on a busy session with
	// core.ErrConcurrentModification instead of queueing it.
	RejectConcurrent bool

	// PersistTruncated persists the partial answer with a truncated
	// annotation when the caller cancels mid-stream. When false a cancelled
	// turn persists nothing.
	PersistTruncated bool

	// EventBufferSize sets the event channel buffer. Larger buffers reduce
	// blocking of the turn goroutine against slow consumers.
	EventBufferSize int
}

// DefaultConfig provides production defaults.
var DefaultConfig = Config{
	HistoryLimit:    20,
	ReplanLimit:     1,
	MaxModelCalls:   8,
	CallTimeout:     30 * time.Second,
	SearchLimit:     5,
	EventBufferSize: 100,
}

// Options configures an Engine instance using the functional options
// pattern. All dependencies have in-memory defaults so a bare New() yields a
// working engine for development and tests; production wiring supplies a real
// model, search client and durable store.
type Options struct {
	// Config contains operational parameters for turn behavior.
	Config Config

	// Store persists sessions, messages, shares and completion records.
	// Defaults to the in-memory implementation.
	Store core.SessionStore

	// Model answers plan, draft and verify calls. Defaults to a mock.
	Model model.Model

	// Search retrieves evidence. Defaults to an empty in-memory index.
	Search core.SearchClient

	// Assembler builds prompts within the token budget. Defaults to the
	// standard assembler.
	Assembler *prompt.Assembler

	// Planner decides search necessity. Defaults to a planner on Model.
	Planner *plan.Planner

	// Verifier judges drafts against evidence. Defaults to a verifier on
	// Model.
	Verifier *verify.Verifier

	// Retry governs transient provider failures per call site.
	Retry core.RetryPolicy

	// Instructions is the drafting system prompt.
	Instructions string

	// Hooks receives lifecycle callbacks. Defaults to an empty manager.
	Hooks *HookManager

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Engine orchestrates turns over sessions. It bridges the domain contracts
// in core with the concrete providers and owns the per-session single-flight
// discipline.
//
// Concurrency:
//   - Safe for concurrent Ask calls across sessions
//   - Turns on the same session serialize on an internal lock (or reject,
//     per Config.RejectConcurrent)
//   - Each turn runs on its own goroutine; CancelRun interrupts one turn
//     without touching the others
type Engine struct {
	store     core.SessionStore
	model     model.Model
	search    core.SearchClient
	assembler *prompt.Assembler
	planner   *plan.Planner
	verifier  *verify.Verifier
	hooks     *HookManager
	logger    logging.Logger

	config       Config
	retry        core.RetryPolicy
	instructions string

	flight *session.FlightLock

	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex
}

// New creates an Engine. Without options it runs fully in memory against a
// mock model, which is useful for tests and prototyping; supply a model,
// search client and store for production use.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		Store:        session.NewInMemoryStore(),
		Model:        model.NewMockModel("mock", "mock"),
		Search:       search.NewInMemoryClient(),
		Retry:        core.DefaultRetryPolicy(),
		Instructions: DefaultInstructions,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Assembler == nil {
		opts.Assembler = prompt.New(func(o *prompt.Options) {
			o.MaxHistory = opts.Config.HistoryLimit
		})
	}
	if opts.Planner == nil {
		opts.Planner = plan.New(opts.Model)
	}
	if opts.Verifier == nil {
		opts.Verifier = verify.New(opts.Model)
	}
	if opts.Hooks == nil {
		opts.Hooks = NewHookManager()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		store:        opts.Store,
		model:        opts.Model,
		search:       opts.Search,
		assembler:    opts.Assembler,
		planner:      opts.Planner,
		verifier:     opts.Verifier,
		hooks:        opts.Hooks,
		logger:       opts.Logger,
		config:       opts.Config,
		retry:        opts.Retry,
		instructions: opts.Instructions,
		flight:       session.NewFlightLock(),
		activeRuns:   make(map[string]context.CancelFunc),
	}
}

// Ask runs one turn asynchronously and returns channels for real-time event
// streaming.
//
// Returns:
//   - runID: identifier for CancelRun
//   - events: stage transitions, answer deltas, warnings and the final
//     answer; closed when the turn ends
//   - errors: at most one terminal error; closed with events
//   - error: immediate failure (unknown or inactive session, empty
//     question, busy session in reject mode)
//
// The events channel must be drained; an abandoned consumer stalls the turn
// once the buffer fills, until the context is cancelled.
func (e *Engine) Ask(ctx context.Context, sessionID, question string, author core.UserRef) (string, <-chan Event, <-chan error, error) {
	if strings.TrimSpace(question) == "" {
		return "", nil, nil, fmt.Errorf("question must not be empty")
	}

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", nil, nil, err
	}
	if !sess.Active {
		return "", nil, nil, core.ErrSessionInactive
	}

	// In reject mode the busy check happens before the run starts so the
	// caller gets an immediate error.
	var guard *session.Guard
	if e.config.RejectConcurrent {
		g, ok := e.flight.TryAcquire(sessionID)
		if !ok {
			return "", nil, nil, core.ErrConcurrentModification
		}
		guard = g
	}

	runID := core.NewID()
	eventsCh := make(chan Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)
	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()

	t := &turn{
		engine:   e,
		runID:    runID,
		sess:     sess,
		question: question,
		author:   author,
		budget:   core.NewCallBudget(e.config.MaxModelCalls),
		events:   eventsCh,
	}

	go func() {
		defer func() {
			close(eventsCh)
			close(errorsCh)
			cancel()
			e.runsMu.Lock()
			delete(e.activeRuns, runID)
			e.runsMu.Unlock()
		}()

		if guard == nil {
			g, err := e.flight.Acquire(runCtx, sessionID)
			if err != nil {
				errorsCh <- err
				return
			}
			guard = g
		}
		defer guard.Release()

		if err := t.run(runCtx); err != nil {
			errorsCh <- err
		}
	}()

	return runID, eventsCh, errorsCh, nil
}

// AskSync runs one turn synchronously and returns all generated events.
//
// It blocks until the turn ends. The final answer can be read from the
// EventAnswer event; concatenating delta texts yields the same string.
// Partial events collected before an error are returned alongside it.
func (e *Engine) AskSync(ctx context.Context, sessionID, question string, author core.UserRef) (string, []Event, error) {
	runID, eventsCh, errorsCh, err := e.Ask(ctx, sessionID, question, author)
	if err != nil {
		return "", nil, err
	}

	var events []Event
	var runErr error
	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			events = append(events, ev)
		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil {
				runErr = err
			}
		}
	}
	return runID, events, runErr
}

// CancelRun interrupts a running turn by ID. Depending on timing and
// Config.PersistTruncated the turn either persists a truncated answer or
// nothing.
func (e *Engine) CancelRun(runID string) error {
	e.runsMu.Lock()
	cancel, ok := e.activeRuns[runID]
	e.runsMu.Unlock()
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	cancel()
	return nil
}

// GetSession retrieves a session snapshot by ID.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*core.Session, error) {
	return e.store.GetSession(ctx, sessionID)
}

// Store exposes the underlying session store for session management
// operations that do not run a turn (create, list, share).
func (e *Engine) Store() core.SessionStore { return e.store }
