// Package answermesh provides a high-level façade over the core Engine and
// its provider abstractions (sessions, models, search & logging) enabling
// rapid construction of verified question answering services. Most
// applications interact with this package by:
//  1. Creating an AnswerMesh via New() (optionally overriding default in-memory providers)
//  2. Creating a chat or search session via CreateSession
//  3. Asking questions asynchronously (Ask) or synchronously (AskSync)
//
// The façade delegates turn orchestration to engine.Engine while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically call
// NewFromConfig, which wires the OpenAI chat model, SerpAPI search, a
// SQLite-backed session store and a structured logger from environment
// configuration.
package answermesh

import (
	"context"
	"fmt"

	"github.com/hupe1980/answermesh/config"
	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/engine"
	"github.com/hupe1980/answermesh/logging"
	"github.com/hupe1980/answermesh/model"
	"github.com/hupe1980/answermesh/model/openai"
	"github.com/hupe1980/answermesh/plan"
	"github.com/hupe1980/answermesh/prompt"
	"github.com/hupe1980/answermesh/search"
	"github.com/hupe1980/answermesh/session"
	"github.com/hupe1980/answermesh/verify"
)

// Options configures the AnswerMesh instance.
type Options struct {
	// Engine configuration (history, replans, call caps, timeouts, buffers)
	EngineConfig engine.Config

	// Providers (default to in-memory implementations if not provided)
	Store  core.SessionStore
	Model  model.Model
	Search core.SearchClient

	// Planner, Verifier and Assembler override the engine's defaults,
	// mainly to carry custom markers, judge templates or token budgets.
	Planner   *plan.Planner
	Verifier  *verify.Verifier
	Assembler *prompt.Assembler

	// Instructions is the drafting system prompt.
	Instructions string

	// Retry governs transient provider failures per call site.
	Retry core.RetryPolicy

	// Hooks receives turn lifecycle callbacks (nil runs without hooks).
	Hooks *engine.HookManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AnswerMesh is the high-level façade aggregating the underlying engine and
// its providers.
type AnswerMesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new AnswerMesh instance with optional overrides. Any unset
// provider is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AnswerMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Store:        session.NewInMemoryStore(),
		Model:        model.NewMockModel("mock", "mock"),
		Search:       search.NewInMemoryClient(),
		Instructions: engine.DefaultInstructions,
		Retry:        core.DefaultRetryPolicy(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Store = opts.Store
		o.Model = opts.Model
		o.Search = opts.Search
		o.Planner = opts.Planner
		o.Verifier = opts.Verifier
		o.Assembler = opts.Assembler
		o.Instructions = opts.Instructions
		o.Retry = opts.Retry
		o.Hooks = opts.Hooks
		o.Logger = opts.Logger
	})

	return &AnswerMesh{opts: opts, engine: e}
}

// NewFromConfig builds an AnswerMesh from environment configuration. A nil
// cfg loads the environment via config.Load. The wiring selects SerpAPI
// search when a key is configured and falls back to the empty in-memory
// index otherwise, so chat-only deployments need no search credentials.
// Option overrides run after the config wiring and win.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*AnswerMesh, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	store, err := session.NewGormStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	mdl := openai.NewModel(func(o *openai.Options) {
		o.Model = cfg.Model
		o.Temperature = cfg.Temperature
		o.BaseURL = cfg.Endpoint
	})

	var searchClient core.SearchClient = search.NewInMemoryClient()
	if cfg.SerpAPIKey != "" {
		searchClient = search.NewSerpAPI(cfg.SerpAPIKey)
	}

	engineCfg := engine.DefaultConfig
	engineCfg.HistoryLimit = cfg.MaxHistory
	engineCfg.ReplanLimit = cfg.ReplanLimit
	engineCfg.MaxModelCalls = cfg.MaxModelCalls
	engineCfg.CallTimeout = cfg.CallTimeout
	engineCfg.SearchLimit = cfg.SearchResultLimit
	engineCfg.RejectConcurrent = cfg.RejectConcurrent
	engineCfg.PersistTruncated = cfg.PersistTruncated

	retry := core.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.BaseDelay = cfg.RetryBaseDelay

	configured := func(o *Options) {
		o.EngineConfig = engineCfg
		o.Store = store
		o.Model = mdl
		o.Search = searchClient
		o.Planner = plan.New(mdl, func(po *plan.Options) {
			po.Markers = plan.Markers{Plan: cfg.PlanSuffix, Search: cfg.SearchPlanSuffix}
		})
		o.Verifier = verify.New(mdl, func(vo *verify.Options) {
			if cfg.VerifierPrompt != "" {
				vo.Template = cfg.VerifierPrompt
			}
		})
		o.Assembler = prompt.New(func(ao *prompt.Options) {
			ao.MaxHistory = cfg.MaxHistory
			ao.TokenBudget = cfg.PromptMaxTokens
		})
		o.Retry = retry
		o.Logger = logging.NewSlogLogger(logging.ParseLogLevel(cfg.LogLevel), cfg.LogFormat, false).
			WithComponent("engine")
	}

	return New(append([]func(o *Options){configured}, optFns...)...), nil
}

// CreateSession registers a new conversation with the given category, title
// and creator and returns it with its assigned ID.
func (m *AnswerMesh) CreateSession(ctx context.Context, category core.Category, title string, createdBy core.UserRef) (*core.Session, error) {
	sess := core.NewSession(category, title, createdBy)
	if err := m.opts.Store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Ask starts an asynchronous turn returning event & error channels.
func (m *AnswerMesh) Ask(
	ctx context.Context,
	sessionID string,
	question string,
	author core.UserRef,
) (string, <-chan engine.Event, <-chan error, error) {
	return m.engine.Ask(ctx, sessionID, question, author)
}

// AskSync is a synchronous helper that drains the async channels, accumulates
// events and returns the runID.
func (m *AnswerMesh) AskSync(
	ctx context.Context,
	sessionID string,
	question string,
	author core.UserRef,
) (string, []engine.Event, error) {
	return m.engine.AskSync(ctx, sessionID, question, author)
}

// CancelRun interrupts a running turn.
func (m *AnswerMesh) CancelRun(runID string) error { return m.engine.CancelRun(runID) }

// Store exposes the underlying session store for history, listing and share
// operations.
func (m *AnswerMesh) Store() core.SessionStore { return m.opts.Store }
