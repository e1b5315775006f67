package plan

import (
	"context"
	"fmt"

	"github.com/hupe1980/answermesh/core"
	"github.com/hupe1980/answermesh/model"
)

// Options configures the Planner.
type Options struct {
	// Markers are the tags the plan call is instructed to emit.
	Markers Markers
	// Instructions overrides the built-in plan-call instruction text.
	// Leave empty to derive it from the markers.
	Instructions string
}

// Planner decides search necessity per turn. Search-category sessions always
// search with the question as the query; chat-category sessions issue one
// non-streamed model call and parse its suffix markers.
type Planner struct {
	model model.Model
	opts  Options
}

// New creates a Planner backed by the given model.
func New(m model.Model, optFns ...func(o *Options)) *Planner {
	opts := Options{Markers: DefaultMarkers()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Markers.Search == "" {
		opts.Markers = DefaultMarkers()
	}
	return &Planner{model: m, opts: opts}
}

// Markers returns the configured tag pair.
func (p *Planner) Markers() Markers { return p.opts.Markers }

// Instructions returns the instruction text for the plan call.
func (p *Planner) Instructions() string {
	if p.opts.Instructions != "" {
		return p.opts.Instructions
	}
	return fmt.Sprintf(
		"Decide whether answering the user's latest question requires fresh external information. "+
			"Think briefly, then end your reply with %s followed by a one-line note of your approach. "+
			"If and only if a web search is required, also append %s followed by the exact search query to run.",
		p.opts.Markers.Plan, p.opts.Markers.Search)
}

// Decide returns the plan decision for a turn. For chat sessions the
// assembled prompt is sent to the model non-streamed and usage from that call
// is returned for recording; search sessions decide without a call.
func (p *Planner) Decide(ctx context.Context, category core.Category, prompt []core.PromptMessage, question string) (Decision, *model.Usage, error) {
	switch category {
	case core.CategorySearch:
		return Decision{SearchNeeded: true, Query: question}, nil, nil
	case core.CategoryChat:
		respCh, errCh := p.model.Generate(ctx, model.Request{Messages: prompt})
		raw, usage, err := model.Collect(ctx, respCh, errCh)
		if err != nil {
			return Decision{}, usage, err
		}
		return ParseMarkers(raw, p.opts.Markers), usage, nil
	default:
		return Decision{}, nil, fmt.Errorf("unknown session category %q", category)
	}
}
