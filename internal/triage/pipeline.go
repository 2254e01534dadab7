// Package triage runs an emergency request from profile lookup to responder dispatch.
package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/triage/internal/decision"
	"github.com/hyperjump/triage/internal/llm"
	"github.com/hyperjump/triage/internal/metrics"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/profile"
	"github.com/hyperjump/triage/internal/retrieval"
	"github.com/hyperjump/triage/internal/storage"
)

// State is a pipeline stage. Routed and Failed are terminal.
type State string

const (
	StateReceived          State = "received"
	StateProfileResolved   State = "profile_resolved"
	StateContextRetrieved  State = "context_retrieved"
	StateDecisionRequested State = "decision_requested"
	StateDecisionParsed    State = "decision_parsed"
	StateRouted            State = "routed"
	StateFailed            State = "failed"
)

// Warmer loads the shared guideline index ahead of retrieval.
type Warmer interface {
	EnsureLoaded(ctx context.Context) error
}

// Retriever returns guideline context for a query. It must not fail the caller.
type Retriever interface {
	Search(ctx context.Context, queryText string, k int) retrieval.Result
}

// Router dispatches a decision to a responder.
type Router interface {
	Route(ctx context.Context, d models.TriageDecision, summary models.ProfileSummary, freeText string) (models.DispatchOutcome, error)
}

// Options tunes the pipeline.
type Options struct {
	TopK int
	// Fallback is the decision label used when the model call fails. Empty disables it.
	Fallback string
}

// Pipeline runs triage requests. It is safe for concurrent use.
type Pipeline struct {
	profiles  storage.ProfileStore
	warmer    Warmer
	retriever Retriever
	generator llm.Generator
	router    Router
	metrics   *metrics.Metrics
	logger    *zap.Logger
	opts      Options
	now       func() time.Time
}

// New creates a pipeline. warmer and m may be nil.
func New(profiles storage.ProfileStore, warmer Warmer, retriever Retriever, generator llm.Generator, router Router, m *metrics.Metrics, logger *zap.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Pipeline{
		profiles:  profiles,
		warmer:    warmer,
		retriever: retriever,
		generator: generator,
		router:    router,
		metrics:   m,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// run carries the per-request state through the stages.
type run struct {
	resp  *models.EmergencyResponse
	state State
	log   *zap.Logger
}

func (r *run) advance(s State) {
	r.state = s
	r.resp.State = string(s)
	r.log.Debug("triage state", zap.String("state", string(s)))
}

// Run handles one request. The response is never nil. The error classifies
// failures: ErrProfileNotFound, ErrDecisionUnavailable, dispatch.ErrUnmatched,
// *dispatch.Error, or *Fault for anything unexpected.
func (p *Pipeline) Run(ctx context.Context, req models.EmergencyRequest) (resp *models.EmergencyResponse, err error) {
	r := &run{
		resp: &models.EmergencyResponse{Status: "error", IncidentID: uuid.NewString()},
		log:  p.logger.With(zap.String("user_id", req.UserID)),
	}
	r.log = r.log.With(zap.String("incident_id", r.resp.IncidentID))
	r.advance(StateReceived)

	defer func() {
		if rec := recover(); rec != nil {
			err = &Fault{State: r.state, Cause: rec}
			r.log.Error("triage pipeline panicked", zap.String("state", string(r.state)), zap.Any("panic", rec))
		}
		if err != nil && r.state != StateRouted {
			r.advance(StateFailed)
		}
		if err != nil && r.resp.Detail == "" {
			r.resp.Detail = err.Error()
		}
		p.metrics.RecordRequest(r.resp.State)
		resp = r.resp
	}()

	return r.resp, p.run(ctx, r, req)
}

func (p *Pipeline) run(ctx context.Context, r *run, req models.EmergencyRequest) error {
	prof, warmErr, err := p.resolve(ctx, req.UserID)
	if err != nil {
		return err
	}
	if prof.IsEmpty() {
		r.log.Warn("profile is empty or incomplete")
	}
	summary := profile.Summarize(prof, p.now())
	r.log.Debug("profile summary", zap.Any("summary", summary))
	r.advance(StateProfileResolved)

	var found retrieval.Result
	if warmErr != nil {
		r.log.Warn("guideline context unavailable", zap.Error(warmErr))
		found = retrieval.Unavailable(warmErr)
	} else {
		found = p.retriever.Search(ctx, profile.QueryText(summary, req.VoiceText), p.opts.TopK)
	}
	r.resp.ContextAvailable = found.Available
	r.advance(StateContextRetrieved)

	prompt, err := decision.BuildPrompt(summary, found.Context, req.VoiceText)
	if err != nil {
		return err
	}
	r.advance(StateDecisionRequested)

	dec, parsed, err := p.decide(ctx, r, prompt)
	if err != nil {
		return err
	}
	r.resp.Decision = &dec
	r.resp.DecisionParsed = parsed
	r.advance(StateDecisionParsed)

	outcome, err := p.router.Route(ctx, dec, summary, req.VoiceText)
	r.resp.Dispatch = outcome
	r.advance(StateRouted)
	p.metrics.RecordRoute(string(outcome.Route), outcome.Dispatched)
	if err != nil {
		r.resp.Detail = outcome.Message
		return err
	}
	r.resp.Status = "success"
	return nil
}

// resolve fetches the profile while warming the guideline index. A warm-up
// failure is returned separately since it only degrades retrieval.
func (p *Pipeline) resolve(ctx context.Context, userID string) (*models.Profile, error, error) {
	var (
		prof    *models.Profile
		warmErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = &Fault{State: StateReceived, Cause: rec}
			}
		}()
		prof, err = p.profiles.GetProfile(gctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, userID)
		}
		return err
	})
	if p.warmer != nil {
		g.Go(func() error {
			// A panicking load only costs this request its guideline context.
			defer func() {
				if rec := recover(); rec != nil {
					warmErr = fmt.Errorf("guideline index load panicked: %v", rec)
				}
			}()
			warmErr = p.warmer.EnsureLoaded(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return prof, warmErr, nil
}

// decide asks the model and parses the answer. A failed call uses the
// fallback label; unparseable text becomes a single free-form label.
func (p *Pipeline) decide(ctx context.Context, r *run, prompt string) (models.TriageDecision, bool, error) {
	start := time.Now()
	raw, err := p.generator.Generate(ctx, prompt)
	p.metrics.ObserveDecision(time.Since(start).Seconds())
	if err != nil {
		if p.opts.Fallback == "" {
			r.log.Error("decision request failed", zap.Error(err))
			return models.TriageDecision{}, false, fmt.Errorf("%w: %w", ErrDecisionUnavailable, err)
		}
		r.log.Warn("decision request failed, using fallback",
			zap.String("fallback", p.opts.Fallback), zap.Error(err))
		return models.TriageDecision{Responses: []string{p.opts.Fallback}, Medications: []string{}}, false, nil
	}
	r.log.Debug("model output", zap.String("raw", raw))

	res := decision.Parse(raw)
	if !res.Parsed {
		p.metrics.RecordParseFailure()
		r.log.Warn("model output unparseable, routing on raw text", zap.Error(res.Cause))
	}
	return res.Effective(), res.Parsed, nil
}
