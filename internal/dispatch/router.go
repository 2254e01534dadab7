package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/models"
)

// Router plans a route and performs the single outbound call for it.
type Router struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewRouter creates a router backed by dispatcher.
func NewRouter(dispatcher Dispatcher, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{dispatcher: dispatcher, logger: logger}
}

// Route dispatches decision to the first matching responder. The outcome is
// always populated; the error is ErrUnmatched or an *Error for classification.
func (r *Router) Route(ctx context.Context, decision models.TriageDecision, summary models.ProfileSummary, freeText string) (models.DispatchOutcome, error) {
	route, ok := Plan(decision.Responses)
	if !ok {
		r.logger.Warn("no responder matched decision", zap.Strings("labels", decision.Responses))
		return models.DispatchOutcome{
			Route:   models.RouteUnmatched,
			Message: "No matching response found",
		}, ErrUnmatched
	}

	env := Envelope(route, summary, decision, freeText)
	if err := r.dispatcher.Dispatch(ctx, route, env); err != nil {
		var derr *Error
		if !errors.As(err, &derr) {
			derr = &Error{Route: route, Err: err}
		}
		r.logger.Error("dispatch failed",
			zap.String("route", string(route)),
			zap.Int("status_code", derr.StatusCode),
			zap.Error(err))
		return models.DispatchOutcome{
			Route:      route,
			Message:    fmt.Sprintf("Failed to reach %s service", route),
			StatusCode: derr.StatusCode,
		}, derr
	}

	r.logger.Info("dispatched", zap.String("route", string(route)), zap.String("action", env.Action))
	return models.DispatchOutcome{
		Route:      route,
		Dispatched: true,
		Message:    successMessage(route, decision.Medications),
	}, nil
}

func successMessage(route models.Route, medications []string) string {
	switch route {
	case models.RoutePharmacy:
		if len(medications) == 0 {
			return "Drone dispatched"
		}
		return fmt.Sprintf("Drone dispatched with %d medication(s)", len(medications))
	case models.RouteCaretaker:
		return "Caretaker notified"
	default:
		return "Ambulance dispatched"
	}
}
