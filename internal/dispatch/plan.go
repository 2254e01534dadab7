// Package dispatch maps a triage decision to a downstream responder and calls it.
package dispatch

import (
	"errors"
	"strings"

	"github.com/hyperjump/triage/internal/models"
)

// ErrUnmatched is returned when no route matched any decision label.
var ErrUnmatched = errors.New("no responder matched the decision")

// StatusDispatched is the envelope status sent to every responder.
const StatusDispatched = "dispatched"

// Precedence is the order routes are tried in. The first route whose keywords
// match any label wins and no other route is called, even if more would match.
var Precedence = []models.Route{
	models.RoutePharmacy,
	models.RouteCaretaker,
	models.RouteAmbulance,
}

// keywords are matched as substrings of lowercased labels.
var keywords = map[models.Route][]string{
	models.RoutePharmacy:  {models.ResponseDrone, "pharmacy", "self-care", "self care"},
	models.RouteCaretaker: {models.ResponseCaretaker},
	models.RouteAmbulance: {models.ResponseAmbulance, "hospital"},
}

var actions = map[models.Route]string{
	models.RoutePharmacy:  "dispatch_drone",
	models.RouteCaretaker: "notify_caretaker",
	models.RouteAmbulance: "dispatch_ambulance",
}

// Matches reports whether any label names route.
func Matches(route models.Route, labels []string) bool {
	for _, label := range labels {
		label = strings.ToLower(label)
		for _, kw := range keywords[route] {
			if strings.Contains(label, kw) {
				return true
			}
		}
	}
	return false
}

// Plan returns the first route in Precedence matched by labels.
func Plan(labels []string) (models.Route, bool) {
	for _, route := range Precedence {
		if Matches(route, labels) {
			return route, true
		}
	}
	return models.RouteUnmatched, false
}

// Action returns the envelope action for route.
func Action(route models.Route) string {
	return actions[route]
}

// Envelope builds the body posted to route's responder. Pharmacy gets the
// medication list; caretaker and ambulance get the complaint text.
func Envelope(route models.Route, summary models.ProfileSummary, decision models.TriageDecision, freeText string) models.DispatchEnvelope {
	env := models.DispatchEnvelope{
		Action: Action(route),
		Status: StatusDispatched,
		User:   summary,
	}
	if route == models.RoutePharmacy {
		env.Medications = decision.Medications
		if env.Medications == nil {
			env.Medications = []string{}
		}
	} else {
		env.Message = freeText
	}
	return env
}
