package models

import (
	"fmt"
	"strings"
)

// EmergencyRequest is an incoming triage request.
type EmergencyRequest struct {
	UserID    string `json:"user_id"`
	VoiceText string `json:"voice_text"`
}

// Validate trims fields and ensures a user is named.
func (r *EmergencyRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	r.VoiceText = strings.TrimSpace(r.VoiceText)
	if r.UserID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	return nil
}

// Response labels a triage decision may carry.
const (
	ResponseAmbulance = "ambulance"
	ResponseCaretaker = "caretaker"
	ResponseDrone     = "drone"
)

// TriageDecision is the structured recommendation extracted from the model output.
type TriageDecision struct {
	Responses   []string `json:"responses"`
	Medications []string `json:"medications"`
}

// Route names a downstream responder service.
type Route string

const (
	RoutePharmacy  Route = "pharmacy"
	RouteCaretaker Route = "caretaker"
	RouteAmbulance Route = "ambulance"
	RouteUnmatched Route = "unmatched"
)

// DispatchEnvelope is the JSON body posted to a downstream responder.
type DispatchEnvelope struct {
	Action      string         `json:"action"`
	Status      string         `json:"status"`
	User        ProfileSummary `json:"user"`
	Medications []string       `json:"medications,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// DispatchOutcome is the result of routing a decision.
type DispatchOutcome struct {
	Route      Route  `json:"route"`
	Dispatched bool   `json:"dispatched"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

// EmergencyResponse is returned to the caller for every handled triage request.
type EmergencyResponse struct {
	Status           string          `json:"status"`
	IncidentID       string          `json:"incident_id"`
	State            string          `json:"state"`
	Decision         *TriageDecision `json:"decision,omitempty"`
	DecisionParsed   bool            `json:"decision_parsed"`
	ContextAvailable bool            `json:"context_available"`
	Dispatch         DispatchOutcome `json:"dispatch"`
	Detail           string          `json:"detail,omitempty"`
}
