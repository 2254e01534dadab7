package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/triage/internal/models"
)

// ErrNoObject is the parse cause when the text contains no {...} span.
var ErrNoObject = errors.New("no JSON object in model output")

var fenceRe = regexp.MustCompile("(?i)```(?:json)?")

// Result is the outcome of parsing model output. Exactly one of two shapes holds:
// Parsed with Decision set, or unparseable with Cause set. Raw is always the original text.
type Result struct {
	Parsed   bool
	Decision models.TriageDecision
	Raw      string
	Cause    error
}

// Labels returns the labels to route on. An unparseable result falls back to
// the lowercased raw text as a single free-form label.
func (r Result) Labels() []string {
	if r.Parsed {
		return r.Decision.Responses
	}
	return []string{strings.ToLower(strings.TrimSpace(r.Raw))}
}

// Effective returns the decision the pipeline acts on, applying the raw-text fallback.
func (r Result) Effective() models.TriageDecision {
	if r.Parsed {
		return r.Decision
	}
	return models.TriageDecision{Responses: r.Labels(), Medications: []string{}}
}

type wireDecision struct {
	Response    json.RawMessage `json:"response"`
	Responses   json.RawMessage `json:"responses"`
	Medications json.RawMessage `json:"medications"`
}

// Parse extracts a decision from raw model text.
//
// Code fences and surrounding backticks are stripped, then the span from the
// first '{' to the last '}' is decoded. This is not a bracket-matching scan:
// output holding several objects, or prose containing braces after the object,
// yields a merged span that usually fails to decode and takes the raw-text fallback.
func Parse(raw string) Result {
	res := Result{Raw: raw}
	clean := strings.Trim(fenceRe.ReplaceAllString(raw, ""), "` \t\r\n")

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end < start {
		res.Cause = ErrNoObject
		return res
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(clean[start:end+1]), &w); err != nil {
		res.Cause = fmt.Errorf("decode decision: %w", err)
		return res
	}

	field := w.Response
	if isAbsent(field) {
		field = w.Responses
	}
	responses, err := stringOrList(field)
	if err != nil {
		res.Cause = fmt.Errorf("decode response: %w", err)
		return res
	}
	for i := range responses {
		responses[i] = strings.ToLower(strings.TrimSpace(responses[i]))
	}
	medications, err := stringOrList(w.Medications)
	if err != nil {
		res.Cause = fmt.Errorf("decode medications: %w", err)
		return res
	}

	res.Parsed = true
	res.Decision = models.TriageDecision{Responses: responses, Medications: medications}
	return res
}

func isAbsent(m json.RawMessage) bool {
	return len(m) == 0 || string(m) == "null"
}

func stringOrList(m json.RawMessage) ([]string, error) {
	if isAbsent(m) {
		return []string{}, nil
	}
	var one string
	if err := json.Unmarshal(m, &one); err == nil {
		if strings.TrimSpace(one) == "" {
			return []string{}, nil
		}
		return []string{one}, nil
	}
	var list []string
	if err := json.Unmarshal(m, &list); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
