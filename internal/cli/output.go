// Package cli provides output formatting and the HTTP client used by the triage CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/triage/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteEmergencyResult writes a triage response to w in the given format.
func WriteEmergencyResult(w io.Writer, resp *models.EmergencyResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "status:     %s\n", resp.Status)
	if resp.IncidentID != "" {
		fmt.Fprintf(w, "incident:   %s\n", resp.IncidentID)
	}
	if resp.State != "" {
		fmt.Fprintf(w, "state:      %s\n", resp.State)
	}
	if resp.Decision != nil {
		parsed := "parsed"
		if !resp.DecisionParsed {
			parsed = "fallback"
		}
		fmt.Fprintf(w, "decision:   %s (%s)\n", Truncate(strings.Join(resp.Decision.Responses, ", "), 80), parsed)
		if len(resp.Decision.Medications) > 0 {
			fmt.Fprintf(w, "meds:       %s\n", strings.Join(resp.Decision.Medications, ", "))
		}
		fmt.Fprintf(w, "context:    %t\n", resp.ContextAvailable)
	}
	if resp.Dispatch.Route != "" {
		fmt.Fprintf(w, "route:      %s (dispatched: %t)\n", resp.Dispatch.Route, resp.Dispatch.Dispatched)
		if resp.Dispatch.Message != "" {
			fmt.Fprintf(w, "message:    %s\n", resp.Dispatch.Message)
		}
	}
	if resp.Detail != "" {
		fmt.Fprintf(w, "detail:     %s\n", resp.Detail)
	}
	return nil
}

// IndexStatusReport is the body of GET /api/v1/index/status.
type IndexStatusReport struct {
	Index          models.IndexStatus `json:"index"`
	DiskUsageBytes *int64             `json:"disk_usage_bytes,omitempty"`
}

// WriteIndexStatus writes an index status report to w in the given format.
func WriteIndexStatus(w io.Writer, report *IndexStatusReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "index:              %s\n", report.Index.Name)
	fmt.Fprintf(w, "ready:              %t   # loaded into memory\n", report.Index.Ready)
	fmt.Fprintf(w, "records:            %d\n", report.Index.Records)
	fmt.Fprintf(w, "vectors:            %d\n", report.Index.Vectors)
	if report.Index.Dimensions > 0 {
		fmt.Fprintf(w, "dimensions:         %d\n", report.Index.Dimensions)
	}
	if report.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + personal indexes\n", *report.DiskUsageBytes)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
