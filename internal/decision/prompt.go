// Package decision builds the triage prompt and parses the model's recommendation.
package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/triage/internal/models"
)

// BuildPrompt renders the triage prompt for a patient summary, guideline context and complaint.
func BuildPrompt(summary models.ProfileSummary, guidelineContext, complaint string) (string, error) {
	patient, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode patient info: %w", err)
	}
	var b strings.Builder
	b.WriteString("You are an AI assistant supporting emergency medical staff. ")
	b.WriteString("Review the patient's critical info and the guideline context, then recommend ")
	b.WriteString("which responders should be dispatched (staff make the final call).\n\n")
	b.WriteString("PATIENT INFO:\n")
	b.Write(patient)
	b.WriteString("\n\nRAG CONTEXT:\n")
	b.WriteString(guidelineContext)
	b.WriteString("\n\nEMERGENCY ASSERTION:\n")
	fmt.Fprintf(&b, "%q\n\n", complaint)
	b.WriteString("Return a JSON object with keys:\n")
	fmt.Fprintf(&b, "  \"response\": [one or more of %q, %q, %q],\n",
		models.ResponseAmbulance, models.ResponseCaretaker, models.ResponseDrone)
	b.WriteString("  \"medications\": [<suggested medications for drone delivery, may be empty>]\n\n")
	b.WriteString("Strict JSON only.")
	return b.String(), nil
}
