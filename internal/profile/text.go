package profile

import (
	"strings"

	"github.com/hyperjump/triage/internal/models"
)

// QueryText serializes a summary and complaint into the retrieval query.
// Field order is fixed so identical inputs always embed identically.
func QueryText(s models.ProfileSummary, complaint string) string {
	var b strings.Builder
	writeField(&b, "Name", s.Name)
	writeField(&b, "Age", s.Age)
	writeField(&b, "Blood Type", s.BloodType)
	writeField(&b, "Allergies", strings.Join(s.Allergies, ", "))
	writeField(&b, "History", strings.Join(s.History, ", "))
	writeField(&b, "Meds", strings.Join(s.Meds, ", "))
	writeField(&b, "Disability", s.Disability)
	writeField(&b, "Complaint", strings.TrimSpace(complaint))
	return strings.TrimRight(b.String(), "\n")
}

// MedicalInfo renders the profile text appended to a user's personal index.
func MedicalInfo(p *models.Profile, age string) string {
	var b strings.Builder
	writeField(&b, "Name", p.Name)
	writeField(&b, "Age", age)
	writeField(&b, "Sex", p.Sex)
	writeField(&b, "Blood Type", p.BloodType)
	writeField(&b, "Allergies", strings.Join(p.Allergies, ", "))
	writeField(&b, "Medical History", strings.Join(p.MedicalHistory, ", "))
	writeField(&b, "Active Medications", strings.Join(p.ActiveMedications, ", "))
	writeField(&b, "Disability", p.Disability)
	writeField(&b, "Home Address", p.HomeAddress)
	writeField(&b, "Emergency Contact", p.EmergencyContact.String())
	writeField(&b, "Last Updated", p.LastUpdated)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}
