// Package models defines core data structures for profiles, guideline records, triage decisions, and dispatch outcomes.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Profile is the semi-structured medical profile stored per user.
type Profile struct {
	UserID            string            `json:"user_id"`
	Name              string            `json:"name,omitempty"`
	DOB               string            `json:"dob,omitempty"`
	Age               *int              `json:"age,omitempty"`
	Sex               string            `json:"sex,omitempty"`
	PhoneNumber       string            `json:"phone_number,omitempty"`
	EmailAddress      string            `json:"email_address,omitempty"`
	BloodType         string            `json:"blood_type,omitempty"`
	Allergies         StringList        `json:"allergies,omitempty"`
	MedicalHistory    StringList        `json:"medical_history,omitempty"`
	ActiveMedications StringList        `json:"active_medications,omitempty"`
	Disability        string            `json:"disability,omitempty"`
	InsuranceCard     string            `json:"insurance_card,omitempty"`
	HomeAddress       string            `json:"home_address,omitempty"`
	EmergencyContact  *EmergencyContact `json:"emergency_contact,omitempty"`
	LastUpdated       string            `json:"last_updated,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at,omitempty"`
}

// EmergencyContact is the person to notify on the user's behalf.
type EmergencyContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// String renders the contact as "name - phone".
func (c *EmergencyContact) String() string {
	if c == nil {
		return ""
	}
	return c.Name + " - " + c.Phone
}

// IsEmpty reports whether no profile field beyond the user ID is populated.
func (p *Profile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.Name == "" && p.DOB == "" && p.Age == nil && p.Sex == "" &&
		p.BloodType == "" && len(p.Allergies) == 0 && len(p.MedicalHistory) == 0 &&
		len(p.ActiveMedications) == 0 && p.Disability == "" && p.HomeAddress == "" &&
		p.EmergencyContact == nil
}

// Validate checks the fields required to store a profile.
func (p *Profile) Validate() error {
	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// ProfileSummary is the flattened view of a profile sent to the model and to responders.
// Field order is fixed; it is the order used in prompts and dispatch envelopes.
type ProfileSummary struct {
	Name             string   `json:"Name"`
	Age              string   `json:"Age"`
	BloodType        string   `json:"Blood Type"`
	Allergies        []string `json:"Allergies"`
	History          []string `json:"History"`
	Meds             []string `json:"Meds"`
	Disability       string   `json:"Disability"`
	EmergencyContact string   `json:"Emergency Contact"`
	Location         string   `json:"Location"`
}

// StringList accepts either a single JSON string or a list of strings.
type StringList []string

// UnmarshalJSON decodes a string, a list of strings, or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
			return nil
		}
		*l = StringList{s}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = items
	return nil
}
