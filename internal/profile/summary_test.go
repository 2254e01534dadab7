package profile

import (
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/triage/internal/models"
)

func TestAgeAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		dob  string
		want string
	}{
		{"2003-12-22", "21"},
		{"2003-06-01", "22"},
		{"2003-06-02", "21"},
		{"2000-02-29", "25"},
		{"2025-06-01", "0"},
		{"2003-12-22T00:00:00Z", "21"},
		{"22/12/2003", "21"},
		{"", UnknownAge},
		{"not-a-date", UnknownAge},
		{"2003-13-45", UnknownAge},
		{"2030-01-01", UnknownAge},
	}
	for _, tt := range tests {
		if got := AgeAt(tt.dob, now); got != tt.want {
			t.Errorf("AgeAt(%q) = %q, want %q", tt.dob, got, tt.want)
		}
	}
}

func TestAge_prefersStoredAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	age := 40
	p := &models.Profile{Age: &age, DOB: "2003-12-22"}
	if got := Age(p, now); got != "40" {
		t.Errorf("got %q, want 40", got)
	}
	p.Age = nil
	if got := Age(p, now); got != "21" {
		t.Errorf("got %q, want 21", got)
	}
}

func sampleProfile() *models.Profile {
	return &models.Profile{
		UserID:            "bda550aa4e88",
		Name:              "Dang Khoa Le",
		DOB:               "2003-12-22",
		Sex:               "Male",
		BloodType:         "O+",
		Allergies:         models.StringList{"Penicillin", "Peanuts"},
		MedicalHistory:    models.StringList{"Asthma", "Fractured wrist"},
		ActiveMedications: models.StringList{"Ventolin"},
		Disability:        "None",
		HomeAddress:       "123 Swanston St, Melbourne VIC",
		EmergencyContact:  &models.EmergencyContact{Name: "Jane Le", Phone: "0400765432"},
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize(sampleProfile(), now)
	if s.Age != "21" {
		t.Errorf("age: got %q", s.Age)
	}
	if s.EmergencyContact != "Jane Le - 0400765432" {
		t.Errorf("contact: got %q", s.EmergencyContact)
	}
	if s.Location != "123 Swanston St, Melbourne VIC" {
		t.Errorf("location: got %q", s.Location)
	}
	if len(s.Meds) != 1 || s.Meds[0] != "Ventolin" {
		t.Errorf("meds: got %v", s.Meds)
	}
}

func TestSummarize_emptyProfile(t *testing.T) {
	s := Summarize(&models.Profile{UserID: "u1"}, time.Now())
	if s.Age != UnknownAge {
		t.Errorf("age: got %q", s.Age)
	}
	if s.Allergies == nil || s.History == nil || s.Meds == nil {
		t.Error("list fields should be empty, not nil")
	}
	if s := Summarize(nil, time.Now()); s.Age != UnknownAge {
		t.Errorf("nil profile age: got %q", s.Age)
	}
}

func TestQueryText_deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize(sampleProfile(), now)
	a := QueryText(s, "chest pain and shortness of breath")
	b := QueryText(Summarize(sampleProfile(), now), "chest pain and shortness of breath")
	if a != b {
		t.Errorf("query text not deterministic:\n%s\n---\n%s", a, b)
	}
	if !strings.HasPrefix(a, "Name: Dang Khoa Le\nAge: 21\n") {
		t.Errorf("unexpected field order: %q", a)
	}
	if !strings.HasSuffix(a, "Complaint: chest pain and shortness of breath") {
		t.Errorf("complaint should be last: %q", a)
	}
}

func TestMedicalInfo(t *testing.T) {
	p := sampleProfile()
	p.LastUpdated = "2025-05-01T10:00:00"
	info := MedicalInfo(p, "21")
	for _, want := range []string{
		"Name: Dang Khoa Le\n",
		"Allergies: Penicillin, Peanuts\n",
		"Emergency Contact: Jane Le - 0400765432\n",
		"Last Updated: 2025-05-01T10:00:00\n",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("missing %q in %q", want, info)
		}
	}
}
