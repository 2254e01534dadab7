// Package profile turns stored medical profiles into the summaries and query text used by triage.
package profile

import (
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/triage/internal/models"
)

// UnknownAge is reported when age is neither stored nor derivable from the date of birth.
const UnknownAge = "unknown"

var dobLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

// AgeAt returns the whole years between dob and now, or UnknownAge if dob cannot be parsed.
func AgeAt(dob string, now time.Time) string {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return UnknownAge
	}
	var born time.Time
	var err error
	for _, layout := range dobLayouts {
		born, err = time.Parse(layout, dob)
		if err == nil {
			break
		}
	}
	if err != nil || born.After(now) {
		return UnknownAge
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return strconv.Itoa(years)
}

// Age prefers the stored age and falls back to the date of birth.
func Age(p *models.Profile, now time.Time) string {
	if p.Age != nil && *p.Age >= 0 {
		return strconv.Itoa(*p.Age)
	}
	return AgeAt(p.DOB, now)
}

// Summarize builds the flattened profile summary evaluated at now.
func Summarize(p *models.Profile, now time.Time) models.ProfileSummary {
	if p == nil {
		return models.ProfileSummary{Age: UnknownAge}
	}
	return models.ProfileSummary{
		Name:             p.Name,
		Age:              Age(p, now),
		BloodType:        p.BloodType,
		Allergies:        nonNil(p.Allergies),
		History:          nonNil(p.MedicalHistory),
		Meds:             nonNil(p.ActiveMedications),
		Disability:       p.Disability,
		EmergencyContact: p.EmergencyContact.String(),
		Location:         p.HomeAddress,
	}
}

func nonNil(l models.StringList) []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
