package models

import (
	"strings"
	"unicode/utf8"
)

// Trip input limits
const (
	MinDays           = 1
	MaxDays           = 30
	DefaultDays       = 3
	MaxConstraintsLen = 2000
	MaxInterests      = 10
)

// SpecialInterestOptions are the interests offered by the web form.
// The JSON API accepts any tag.
var SpecialInterestOptions = []string{
	"Museums",
	"Food & Cuisine",
	"Historic Sites",
	"Nightlife",
	"Nature & Parks",
	"Shopping",
	"Adventure Activities",
	"Cultural Experiences",
	"Beaches",
	"Photography Spots",
}

// TripRequest describes one itinerary to generate
type TripRequest struct {
	Destination string   `json:"destination"`
	Days        int      `json:"days"`
	Interests   []string `json:"interests,omitempty"`
	Constraints string   `json:"constraints,omitempty"`
}

// NewTripRequest returns the request a fresh session starts with
func NewTripRequest() TripRequest {
	return TripRequest{Days: DefaultDays}
}

// Normalized trims all text fields and de-duplicates interests case-insensitively,
// keeping the first spelling and the original order.
func (r TripRequest) Normalized() TripRequest {
	out := TripRequest{
		Destination: strings.TrimSpace(r.Destination),
		Days:        r.Days,
		Constraints: strings.TrimSpace(r.Constraints),
	}

	seen := make(map[string]bool, len(r.Interests))
	for _, interest := range r.Interests {
		interest = strings.TrimSpace(interest)
		key := strings.ToLower(interest)
		if interest == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Interests = append(out.Interests, interest)
	}
	return out
}

// Validate checks that the request is complete enough to send to a model.
// It returns a *ValidationError listing every offending field.
func (r TripRequest) Validate() error {
	n := r.Normalized()
	verr := &ValidationError{}

	if n.Destination == "" {
		verr.Add("destination", "destination is required")
	}
	if n.Days < MinDays {
		verr.Add("days", "days must be a positive whole number")
	} else if n.Days > MaxDays {
		verr.Add("days", "days must be at most 30")
	}
	if len(n.Interests) > MaxInterests {
		verr.Add("interests", "at most 10 interests can be selected")
	}
	if utf8.RuneCountInString(n.Constraints) > MaxConstraintsLen {
		verr.Add("constraints", "constraints must be at most 2000 characters")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// HasInterest reports whether the request already contains interest (case-insensitive)
func (r TripRequest) HasInterest(interest string) bool {
	for _, i := range r.Interests {
		if strings.EqualFold(i, interest) {
			return true
		}
	}
	return false
}
