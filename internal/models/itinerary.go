package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Section keys, in document order
const (
	SectionOverview    = "overview"
	SectionDays        = "days"
	SectionRestaurants = "restaurants"
	SectionTips        = "tips"
	SectionBudget      = "budget"
	SectionPacking     = "packing"
)

// RequiredSections must be present for a structured layout
var RequiredSections = []string{SectionDays, SectionRestaurants, SectionBudget, SectionPacking}

// DaySection is one day of the generated plan
type DaySection struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Lines  []string `json:"lines"`
}

// Itinerary is the parsed model output for one TripRequest
type Itinerary struct {
	Destination string       `json:"destination"`
	Days        int          `json:"days"`
	Model       string       `json:"model"`
	Overview    []string     `json:"overview,omitempty"`
	DaySections []DaySection `json:"day_sections,omitempty"`
	Restaurants []string     `json:"restaurants,omitempty"`
	Tips        []string     `json:"tips,omitempty"`
	Budget      []string     `json:"budget,omitempty"`
	Packing     []string     `json:"packing,omitempty"`
	Raw         string       `json:"raw"`
}

// Structured reports whether every required section was found
func (it *Itinerary) Structured() bool {
	return len(it.MissingSections()) == 0
}

// MissingSections lists required sections that are absent, in document order
func (it *Itinerary) MissingSections() []string {
	var missing []string
	if len(it.DaySections) == 0 {
		missing = append(missing, SectionDays)
	}
	if len(it.Restaurants) == 0 {
		missing = append(missing, SectionRestaurants)
	}
	if len(it.Budget) == 0 {
		missing = append(missing, SectionBudget)
	}
	if len(it.Packing) == 0 {
		missing = append(missing, SectionPacking)
	}
	return missing
}

// Image kinds
const (
	ImageKindCity     = "city"
	ImageKindInterest = "interest"
)

// Image is one generated illustration
type Image struct {
	Theme    string `json:"theme"`
	Kind     string `json:"kind"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// ImageSet is ordered: the city image first, then interests in request order
type ImageSet []Image

// City returns the city image, if one was produced
func (s ImageSet) City() (Image, bool) {
	for _, img := range s {
		if img.Kind == ImageKindCity {
			return img, true
		}
	}
	return Image{}, false
}

// Interests returns the interest images in order
func (s ImageSet) Interests() []Image {
	var out []Image
	for _, img := range s {
		if img.Kind == ImageKindInterest {
			out = append(out, img)
		}
	}
	return out
}

// RenderedDocument is a finished PDF ready for download
type RenderedDocument struct {
	Filename   string
	Data       []byte
	Outline    []string
	ImageCount int
	Fallback   bool
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// DocumentFilename builds travel_guide_<destination>_<days>days.pdf
func DocumentFilename(destination string, days int) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(destination)), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "trip"
	}
	return fmt.Sprintf("travel_guide_%s_%ddays.pdf", slug, days)
}
