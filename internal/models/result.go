package models

import "time"

// Result is everything one pipeline run produced
type Result struct {
	Request   TripRequest       `json:"request"`
	Itinerary *Itinerary        `json:"itinerary"`
	Images    ImageSet          `json:"images"`
	Document  *RenderedDocument `json:"-"`
	Attempts  []Attempt         `json:"attempts"` // itinerary fallback chain
	Warnings  []error           `json:"-"`
	CreatedAt time.Time         `json:"created_at"`
}

// WarningMessages returns the text of every non-fatal problem
func (r *Result) WarningMessages() []string {
	msgs := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		msgs = append(msgs, w.Error())
	}
	return msgs
}
