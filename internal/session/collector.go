package session

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
)

// Collector reads and validates the trip request held by a session
type Collector struct{}

// NewCollector creates a collector
func NewCollector() *Collector {
	return &Collector{}
}

// Current returns the request the session holds
func (c *Collector) Current(sess *Session) models.TripRequest {
	return sess.Request()
}

// Update stores normalized input so it survives re-renders
func (c *Collector) Update(sess *Session, req models.TripRequest) {
	sess.SetRequest(req.Normalized())
}

// Validate rejects incomplete input. It never makes network calls.
func (c *Collector) Validate(req models.TripRequest) error {
	return req.Validate()
}

// FromForm reads destination, days, interests and constraints from form values.
// A non-numeric days value becomes 0 so validation rejects it.
func FromForm(values url.Values) models.TripRequest {
	days, err := strconv.Atoi(strings.TrimSpace(values.Get("days")))
	if err != nil {
		days = 0
	}

	var interests []string
	for _, v := range values["interests"] {
		// a single field may carry a comma separated list
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				interests = append(interests, part)
			}
		}
	}

	return models.TripRequest{
		Destination: values.Get("destination"),
		Days:        days,
		Interests:   interests,
		Constraints: values.Get("constraints"),
	}.Normalized()
}
