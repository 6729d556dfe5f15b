package models

import (
	"fmt"
	"strings"
	"time"
)

// FieldError is a single rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for bad user input. It never reaches the network.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// Add records a rejected field
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was rejected
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// FieldMessage returns the first message recorded for field, or ""
func (e *ValidationError) FieldMessage(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "invalid trip request: " + strings.Join(msgs, "; ")
}

// Attempt records one strategy tried in a fallback chain
type Attempt struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the attempt produced a result
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// ErrorString returns the attempt error text, or "" on success
func (a Attempt) ErrorString() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// GenerationFailure is returned when every strategy of a fallback chain failed.
// Last is the error of the final attempt.
type GenerationFailure struct {
	Stage    string
	Attempts []Attempt
	Last     error
}

func (e *GenerationFailure) Error() string {
	names := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		names = append(names, a.Name)
	}
	return fmt.Sprintf("%s failed after %d attempt(s) [%s]: %v",
		e.Stage, len(e.Attempts), strings.Join(names, ", "), e.Last)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Last
}

// ImageFailure is a non-fatal failure to produce one image. The image is omitted.
type ImageFailure struct {
	Theme    string
	Attempts []Attempt
	Last     error
}

func (e *ImageFailure) Error() string {
	return fmt.Sprintf("image %q omitted after %d attempt(s): %v", e.Theme, len(e.Attempts), e.Last)
}

func (e *ImageFailure) Unwrap() error {
	return e.Last
}

// RenderError reports itinerary text that could not be laid out as expected.
// With only Missing set the document degrades to a raw-text block; a non-nil Err
// means the PDF itself could not be produced.
type RenderError struct {
	Missing []string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return "render failed: " + e.Err.Error()
	}
	return "itinerary missing sections: " + strings.Join(e.Missing, ", ")
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Degraded reports whether the error only caused the raw-text fallback
func (e *RenderError) Degraded() bool {
	return e.Err == nil
}
