package templates

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
)

const appTitle = "AI Travel Guide"

// FormData fills the trip form
type FormData struct {
	Request   models.TripRequest
	Options   []string
	Errors    *models.ValidationError // field messages after a rejected submit
	Message   string                  // generation failure shown above the form
	Attempts  []AttemptView
	HasResult bool
}

// AttemptView is one model attempt shown after a failure
type AttemptView struct {
	Model string
	Error string
}

// ImageView links one generated image
type ImageView struct {
	Theme string
	URL   string
}

// ResultData fills the result page
type ResultData struct {
	Request     models.TripRequest
	Model       string
	Markdown    string
	Images      []ImageView
	Warnings    []string
	DownloadURL string
}

// Raw HTML in model output is omitted by goldmark's default renderer.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// itineraryHTML renders the itinerary Markdown as HTML
func itineraryHTML(src string) templ.Component {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return templ.Raw("", fmt.Errorf("failed to render itinerary: %w", err))
	}
	return templ.Raw(buf.String())
}

func fieldMessage(verr *models.ValidationError, field string) string {
	if verr == nil {
		return ""
	}
	return verr.FieldMessage(field)
}

func daysValue(days int) string {
	if days <= 0 {
		return ""
	}
	return strconv.Itoa(days)
}

func submitLabel(data FormData) string {
	if data.Message != "" {
		return "Try again"
	}
	return "Generate guide"
}

func resultSummary(data ResultData) string {
	return fmt.Sprintf("%d day itinerary, written by %s.", data.Request.Days, data.Model)
}
