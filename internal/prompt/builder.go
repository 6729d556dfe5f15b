package prompt

import (
	"strconv"
	"strings"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
)

const noneValue = "None"

// Builder builds the prompts sent to text and image models
type Builder struct {
	loader *Loader
}

// NewPromptBuilder creates a new prompt builder
func NewPromptBuilder() *Builder {
	return &Builder{loader: NewPromptLoader()}
}

// SystemPrompt returns the instructions that fix the Markdown layout of the answer
func (b *Builder) SystemPrompt() (string, error) {
	return b.loader.GetSystemPrompt()
}

// UserPrompt embeds destination, day count, interests and constraints
func (b *Builder) UserPrompt(req models.TripRequest) (string, error) {
	tmpl, err := b.loader.GetUserPromptTemplate()
	if err != nil {
		return "", err
	}

	req = req.Normalized()
	interests := noneValue
	if len(req.Interests) > 0 {
		interests = strings.Join(req.Interests, ", ")
	}
	constraints := req.Constraints
	if constraints == "" {
		constraints = noneValue
	}

	return fill(tmpl, map[string]string{
		"destination": req.Destination,
		"days":        strconv.Itoa(req.Days),
		"interests":   interests,
		"constraints": constraints,
	}), nil
}

// CityImagePrompt describes the representative image for the destination
func (b *Builder) CityImagePrompt(destination string) (string, error) {
	templates, err := b.loader.GetImagePromptTemplates()
	if err != nil {
		return "", err
	}
	return fill(templates[imageTemplateCity], map[string]string{
		"destination": strings.TrimSpace(destination),
	}), nil
}

// InterestImagePrompt describes the image for one interest category
func (b *Builder) InterestImagePrompt(interest, destination string) (string, error) {
	templates, err := b.loader.GetImagePromptTemplates()
	if err != nil {
		return "", err
	}
	return fill(templates[imageTemplateInterest], map[string]string{
		"interest":    strings.TrimSpace(interest),
		"destination": strings.TrimSpace(destination),
	}), nil
}

// fill replaces {{key}} placeholders
func fill(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
