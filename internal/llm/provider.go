package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without usable content
var ErrEmptyResponse = errors.New("provider returned an empty response")

// TextProvider generates free-form text (Markdown) from a prompt
type TextProvider interface {
	// Generate sends one request to the model named in request.Model
	Generate(ctx context.Context, request *TextRequest) (*TextResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini")
	Name() string
}

// ImageProvider generates a single image from a prompt
type ImageProvider interface {
	GenerateImage(ctx context.Context, request *ImageRequest) (*ImageResponse, error)
	Name() string
}

// Router resolves model names to providers
type Router interface {
	TextProvider(ctx context.Context, model string) (TextProvider, error)
	ImageProvider(ctx context.Context, model string) (ImageProvider, error)
}

// TextRequest contains all parameters needed for text generation
type TextRequest struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	MaxOutputTokens int
	Temperature     float64
}

// Usage is token accounting reported by a provider
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// TextResponse contains the generated text
type TextResponse struct {
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Usage    Usage  `json:"usage"`
}

// ImageRequest describes one image to generate
type ImageRequest struct {
	Model  string
	Prompt string
	Size   string // e.g. "1024x1024"
}

// ImageResponse holds raw image bytes
type ImageResponse struct {
	Data     []byte
	MIMEType string
	Model    string
	Provider string
}
