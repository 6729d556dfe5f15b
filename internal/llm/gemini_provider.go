package llm

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	providerNameGemini = "gemini"
	geminiUserRole     = "user"
)

// GeminiProvider implements TextProvider and ImageProvider using Google's Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return providerNameGemini
}

// Generate implements TextProvider using GenerateContent
func (p *GeminiProvider) Generate(ctx context.Context, request *TextRequest) (*TextResponse, error) {
	startTime := time.Now()
	log.Printf("🧭 GEMINI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "gemini.generate")
	defer transaction.Finish()
	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameGemini)

	contents := []*genai.Content{{
		Role:  geminiUserRole,
		Parts: []*genai.Part{{Text: request.UserPrompt}},
	}}

	span := transaction.StartChild("gemini.api_call")
	result, err := p.client.Models.GenerateContent(ctx, request.Model, contents, buildGeminiConfig(request))
	apiDuration := time.Since(startTime)
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", apiDuration, err)
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	textOutput := extractText(result.Text())
	if textOutput == "" {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("gemini model %s: %w", request.Model, ErrEmptyResponse)
	}

	response := &TextResponse{
		Text:     textOutput,
		Model:    request.Model,
		Provider: providerNameGemini,
	}
	if result.UsageMetadata != nil {
		response.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
		log.Printf("📊 GEMINI USAGE: input=%d, output=%d, total=%d",
			response.Usage.InputTokens, response.Usage.OutputTokens, response.Usage.TotalTokens)
	}

	transaction.SetTag("success", "true")
	log.Printf("✅ GEMINI GENERATION COMPLETED in %v (%d chars)", apiDuration, len(textOutput))
	return response, nil
}

func buildGeminiConfig(request *TextRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if request.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		}
	}
	if request.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxOutputTokens)
	}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(request.Temperature))
	}
	return config
}

// GenerateImage implements ImageProvider using Imagen
func (p *GeminiProvider) GenerateImage(ctx context.Context, request *ImageRequest) (*ImageResponse, error) {
	transaction := sentry.StartTransaction(ctx, "gemini.generate_image")
	defer transaction.Finish()
	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameGemini)

	startTime := time.Now()
	result, err := p.client.Models.GenerateImages(ctx, request.Model, request.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    aspectRatio(request.Size),
	})
	if err != nil {
		transaction.SetTag("success", "false")
		log.Printf("❌ GEMINI IMAGE REQUEST FAILED after %v: %v", time.Since(startTime), err)
		return nil, fmt.Errorf("gemini image request failed: %w", err)
	}
	if len(result.GeneratedImages) == 0 || result.GeneratedImages[0].Image == nil ||
		len(result.GeneratedImages[0].Image.ImageBytes) == 0 {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("gemini image model %s: %w", request.Model, ErrEmptyResponse)
	}

	img := result.GeneratedImages[0].Image
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.ImageBytes)
	}

	transaction.SetTag("success", "true")
	log.Printf("🖼️  GEMINI IMAGE COMPLETED in %v (%d bytes)", time.Since(startTime), len(img.ImageBytes))
	return &ImageResponse{
		Data:     img.ImageBytes,
		MIMEType: mimeType,
		Model:    request.Model,
		Provider: providerNameGemini,
	}, nil
}

// aspectRatio maps WxH sizes to Imagen aspect ratios; unknown sizes use the model default
func aspectRatio(size string) string {
	switch size {
	case "1024x1024", "512x512", "256x256":
		return "1:1"
	case "1536x1024":
		return "4:3"
	case "1024x1536":
		return "3:4"
	case "1792x1024":
		return "16:9"
	case "1024x1792":
		return "9:16"
	default:
		return ""
	}
}
