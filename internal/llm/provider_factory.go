package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ProviderFactory creates providers based on model name
type ProviderFactory struct {
	openaiAPIKey string
	geminiAPIKey string
	httpClient   *http.Client

	mu     sync.Mutex
	openai *OpenAIProvider
	images *OpenAIImageProvider
	gemini *GeminiProvider
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(openaiAPIKey, geminiAPIKey string) *ProviderFactory {
	return &ProviderFactory{
		openaiAPIKey: openaiAPIKey,
		geminiAPIKey: geminiAPIKey,
	}
}

// ProviderForModel infers the provider name from a model name
func ProviderForModel(model string) (string, error) {
	modelLower := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(modelLower, "gpt-"),
		strings.HasPrefix(modelLower, "dall-e"),
		strings.HasPrefix(modelLower, "chatgpt-"),
		isOpenAIReasoningModel(modelLower):
		return providerNameOpenAI, nil
	case strings.HasPrefix(modelLower, "gemini-"),
		strings.HasPrefix(modelLower, "imagen-"):
		return providerNameGemini, nil
	default:
		return "", fmt.Errorf("unknown model: %s", model)
	}
}

// o1, o3-mini, o4-mini...
func isOpenAIReasoningModel(model string) bool {
	return len(model) >= 2 && model[0] == 'o' && model[1] >= '0' && model[1] <= '9'
}

// TextProvider returns the text provider serving model
func (f *ProviderFactory) TextProvider(ctx context.Context, model string) (TextProvider, error) {
	name, err := ProviderForModel(model)
	if err != nil {
		return nil, err
	}
	switch name {
	case providerNameGemini:
		return f.geminiProvider(ctx)
	default:
		return f.openaiProvider()
	}
}

// ImageProvider returns the image provider serving model
func (f *ProviderFactory) ImageProvider(ctx context.Context, model string) (ImageProvider, error) {
	name, err := ProviderForModel(model)
	if err != nil {
		return nil, err
	}
	switch name {
	case providerNameGemini:
		return f.geminiProvider(ctx)
	default:
		return f.openaiImageProvider()
	}
}

func (f *ProviderFactory) openaiProvider() (*OpenAIProvider, error) {
	if f.openaiAPIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openai == nil {
		f.openai = NewOpenAIProvider(f.openaiAPIKey)
	}
	return f.openai, nil
}

func (f *ProviderFactory) openaiImageProvider() (*OpenAIImageProvider, error) {
	if f.openaiAPIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.images == nil {
		f.images = NewOpenAIImageProvider(f.openaiAPIKey, f.httpClient)
	}
	return f.images, nil
}

func (f *ProviderFactory) geminiProvider(ctx context.Context) (*GeminiProvider, error) {
	if f.geminiAPIKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gemini == nil {
		provider, err := NewGeminiProvider(ctx, f.geminiAPIKey)
		if err != nil {
			return nil, err
		}
		f.gemini = provider
	}
	return f.gemini, nil
}
