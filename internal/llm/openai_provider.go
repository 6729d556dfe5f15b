package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const (
	providerNameOpenAI = "openai"
	maxPreviewChars    = 200
)

// OpenAIProvider implements TextProvider using OpenAI's Responses API
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
// SDK retries are disabled; the fallback chain is the only retry policy.
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Generate sends one Responses API request and returns the output text
func (p *OpenAIProvider) Generate(ctx context.Context, request *TextRequest) (*TextResponse, error) {
	startTime := time.Now()
	log.Printf("🧭 OPENAI GENERATION REQUEST STARTED (Model: %s)", request.Model)

	transaction := sentry.StartTransaction(ctx, "openai.generate")
	defer transaction.Finish()
	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)

	params := p.buildRequestParams(request)

	span := transaction.StartChild("openai.api_call")
	resp, err := p.client.Responses.New(ctx, params)
	apiDuration := time.Since(startTime)
	span.Finish()

	if err != nil {
		transaction.SetTag("success", "false")
		log.Printf("❌ OPENAI REQUEST FAILED after %v: %s", apiDuration, describeOpenAIError(err))
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	return p.processResponse(resp, request.Model, apiDuration, transaction)
}

// buildRequestParams converts a TextRequest to OpenAI-specific ResponseNewParams
func (p *OpenAIProvider) buildRequestParams(request *TextRequest) responses.ResponseNewParams {
	inputItems := responses.ResponseInputParam{
		responses.ResponseInputItemParamOfMessage(request.UserPrompt, responses.EasyInputMessageRoleUser),
	}

	params := responses.ResponseNewParams{
		Model: request.Model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
	}
	if request.SystemPrompt != "" {
		params.Instructions = openai.String(request.SystemPrompt)
	}
	if request.MaxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(request.MaxOutputTokens))
	}
	// Reasoning models reject temperature and take an effort level instead
	if supportsReasoning(request.Model) {
		params.Reasoning = shared.ReasoningParam{
			Effort: shared.ReasoningEffortLow,
		}
	} else if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}
	return params
}

// supportsReasoning reports o-series and gpt-5 models
func supportsReasoning(model string) bool {
	model = strings.ToLower(model)
	return isOpenAIReasoningModel(model) || strings.HasPrefix(model, "gpt-5")
}

// processResponse extracts plain text output and usage
func (p *OpenAIProvider) processResponse(
	resp *responses.Response,
	model string,
	duration time.Duration,
	transaction *sentry.Span,
) (*TextResponse, error) {
	span := transaction.StartChild("process_response_plaintext")
	defer span.Finish()

	textOutput := extractText(resp.OutputText())
	log.Printf("📥 OPENAI RESPONSE: output_length=%d, tokens=%d, duration=%v",
		len(textOutput), resp.Usage.TotalTokens, duration)

	if textOutput == "" {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("openai model %s: %w", model, ErrEmptyResponse)
	}

	transaction.SetTag("success", "true")
	return &TextResponse{
		Text:     textOutput,
		Model:    model,
		Provider: providerNameOpenAI,
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

// extractText strips a wrapping ```markdown fence some models add
func extractText(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if nl := strings.Index(cleaned, "\n"); nl >= 0 {
			cleaned = cleaned[nl+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

// describeOpenAIError adds the HTTP status for API errors
func describeOpenAIError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("status=%d %s", apiErr.StatusCode, truncate(apiErr.Message, maxPreviewChars))
	}
	return truncate(err.Error(), maxPreviewChars)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
