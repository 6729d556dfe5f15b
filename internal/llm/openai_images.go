package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const maxImageDownloadBytes = 20 << 20

// OpenAIImageProvider implements ImageProvider using the Images API
type OpenAIImageProvider struct {
	client     *openai.Client
	httpClient *http.Client
}

// NewOpenAIImageProvider creates an image provider. URL responses are fetched with httpClient.
func NewOpenAIImageProvider(apiKey string, httpClient *http.Client, opts ...option.RequestOption) *OpenAIImageProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIImageProvider{client: &client, httpClient: httpClient}
}

// Name returns the provider name
func (p *OpenAIImageProvider) Name() string {
	return providerNameOpenAI
}

// GenerateImage requests one image and returns its decoded bytes
func (p *OpenAIImageProvider) GenerateImage(ctx context.Context, request *ImageRequest) (*ImageResponse, error) {
	transaction := sentry.StartTransaction(ctx, "openai.generate_image")
	defer transaction.Finish()
	transaction.SetTag("model", request.Model)
	transaction.SetTag("provider", providerNameOpenAI)

	startTime := time.Now()
	resp, err := p.client.Images.Generate(ctx, buildImageParams(request))
	if err != nil {
		transaction.SetTag("success", "false")
		log.Printf("❌ OPENAI IMAGE REQUEST FAILED after %v: %s", time.Since(startTime), describeOpenAIError(err))
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("openai image model %s: %w", request.Model, ErrEmptyResponse)
	}

	data, err := p.imageBytes(ctx, resp.Data[0])
	if err != nil {
		transaction.SetTag("success", "false")
		return nil, err
	}

	transaction.SetTag("success", "true")
	log.Printf("🖼️  OPENAI IMAGE COMPLETED in %v (%d bytes)", time.Since(startTime), len(data))
	return &ImageResponse{
		Data:     data,
		MIMEType: http.DetectContentType(data),
		Model:    request.Model,
		Provider: providerNameOpenAI,
	}, nil
}

// buildImageParams only sets response_format for dall-e models; gpt-image models always return base64
func buildImageParams(request *ImageRequest) openai.ImageGenerateParams {
	params := openai.ImageGenerateParams{
		Prompt: request.Prompt,
		Model:  openai.ImageModel(request.Model),
		N:      openai.Int(1),
	}
	if request.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(request.Size)
	}
	if strings.HasPrefix(strings.ToLower(request.Model), "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}
	return params
}

func (p *OpenAIImageProvider) imageBytes(ctx context.Context, img openai.Image) ([]byte, error) {
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("malformed base64 image: %w", err)
		}
		if len(data) == 0 {
			return nil, ErrEmptyResponse
		}
		return data, nil
	}
	if img.URL != "" {
		return p.download(ctx, img.URL)
	}
	return nil, ErrEmptyResponse
}

func (p *OpenAIImageProvider) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image url: %w", err)
	}
	httpResp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			log.Printf("⚠️  Failed to close response body: %v", closeErr)
		}
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("image download failed: status %d", httpResp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxImageDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyResponse
	}
	return data, nil
}
