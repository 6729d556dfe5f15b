package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const responsesBody = `{
  "id": "resp_1",
  "object": "response",
  "created_at": 0,
  "model": "gpt-4o",
  "status": "completed",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "status": "completed",
    "role": "assistant",
    "content": [{"type": "output_text", "text": "## Trip Overview\n- Paris in spring", "annotations": []}]
  }],
  "usage": {
    "input_tokens": 12,
    "output_tokens": 30,
    "total_tokens": 42,
    "input_tokens_details": {"cached_tokens": 0},
    "output_tokens_details": {"reasoning_tokens": 0}
  }
}`

func TestNewOpenAIProvider(t *testing.T) {
	provider := NewOpenAIProvider("test-api-key")
	require.NotNil(t, provider)
	assert.Equal(t, "openai", provider.Name())
	assert.NotNil(t, provider.client)
}

func TestOpenAIProvider_BuildRequestParams(t *testing.T) {
	provider := NewOpenAIProvider("test-key")

	params := provider.buildRequestParams(&TextRequest{
		Model:           "gpt-4o",
		SystemPrompt:    "you plan trips",
		UserPrompt:      "Destination: Paris",
		MaxOutputTokens: 3000,
		Temperature:     0.7,
	})

	assert.Equal(t, "gpt-4o", params.Model)
	assert.Equal(t, "you plan trips", params.Instructions.Value)
	assert.Equal(t, int64(3000), params.MaxOutputTokens.Value)
	assert.InDelta(t, 0.7, params.Temperature.Value, 1e-9)
	assert.Len(t, params.Input.OfInputItemList, 1)
}

func TestOpenAIProvider_BuildRequestParamsOmitsZeroValues(t *testing.T) {
	provider := NewOpenAIProvider("test-key")

	params := provider.buildRequestParams(&TextRequest{Model: "gpt-4", UserPrompt: "hi"})

	assert.False(t, params.Instructions.Valid())
	assert.False(t, params.MaxOutputTokens.Valid())
	assert.False(t, params.Temperature.Valid())
}

func TestOpenAIProvider_BuildRequestParamsReasoningModel(t *testing.T) {
	provider := NewOpenAIProvider("test-key")

	params := provider.buildRequestParams(&TextRequest{Model: "o4-mini", UserPrompt: "hi", Temperature: 0.7})

	assert.False(t, params.Temperature.Valid())
	assert.Equal(t, shared.ReasoningEffortLow, params.Reasoning.Effort)
	assert.True(t, supportsReasoning("gpt-5-mini"))
	assert.False(t, supportsReasoning("gpt-4o"))
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, responsesBody)
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", option.WithBaseURL(server.URL+"/"))
	resp, err := provider.Generate(context.Background(), &TextRequest{Model: "gpt-4o", UserPrompt: "Paris"})

	require.NoError(t, err)
	assert.Equal(t, "## Trip Overview\n- Paris in spring", resp.Text)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_GenerateRateLimitedIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "rate limited", "type": "requests"}}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-key", option.WithBaseURL(server.URL+"/"))
	_, err := provider.Generate(context.Background(), &TextRequest{Model: "gpt-4o", UserPrompt: "Paris"})

	require.Error(t, err)
	var apiErr *openai.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExtractText(t *testing.T) {
	assert.Equal(t, "## Day 1", extractText("```markdown\n## Day 1\n```"))
	assert.Equal(t, "plain", extractText("  plain \n"))
	assert.Equal(t, "", extractText("   "))
}

func TestOpenAIImageProvider_Base64(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created": 0, "data": [{"b64_json": "`+base64.StdEncoding.EncodeToString(png)+`"}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIImageProvider("test-key", server.Client(), option.WithBaseURL(server.URL+"/"))
	resp, err := provider.GenerateImage(context.Background(), &ImageRequest{
		Model:  "gpt-image-1",
		Prompt: "Paris skyline",
		Size:   "1024x1024",
	})

	require.NoError(t, err)
	assert.Equal(t, png, resp.Data)
	assert.Equal(t, "image/png", resp.MIMEType)
	assert.Equal(t, "gpt-image-1", resp.Model)
}

func TestOpenAIImageProvider_URLDownload(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfromurl")
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created": 0, "data": [{"url": "`+server.URL+`/files/city.png"}]}`)
	})
	mux.HandleFunc("/files/city.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(png)
	})

	provider := NewOpenAIImageProvider("test-key", server.Client(), option.WithBaseURL(server.URL+"/"))
	resp, err := provider.GenerateImage(context.Background(), &ImageRequest{Model: "dall-e-3", Prompt: "Paris"})

	require.NoError(t, err)
	assert.Equal(t, png, resp.Data)
}

func TestOpenAIImageProvider_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"created": 0, "data": []}`)
	}))
	defer server.Close()

	provider := NewOpenAIImageProvider("test-key", server.Client(), option.WithBaseURL(server.URL+"/"))
	_, err := provider.GenerateImage(context.Background(), &ImageRequest{Model: "gpt-image-1", Prompt: "Paris"})

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestBuildImageParams(t *testing.T) {
	params := buildImageParams(&ImageRequest{Model: "dall-e-3", Prompt: "p", Size: "1024x1024"})
	assert.Equal(t, openai.ImageGenerateParamsResponseFormatB64JSON, params.ResponseFormat)
	assert.Equal(t, openai.ImageGenerateParamsSize("1024x1024"), params.Size)

	params = buildImageParams(&ImageRequest{Model: "gpt-image-1", Prompt: "p"})
	assert.Empty(t, string(params.ResponseFormat))
}
