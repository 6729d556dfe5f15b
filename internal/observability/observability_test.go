package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTextCost(t *testing.T) {
	usage := llm.Usage{InputTokens: 1000, OutputTokens: 2000, TotalTokens: 3000}

	assert.InDelta(t, 0.0025+0.02, CalculateTextCost("gpt-4o", usage), 1e-9)
	assert.InDelta(t, 0.03+0.12, CalculateTextCost("gpt-4", usage), 1e-9)
	assert.InDelta(t, 0.0025+0.02, CalculateTextCost("gpt-4o-2024-08-06", usage), 1e-9)
	assert.InDelta(t, 0.01+0.06, CalculateTextCost("gpt-4-turbo-2024-04-09", usage), 1e-9)
	// unknown models fall back to gpt-4o pricing
	assert.InDelta(t, 0.0025+0.02, CalculateTextCost("mystery", usage), 1e-9)
}

func TestCalculateImageCost(t *testing.T) {
	assert.InDelta(t, 0.04, CalculateImageCost("dall-e-3"), 1e-9)
	assert.Zero(t, CalculateImageCost("unknown"))
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.022500", FormatCost(0.0225))
}

func TestDisabledLangfuseIsNoop(t *testing.T) {
	client := InitializeLangfuse(context.Background(), &config.Config{LangfuseEnabled: false})
	assert.False(t, client.IsEnabled())

	trace := client.StartTrace(context.Background(), "travel_guide", "sess", nil, nil)
	assert.False(t, trace.Enabled())

	gen := trace.Generation("itinerary", "gpt-4o", "prompt", nil)
	assert.False(t, gen.Enabled())
	gen.TextResult(&llm.TextResponse{Text: "x", Model: "gpt-4o"})
	gen.Fail(errors.New("boom"))
	gen.Finish()
	trace.Finish()

	var nilClient *LangfuseClient
	assert.False(t, nilClient.IsEnabled())
}

func TestTraceFromContext(t *testing.T) {
	ctx := context.Background()
	assert.False(t, TraceFromContext(ctx).Enabled())

	trace := &Trace{enabled: false, ctx: ctx}
	assert.Same(t, trace, TraceFromContext(ContextWithTrace(ctx, trace)))

	// disabled traces ignore attempts
	trace.RecordAttempt("image", models.Attempt{Name: "dall-e-3", Err: errors.New("429")}, "prompt", nil)
	trace.Output("done")
}
