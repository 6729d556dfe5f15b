package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringStrategy(name, value string, err error) Strategy[string] {
	return Strategy[string]{
		Name: name,
		Run: func(context.Context) (string, error) {
			return value, err
		},
	}
}

func TestChain_PrimarySucceeds(t *testing.T) {
	chain := &Chain[string]{
		Stage: "itinerary",
		Strategies: []Strategy[string]{
			stringStrategy("primary", "A", nil),
			stringStrategy("fallback", "B", nil),
		},
	}

	got, attempts, err := chain.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "A", got)
	require.Len(t, attempts, 1)
	assert.Equal(t, "primary", attempts[0].Name)
	assert.True(t, attempts[0].Succeeded())
}

func TestChain_FallsBack(t *testing.T) {
	var seen []models.Attempt
	chain := &Chain[string]{
		Stage: "itinerary",
		Strategies: []Strategy[string]{
			stringStrategy("gpt-4o", "", errors.New("429 rate limited")),
			stringStrategy("gpt-4-turbo", "", errors.New("timeout")),
			stringStrategy("gpt-4", "B", nil),
		},
		OnAttempt: func(a models.Attempt) { seen = append(seen, a) },
	}

	got, attempts, err := chain.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "B", got)
	require.Len(t, attempts, 3)
	assert.Equal(t, "429 rate limited", attempts[0].ErrorString())
	assert.Equal(t, attempts, seen)
}

func TestChain_AllFail(t *testing.T) {
	last := errors.New("malformed body")
	chain := &Chain[string]{
		Stage: "itinerary",
		Strategies: []Strategy[string]{
			stringStrategy("a", "", errors.New("first")),
			stringStrategy("b", "", last),
		},
	}

	_, attempts, err := chain.Run(context.Background())

	var failure *models.GenerationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "itinerary", failure.Stage)
	assert.Len(t, failure.Attempts, 2)
	assert.Equal(t, attempts, failure.Attempts)
	assert.ErrorIs(t, err, last)
}

func TestChain_NoStrategies(t *testing.T) {
	chain := &Chain[string]{Stage: "image"}

	_, _, err := chain.Run(context.Background())

	var failure *models.GenerationFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, ErrNoStrategies)
}

func TestChain_AttemptTimeoutMovesOn(t *testing.T) {
	chain := &Chain[string]{
		Stage:   "itinerary",
		Timeout: 20 * time.Millisecond,
		Strategies: []Strategy[string]{
			{Name: "slow", Run: func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}},
			stringStrategy("fast", "ok", nil),
		},
	}

	got, attempts, err := chain.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	require.Len(t, attempts, 2)
	assert.ErrorIs(t, attempts[0].Err, context.DeadlineExceeded)
}

func TestChain_CallerCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	chain := &Chain[string]{
		Stage: "itinerary",
		Strategies: []Strategy[string]{
			{Name: "first", Run: func(context.Context) (string, error) {
				calls++
				cancel()
				return "", errors.New("boom")
			}},
			{Name: "second", Run: func(context.Context) (string, error) {
				calls++
				return "never", nil
			}},
		},
	}

	_, attempts, err := chain.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	var failure *models.GenerationFailure
	assert.False(t, errors.As(err, &failure))
	assert.Equal(t, 1, calls)
	assert.Len(t, attempts, 1)
}

func TestChain_PanicBecomesFailure(t *testing.T) {
	chain := &Chain[string]{
		Stage: "itinerary",
		Strategies: []Strategy[string]{
			{Name: "panics", Run: func(context.Context) (string, error) { panic("nil map") }},
			stringStrategy("ok", "fine", nil),
		},
	}

	got, attempts, err := chain.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fine", got)
	assert.Contains(t, attempts[0].ErrorString(), "panicked")
}

func TestTextStrategies(t *testing.T) {
	primary := &MockProvider{name: "openai", generateFunc: func(context.Context, *TextRequest) (*TextResponse, error) {
		return nil, errors.New("503")
	}}
	empty := &MockProvider{name: "openai", generateFunc: func(context.Context, *TextRequest) (*TextResponse, error) {
		return &TextResponse{}, nil
	}}
	fallback := &MockProvider{name: "gemini"}
	router := mockRouter{"gpt-4o": primary, "gpt-4": empty, "gemini-2.5-flash": fallback}

	chain := &Chain[*TextResponse]{
		Stage: "itinerary",
		Strategies: TextStrategies(router, []string{"gpt-4o", "missing", "gpt-4", "gemini-2.5-flash"},
			TextRequest{SystemPrompt: "sys", UserPrompt: "user", Temperature: 0.7}),
	}

	resp, attempts, err := chain.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", resp.Model)
	require.Len(t, attempts, 4)
	assert.ErrorIs(t, attempts[1].Err, assert.AnError)
	assert.ErrorIs(t, attempts[2].Err, ErrEmptyResponse)
	assert.Equal(t, []string{"gemini-2.5-flash"}, fallback.textCalls)
}

func TestImageStrategies(t *testing.T) {
	provider := &MockProvider{name: "openai"}
	router := mockRouter{"gpt-image-1": provider}

	chain := &Chain[*ImageResponse]{
		Stage:      "image",
		Strategies: ImageStrategies(router, []string{"gpt-image-1"}, ImageRequest{Prompt: "Paris", Size: "1024x1024"}),
	}

	resp, _, err := chain.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "gpt-image-1", resp.Model)
	require.Len(t, provider.imageRequests, 1)
	assert.Equal(t, "1024x1024", provider.imageRequests[0].Size)
}
