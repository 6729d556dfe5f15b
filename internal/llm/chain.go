package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
)

// ErrNoStrategies is the failure of a chain with nothing to try
var ErrNoStrategies = errors.New("no strategies configured")

// Strategy is one named way to produce a T
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain tries strategies in order until one succeeds.
// Each attempt runs under Timeout when it is positive.
type Chain[T any] struct {
	Stage      string
	Strategies []Strategy[T]
	Timeout    time.Duration
	// OnAttempt is called after every attempt, successful or not
	OnAttempt func(models.Attempt)
}

// Run returns the first successful result and the attempt log.
// When every strategy fails the error is a *models.GenerationFailure.
// Cancellation of ctx stops the chain and returns ctx.Err() wrapped.
func (c *Chain[T]) Run(ctx context.Context) (T, []models.Attempt, error) {
	var zero T
	attempts := make([]models.Attempt, 0, len(c.Strategies))

	if len(c.Strategies) == 0 {
		return zero, attempts, &models.GenerationFailure{Stage: c.Stage, Last: ErrNoStrategies}
	}

	var lastErr error
	for _, strategy := range c.Strategies {
		if err := ctx.Err(); err != nil {
			return zero, attempts, fmt.Errorf("%s cancelled: %w", c.Stage, err)
		}

		result, attempt := c.try(ctx, strategy)
		attempts = append(attempts, attempt)
		if c.OnAttempt != nil {
			c.OnAttempt(attempt)
		}
		if attempt.Succeeded() {
			return result, attempts, nil
		}
		lastErr = attempt.Err

		// the caller gave up, not just this attempt's deadline
		if err := ctx.Err(); err != nil {
			return zero, attempts, fmt.Errorf("%s cancelled: %w", c.Stage, err)
		}
	}

	return zero, attempts, &models.GenerationFailure{
		Stage:    c.Stage,
		Attempts: attempts,
		Last:     lastErr,
	}
}

func (c *Chain[T]) try(ctx context.Context, strategy Strategy[T]) (result T, attempt models.Attempt) {
	attemptCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			attempt = models.Attempt{
				Name:     strategy.Name,
				Err:      fmt.Errorf("strategy panicked: %v", r),
				Duration: time.Since(start),
			}
		}
	}()

	result, err := strategy.Run(attemptCtx)
	return result, models.Attempt{Name: strategy.Name, Err: err, Duration: time.Since(start)}
}

// TextStrategies builds one strategy per model. A model whose provider is
// unavailable fails as an attempt rather than aborting the chain.
func TextStrategies(router Router, modelNames []string, base TextRequest) []Strategy[*TextResponse] {
	strategies := make([]Strategy[*TextResponse], 0, len(modelNames))
	for _, model := range modelNames {
		strategies = append(strategies, Strategy[*TextResponse]{
			Name: model,
			Run: func(ctx context.Context) (*TextResponse, error) {
				provider, err := router.TextProvider(ctx, model)
				if err != nil {
					return nil, err
				}
				req := base
				req.Model = model
				resp, err := provider.Generate(ctx, &req)
				if err != nil {
					return nil, err
				}
				if resp == nil || resp.Text == "" {
					return nil, ErrEmptyResponse
				}
				if resp.Model == "" {
					resp.Model = model
				}
				return resp, nil
			},
		})
	}
	return strategies
}

// ImageStrategies builds one strategy per image model
func ImageStrategies(router Router, modelNames []string, base ImageRequest) []Strategy[*ImageResponse] {
	strategies := make([]Strategy[*ImageResponse], 0, len(modelNames))
	for _, model := range modelNames {
		strategies = append(strategies, Strategy[*ImageResponse]{
			Name: model,
			Run: func(ctx context.Context) (*ImageResponse, error) {
				provider, err := router.ImageProvider(ctx, model)
				if err != nil {
					return nil, err
				}
				req := base
				req.Model = model
				resp, err := provider.GenerateImage(ctx, &req)
				if err != nil {
					return nil, err
				}
				if resp == nil || len(resp.Data) == 0 {
					return nil, ErrEmptyResponse
				}
				if resp.Model == "" {
					resp.Model = model
				}
				return resp, nil
			},
		})
	}
	return strategies
}
