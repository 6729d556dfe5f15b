package metrics

import (
	"context"
	"time"
)

// Recorder receives HTTP and pipeline measurements
type Recorder interface {
	RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration)
	RecordModelAttempt(ctx context.Context, stage, model string, duration time.Duration, success bool)
	RecordTokenUsage(ctx context.Context, model string, inputTokens, outputTokens, totalTokens int)
	RecordGeneration(ctx context.Context, duration time.Duration, success bool, fallbackDepth int)
	RecordImages(ctx context.Context, generated, omitted int)
}

// Multi fans every measurement out to all recorders
type Multi []Recorder

func (m Multi) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	for _, r := range m {
		r.RecordAPIRequest(ctx, endpoint, statusCode, duration)
	}
}

func (m Multi) RecordModelAttempt(ctx context.Context, stage, model string, duration time.Duration, success bool) {
	for _, r := range m {
		r.RecordModelAttempt(ctx, stage, model, duration, success)
	}
}

func (m Multi) RecordTokenUsage(ctx context.Context, model string, inputTokens, outputTokens, totalTokens int) {
	for _, r := range m {
		r.RecordTokenUsage(ctx, model, inputTokens, outputTokens, totalTokens)
	}
}

func (m Multi) RecordGeneration(ctx context.Context, duration time.Duration, success bool, fallbackDepth int) {
	for _, r := range m {
		r.RecordGeneration(ctx, duration, success, fallbackDepth)
	}
}

func (m Multi) RecordImages(ctx context.Context, generated, omitted int) {
	for _, r := range m {
		r.RecordImages(ctx, generated, omitted)
	}
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordAPIRequest(context.Context, string, int, time.Duration)           {}
func (Nop) RecordModelAttempt(context.Context, string, string, time.Duration, bool) {}
func (Nop) RecordTokenUsage(context.Context, string, int, int, int)                 {}
func (Nop) RecordGeneration(context.Context, time.Duration, bool, int)              {}
func (Nop) RecordImages(context.Context, int, int)                                  {}
