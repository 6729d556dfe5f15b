package observability

import (
	"context"
	"log"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"
)

const levelError = "ERROR"

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
}

// InitializeLangfuse creates the Langfuse client. The SDK reads
// LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and LANGFUSE_SECRET_KEY itself.
func InitializeLangfuse(ctx context.Context, cfg *config.Config) *LangfuseClient {
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" || cfg.LangfusePublicKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or keys not set)")
		return &LangfuseClient{enabled: false}
	}

	lf := langfuse.New(ctx)
	log.Printf("✅ Langfuse initialized (host: %s)", cfg.LangfuseHost)
	return &LangfuseClient{client: lf, enabled: true}
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// StartTrace starts a new trace in Langfuse, one per pipeline run
func (c *LangfuseClient) StartTrace(ctx context.Context, name, sessionID string, input any, metadata map[string]any) *Trace {
	if !c.IsEnabled() {
		return &Trace{enabled: false, ctx: ctx}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:      name,
		SessionID: sessionID,
		Input:     input,
		Metadata:  metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{enabled: false, ctx: ctx}
	}

	return &Trace{
		trace:   trace,
		enabled: true,
		ctx:     ctx,
		client:  c.client,
	}
}

// Trace represents a Langfuse trace
type Trace struct {
	trace   *model.Trace
	enabled bool
	ctx     context.Context
	client  *langfuse.Langfuse
}

// Enabled reports whether events are sent
func (t *Trace) Enabled() bool {
	return t.enabled
}

type traceKey struct{}

// ContextWithTrace attaches t to ctx
func ContextWithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, t)
}

// TraceFromContext returns the trace attached to ctx, or a disabled one
func TraceFromContext(ctx context.Context) *Trace {
	if t, ok := ctx.Value(traceKey{}).(*Trace); ok && t != nil {
		return t
	}
	return &Trace{enabled: false, ctx: ctx}
}

// Generation creates a new generation span within the trace, one per model attempt
func (t *Trace) Generation(name, modelName string, input any, metadata map[string]any) *Generation {
	return t.generation(name, modelName, input, metadata, time.Now())
}

// RecordAttempt sends an already finished attempt as a generation
func (t *Trace) RecordAttempt(name string, attempt models.Attempt, input any, metadata map[string]any) {
	if !t.enabled {
		return
	}
	gen := t.generation(name, attempt.Name, input, metadata, time.Now().Add(-attempt.Duration))
	gen.Fail(attempt.Err)
	gen.Finish()
}

func (t *Trace) generation(name, modelName string, input any, metadata map[string]any, start time.Time) *Generation {
	if !t.enabled {
		return &Generation{enabled: false}
	}

	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      name,
		Model:     modelName,
		StartTime: &start,
		Input:     input,
		Metadata:  metadata,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Generation{enabled: false}
	}

	return &Generation{
		generation: gen,
		enabled:    true,
		client:     t.client,
	}
}

// Output sets the trace output
func (t *Trace) Output(output any) {
	if !t.enabled || t.trace == nil {
		return
	}
	t.trace.Output = output
	if _, err := t.client.Trace(t.trace); err != nil {
		log.Printf("⚠️  Failed to update Langfuse trace: %v", err)
	}
}

// Finish completes the trace and flushes data to Langfuse
func (t *Trace) Finish() {
	if t.enabled && t.client != nil {
		t.client.Flush(t.ctx)
	}
}

// Generation represents a Langfuse generation span
type Generation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// Enabled reports whether events are sent
func (g *Generation) Enabled() bool {
	return g.enabled
}

// Metadata adds metadata to the generation
func (g *Generation) Metadata(metadata map[string]any) {
	if !g.enabled || g.generation == nil {
		return
	}
	if md, ok := g.generation.Metadata.(map[string]any); ok {
		for k, v := range metadata {
			md[k] = v
		}
		return
	}
	g.generation.Metadata = metadata
}

// TextResult records a successful text generation with usage and cost
func (g *Generation) TextResult(resp *llm.TextResponse) {
	if !g.enabled || g.generation == nil || resp == nil {
		return
	}
	cost := CalculateTextCost(resp.Model, resp.Usage)
	g.generation.Output = resp.Text
	g.generation.Usage = model.Usage{
		Input:     resp.Usage.InputTokens,
		Output:    resp.Usage.OutputTokens,
		Total:     resp.Usage.TotalTokens,
		Unit:      model.ModelUsageUnitTokens,
		TotalCost: cost,
	}
	g.Metadata(map[string]any{"provider": resp.Provider, "cost_usd": cost})
}

// ImageResult records a successful image generation
func (g *Generation) ImageResult(resp *llm.ImageResponse) {
	if !g.enabled || g.generation == nil || resp == nil {
		return
	}
	g.generation.Output = map[string]any{"mime_type": resp.MIMEType, "bytes": len(resp.Data)}
	g.Metadata(map[string]any{"provider": resp.Provider, "cost_usd": CalculateImageCost(resp.Model)})
}

// Fail marks the generation as failed
func (g *Generation) Fail(err error) {
	if !g.enabled || g.generation == nil || err == nil {
		return
	}
	g.generation.Level = model.ObservationLevel(levelError)
	g.generation.StatusMessage = err.Error()
}

// Finish completes the generation and sends it to Langfuse
func (g *Generation) Finish() {
	if g.enabled && g.generation != nil && g.client != nil {
		now := time.Now()
		g.generation.EndTime = &now
		if _, err := g.client.GenerationEnd(g.generation); err != nil {
			log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
		}
	}
}
