package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/config"
	"github.com/Conceptual-Machines/travel-guide-api/internal/images"
	"github.com/Conceptual-Machines/travel-guide-api/internal/itinerary"
	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/metrics"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/Conceptual-Machines/travel-guide-api/internal/observability"
	"github.com/Conceptual-Machines/travel-guide-api/internal/prompt"
	"github.com/Conceptual-Machines/travel-guide-api/internal/render"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
)

const (
	stageItinerary = "itinerary"
	stageImage     = "image"
	traceName      = "travel_guide"
)

// Options configures the generation stages
type Options struct {
	TextModels      []string
	MaxOutputTokens int
	Temperature     float64
	ModelTimeout    time.Duration
	Images          images.Options
}

// OptionsFromConfig maps the service configuration onto pipeline options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TextModels:      cfg.TextModels,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
		ModelTimeout:    cfg.ModelTimeout,
		Images: images.Options{
			Models:       cfg.ImageModels,
			Size:         cfg.ImageSize,
			Timeout:      cfg.ModelTimeout,
			RateInterval: cfg.ImageRateInterval,
			CacheTTL:     cfg.ImageCacheTTL,
		},
	}
}

// Pipeline drives one session from validation to a rendered PDF
type Pipeline struct {
	collector *session.Collector
	prompts   *prompt.Builder
	router    llm.Router
	images    *images.Service
	renderer  *render.Renderer
	opts      Options
	recorder  metrics.Recorder
	tracer    *observability.LangfuseClient
}

// New creates a pipeline. recorder and tracer may be nil.
func New(router llm.Router, opts Options, recorder metrics.Recorder, tracer *observability.LangfuseClient) *Pipeline {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	prompts := prompt.NewPromptBuilder()

	p := &Pipeline{
		collector: session.NewCollector(),
		prompts:   prompts,
		router:    router,
		images:    images.NewService(router, prompts, opts.Images),
		renderer:  render.NewRenderer(),
		opts:      opts,
		recorder:  recorder,
		tracer:    tracer,
	}
	p.images.OnAttempt = p.recordImageAttempt
	return p
}

// Run validates req, generates the itinerary and images and renders the PDF.
// Runs on the same session are serialized. The session keeps the request, the
// state, and either the result or the error of the last run.
//
// Errors: *models.ValidationError before any network call, a single
// *models.GenerationFailure when every text model failed, *models.RenderError
// when the PDF could not be written, or a wrapped context error.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, req models.TripRequest) (*models.Result, error) {
	release := sess.BeginRun()
	defer release()

	req = req.Normalized()
	p.collector.Update(sess, req)
	if err := sess.Transition(session.StateValidating); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			p.fail(sess, fmt.Errorf("pipeline panicked: %v", r))
			panic(r)
		}
	}()

	if err := p.collector.Validate(req); err != nil {
		logger.Info("Trip request rejected", logger.Fields{"session_id": sess.ID, "error": err.Error()})
		return nil, p.fail(sess, err)
	}

	start := time.Now()
	trace := p.tracer.StartTrace(ctx, traceName, sess.ID, req, map[string]any{
		"destination": req.Destination,
		"days":        req.Days,
		"interests":   len(req.Interests),
	})
	defer trace.Finish()
	ctx = observability.ContextWithTrace(ctx, trace)

	if err := sess.Transition(session.StateGenerating); err != nil {
		return nil, p.fail(sess, err)
	}

	resp, attempts, err := p.generateItinerary(ctx, req)
	if err != nil {
		p.recorder.RecordGeneration(ctx, time.Since(start), false, fallbackDepth(attempts))
		logger.Error("Itinerary generation failed", err, logger.Fields{
			"session_id":  sess.ID,
			"destination": req.Destination,
			"attempts":    len(attempts),
		})
		return nil, p.fail(sess, err)
	}
	p.recorder.RecordTokenUsage(ctx, resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)

	result := &models.Result{
		Request:  req,
		Attempts: attempts,
	}

	imageSet, failures, err := p.images.Generate(ctx, req)
	if err != nil {
		return nil, p.fail(sess, err)
	}
	result.Images = imageSet
	for _, f := range failures {
		result.Warnings = append(result.Warnings, f)
	}
	p.recorder.RecordImages(ctx, len(imageSet), len(failures))

	if err := sess.Transition(session.StateRendering); err != nil {
		return nil, p.fail(sess, err)
	}

	it, err := itinerary.Parse(resp.Text, req, resp.Model)
	if err != nil {
		var renderErr *models.RenderError
		if !errors.As(err, &renderErr) || !renderErr.Degraded() {
			return nil, p.fail(sess, err)
		}
		logger.Warn("Itinerary layout degraded", logger.Fields{
			"session_id": sess.ID,
			"model":      resp.Model,
			"missing":    renderErr.Missing,
		})
		result.Warnings = append(result.Warnings, renderErr)
	}
	result.Itinerary = it

	doc, err := p.renderer.Render(it, imageSet)
	if err != nil {
		p.recorder.RecordGeneration(ctx, time.Since(start), false, fallbackDepth(attempts))
		logger.Error("PDF rendering failed", err, logger.Fields{"session_id": sess.ID})
		return nil, p.fail(sess, err)
	}
	result.Document = doc
	result.CreatedAt = time.Now()

	if err := sess.Transition(session.StateDone); err != nil {
		return nil, p.fail(sess, err)
	}
	sess.SetResult(result)

	p.recorder.RecordGeneration(ctx, time.Since(start), true, fallbackDepth(attempts))
	trace.Output(map[string]any{
		"model":    resp.Model,
		"sections": len(doc.Outline),
		"images":   doc.ImageCount,
		"warnings": result.WarningMessages(),
	})
	logger.Info("Travel guide generated", logger.Fields{
		"session_id":  sess.ID,
		"destination": req.Destination,
		"model":       resp.Model,
		"fallbacks":   fallbackDepth(attempts),
		"images":      doc.ImageCount,
		"warnings":    len(result.Warnings),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (p *Pipeline) generateItinerary(ctx context.Context, req models.TripRequest) (*llm.TextResponse, []models.Attempt, error) {
	systemPrompt, err := p.prompts.SystemPrompt()
	if err != nil {
		return nil, nil, fmt.Errorf("load system prompt: %w", err)
	}
	userPrompt, err := p.prompts.UserPrompt(req)
	if err != nil {
		return nil, nil, fmt.Errorf("build user prompt: %w", err)
	}

	strategies := llm.TextStrategies(p.router, p.opts.TextModels, llm.TextRequest{
		SystemPrompt:    systemPrompt,
		UserPrompt:      userPrompt,
		MaxOutputTokens: p.opts.MaxOutputTokens,
		Temperature:     p.opts.Temperature,
	})
	trace := observability.TraceFromContext(ctx)
	for i := range strategies {
		strategies[i] = traced(trace, strategies[i], userPrompt)
	}

	chain := &llm.Chain[*llm.TextResponse]{
		Stage:      stageItinerary,
		Strategies: strategies,
		Timeout:    p.opts.ModelTimeout,
		OnAttempt: func(a models.Attempt) {
			logger.LogModelAttempt(stageItinerary, a.Name, a.Duration, a.Err, logger.Fields{"destination": req.Destination})
			p.recorder.RecordModelAttempt(ctx, stageItinerary, a.Name, a.Duration, a.Succeeded())
		},
	}
	return chain.Run(ctx)
}

// traced reports each text attempt as a Langfuse generation with usage and cost
func traced(trace *observability.Trace, s llm.Strategy[*llm.TextResponse], input string) llm.Strategy[*llm.TextResponse] {
	if !trace.Enabled() {
		return s
	}
	run := s.Run
	s.Run = func(ctx context.Context) (*llm.TextResponse, error) {
		gen := trace.Generation(stageItinerary, s.Name, input, nil)
		defer gen.Finish()

		resp, err := run(ctx)
		if err != nil {
			gen.Fail(err)
			return nil, err
		}
		gen.TextResult(resp)
		return resp, nil
	}
	return s
}

func (p *Pipeline) recordImageAttempt(ctx context.Context, theme string, a models.Attempt) {
	p.recorder.RecordModelAttempt(ctx, stageImage, a.Name, a.Duration, a.Succeeded())
	observability.TraceFromContext(ctx).RecordAttempt(stageImage, a, theme, map[string]any{"theme": theme})
}

// fail moves the session to Failed and stores err
func (p *Pipeline) fail(sess *session.Session, err error) error {
	sess.SetError(err)
	if terr := sess.Transition(session.StateFailed); terr != nil {
		logger.Warn("Session state not updated", logger.Fields{"session_id": sess.ID, "error": terr.Error()})
	}
	return err
}

// fallbackDepth counts the models tried after the first one
func fallbackDepth(attempts []models.Attempt) int {
	if len(attempts) == 0 {
		return 0
	}
	return len(attempts) - 1
}
