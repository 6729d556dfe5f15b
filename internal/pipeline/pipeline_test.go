package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/images"
	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
	"github.com/Conceptual-Machines/travel-guide-api/internal/metrics"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/Conceptual-Machines/travel-guide-api/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeText struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (f *fakeText) Name() string { return "fake" }

func (f *fakeText) Generate(_ context.Context, req *llm.TextRequest) (*llm.TextResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.TextResponse{
		Text:     f.text,
		Model:    req.Model,
		Provider: "fake",
		Usage:    llm.Usage{InputTokens: 100, OutputTokens: 400, TotalTokens: 500},
	}, nil
}

type fakeImage struct {
	mu    sync.Mutex
	calls int
	data  []byte
	err   error
}

func (f *fakeImage) Name() string { return "fake" }

func (f *fakeImage) GenerateImage(_ context.Context, req *llm.ImageRequest) (*llm.ImageResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ImageResponse{Data: f.data, MIMEType: "image/png", Model: req.Model, Provider: "fake"}, nil
}

type fakeRouter struct {
	text  map[string]*fakeText
	image map[string]*fakeImage
}

func (r *fakeRouter) TextProvider(_ context.Context, model string) (llm.TextProvider, error) {
	if p, ok := r.text[model]; ok {
		return p, nil
	}
	return nil, errors.New("unknown model " + model)
}

func (r *fakeRouter) ImageProvider(_ context.Context, model string) (llm.ImageProvider, error) {
	if p, ok := r.image[model]; ok {
		return p, nil
	}
	return nil, errors.New("unknown model " + model)
}

func (r *fakeRouter) textCalls() int {
	n := 0
	for _, p := range r.text {
		n += p.calls
	}
	return n
}

func (r *fakeRouter) imageCalls() int {
	n := 0
	for _, p := range r.image {
		n += p.calls
	}
	return n
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func parisMarkdown(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/paris_3days.md")
	require.NoError(t, err)
	return string(data)
}

func testOptions(textModels, imageModels []string) Options {
	return Options{
		TextModels:   textModels,
		ModelTimeout: 5 * time.Second,
		Images: images.Options{
			Models:  imageModels,
			Size:    "1024x1024",
			Timeout: 5 * time.Second,
		},
	}
}

func parisRequest() models.TripRequest {
	return models.TripRequest{
		Destination: "Paris",
		Days:        3,
		Interests:   []string{"food", "museums"},
	}
}

func countDays(outline []string) int {
	n := 0
	for _, title := range outline {
		if strings.HasPrefix(title, "Day ") {
			n++
		}
	}
	return n
}

func TestRunParisEndToEnd(t *testing.T) {
	router := &fakeRouter{
		text:  map[string]*fakeText{"gpt-4o": {text: parisMarkdown(t)}},
		image: map[string]*fakeImage{"gpt-image-1": {data: testPNG(t)}},
	}
	p := New(router, testOptions([]string{"gpt-4o"}, []string{"gpt-image-1"}), nil, nil)
	sess := session.New("s1")

	result, err := p.Run(context.Background(), sess, parisRequest())
	require.NoError(t, err)

	require.NotNil(t, result.Document)
	assert.True(t, bytes.HasPrefix(result.Document.Data, []byte("%PDF")))
	assert.Equal(t, 3, countDays(result.Document.Outline))
	assert.Len(t, result.Itinerary.DaySections, 3)
	assert.NotEmpty(t, result.Itinerary.Budget)
	assert.Contains(t, result.Document.Outline, "Estimated Budget Breakdown")
	assert.GreaterOrEqual(t, result.Document.ImageCount, 1)
	assert.Len(t, result.Images, 3)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "travel_guide_paris_3days.pdf", result.Document.Filename)

	assert.Equal(t, session.StateDone, sess.State())
	assert.Same(t, result, sess.Result())
	assert.NoError(t, sess.LastError())
	assert.Equal(t, []string{"food", "museums"}, sess.Request().Interests)
}

func TestRunFallbackKeepsStructure(t *testing.T) {
	markdown := parisMarkdown(t)
	imageData := testPNG(t)

	primary := &fakeRouter{
		text:  map[string]*fakeText{"gpt-4o": {text: markdown}},
		image: map[string]*fakeImage{"gpt-image-1": {data: imageData}},
	}
	fallback := &fakeRouter{
		text: map[string]*fakeText{
			"gpt-4o":      {err: errors.New("status 429: rate limited")},
			"gpt-4-turbo": {text: markdown},
		},
		image: map[string]*fakeImage{"gpt-image-1": {data: imageData}},
	}

	textModels := []string{"gpt-4o", "gpt-4-turbo"}
	want, err := New(primary, testOptions(textModels, []string{"gpt-image-1"}), nil, nil).
		Run(context.Background(), session.New("a"), parisRequest())
	require.NoError(t, err)
	got, err := New(fallback, testOptions(textModels, []string{"gpt-image-1"}), nil, nil).
		Run(context.Background(), session.New("b"), parisRequest())
	require.NoError(t, err)

	assert.Equal(t, want.Document.Outline, got.Document.Outline)
	assert.Equal(t, "gpt-4-turbo", got.Itinerary.Model)
	require.Len(t, got.Attempts, 2)
	assert.False(t, got.Attempts[0].Succeeded())
	assert.True(t, got.Attempts[1].Succeeded())
}

func TestRunAllModelsFail(t *testing.T) {
	router := &fakeRouter{
		text: map[string]*fakeText{
			"gpt-4o":      {err: errors.New("status 500")},
			"gpt-4-turbo": {err: errors.New("status 503")},
			"gpt-4":       {err: llm.ErrEmptyResponse},
		},
		image: map[string]*fakeImage{"gpt-image-1": {data: testPNG(t)}},
	}
	p := New(router, testOptions([]string{"gpt-4o", "gpt-4-turbo", "gpt-4"}, []string{"gpt-image-1"}), nil, nil)
	sess := session.New("s1")

	result, err := p.Run(context.Background(), sess, parisRequest())
	assert.Nil(t, result)

	var failure *models.GenerationFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "itinerary", failure.Stage)
	assert.Len(t, failure.Attempts, 3)
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)

	assert.Zero(t, router.imageCalls(), "no images after a generation failure")
	assert.Equal(t, session.StateFailed, sess.State())
	assert.Nil(t, sess.Result())
	assert.Same(t, err, sess.LastError())
}

func TestRunValidationMakesNoCalls(t *testing.T) {
	router := &fakeRouter{
		text:  map[string]*fakeText{"gpt-4o": {text: "unused"}},
		image: map[string]*fakeImage{"gpt-image-1": {data: []byte("unused")}},
	}
	p := New(router, testOptions([]string{"gpt-4o"}, []string{"gpt-image-1"}), nil, nil)
	sess := session.New("s1")

	_, err := p.Run(context.Background(), sess, models.TripRequest{Destination: "  ", Days: 0})

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.FieldMessage("destination"))
	assert.NotEmpty(t, verr.FieldMessage("days"))
	assert.Zero(t, router.textCalls())
	assert.Zero(t, router.imageCalls())
	assert.Equal(t, session.StateFailed, sess.State())

	// a corrected resubmission runs from Failed
	router.text["gpt-4o"].text = parisMarkdown(t)
	router.image["gpt-image-1"].data = testPNG(t)
	_, err = p.Run(context.Background(), sess, parisRequest())
	require.NoError(t, err)
	assert.Equal(t, session.StateDone, sess.State())
}

func TestRunImageFailuresAreWarnings(t *testing.T) {
	router := &fakeRouter{
		text:  map[string]*fakeText{"gpt-4o": {text: parisMarkdown(t)}},
		image: map[string]*fakeImage{"gpt-image-1": {err: errors.New("content policy")}},
	}
	p := New(router, testOptions([]string{"gpt-4o"}, []string{"gpt-image-1"}), nil, nil)

	result, err := p.Run(context.Background(), session.New("s1"), parisRequest())
	require.NoError(t, err)

	assert.Empty(t, result.Images)
	assert.Len(t, result.Warnings, 3)
	var imgErr *models.ImageFailure
	assert.ErrorAs(t, result.Warnings[0], &imgErr)
	assert.Equal(t, 3, countDays(result.Document.Outline))
	assert.Zero(t, result.Document.ImageCount)
}

func TestRunDegradesOnMissingSections(t *testing.T) {
	router := &fakeRouter{
		text:  map[string]*fakeText{"gpt-4o": {text: "Paris is lovely.\n\nWalk along the Seine."}},
		image: map[string]*fakeImage{"gpt-image-1": {data: testPNG(t)}},
	}
	p := New(router, testOptions([]string{"gpt-4o"}, []string{"gpt-image-1"}), nil, nil)

	result, err := p.Run(context.Background(), session.New("s1"), models.TripRequest{Destination: "Paris", Days: 2})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	var renderErr *models.RenderError
	require.ErrorAs(t, result.Warnings[0], &renderErr)
	assert.True(t, renderErr.Degraded())
	assert.NotEmpty(t, result.Document.Data)
	assert.True(t, result.Document.Fallback)
}

func TestRunCancelled(t *testing.T) {
	router := &fakeRouter{
		text:  map[string]*fakeText{"gpt-4o": {text: parisMarkdown(t)}},
		image: map[string]*fakeImage{"gpt-image-1": {data: testPNG(t)}},
	}
	p := New(router, testOptions([]string{"gpt-4o"}, []string{"gpt-image-1"}), nil, nil)
	sess := session.New("s1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, sess, parisRequest())
	require.ErrorIs(t, err, context.Canceled)
	var failure *models.GenerationFailure
	assert.False(t, errors.As(err, &failure))
	assert.Equal(t, session.StateFailed, sess.State())
}

type generationRecorder struct {
	metrics.Nop
	mu      sync.Mutex
	success []bool
	depths  []int
}

func (r *generationRecorder) RecordGeneration(_ context.Context, _ time.Duration, success bool, fallbackDepth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, success)
	r.depths = append(r.depths, fallbackDepth)
}

func TestRunRecordsFallbackDepth(t *testing.T) {
	textModels := []string{"gpt-4o", "gpt-4-turbo", "gpt-4"}
	fallback := &fakeRouter{
		text: map[string]*fakeText{
			"gpt-4o":      {err: errors.New("status 429")},
			"gpt-4-turbo": {text: parisMarkdown(t)},
		},
		image: map[string]*fakeImage{"gpt-image-1": {data: testPNG(t)}},
	}
	failing := &fakeRouter{
		text: map[string]*fakeText{
			"gpt-4o":      {err: errors.New("status 500")},
			"gpt-4-turbo": {err: errors.New("status 500")},
			"gpt-4":       {err: errors.New("status 500")},
		},
		image: map[string]*fakeImage{},
	}

	rec := &generationRecorder{}
	_, err := New(fallback, testOptions(textModels, []string{"gpt-image-1"}), rec, nil).
		Run(context.Background(), session.New("a"), parisRequest())
	require.NoError(t, err)
	_, err = New(failing, testOptions(textModels, []string{"gpt-image-1"}), rec, nil).
		Run(context.Background(), session.New("b"), parisRequest())
	require.Error(t, err)

	assert.Equal(t, []bool{true, false}, rec.success)
	assert.Equal(t, []int{1, 2}, rec.depths)
}

func TestFallbackDepth(t *testing.T) {
	assert.Equal(t, 0, fallbackDepth(nil))
	assert.Equal(t, 0, fallbackDepth(make([]models.Attempt, 1)))
	assert.Equal(t, 2, fallbackDepth(make([]models.Attempt, 3)))
}
