package images

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Conceptual-Machines/travel-guide-api/internal/llm"
	"github.com/Conceptual-Machines/travel-guide-api/internal/logger"
	"github.com/Conceptual-Machines/travel-guide-api/internal/models"
	"github.com/Conceptual-Machines/travel-guide-api/internal/prompt"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	stageImage           = "image"
	cacheCleanupInterval = 10 * time.Minute
)

// Options configures a Service
type Options struct {
	Models       []string      // Ordered fallback chain
	Size         string        // e.g. 1024x1024
	Timeout      time.Duration // Per-attempt timeout
	RateInterval time.Duration // Minimum spacing between provider calls; 0 disables pacing
	CacheTTL     time.Duration // Reuse window for identical prompts
}

// Service generates the images for a trip: one city image, then one per interest.
// Calls are sequential and paced; failures omit the image.
type Service struct {
	router  llm.Router
	prompts *prompt.Builder
	opts    Options
	limiter *rate.Limiter
	cache   *cache.Cache

	// OnAttempt observes every model attempt, keyed by image theme
	OnAttempt func(ctx context.Context, theme string, attempt models.Attempt)
}

// NewService creates an image service
func NewService(router llm.Router, prompts *prompt.Builder, opts Options) *Service {
	limit := rate.Inf
	if opts.RateInterval > 0 {
		limit = rate.Every(opts.RateInterval)
	}
	return &Service{
		router:  router,
		prompts: prompts,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache.New(opts.CacheTTL, cacheCleanupInterval),
	}
}

type job struct {
	theme  string
	kind   string
	prompt string
}

// Generate returns the images that could be produced, in order, and one
// ImageFailure per omitted image. The error is non-nil only when ctx ends.
func (s *Service) Generate(ctx context.Context, req models.TripRequest) (models.ImageSet, []*models.ImageFailure, error) {
	req = req.Normalized()
	jobs, err := s.jobs(req)
	if err != nil {
		return nil, nil, err
	}

	var (
		set      models.ImageSet
		failures []*models.ImageFailure
	)
	for _, j := range jobs {
		img, failure, err := s.generateOne(ctx, j)
		if err != nil {
			return set, failures, err
		}
		if failure != nil {
			failures = append(failures, failure)
			logger.Warn("Image omitted", logger.Fields{
				"theme":    failure.Theme,
				"attempts": len(failure.Attempts),
				"error":    failure.Error(),
			})
			continue
		}
		set = append(set, img)
	}

	logger.Info("Images generated", logger.Fields{
		"destination": req.Destination,
		"images":      len(set),
		"omitted":     len(failures),
	})
	return set, failures, nil
}

func (s *Service) jobs(req models.TripRequest) ([]job, error) {
	cityPrompt, err := s.prompts.CityImagePrompt(req.Destination)
	if err != nil {
		return nil, fmt.Errorf("build city image prompt: %w", err)
	}
	jobs := []job{{theme: req.Destination, kind: models.ImageKindCity, prompt: cityPrompt}}

	for _, interest := range req.Interests {
		p, err := s.prompts.InterestImagePrompt(interest, req.Destination)
		if err != nil {
			return nil, fmt.Errorf("build image prompt for %q: %w", interest, err)
		}
		jobs = append(jobs, job{theme: interest, kind: models.ImageKindInterest, prompt: p})
	}
	return jobs, nil
}

func (s *Service) generateOne(ctx context.Context, j job) (models.Image, *models.ImageFailure, error) {
	key := cacheKey(s.opts.Size, j.prompt)
	if cached, found := s.cache.Get(key); found {
		img := cached.(models.Image)
		img.Theme = j.theme
		img.Kind = j.kind
		logger.Debug("Image cache hit", logger.Fields{"theme": j.theme, "model": img.Model})
		return img, nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return models.Image{}, nil, fmt.Errorf("image rate limiter: %w", err)
	}

	chain := &llm.Chain[*llm.ImageResponse]{
		Stage:   stageImage,
		Timeout: s.opts.Timeout,
		Strategies: llm.ImageStrategies(s.router, s.opts.Models, llm.ImageRequest{
			Prompt: j.prompt,
			Size:   s.opts.Size,
		}),
		OnAttempt: func(a models.Attempt) {
			logger.LogModelAttempt(stageImage, a.Name, a.Duration, a.Err, logger.Fields{"theme": j.theme})
			if s.OnAttempt != nil {
				s.OnAttempt(ctx, j.theme, a)
			}
		},
	}

	resp, attempts, err := chain.Run(ctx)
	if err != nil {
		var failure *models.GenerationFailure
		if errors.As(err, &failure) {
			return models.Image{}, &models.ImageFailure{Theme: j.theme, Attempts: attempts, Last: failure.Last}, nil
		}
		return models.Image{}, nil, err
	}

	img := models.Image{
		Theme:    j.theme,
		Kind:     j.kind,
		Prompt:   j.prompt,
		Model:    resp.Model,
		MIMEType: resp.MIMEType,
		Data:     resp.Data,
	}
	s.cache.Set(key, img, cache.DefaultExpiration)
	return img, nil, nil
}

// cacheKey ignores the model so a fallback image is reused too
func cacheKey(size, prompt string) string {
	sum := sha256.Sum256([]byte(size + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}
