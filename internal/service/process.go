package service

import (
	"context"
	"strconv"

	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/ai"
	"github.com/prajwalbharadwajbm/mailproof/internal/analytics"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/imageutil"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
	"golang.org/x/sync/errgroup"
)

// ProcessCampaign runs the content generator over the uploaded copy and images and
// stores resized images. Generator and resize failures degrade to fallbacks.
func (s *Service) ProcessCampaign(ctx context.Context, id string) (*models.ProcessResult, error) {
	start := s.now()

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus("process", c, editableStatuses...); err != nil {
		return nil, err
	}
	payload := c.AIProcessingData
	if payload.Logo == nil && len(payload.HeroImages) == 0 {
		return nil, apperror.Validation("campaign %s has no uploaded assets, upload assets first", c.ID)
	}

	logo, heroes := s.downloadAssets(ctx, c)

	in := ai.TextInput{
		SubjectLine: payload.Content.SubjectLine,
		BodyCopy:    payload.Content.BodyCopy,
		CTAText:     payload.Content.CTAText,
		History:     s.history(ctx),
	}

	var (
		text      models.TextOptimization
		analysis  models.ImageAnalysisSet
		optimized models.OptimizedImages
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text = s.generator.OptimizeText(gctx, in)
		return nil
	})
	g.Go(func() error {
		analysis = ai.AnalyzeImages(gctx, s.generator, visionInput(logo), visionInputs(heroes))
		return nil
	})
	g.Go(func() error {
		optimized = s.optimizeImages(gctx, c, logo, heroes)
		return nil
	})
	_ = g.Wait()

	result := &models.GenerationResult{
		TextOptimization: text,
		ImageAnalysis:    analysis,
		OptimizedImages:  optimized,
	}

	prev, oldProof := c.Status, c.ProofS3Path
	c.AIProcessingData.AIResults = result
	c.Status = models.StatusProcessed
	c.ProofS3Path = ""
	if err := s.save(ctx, "process", prev, c); err != nil {
		return nil, err
	}
	s.dropProof(ctx, c.ID, oldProof)

	elapsed := s.now().Sub(start)
	level.Info(s.logger).Log("msg", "campaign processed", "campaign_id", c.ID, "duration_ms", elapsed.Milliseconds(), "history_examples", len(in.History))

	return &models.ProcessResult{
		CampaignID:       c.ID,
		Status:           c.Status,
		PreviewURL:       "/api/v1/preview/" + c.ID,
		ProcessingTimeMs: elapsed.Milliseconds(),
		AISuggestions:    result,
	}, nil
}

// downloadAssets fetches the uploaded images concurrently. A failed download leaves a
// nil entry so hero order is kept.
func (s *Service) downloadAssets(ctx context.Context, c *models.Campaign) ([]byte, [][]byte) {
	payload := c.AIProcessingData
	var logo []byte
	heroes := make([][]byte, len(payload.HeroImages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	fetch := func(locator string, dst *[]byte) {
		if locator == "" {
			return
		}
		g.Go(func() error {
			data, err := s.store.Get(gctx, locator)
			if err != nil {
				level.Warn(s.logger).Log("msg", "failed to download asset", "campaign_id", c.ID, "locator", locator, "err", err)
				return nil
			}
			*dst = data
			return nil
		})
	}

	if payload.Logo != nil {
		fetch(payload.Logo.S3URL, &logo)
	}
	for i := range payload.HeroImages {
		fetch(payload.HeroImages[i].S3URL, &heroes[i])
	}
	_ = g.Wait()

	return logo, heroes
}

// optimizeImages resizes and uploads each image as JPEG. Any image that cannot be
// optimized keeps the original locator.
func (s *Service) optimizeImages(ctx context.Context, c *models.Campaign, logo []byte, heroes [][]byte) models.OptimizedImages {
	payload := c.AIProcessingData
	out := models.OptimizedImages{HeroImages: make([]string, len(payload.HeroImages))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	optimize := func(data []byte, original, name string, bounds imageutil.Bounds, dst *string) {
		*dst = original
		if data == nil {
			return
		}
		g.Go(func() error {
			resized, err := imageutil.Optimize(data, bounds)
			if err != nil {
				level.Warn(s.logger).Log("msg", "image optimization failed, using original", "campaign_id", c.ID, "image", name, "err", err)
				return nil
			}
			locator, err := s.store.Put(gctx, storage.OptimizedKey(c.ID, name), resized, "image/jpeg")
			if err != nil {
				level.Warn(s.logger).Log("msg", "optimized image upload failed, using original", "campaign_id", c.ID, "image", name, "err", err)
				return nil
			}
			*dst = locator
			return nil
		})
	}

	if payload.Logo != nil {
		optimize(logo, payload.Logo.S3URL, "logo.jpg", imageutil.LogoBounds, &out.Logo)
	}
	for i := range payload.HeroImages {
		optimize(heroes[i], payload.HeroImages[i].S3URL, "hero_"+strconv.Itoa(i)+".jpg", imageutil.HeroBounds, &out.HeroImages[i])
	}
	_ = g.Wait()

	return out
}

// history returns top performers for the prompt when enough scored campaigns exist.
func (s *Service) history(ctx context.Context) []ai.HistoricalExample {
	if !s.cfg.UseHistory {
		return nil
	}
	scored, err := s.repo.ListWithPerformance(ctx)
	if err != nil {
		level.Warn(s.logger).Log("msg", "failed to load performance history", "err", err)
		return nil
	}
	return analytics.Aggregate(scored).Examples()
}

// visionInput downsizes an image for the vision model, passing it through unchanged
// when it cannot be decoded.
func visionInput(data []byte) []byte {
	if data == nil {
		return nil
	}
	if small, err := imageutil.PrepareForVision(data); err == nil {
		return small
	}
	return data
}

// visionInputs keeps one entry per hero; heroes that failed to download stay nil.
func visionInputs(heroes [][]byte) [][]byte {
	out := make([][]byte, len(heroes))
	for i, h := range heroes {
		out[i] = visionInput(h)
	}
	return out
}
