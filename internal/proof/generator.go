// Package proof renders campaign proofs and final HTML, uploads them to the artifact
// store and memoizes proofs in the proof cache.
package proof

import (
	"context"
	"errors"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/render"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
	"golang.org/x/sync/errgroup"
)

const htmlContentType = "text/html; charset=utf-8"

// Config holds presigned URL lifetimes.
type Config struct {
	PreviewURLTTL  time.Duration
	DownloadURLTTL time.Duration
}

// Observer receives proof timings. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveProof(cached bool, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveProof(bool, time.Duration) {}

// Generator produces proofs and final HTML for campaigns.
type Generator struct {
	store    storage.Store
	cache    cache.ProofCache
	renderer render.Renderer
	cfg      Config
	observer Observer
	logger   kitlog.Logger
	now      func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithObserver reports cache hits and render durations to o.
func WithObserver(o Observer) Option {
	return func(g *Generator) { g.observer = o }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator wires a Generator.
func NewGenerator(store storage.Store, proofCache cache.ProofCache, renderer render.Renderer, cfg Config, logger kitlog.Logger, opts ...Option) *Generator {
	if cfg.PreviewURLTTL <= 0 {
		cfg.PreviewURLTTL = time.Hour
	}
	if cfg.DownloadURLTTL <= 0 {
		cfg.DownloadURLTTL = 24 * time.Hour
	}
	g := &Generator{
		store:    store,
		cache:    proofCache,
		renderer: renderer,
		cfg:      cfg,
		observer: nopObserver{},
		logger:   kitlog.With(logger, "component", "proof"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the proof for c. With useCache a cached proof is returned as is and
// a fresh one is stored; without it the entry is dropped and the proof always re-rendered
// and re-uploaded.
//
// generation must come from ProofCache.Reserve called before c was loaded, so an edit
// persisted after the load keeps the render out of the cache.
func (g *Generator) Generate(ctx context.Context, c *models.Campaign, generation uint64, useCache bool) (*models.ProofResult, error) {
	if err := checkRenderable(c); err != nil {
		return nil, err
	}

	if useCache {
		cached, err := g.cache.Get(ctx, c.ID)
		if err == nil {
			level.Debug(g.logger).Log("msg", "proof served from cache", "campaign_id", c.ID)
			g.observer.ObserveProof(true, 0)
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			level.Warn(g.logger).Log("msg", "proof cache lookup failed", "campaign_id", c.ID, "err", err)
		}
	} else if err := g.cache.Invalidate(ctx, c.ID); err != nil {
		level.Warn(g.logger).Log("msg", "proof cache invalidation failed", "campaign_id", c.ID, "err", err)
	}

	start := g.now()

	assets := g.resolveAssets(ctx, c, g.cfg.PreviewURLTTL)
	html, err := g.renderer.Render(render.NewInput(c, assets))
	if err != nil {
		return nil, apperror.Internal("failed to render proof", err)
	}

	locator, err := g.store.Put(ctx, storage.ProofKey(c.ID), []byte(html), htmlContentType)
	if err != nil {
		return nil, apperror.Upstream("failed to upload proof", err)
	}

	elapsed := g.now().Sub(start)
	result := &models.ProofResult{
		HTML:             html,
		ProofS3URL:       locator,
		Preview:          buildPreview(c, html, locator, assets, g.now().UTC()),
		GenerationTimeMs: elapsed.Milliseconds(),
	}
	g.observer.ObserveProof(false, elapsed)

	if useCache {
		if err := g.cache.Set(ctx, c.ID, generation, result); err != nil {
			// A stale write means the campaign changed mid-render; the result is still
			// returned but not memoized.
			level.Warn(g.logger).Log("msg", "proof not cached", "campaign_id", c.ID, "err", err)
		}
	}

	level.Info(g.logger).Log("msg", "proof generated", "campaign_id", c.ID, "cached", useCache, "duration_ms", result.GenerationTimeMs)
	return result, nil
}

// RenderFinal renders the production HTML fresh, uploads it and presigns a download URL.
func (g *Generator) RenderFinal(ctx context.Context, c *models.Campaign) (*models.FinalHTML, error) {
	if !c.HasGenerationResults() {
		return nil, apperror.Validation("campaign %s has no generated content", c.ID)
	}

	assets := g.resolveAssets(ctx, c, g.cfg.DownloadURLTTL)
	html, err := g.renderer.Render(render.NewInput(c, assets))
	if err != nil {
		return nil, apperror.Internal("failed to render final HTML", err)
	}

	locator, err := g.store.Put(ctx, storage.FinalHTMLKey(c.ID), []byte(html), htmlContentType)
	if err != nil {
		return nil, apperror.Upstream("failed to upload final HTML", err)
	}

	downloadURL, err := g.store.Presign(ctx, locator, g.cfg.DownloadURLTTL)
	if err != nil {
		return nil, apperror.Upstream("failed to presign final HTML", err)
	}

	return &models.FinalHTML{HTML: html, S3URL: locator, DownloadURL: downloadURL}, nil
}

// PresignAssets returns short-lived URLs for the campaign's uploaded originals.
func (g *Generator) PresignAssets(ctx context.Context, c *models.Campaign) (string, []string) {
	var logo string
	if c.AIProcessingData.Logo != nil {
		logo = c.AIProcessingData.Logo.S3URL
	}
	heroes := make([]string, len(c.AIProcessingData.HeroImages))
	for i, h := range c.AIProcessingData.HeroImages {
		heroes[i] = h.S3URL
	}
	assets := g.presignAll(ctx, c.ID, logo, heroes, g.cfg.PreviewURLTTL)
	return assets.LogoURL, compact(assets.HeroURLs)
}

func checkRenderable(c *models.Campaign) error {
	if !c.CanPreview() {
		return apperror.Validation("campaign must be processed or ready to generate a proof, current status: %s", c.Status)
	}
	if !c.HasGenerationResults() {
		return apperror.Validation("campaign %s has no generated content", c.ID)
	}
	return nil
}

// resolveAssets presigns the optimized images, falling back to the uploaded originals
// when no optimized locator is recorded.
func (g *Generator) resolveAssets(ctx context.Context, c *models.Campaign, ttl time.Duration) render.Assets {
	payload := c.AIProcessingData
	var optimized models.OptimizedImages
	if payload.AIResults != nil {
		optimized = payload.AIResults.OptimizedImages
	}

	logo := optimized.Logo
	if logo == "" && payload.Logo != nil {
		logo = payload.Logo.S3URL
	}

	heroes := make([]string, len(payload.HeroImages))
	for i, h := range payload.HeroImages {
		heroes[i] = h.S3URL
		if i < len(optimized.HeroImages) && optimized.HeroImages[i] != "" {
			heroes[i] = optimized.HeroImages[i]
		}
	}
	// optimized heroes without a matching original still render
	for i := len(payload.HeroImages); i < len(optimized.HeroImages); i++ {
		heroes = append(heroes, optimized.HeroImages[i])
	}

	return g.presignAll(ctx, c.ID, logo, heroes, ttl)
}

// presignAll presigns every locator concurrently. Failures leave an empty URL.
func (g *Generator) presignAll(ctx context.Context, campaignID, logo string, heroes []string, ttl time.Duration) render.Assets {
	assets := render.Assets{HeroURLs: make([]string, len(heroes))}

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	presign := func(locator string, dst *string) {
		if locator == "" {
			return
		}
		eg.Go(func() error {
			url, err := g.store.Presign(egctx, locator, ttl)
			if err != nil {
				level.Warn(g.logger).Log("msg", "presign failed, image omitted", "campaign_id", campaignID, "locator", locator, "err", err)
				return nil
			}
			*dst = url
			return nil
		})
	}

	presign(logo, &assets.LogoURL)
	for i := range heroes {
		presign(heroes[i], &assets.HeroURLs[i])
	}
	_ = eg.Wait()

	return assets
}

func buildPreview(c *models.Campaign, html, locator string, assets render.Assets, now time.Time) models.PreviewPayload {
	var text models.TextOptimization
	var analysis models.ImageAnalysisSet
	if c.AIProcessingData.AIResults != nil {
		text = c.AIProcessingData.AIResults.TextOptimization
		analysis = c.AIProcessingData.AIResults.ImageAnalysis
	}

	alts := models.ImageAltTexts{HeroImages: make([]string, 0, len(analysis.HeroImages))}
	if analysis.Logo != nil {
		alts.Logo = analysis.Logo.AltText
	}
	for _, a := range analysis.HeroImages {
		alts.HeroImages = append(alts.HeroImages, a.AltText)
	}

	previewText := text.PreviewText
	if previewText == "" {
		previewText = c.AIProcessingData.Content.PreviewText
	}

	return models.PreviewPayload{
		CampaignID:  c.ID,
		HTMLPreview: html,
		Assets: models.PreviewAssets{
			LogoURL:       assets.LogoURL,
			HeroImageURLs: compact(assets.HeroURLs),
		},
		AISuggestions: models.AISuggestions{
			SubjectLines:   text.SubjectLines,
			PreviewText:    text.PreviewText,
			Headline:       text.Headline,
			BodyParagraphs: text.BodyParagraphs,
			CTAText:        text.CTAText,
			ImageAltTexts:  alts,
			Suggestions:    text.Suggestions,
		},
		Metadata: models.PreviewMetadata{
			CampaignName:   c.CampaignName,
			AdvertiserName: c.AdvertiserName,
			SubjectLine:    text.PrimarySubject(),
			PreviewText:    previewText,
			GeneratedAt:    now,
			ProofS3URL:     locator,
		},
	}
}

func compact(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}
