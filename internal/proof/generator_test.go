package proof

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/render"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "test-bucket"

type fixture struct {
	store    *storage.MemoryStore
	cache    *cache.HybridCache
	gen      *Generator
	observer *countingObserver
}

type countingObserver struct {
	mu      sync.Mutex
	hits    int
	renders int
}

func (o *countingObserver) ObserveProof(cached bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cached {
		o.hits++
	} else {
		o.renders++
	}
}

func newFixture(t *testing.T, renderer render.Renderer) *fixture {
	t.Helper()
	store := storage.NewMemoryStore(bucket)
	proofCache, err := cache.NewHybridCache(cache.CacheConfig{MemoryCacheSize: 10, EnableMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { proofCache.Close() })

	if renderer == nil {
		renderer, err = render.NewLiquidRenderer()
		require.NoError(t, err)
	}
	observer := &countingObserver{}
	gen := NewGenerator(store, proofCache, renderer, Config{}, kitlog.NewNopLogger(), WithObserver(observer))
	return &fixture{store: store, cache: proofCache, gen: gen, observer: observer}
}

func (f *fixture) campaign(t *testing.T) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	logo, err := f.store.Put(ctx, "optimized/c-1/logo.jpg", []byte("logo"), "image/jpeg")
	require.NoError(t, err)
	hero0, err := f.store.Put(ctx, "optimized/c-1/hero_0.jpg", []byte("h0"), "image/jpeg")
	require.NoError(t, err)
	hero1, err := f.store.Put(ctx, "assets/c-1/hero2.png", []byte("h1"), "image/png")
	require.NoError(t, err)

	return &models.Campaign{
		ID:             "c-1",
		CampaignName:   "Spring Sale",
		AdvertiserName: "Acme",
		Status:         models.StatusProcessed,
		AIProcessingData: models.AIPayload{
			Content: models.UploadedContent{SubjectLine: "Sale", PreviewText: "Original preview", CTAURL: "https://acme.test"},
			Logo:    &models.AssetMetadata{Filename: "logo.png", S3URL: storage.Locator(bucket, "assets/c-1/logo.png")},
			HeroImages: []models.AssetMetadata{
				{Filename: "hero1.png", S3URL: storage.Locator(bucket, "assets/c-1/hero1.png")},
				{Filename: "hero2.png", S3URL: hero1},
			},
			AIResults: &models.GenerationResult{
				TextOptimization: models.TextOptimization{
					SubjectLines:   []string{"Spring savings", "Save big", "Last call"},
					PreviewText:    "Everything 20% off",
					Headline:       "Spring is here",
					BodyParagraphs: []string{"Fresh deals for the season."},
					CTAText:        "Shop Now",
					Suggestions:    "Add urgency",
				},
				ImageAnalysis: models.ImageAnalysisSet{
					Logo:       &models.ImageAnalysis{AltText: "Acme logo"},
					HeroImages: []models.ImageAnalysis{{AltText: "Flowers"}, {AltText: "Shoes"}},
				},
				OptimizedImages: models.OptimizedImages{Logo: logo, HeroImages: []string{hero0}},
			},
		},
	}
}

func (f *fixture) generate(ctx context.Context, c *models.Campaign, useCache bool) (*models.ProofResult, error) {
	return f.gen.Generate(ctx, c, f.cache.Reserve(c.ID), useCache)
}

func TestGenerate_Preconditions(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		mutate func(c *models.Campaign)
	}{
		{"uploaded status", func(c *models.Campaign) { c.Status = models.StatusUploaded }},
		{"approved status", func(c *models.Campaign) { c.Status = models.StatusApproved }},
		{"no generation results", func(c *models.Campaign) { c.AIProcessingData.AIResults = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := f.campaign(t)
			tt.mutate(c)

			_, err := f.generate(context.Background(), c, true)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindValidation))
			assert.Equal(t, 0, f.store.PutCount(storage.ProofKey(c.ID)))
		})
	}
}

func TestGenerate_CacheHitSkipsRenderAndUpload(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	ctx := context.Background()

	first, err := f.generate(ctx, c, true)
	require.NoError(t, err)
	second, err := f.generate(ctx, c, true)
	require.NoError(t, err)

	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, 1, f.store.PutCount(storage.ProofKey(c.ID)))
	assert.Equal(t, "text/html; charset=utf-8", f.store.ContentType(storage.ProofKey(c.ID)))
	assert.Equal(t, 1, f.observer.renders)
	assert.Equal(t, 1, f.observer.hits)
}

func TestGenerate_WithoutCacheAlwaysReuploads(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	ctx := context.Background()

	_, err := f.generate(ctx, c, true)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.generate(ctx, c, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.store.PutCount(storage.ProofKey(c.ID)))

	// regeneration dropped the entry and did not write a new one
	_, err = f.cache.Get(ctx, c.ID)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestGenerate_PreviewPayload(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)

	res, err := f.generate(context.Background(), c, true)
	require.NoError(t, err)

	p := res.Preview
	assert.Equal(t, "c-1", p.CampaignID)
	assert.Equal(t, res.HTML, p.HTMLPreview)
	assert.Equal(t, storage.Locator(bucket, storage.ProofKey("c-1")), res.ProofS3URL)
	assert.Equal(t, res.ProofS3URL, p.Metadata.ProofS3URL)
	assert.Equal(t, "Spring savings", p.Metadata.SubjectLine)
	assert.Equal(t, "Everything 20% off", p.Metadata.PreviewText)
	assert.Equal(t, "Spring Sale", p.Metadata.CampaignName)
	assert.Equal(t, "Acme logo", p.AISuggestions.ImageAltTexts.Logo)
	assert.Equal(t, []string{"Flowers", "Shoes"}, p.AISuggestions.ImageAltTexts.HeroImages)
	assert.Equal(t, "Add urgency", p.AISuggestions.Suggestions)

	assert.Contains(t, p.Assets.LogoURL, "optimized/c-1/logo.jpg")
	require.Len(t, p.Assets.HeroImageURLs, 2)
	assert.Contains(t, p.Assets.HeroImageURLs[0], "optimized/c-1/hero_0.jpg")
	assert.Contains(t, p.Assets.HeroImageURLs[1], "assets/c-1/hero2.png", "missing optimized hero falls back to the original")
	assert.Contains(t, res.HTML, `alt="Flowers"`)
}

func TestGenerate_PresignFailureOmitsImage(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	f.store.Fail = func(op, key string) error {
		if op == "presign" && strings.Contains(key, "hero_0") {
			return errors.New("denied")
		}
		return nil
	}

	res, err := f.generate(context.Background(), c, true)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Preview.Assets.LogoURL)
	require.Len(t, res.Preview.Assets.HeroImageURLs, 1)
	assert.Contains(t, res.Preview.Assets.HeroImageURLs[0], "hero2.png")
}

func TestGenerate_UploadFailure(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	f.store.Fail = func(op, key string) error {
		if op == "put" {
			return errors.New("s3 unavailable")
		}
		return nil
	}

	_, err := f.generate(context.Background(), c, true)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUpstream))

	_, err = f.cache.Get(context.Background(), c.ID)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

type failingRenderer struct{}

func (failingRenderer) Render(render.Input) (string, error) {
	return "", errors.New("template exploded")
}

func TestGenerate_RenderFailure(t *testing.T) {
	f := newFixture(t, failingRenderer{})
	c := f.campaign(t)

	_, err := f.generate(context.Background(), c, true)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInternal))
	assert.Equal(t, 0, f.store.PutCount(storage.ProofKey(c.ID)))
}

// invalidatingRenderer simulates an edit landing while a proof is being rendered.
type invalidatingRenderer struct {
	inner render.Renderer
	cache cache.ProofCache
	id    string
}

func (r invalidatingRenderer) Render(in render.Input) (string, error) {
	_ = r.cache.Invalidate(context.Background(), r.id)
	return r.inner.Render(in)
}

func TestGenerate_InvalidationDuringRenderIsNotCached(t *testing.T) {
	f := newFixture(t, nil)
	inner, err := render.NewLiquidRenderer()
	require.NoError(t, err)
	f.gen.renderer = invalidatingRenderer{inner: inner, cache: f.cache, id: "c-1"}
	c := f.campaign(t)

	_, err = f.generate(context.Background(), c, true)
	require.NoError(t, err)

	_, err = f.cache.Get(context.Background(), c.ID)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, int64(1), f.cache.GetStats().StaleWrites)
}

func TestGenerate_SnapshotOlderThanInvalidationIsNotCached(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	ctx := context.Background()

	generation := f.cache.Reserve(c.ID)
	require.NoError(t, f.cache.Invalidate(ctx, c.ID))

	res, err := f.gen.Generate(ctx, c, generation, true)
	require.NoError(t, err)
	assert.NotEmpty(t, res.HTML)

	_, err = f.cache.Get(ctx, c.ID)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, int64(1), f.cache.GetStats().StaleWrites)
}

func TestRenderFinal(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	c.Status = models.StatusReady

	final, err := f.gen.RenderFinal(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, storage.Locator(bucket, storage.FinalHTMLKey("c-1")), final.S3URL)
	assert.Contains(t, final.DownloadURL, "html/c-1/final.html")
	assert.Contains(t, final.HTML, "Spring is here")
	assert.Equal(t, 1, f.store.PutCount(storage.FinalHTMLKey("c-1")))

	// a second approval renders again instead of reusing anything
	_, err = f.gen.RenderFinal(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.PutCount(storage.FinalHTMLKey("c-1")))
}

func TestRenderFinal_RequiresGenerationResults(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	c.AIProcessingData.AIResults = nil

	_, err := f.gen.RenderFinal(context.Background(), c)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, 0, f.store.PutCount(storage.FinalHTMLKey("c-1")))
}

func TestPresignAssets(t *testing.T) {
	f := newFixture(t, nil)
	c := f.campaign(t)
	ctx := context.Background()
	_, err := f.store.Put(ctx, "assets/c-1/logo.png", []byte("l"), "image/png")
	require.NoError(t, err)

	logo, heroes := f.gen.PresignAssets(ctx, c)

	assert.Contains(t, logo, "assets/c-1/logo.png")
	assert.Len(t, heroes, 2)
}
