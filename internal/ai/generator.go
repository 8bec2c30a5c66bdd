// Package ai rewrites campaign copy and describes campaign images. Every call
// degrades to deterministic fallback content instead of returning an error.
package ai

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"golang.org/x/sync/errgroup"
)

// Generator produces optimized copy and image analyses.
type Generator interface {
	OptimizeText(ctx context.Context, in TextInput) models.TextOptimization
	AnalyzeImage(ctx context.Context, data []byte, label string) models.ImageAnalysis
}

// TextInput is the copy submitted with a campaign plus optional high performers
// from past campaigns used as inspiration.
type TextInput struct {
	SubjectLine string
	BodyCopy    string
	CTAText     string
	History     []HistoricalExample
}

// HistoricalExample is the copy of one high-performing past campaign.
type HistoricalExample struct {
	SubjectLine      string
	PreviewText      string
	CTAText          string
	PerformanceScore float64
}

const (
	// LogoLabel names the logo in prompts and fallbacks.
	LogoLabel        = "logo"
	subjectVariants  = 3
	maxHistoryInText = 5
)

// HeroLabel names the i-th (0-based) hero image.
func HeroLabel(i int) string {
	return "hero image " + strconv.Itoa(i+1)
}

// AnalyzeImages runs AnalyzeImage over the logo and hero images concurrently,
// keeping hero order. A nil logo yields a nil logo analysis; a nil hero keeps its
// slot with the fallback analysis.
func AnalyzeImages(ctx context.Context, gen Generator, logo []byte, heroes [][]byte) models.ImageAnalysisSet {
	set := models.ImageAnalysisSet{HeroImages: make([]models.ImageAnalysis, len(heroes))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	if logo != nil {
		g.Go(func() error {
			a := gen.AnalyzeImage(gctx, logo, LogoLabel)
			set.Logo = &a
			return nil
		})
	}
	for i, data := range heroes {
		if data == nil {
			set.HeroImages[i] = FallbackImage(HeroLabel(i))
			continue
		}
		g.Go(func() error {
			set.HeroImages[i] = gen.AnalyzeImage(gctx, data, HeroLabel(i))
			return nil
		})
	}
	_ = g.Wait()

	return set
}

// FallbackText derives usable copy from the raw input alone.
func FallbackText(in TextInput) models.TextOptimization {
	subject := in.SubjectLine
	if subject == "" {
		subject = "Email Campaign"
	}

	preview := "Check out our latest offer!"
	if in.SubjectLine != "" {
		preview = truncate(in.SubjectLine, 90)
	}

	headline := "Special Offer"
	if in.BodyCopy != "" {
		first, _, _ := strings.Cut(in.BodyCopy, ".")
		if h := strings.TrimSpace(truncate(first, 50)); h != "" {
			headline = h
		}
	}

	body := in.BodyCopy
	if body == "" {
		body = "Thank you for your interest."
	}

	cta := in.CTAText
	if cta == "" {
		cta = "Learn More"
	}

	subjects := make([]string, subjectVariants)
	for i := range subjects {
		subjects[i] = subject
	}

	return models.TextOptimization{
		SubjectLines:   subjects,
		PreviewText:    preview,
		Headline:       headline,
		BodyParagraphs: []string{body},
		CTAText:        cta,
		Suggestions:    "Content processed with fallback",
	}
}

// FallbackImage is the analysis used when the vision model is unavailable.
func FallbackImage(label string) models.ImageAnalysis {
	alt := "Company logo"
	if label != LogoLabel {
		alt = capitalize(label)
	}
	return models.ImageAnalysis{
		AltText:      alt,
		ContainsText: false,
		Quality:      "fair",
	}
}

// normalizeText fills gaps in a model response from the fallback so the result always
// carries three subject lines and non-empty fields.
func normalizeText(got models.TextOptimization, in TextInput) models.TextOptimization {
	fb := FallbackText(in)

	var subjects []string
	for _, s := range got.SubjectLines {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) == 0 {
		subjects = fb.SubjectLines
	}
	for len(subjects) < subjectVariants {
		subjects = append(subjects, subjects[0])
	}
	got.SubjectLines = subjects[:subjectVariants]

	if strings.TrimSpace(got.PreviewText) == "" {
		got.PreviewText = fb.PreviewText
	}
	if strings.TrimSpace(got.Headline) == "" {
		got.Headline = fb.Headline
	}
	var paragraphs []string
	for _, p := range got.BodyParagraphs {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		paragraphs = fb.BodyParagraphs
	}
	got.BodyParagraphs = paragraphs
	if strings.TrimSpace(got.CTAText) == "" {
		got.CTAText = fb.CTAText
	}
	return got
}

func normalizeImage(got models.ImageAnalysis, label string) models.ImageAnalysis {
	if strings.TrimSpace(got.AltText) == "" {
		got.AltText = FallbackImage(label).AltText
	}
	switch got.Quality {
	case "good", "fair", "poor":
	default:
		got.Quality = "fair"
	}
	if got.CropSuggestion != nil && strings.TrimSpace(*got.CropSuggestion) == "" {
		got.CropSuggestion = nil
	}
	return got
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}
