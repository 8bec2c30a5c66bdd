// Package analytics aggregates the performance of approved campaigns and turns the
// patterns of the best performers into content recommendations.
package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prajwalbharadwajbm/mailproof/internal/ai"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

const (
	// MinCampaigns is the number of scored campaigns needed before patterns are reported.
	MinCampaigns = 5

	maxSamples         = 10
	maxRecommendations = 5
	maxExamples        = 5
	maxConfidence      = 0.95
)

// Sample is the copy of one top performer together with its metrics.
type Sample struct {
	Text             string
	PerformanceScore float64
	OpenRate         float64
	ClickRate        float64
	ConversionRate   float64
}

// TextPattern summarises one copy field across the top performers.
type TextPattern struct {
	Samples           []Sample
	AvgPerformance    float64
	AvgOpenRate       float64
	AvgClickRate      float64
	AvgConversionRate float64
	SampleCount       int
}

// ImagePattern summarises image usage across the top performers.
type ImagePattern struct {
	AvgHeroCount   float64
	AvgTotalImages float64
	AvgPerformance float64
	SampleCount    int
}

// Averages are computed over every scored campaign, not only the top performers.
type Averages struct {
	OpenRate         float64
	ClickRate        float64
	ConversionRate   float64
	PerformanceScore float64
}

// Report is the result of Aggregate. Pattern pointers are nil when no top performer
// carried the field.
type Report struct {
	Sufficient bool
	Total      int
	Subject    *TextPattern
	Preview    *TextPattern
	CTA        *TextPattern
	Images     *ImagePattern
	Overall    Averages

	top []models.Campaign
}

// Aggregate analyzes approved campaigns with a positive score. Fewer than
// MinCampaigns yields an insufficient report.
func Aggregate(campaigns []models.Campaign) Report {
	scored := make([]models.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if c.Status == models.StatusApproved && c.Score() > 0 {
			scored = append(scored, c)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score() > scored[j].Score() })

	r := Report{Total: len(scored)}
	if len(scored) < MinCampaigns {
		return r
	}

	r.Sufficient = true
	r.top = scored[:max(1, len(scored)/5)]
	r.Subject = textPattern(r.top, subjectOf)
	r.Preview = textPattern(r.top, func(c *models.Campaign) string { return c.AIProcessingData.Content.PreviewText })
	r.CTA = textPattern(r.top, func(c *models.Campaign) string { return c.AIProcessingData.Content.CTAText })
	r.Images = imagePattern(r.top)
	r.Overall = overall(scored)
	return r
}

// Examples returns the copy of up to five top performers for the text prompt.
func (r Report) Examples() []ai.HistoricalExample {
	if !r.Sufficient {
		return nil
	}
	out := make([]ai.HistoricalExample, 0, maxExamples)
	for i := range r.top {
		c := &r.top[i]
		ex := ai.HistoricalExample{
			SubjectLine:      subjectOf(c),
			PreviewText:      c.AIProcessingData.Content.PreviewText,
			CTAText:          c.AIProcessingData.Content.CTAText,
			PerformanceScore: c.Score(),
		}
		if ex.SubjectLine == "" && ex.PreviewText == "" && ex.CTAText == "" {
			continue
		}
		out = append(out, ex)
		if len(out) == maxExamples {
			break
		}
	}
	return out
}

// subjectOf prefers the submitted subject and falls back to the first generated one.
func subjectOf(c *models.Campaign) string {
	if s := c.AIProcessingData.Content.SubjectLine; s != "" {
		return s
	}
	if c.AIProcessingData.AIResults != nil {
		return c.AIProcessingData.AIResults.TextOptimization.PrimarySubject()
	}
	return ""
}

func textPattern(top []models.Campaign, field func(*models.Campaign) string) *TextPattern {
	var samples []Sample
	for i := range top {
		text := strings.TrimSpace(field(&top[i]))
		if text == "" {
			continue
		}
		open, click, conv := top[i].Rates()
		samples = append(samples, Sample{
			Text:             text,
			PerformanceScore: top[i].Score(),
			OpenRate:         open,
			ClickRate:        click,
			ConversionRate:   conv,
		})
	}
	if len(samples) == 0 {
		return nil
	}

	p := &TextPattern{SampleCount: len(samples)}
	for _, s := range samples {
		p.AvgPerformance += s.PerformanceScore
		p.AvgOpenRate += s.OpenRate
		p.AvgClickRate += s.ClickRate
		p.AvgConversionRate += s.ConversionRate
	}
	n := float64(len(samples))
	p.AvgPerformance /= n
	p.AvgOpenRate /= n
	p.AvgClickRate /= n
	p.AvgConversionRate /= n

	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	p.Samples = samples
	return p
}

func imagePattern(top []models.Campaign) *ImagePattern {
	p := &ImagePattern{}
	for i := range top {
		res := top[i].AIProcessingData.AIResults
		if res == nil {
			continue
		}
		heroes, total := imageCounts(res.OptimizedImages)
		p.AvgHeroCount += float64(heroes)
		p.AvgTotalImages += float64(total)
		p.AvgPerformance += top[i].Score()
		p.SampleCount++
	}
	if p.SampleCount == 0 {
		return nil
	}
	n := float64(p.SampleCount)
	p.AvgHeroCount /= n
	p.AvgTotalImages /= n
	p.AvgPerformance /= n
	return p
}

func imageCounts(images models.OptimizedImages) (heroes, total int) {
	heroes = len(images.HeroImages)
	total = heroes
	if images.Logo != "" {
		total++
	}
	return heroes, total
}

func overall(scored []models.Campaign) Averages {
	var a Averages
	for _, c := range scored {
		open, click, conv := c.Rates()
		a.OpenRate += open
		a.ClickRate += click
		a.ConversionRate += conv
		a.PerformanceScore += c.Score()
	}
	n := float64(len(scored))
	a.OpenRate /= n
	a.ClickRate /= n
	a.ConversionRate /= n
	a.PerformanceScore /= n
	return a
}

// Recommend builds suggestions for target from a report.
func Recommend(target *models.Campaign, r Report) models.Recommendations {
	rec := models.Recommendations{
		CampaignID:                 target.ID,
		SubjectLineRecommendations: []models.Recommendation{},
		PreviewTextRecommendations: []models.Recommendation{},
		CTATextRecommendations:     []models.Recommendation{},
		HistoricalDataAvailable:    r.Sufficient,
		TotalCampaignsAnalyzed:     r.Total,
	}
	if !r.Sufficient {
		return rec
	}

	rec.SubjectLineRecommendations = recommendText(r.Subject, "open", func(p *TextPattern) float64 { return p.AvgOpenRate })
	rec.PreviewTextRecommendations = recommendText(r.Preview, "open", func(p *TextPattern) float64 { return p.AvgOpenRate })
	rec.CTATextRecommendations = recommendText(r.CTA, "click", func(p *TextPattern) float64 { return p.AvgClickRate })
	rec.ContentStructureSuggestions = structureHints(target, r.Overall)
	rec.ImageOptimizationSuggestions = imageHints(target, r.Images)
	return rec
}

// Confidence maps an average performance score to a recommendation confidence.
func Confidence(avgPerformance float64) float64 {
	return min(maxConfidence, 0.7+avgPerformance*0.25)
}

func recommendText(p *TextPattern, rateName string, rate func(*TextPattern) float64) []models.Recommendation {
	out := []models.Recommendation{}
	if p == nil {
		return out
	}
	reasoning := fmt.Sprintf("Based on %d high-performing campaigns with average %s rate of %s",
		p.SampleCount, rateName, percent(rate(p)))
	for i, s := range p.Samples {
		if i == maxRecommendations {
			break
		}
		out = append(out, models.Recommendation{
			Content:         s.Text,
			ConfidenceScore: Confidence(p.AvgPerformance),
			Reasoning:       reasoning,
			BasedOnCount:    p.SampleCount,
		})
	}
	return out
}

func structureHints(target *models.Campaign, avg Averages) string {
	var hints []string

	body := target.AIProcessingData.Content.BodyCopy
	switch {
	case len(body) < 100:
		hints = append(hints, "Consider expanding body copy to 100-150 words for better engagement")
	case len(body) > 300:
		hints = append(hints, "Consider shortening body copy to 150-200 words for better readability")
	}
	if avg.OpenRate > 0.25 {
		hints = append(hints, "High-performing campaigns typically use clear, benefit-focused headlines")
	}
	if avg.ClickRate > 0.05 {
		hints = append(hints, "Strong CTAs placed prominently tend to improve click rates")
	}
	return strings.Join(hints, "; ")
}

func imageHints(target *models.Campaign, p *ImagePattern) string {
	if p == nil {
		return ""
	}

	var current models.OptimizedImages
	if target.AIProcessingData.AIResults != nil {
		current = target.AIProcessingData.AIResults.OptimizedImages
	}
	heroes := float64(len(current.HeroImages))

	var hints []string
	if current.Logo == "" {
		hints = append(hints, "Consider adding a logo for brand recognition")
	}
	switch {
	case heroes < p.AvgHeroCount:
		hints = append(hints, fmt.Sprintf("High-performing campaigns typically use %.1f hero images on average", p.AvgHeroCount))
	case heroes > p.AvgHeroCount+1:
		hints = append(hints, fmt.Sprintf("Consider reducing hero images to %d for optimal performance", int(p.AvgHeroCount)))
	}
	return strings.Join(hints, "; ")
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
