package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/analytics"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// UpdatePerformance stores engagement metrics and recomputes the score. Missing
// rates keep their stored value.
func (s *Service) UpdatePerformance(ctx context.Context, id string, req models.PerformanceRequest) (*models.PerformanceResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	open, click, conv := c.Rates()
	if req.OpenRate != nil {
		open = *req.OpenRate
	}
	if req.ClickRate != nil {
		click = *req.ClickRate
	}
	if req.ConversionRate != nil {
		conv = *req.ConversionRate
	}
	setPerformance(c, open, click, conv, models.PerformanceScore(open, click, conv), s.now().UTC())

	if err := s.save(ctx, "update_performance", c.Status, c); err != nil {
		return nil, err
	}
	return &models.PerformanceResult{
		CampaignID:           c.ID,
		OpenRate:             c.OpenRate,
		ClickRate:            c.ClickRate,
		ConversionRate:       c.ConversionRate,
		PerformanceScore:     c.Score(),
		PerformanceTimestamp: *c.PerformanceTimestamp,
		Message:              "Performance metrics updated successfully",
	}, nil
}

func setPerformance(c *models.Campaign, open, click, conv, score float64, at time.Time) {
	c.OpenRate = &open
	c.ClickRate = &click
	c.ConversionRate = &conv
	c.PerformanceScore = &score
	c.PerformanceTimestamp = &at
}

// GenerateTestPerformanceData assigns synthetic metrics to approved campaigns that
// have no score yet. Campaigns that fail to save are skipped and logged.
func (s *Service) GenerateTestPerformanceData(ctx context.Context) (*models.TestDataSummary, error) {
	candidates, err := s.repo.ListApprovedWithoutPerformance(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &models.TestDataSummary{
			Generated: 0,
			Message:   "No approved campaigns found without performance data",
			Summary:   analytics.Summary(nil),
			Campaigns: []models.GeneratedPerformance{},
		}, nil
	}

	s.rndMu.Lock()
	assigned := analytics.GenerateTestData(candidates, s.rnd)
	s.rndMu.Unlock()

	byID := make(map[string]*models.Campaign, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	now := s.now().UTC()
	generated := make([]models.GeneratedPerformance, 0, len(assigned))
	for _, g := range assigned {
		c := byID[g.CampaignID]
		setPerformance(c, g.OpenRate, g.ClickRate, g.ConversionRate, g.PerformanceScore, now)
		if err := s.save(ctx, "generate_test_performance", c.Status, c); err != nil {
			level.Warn(s.logger).Log("msg", "failed to store test performance data", "campaign_id", c.ID, "err", err)
			continue
		}
		generated = append(generated, g)
	}

	return &models.TestDataSummary{
		Generated: len(generated),
		Message:   fmt.Sprintf("Successfully generated test performance data for %d campaigns", len(generated)),
		Summary:   analytics.Summary(generated),
		Campaigns: generated,
	}, nil
}

// Recommendations suggests copy for a campaign based on past top performers.
func (s *Service) Recommendations(ctx context.Context, id string) (*models.Recommendations, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	scored, err := s.repo.ListWithPerformance(ctx)
	if err != nil {
		return nil, err
	}
	rec := analytics.Recommend(c, analytics.Aggregate(scored))
	return &rec, nil
}
