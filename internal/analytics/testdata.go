package analytics

import (
	"math/rand"

	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// Performance tiers used for synthetic data.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

type rateRange struct{ lo, hi float64 }

type tierRanges struct {
	open, click, conversion rateRange
}

var tiers = map[string]tierRanges{
	TierHigh:   {open: rateRange{0.25, 0.35}, click: rateRange{0.06, 0.10}, conversion: rateRange{0.03, 0.06}},
	TierMedium: {open: rateRange{0.15, 0.25}, click: rateRange{0.03, 0.06}, conversion: rateRange{0.01, 0.03}},
	TierLow:    {open: rateRange{0.08, 0.15}, click: rateRange{0.01, 0.03}, conversion: rateRange{0.005, 0.01}},
}

// TierCounts splits total campaigns into roughly 35% high, 45% medium and the rest low.
// High and medium get at least one campaign each while there are campaigns left.
func TierCounts(total int) (high, medium, low int) {
	if total <= 0 {
		return 0, 0, 0
	}
	high = min(total, max(1, int(float64(total)*0.35)))
	medium = min(total-high, max(1, int(float64(total)*0.45)))
	low = total - high - medium
	return high, medium, low
}

// GenerateTestData assigns synthetic metrics to campaigns in shuffled order. The input
// slice is not modified.
func GenerateTestData(campaigns []models.Campaign, rnd *rand.Rand) []models.GeneratedPerformance {
	shuffled := make([]models.Campaign, len(campaigns))
	copy(shuffled, campaigns)
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	high, medium, _ := TierCounts(len(shuffled))

	out := make([]models.GeneratedPerformance, 0, len(shuffled))
	for i, c := range shuffled {
		tier := TierLow
		switch {
		case i < high:
			tier = TierHigh
		case i < high+medium:
			tier = TierMedium
		}
		out = append(out, generate(c, tier, rnd))
	}
	return out
}

// Summary counts generated campaigns per tier.
func Summary(generated []models.GeneratedPerformance) map[string]int {
	summary := map[string]int{
		"high_performers":   0,
		"medium_performers": 0,
		"low_performers":    0,
	}
	for _, g := range generated {
		summary[g.Tier+"_performers"]++
	}
	return summary
}

func generate(c models.Campaign, tier string, rnd *rand.Rand) models.GeneratedPerformance {
	r := tiers[tier]
	open := models.Round3(uniform(rnd, r.open))
	click := models.Round3(uniform(rnd, r.click))
	conv := models.Round3(uniform(rnd, r.conversion))
	return models.GeneratedPerformance{
		CampaignID:       c.ID,
		CampaignName:     c.CampaignName,
		Tier:             tier,
		OpenRate:         open,
		ClickRate:        click,
		ConversionRate:   conv,
		PerformanceScore: models.Round3(models.PerformanceScore(open, click, conv)),
	}
}

func uniform(rnd *rand.Rand, r rateRange) float64 {
	return r.lo + rnd.Float64()*(r.hi-r.lo)
}
