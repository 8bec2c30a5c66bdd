package models

import (
	"math"
	"time"
)

// Performance score weights.
const (
	OpenRateWeight       = 0.4
	ClickRateWeight      = 0.3
	ConversionRateWeight = 0.3
)

// Performance holds engagement metrics reported for a sent campaign.
type Performance struct {
	OpenRate             *float64   `json:"open_rate,omitempty" db:"open_rate"`
	ClickRate            *float64   `json:"click_rate,omitempty" db:"click_rate"`
	ConversionRate       *float64   `json:"conversion_rate,omitempty" db:"conversion_rate"`
	PerformanceScore     *float64   `json:"performance_score,omitempty" db:"performance_score"`
	PerformanceTimestamp *time.Time `json:"performance_timestamp,omitempty" db:"performance_timestamp"`
}

// PerformanceScore is the weighted engagement score in [0,1].
func PerformanceScore(open, click, conversion float64) float64 {
	return open*OpenRateWeight + click*ClickRateWeight + conversion*ConversionRateWeight
}

// Round3 rounds to three decimals.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Score returns the stored score or 0.
func (p Performance) Score() float64 {
	if p.PerformanceScore == nil {
		return 0
	}
	return *p.PerformanceScore
}

// Rates returns the stored rates with missing values as 0.
func (p Performance) Rates() (open, click, conversion float64) {
	if p.OpenRate != nil {
		open = *p.OpenRate
	}
	if p.ClickRate != nil {
		click = *p.ClickRate
	}
	if p.ConversionRate != nil {
		conversion = *p.ConversionRate
	}
	return open, click, conversion
}

func (p Performance) clone() Performance {
	return Performance{
		OpenRate:             cloneFloat(p.OpenRate),
		ClickRate:            cloneFloat(p.ClickRate),
		ConversionRate:       cloneFloat(p.ConversionRate),
		PerformanceScore:     cloneFloat(p.PerformanceScore),
		PerformanceTimestamp: cloneTime(p.PerformanceTimestamp),
	}
}
