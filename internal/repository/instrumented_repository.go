package repository

import (
	"context"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/metrics"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
)

// InstrumentedRepository wraps a repository with metrics collection
type InstrumentedRepository struct {
	next    service.CampaignRepository
	metrics *metrics.Metrics
}

// NewInstrumentedRepository creates a new instrumented repository
func NewInstrumentedRepository(repo service.CampaignRepository, metrics *metrics.Metrics) service.CampaignRepository {
	return &InstrumentedRepository{
		next:    repo,
		metrics: metrics,
	}
}

func (r *InstrumentedRepository) record(operation string, err error) {
	r.metrics.RecordDatabaseQuery(operation, campaignsTable)
	if err == nil {
		return
	}
	// expected outcomes are not database errors
	switch apperror.KindOf(err) {
	case apperror.KindNotFound, apperror.KindConflict:
		return
	}
	r.metrics.RecordDatabaseError(operation, "query_error")
}

func (r *InstrumentedRepository) Create(ctx context.Context, c *models.Campaign) (err error) {
	defer func() { r.record("insert", err) }()
	return r.next.Create(ctx, c)
}

func (r *InstrumentedRepository) Get(ctx context.Context, id string) (c *models.Campaign, err error) {
	defer func() { r.record("select", err) }()
	return r.next.Get(ctx, id)
}

func (r *InstrumentedRepository) Update(ctx context.Context, c *models.Campaign) (err error) {
	defer func() { r.record("update", err) }()
	return r.next.Update(ctx, c)
}

func (r *InstrumentedRepository) List(ctx context.Context, filter models.ListFilter) (campaigns []models.Campaign, total int, err error) {
	defer func() { r.record("list", err) }()
	return r.next.List(ctx, filter)
}

func (r *InstrumentedRepository) ListDueScheduled(ctx context.Context, now time.Time) (campaigns []models.Campaign, err error) {
	defer func() { r.record("list_due", err) }()
	return r.next.ListDueScheduled(ctx, now)
}

func (r *InstrumentedRepository) ListWithPerformance(ctx context.Context) (campaigns []models.Campaign, err error) {
	defer func() { r.record("list_performance", err) }()
	return r.next.ListWithPerformance(ctx)
}

func (r *InstrumentedRepository) ListApprovedWithoutPerformance(ctx context.Context) (campaigns []models.Campaign, err error) {
	defer func() { r.record("list_unscored", err) }()
	return r.next.ListApprovedWithoutPerformance(ctx)
}
