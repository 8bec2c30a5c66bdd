package service

import (
	"context"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// CampaignRepository persists campaign records.
//
// Update is a version-checked full replace: it succeeds only when the stored version
// equals c.Version, then increments c.Version. A mismatch fails with an
// apperror Conflict, a missing record with NotFound.
type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	Get(ctx context.Context, id string) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	// List returns one page, newest first, and the total number of matches.
	List(ctx context.Context, filter models.ListFilter) ([]models.Campaign, int, error)
	// ListDueScheduled returns scheduled campaigns with scheduled_at <= now, oldest first.
	ListDueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error)
	// ListWithPerformance returns approved campaigns with a positive score, best first.
	ListWithPerformance(ctx context.Context) ([]models.Campaign, error)
	ListApprovedWithoutPerformance(ctx context.Context) ([]models.Campaign, error)
}
