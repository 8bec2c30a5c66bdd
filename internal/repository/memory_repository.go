package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
)

// MemoryRepository implements service.CampaignRepository in process memory. Records
// are cloned on the way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
}

var _ service.CampaignRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{campaigns: make(map[string]*models.Campaign)}
}

func (r *MemoryRepository) Create(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.campaigns[c.ID]; exists {
		return apperror.Conflict(c.ID)
	}
	c.Version = 1
	r.campaigns[c.ID] = c.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, apperror.NotFound(id)
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *models.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.campaigns[c.ID]
	if !ok {
		return apperror.NotFound(c.ID)
	}
	if stored.Version != c.Version {
		return apperror.Conflict(c.ID)
	}

	next := c.Clone()
	next.CreatedAt = stored.CreatedAt
	next.Version++
	r.campaigns[c.ID] = next
	c.Version = next.Version
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Campaign, int, error) {
	filter.Normalize()

	matched := r.collect(func(c *models.Campaign) bool {
		if filter.Status != "" && c.Status != filter.Status {
			return false
		}
		if filter.ReviewStatus != models.ReviewNone {
			return c.ReviewStatus == filter.ReviewStatus
		}
		return !filter.OnlyReviewed || c.ReviewStatus != models.ReviewNone
	})
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []models.Campaign{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *MemoryRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	due := r.collect(func(c *models.Campaign) bool { return c.IsDue(now) })
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	return due, nil
}

func (r *MemoryRepository) ListWithPerformance(ctx context.Context) ([]models.Campaign, error) {
	scored := r.collect(func(c *models.Campaign) bool {
		return c.Status == models.StatusApproved && c.Score() > 0
	})
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score() > scored[j].Score()
	})
	return scored, nil
}

func (r *MemoryRepository) ListApprovedWithoutPerformance(ctx context.Context) ([]models.Campaign, error) {
	unscored := r.collect(func(c *models.Campaign) bool {
		return c.Status == models.StatusApproved && c.Score() == 0
	})
	sort.SliceStable(unscored, func(i, j int) bool {
		return unscored[i].CreatedAt.Before(unscored[j].CreatedAt)
	})
	return unscored, nil
}

func (r *MemoryRepository) collect(match func(c *models.Campaign) bool) []models.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Campaign, 0)
	for _, c := range r.campaigns {
		if match(c) {
			out = append(out, *c.Clone())
		}
	}
	return out
}
