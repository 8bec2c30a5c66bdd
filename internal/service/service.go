package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prajwalbharadwajbm/mailproof/internal/ai"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
)

// CampaignService is the campaign workflow: the only place status transitions happen.
type CampaignService interface {
	UploadCampaign(ctx context.Context, req models.UploadRequest) (*models.Campaign, error)
	ProcessCampaign(ctx context.Context, id string) (*models.ProcessResult, error)
	UpdateContent(ctx context.Context, id string, edit models.ContentEdit) (*models.Campaign, error)
	ReplaceImage(ctx context.Context, id string, req models.ReplaceImageRequest) (*models.ImageReplaceResult, error)

	GenerateProof(ctx context.Context, id string) (*models.ProofResult, error)
	RegenerateProof(ctx context.Context, id string) (*models.ProofResult, error)
	GetPreview(ctx context.Context, id string) (*models.PreviewPayload, error)

	Decide(ctx context.Context, id string, req models.DecisionRequest) (*models.DecisionResult, error)
	ResetCampaign(ctx context.Context, id string, clearFeedback bool) (*models.Campaign, error)
	ReviewCampaign(ctx context.Context, id string, req models.ReviewRequest) (*models.Campaign, error)

	ScheduleCampaign(ctx context.Context, id string, req models.ScheduleRequest) (*models.Campaign, error)
	CancelSchedule(ctx context.Context, id string) (*models.Campaign, error)
	MarkSent(ctx context.Context, id string) (*models.Campaign, error)
	DueCampaigns(ctx context.Context, now time.Time) ([]models.Campaign, error)

	GetCampaign(ctx context.Context, id string) (*models.CampaignDetail, error)
	GetCampaignStatus(ctx context.Context, id string) (*models.StatusView, error)
	ListCampaigns(ctx context.Context, filter models.ListFilter) (*models.CampaignList, error)
	DownloadFinal(ctx context.Context, id string) (*models.DownloadFile, error)

	UpdatePerformance(ctx context.Context, id string, req models.PerformanceRequest) (*models.PerformanceResult, error)
	GenerateTestPerformanceData(ctx context.Context) (*models.TestDataSummary, error)
	Recommendations(ctx context.Context, id string) (*models.Recommendations, error)
}

// ProofGenerator renders proofs and final HTML. *proof.Generator satisfies it.
type ProofGenerator interface {
	Generate(ctx context.Context, c *models.Campaign, generation uint64, useCache bool) (*models.ProofResult, error)
	RenderFinal(ctx context.Context, c *models.Campaign) (*models.FinalHTML, error)
	PresignAssets(ctx context.Context, c *models.Campaign) (string, []string)
}

// TransitionRecorder counts status transitions. *metrics.Metrics satisfies it.
type TransitionRecorder interface {
	RecordTransition(operation, from, to string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, string, string) {}

// Config holds upload limits and processing switches.
type Config struct {
	MaxFileSize   int64
	MaxHeroImages int
	// UseHistory feeds top performers into the text prompt during processing.
	UseHistory bool
}

// Default upload limits.
const (
	DefaultMaxFileSize   = 5 * 1024 * 1024
	DefaultMaxHeroImages = 3
)

// Service implements CampaignService.
type Service struct {
	repo      CampaignRepository
	store     storage.Store
	generator ai.Generator
	proofs    ProofGenerator
	cache     cache.ProofCache
	validate  *validator.Validate
	cfg       Config
	logger    kitlog.Logger
	recorder  TransitionRecorder
	now       func() time.Time
	newID     func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

var _ CampaignService = (*Service)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithTransitionRecorder reports every status change to r.
func WithTransitionRecorder(r TransitionRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid campaign ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithRand sets the source used for synthetic performance data.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Service) { s.rnd = rnd }
}

// NewService wires the campaign workflow.
func NewService(repo CampaignRepository, store storage.Store, generator ai.Generator, proofs ProofGenerator, proofCache cache.ProofCache, cfg Config, logger kitlog.Logger, opts ...Option) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxHeroImages <= 0 {
		cfg.MaxHeroImages = DefaultMaxHeroImages
	}
	s := &Service{
		repo:      repo,
		store:     store,
		generator: generator,
		proofs:    proofs,
		cache:     proofCache,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		logger:    kitlog.With(logger, "component", "campaign_service"),
		recorder:  nopRecorder{},
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) load(ctx context.Context, id string) (*models.Campaign, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.Validation("campaign id is required")
	}
	return s.repo.Get(ctx, id)
}

// save stamps UpdatedAt, persists c and records the transition from prev.
func (s *Service) save(ctx context.Context, op string, prev models.CampaignStatus, c *models.Campaign) error {
	c.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}
	if prev != c.Status {
		s.recorder.RecordTransition(op, string(prev), string(c.Status))
		level.Info(s.logger).Log("msg", "campaign transitioned", "campaign_id", c.ID, "operation", op, "from", prev, "to", c.Status)
	}
	return nil
}

// dropProof invalidates the cached proof and deletes the stale proof object. It runs
// after the mutation is persisted so a render that started earlier cannot be cached.
// Previews upload a proof without recording it, so with no locator the default proof
// key is removed.
func (s *Service) dropProof(ctx context.Context, campaignID, proofLocator string) {
	s.invalidateProof(ctx, campaignID)
	if proofLocator == "" {
		proofLocator = storage.Locator(s.store.Bucket(), storage.ProofKey(campaignID))
	}
	if _, err := s.store.Delete(ctx, proofLocator); err != nil {
		level.Warn(s.logger).Log("msg", "failed to delete stale proof", "campaign_id", campaignID, "locator", proofLocator, "err", err)
	}
}

func (s *Service) invalidateProof(ctx context.Context, campaignID string) {
	if err := s.cache.Invalidate(ctx, campaignID); err != nil {
		level.Warn(s.logger).Log("msg", "proof cache invalidation failed", "campaign_id", campaignID, "err", err)
	}
}

func requireStatus(op string, c *models.Campaign, allowed ...models.CampaignStatus) error {
	for _, a := range allowed {
		if c.Status == a {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return apperror.StateConflict(op, string(c.Status), names...)
}

// validationError turns validator output into a single Validation error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Validation("invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return apperror.Validation("invalid request: %s", strings.Join(msgs, "; "))
}

func (s *Service) check(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}
