package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
)

const campaignsTable = "campaigns"

var campaignColumns = []string{
	"id", "campaign_name", "advertiser_name", "status",
	"scheduling_status", "scheduled_at",
	"review_status", "reviewer_notes",
	"assets_s3_path", "proof_s3_path", "html_s3_path",
	"ai_processing_data", "feedback",
	"open_rate", "click_rate", "conversion_rate", "performance_score", "performance_timestamp",
	"created_at", "updated_at", "approved_at", "version",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository implements service.CampaignRepository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

var _ service.CampaignRepository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts c with version 1.
func (r *PostgresRepository) Create(ctx context.Context, c *models.Campaign) error {
	c.Version = 1
	values := r.values(c)

	query, args, err := psql.Insert(campaignsTable).Columns(campaignColumns...).Values(values...).ToSql()
	if err != nil {
		return apperror.Internal("failed to build insert", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return apperror.Internal("failed to insert campaign", err)
	}
	return nil
}

// Get loads one campaign.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Campaign, error) {
	query, args, err := psql.Select(campaignColumns...).From(campaignsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, apperror.Internal("failed to build select", err)
	}

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound(id)
	}
	if err != nil {
		return nil, apperror.Internal("failed to load campaign", err)
	}
	return c, nil
}

// Update replaces every mutable column when the stored version matches c.Version.
func (r *PostgresRepository) Update(ctx context.Context, c *models.Campaign) error {
	values := r.values(c)
	set := make(map[string]interface{}, len(campaignColumns))
	for i, col := range campaignColumns {
		switch col {
		case "id", "created_at", "version":
			continue
		}
		set[col] = values[i]
	}
	set["version"] = sq.Expr("version + 1")

	query, args, err := psql.Update(campaignsTable).
		SetMap(set).
		Where(sq.Eq{"id": c.ID, "version": c.Version}).
		ToSql()
	if err != nil {
		return apperror.Internal("failed to build update", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperror.Internal("failed to update campaign", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.Internal("failed to read update result", err)
	}
	if n == 0 {
		return r.missOrConflict(ctx, c.ID)
	}

	c.Version++
	return nil
}

func (r *PostgresRepository) missOrConflict(ctx context.Context, id string) error {
	query, args, err := psql.Select("1").From(campaignsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return apperror.Internal("failed to build select", err)
	}
	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(id)
	}
	if err != nil {
		return apperror.Internal("failed to check campaign", err)
	}
	return apperror.Conflict(id)
}

// List returns one page of campaigns matching filter plus the total match count.
func (r *PostgresRepository) List(ctx context.Context, filter models.ListFilter) ([]models.Campaign, int, error) {
	filter.Normalize()

	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if filter.ReviewStatus != models.ReviewNone {
		where = append(where, sq.Eq{"review_status": filter.ReviewStatus})
	} else if filter.OnlyReviewed {
		where = append(where, sq.NotEq{"review_status": nil})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(campaignsTable).Where(where).ToSql()
	if err != nil {
		return nil, 0, apperror.Internal("failed to build count", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperror.Internal("failed to count campaigns", err)
	}

	query, args, err := psql.Select(campaignColumns...).From(campaignsTable).
		Where(where).
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, apperror.Internal("failed to build list", err)
	}

	campaigns, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ListDueScheduled returns scheduled campaigns whose send time has passed.
func (r *PostgresRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	query, args, err := psql.Select(campaignColumns...).From(campaignsTable).
		Where(sq.Eq{"scheduling_status": models.SchedulingScheduled}).
		Where(sq.LtOrEq{"scheduled_at": now}).
		OrderBy("scheduled_at ASC").
		ToSql()
	if err != nil {
		return nil, apperror.Internal("failed to build due query", err)
	}
	return r.query(ctx, query, args...)
}

// ListWithPerformance returns approved campaigns with a positive score, best first.
func (r *PostgresRepository) ListWithPerformance(ctx context.Context) ([]models.Campaign, error) {
	query, args, err := psql.Select(campaignColumns...).From(campaignsTable).
		Where(sq.Eq{"status": models.StatusApproved}).
		Where(sq.Gt{"performance_score": 0}).
		OrderBy("performance_score DESC").
		ToSql()
	if err != nil {
		return nil, apperror.Internal("failed to build performance query", err)
	}
	return r.query(ctx, query, args...)
}

// ListApprovedWithoutPerformance returns approved campaigns with no or a zero score.
func (r *PostgresRepository) ListApprovedWithoutPerformance(ctx context.Context) ([]models.Campaign, error) {
	query, args, err := psql.Select(campaignColumns...).From(campaignsTable).
		Where(sq.Eq{"status": models.StatusApproved}).
		Where(sq.Or{sq.Eq{"performance_score": nil}, sq.Eq{"performance_score": 0}}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, apperror.Internal("failed to build performance query", err)
	}
	return r.query(ctx, query, args...)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.Internal("failed to query campaigns", err)
	}
	defer rows.Close()

	campaigns := make([]models.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, apperror.Internal("failed to scan campaign", err)
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Internal("error iterating over campaign rows", err)
	}
	return campaigns, nil
}

// values lines up with campaignColumns.
func (r *PostgresRepository) values(c *models.Campaign) []interface{} {
	return []interface{}{
		c.ID, c.CampaignName, c.AdvertiserName, string(c.Status),
		nullString(string(c.SchedulingStatus)), c.ScheduledAt,
		nullString(string(c.ReviewStatus)), c.ReviewerNotes,
		nullString(c.AssetsS3Path), nullString(c.ProofS3Path), nullString(c.HTMLS3Path),
		c.AIProcessingData, c.Feedback,
		c.OpenRate, c.ClickRate, c.ConversionRate, c.PerformanceScore, c.PerformanceTimestamp,
		c.CreatedAt, c.UpdatedAt, c.ApprovedAt, c.Version,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*models.Campaign, error) {
	var (
		c                                 models.Campaign
		status                            string
		schedulingStatus, reviewStatus    sql.NullString
		assetsPath, proofPath, htmlPath   sql.NullString
		reviewerNotes, feedback           sql.NullString
		scheduledAt, approvedAt, perfTime sql.NullTime
		openRate, clickRate, convRate     sql.NullFloat64
		score                             sql.NullFloat64
	)

	err := row.Scan(
		&c.ID, &c.CampaignName, &c.AdvertiserName, &status,
		&schedulingStatus, &scheduledAt,
		&reviewStatus, &reviewerNotes,
		&assetsPath, &proofPath, &htmlPath,
		&c.AIProcessingData, &feedback,
		&openRate, &clickRate, &convRate, &score, &perfTime,
		&c.CreatedAt, &c.UpdatedAt, &approvedAt, &c.Version,
	)
	if err != nil {
		return nil, err
	}

	c.Status = models.CampaignStatus(status)
	if !c.Status.IsValid() {
		return nil, fmt.Errorf("campaign %s has unknown status %q", c.ID, status)
	}
	c.SchedulingStatus = models.SchedulingStatus(schedulingStatus.String)
	c.ReviewStatus = models.ReviewStatus(reviewStatus.String)
	c.AssetsS3Path = assetsPath.String
	c.ProofS3Path = proofPath.String
	c.HTMLS3Path = htmlPath.String
	c.ReviewerNotes = stringPtr(reviewerNotes)
	c.Feedback = stringPtr(feedback)
	c.ScheduledAt = timePtr(scheduledAt)
	c.ApprovedAt = timePtr(approvedAt)
	c.PerformanceTimestamp = timePtr(perfTime)
	c.OpenRate = floatPtr(openRate)
	c.ClickRate = floatPtr(clickRate)
	c.ConversionRate = floatPtr(convRate)
	c.PerformanceScore = floatPtr(score)
	return &c, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
