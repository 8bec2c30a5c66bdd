package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

var created = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func campaignRow(id string, status models.CampaignStatus, extra func(row []driver.Value)) []driver.Value {
	row := []driver.Value{
		id, "Spring Sale", "Acme", string(status),
		nil, nil,
		nil, nil,
		"s3://bucket/assets/" + id + "/", nil, nil,
		[]byte(`{"content":{"subject_line":"Hello","cta_text":"Buy"},"logo":{"filename":"logo.png","s3_key":"assets/` + id + `/logo.png","s3_url":"s3://bucket/assets/` + id + `/logo.png","content_type":"image/png","size":10}}`),
		nil,
		nil, nil, nil, nil, nil,
		created, created, nil, int64(3),
	}
	if extra != nil {
		extra(row)
	}
	return row
}

func campaignRows(rows ...[]driver.Value) *sqlmock.Rows {
	r := sqlmock.NewRows(campaignColumns)
	for _, row := range rows {
		r.AddRow(row...)
	}
	return r
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	c := &models.Campaign{ID: "c-1", CampaignName: "Spring", AdvertiserName: "Acme", Status: models.StatusUploaded, CreatedAt: created, UpdatedAt: created}

	mock.ExpectExec(`INSERT INTO campaigns \(id,campaign_name,advertiser_name,status,.*version\) VALUES \(\$1,\$2,.*\$22\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(1), c.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get(t *testing.T) {
	repo, mock := newMockRepo(t)
	scheduled := created.Add(time.Hour)

	mock.ExpectQuery(`SELECT id, campaign_name, .* FROM campaigns WHERE id = \$1`).
		WithArgs("c-1").
		WillReturnRows(campaignRows(campaignRow("c-1", models.StatusApproved, func(row []driver.Value) {
			row[4] = "scheduled"
			row[5] = scheduled
			row[12] = "looks good"
			row[13] = 0.3
			row[16] = 0.156
		})))

	c, err := repo.Get(context.Background(), "c-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, c.Status)
	assert.Equal(t, models.SchedulingScheduled, c.SchedulingStatus)
	require.NotNil(t, c.ScheduledAt)
	assert.True(t, scheduled.Equal(*c.ScheduledAt))
	assert.Equal(t, models.ReviewNone, c.ReviewStatus)
	require.NotNil(t, c.Feedback)
	assert.Equal(t, "looks good", *c.Feedback)
	assert.Equal(t, 0.156, c.Score())
	assert.Nil(t, c.ClickRate)
	assert.Equal(t, "Hello", c.AIProcessingData.Content.SubjectLine)
	require.NotNil(t, c.AIProcessingData.Logo)
	assert.Equal(t, "logo.png", c.AIProcessingData.Logo.Filename)
	assert.Equal(t, int64(3), c.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(campaignRows())

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetRejectsUnknownStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE id = \$1`).
		WillReturnRows(campaignRows(campaignRow("c-1", "archived", nil)))

	_, err := repo.Get(context.Background(), "c-1")
	assert.True(t, apperror.Is(err, apperror.KindInternal))
}

func TestPostgresRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		exists   bool
		wantKind apperror.Kind
		wantErr  bool
		wantVer  int64
	}{
		{name: "version matches", affected: 1, wantVer: 4},
		{name: "stale version", affected: 0, exists: true, wantErr: true, wantKind: apperror.KindConflict, wantVer: 3},
		{name: "missing record", affected: 0, exists: false, wantErr: true, wantKind: apperror.KindNotFound, wantVer: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			c := &models.Campaign{ID: "c-1", Status: models.StatusProcessed, Version: 3, UpdatedAt: created}

			mock.ExpectExec(`UPDATE campaigns SET .*version = version \+ 1 WHERE id = \$\d+ AND version = \$\d+`).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.affected == 0 {
				rows := sqlmock.NewRows([]string{"?column?"})
				if tt.exists {
					rows.AddRow(1)
				}
				mock.ExpectQuery(`SELECT 1 FROM campaigns WHERE id = \$1`).WithArgs("c-1").WillReturnRows(rows)
			}

			err := repo.Update(context.Background(), c)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperror.KindOf(err))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantVer, c.Version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepository_List(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns WHERE \(status = \$1 AND review_status = \$2\)`).
		WithArgs(models.StatusReady, models.ReviewPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE \(status = \$1 AND review_status = \$2\) ORDER BY created_at DESC LIMIT 2 OFFSET 4`).
		WithArgs(models.StatusReady, models.ReviewPending).
		WillReturnRows(campaignRows(
			campaignRow("c-2", models.StatusReady, nil),
			campaignRow("c-1", models.StatusReady, nil),
		))

	campaigns, total, err := repo.List(context.Background(), models.ListFilter{
		Status:       models.StatusReady,
		ReviewStatus: models.ReviewPending,
		Limit:        2,
		Offset:       4,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, campaigns, 2)
	assert.Equal(t, "c-2", campaigns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListDefaultsAndReviewedOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM campaigns WHERE \(review_status IS NOT NULL\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT 100 OFFSET 0`).
		WillReturnRows(campaignRows())

	campaigns, total, err := repo.List(context.Background(), models.ListFilter{OnlyReviewed: true})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, campaigns)
	assert.Empty(t, campaigns)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListDueScheduled(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := created.Add(2 * time.Hour)

	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE scheduling_status = \$1 AND scheduled_at <= \$2 ORDER BY scheduled_at ASC`).
		WithArgs(models.SchedulingScheduled, now).
		WillReturnRows(campaignRows(campaignRow("c-1", models.StatusApproved, func(row []driver.Value) {
			row[4] = "scheduled"
			row[5] = created
		})))

	due, err := repo.ListDueScheduled(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "c-1", due[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_PerformanceQueries(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE status = \$1 AND performance_score > \$2 ORDER BY performance_score DESC`).
		WithArgs(models.StatusApproved, 0).
		WillReturnRows(campaignRows(campaignRow("c-1", models.StatusApproved, func(row []driver.Value) { row[16] = 0.2 })))
	mock.ExpectQuery(`SELECT .* FROM campaigns WHERE status = \$1 AND \(performance_score IS NULL OR performance_score = \$2\) ORDER BY created_at ASC`).
		WithArgs(models.StatusApproved, 0).
		WillReturnRows(campaignRows(campaignRow("c-2", models.StatusApproved, nil)))

	scored, err := repo.ListWithPerformance(context.Background())
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, 0.2, scored[0].Score())

	unscored, err := repo.ListApprovedWithoutPerformance(context.Background())
	require.NoError(t, err)
	require.Len(t, unscored, 1)
	assert.Nil(t, unscored[0].PerformanceScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
