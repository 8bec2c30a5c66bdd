package middleware

import (
	"context"
	"time"

	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
)

// OperationRecorder records service call durations. *metrics.Metrics satisfies it.
type OperationRecorder interface {
	RecordOperation(operation string, duration time.Duration, errKind string)
}

// serviceMetricsMiddleware implements metrics collection for CampaignService
type serviceMetricsMiddleware struct {
	metrics OperationRecorder
	next    service.CampaignService
}

// NewServiceMetricsMiddleware creates a new service metrics middleware
func NewServiceMetricsMiddleware(metrics OperationRecorder) func(service.CampaignService) service.CampaignService {
	return func(next service.CampaignService) service.CampaignService {
		return &serviceMetricsMiddleware{
			metrics: metrics,
			next:    next,
		}
	}
}

func (mw *serviceMetricsMiddleware) observe(operation string, begin time.Time, err error) {
	kind := ""
	if err != nil {
		kind = apperror.KindOf(err).String()
	}
	mw.metrics.RecordOperation(operation, time.Since(begin), kind)
}

func (mw *serviceMetricsMiddleware) UploadCampaign(ctx context.Context, req models.UploadRequest) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("upload", begin, err) }(time.Now())
	return mw.next.UploadCampaign(ctx, req)
}

func (mw *serviceMetricsMiddleware) ProcessCampaign(ctx context.Context, id string) (res *models.ProcessResult, err error) {
	defer func(begin time.Time) { mw.observe("process", begin, err) }(time.Now())
	return mw.next.ProcessCampaign(ctx, id)
}

func (mw *serviceMetricsMiddleware) UpdateContent(ctx context.Context, id string, edit models.ContentEdit) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("edit", begin, err) }(time.Now())
	return mw.next.UpdateContent(ctx, id, edit)
}

func (mw *serviceMetricsMiddleware) ReplaceImage(ctx context.Context, id string, req models.ReplaceImageRequest) (res *models.ImageReplaceResult, err error) {
	defer func(begin time.Time) { mw.observe("replace_image", begin, err) }(time.Now())
	return mw.next.ReplaceImage(ctx, id, req)
}

func (mw *serviceMetricsMiddleware) GenerateProof(ctx context.Context, id string) (res *models.ProofResult, err error) {
	defer func(begin time.Time) { mw.observe("generate_proof", begin, err) }(time.Now())
	return mw.next.GenerateProof(ctx, id)
}

func (mw *serviceMetricsMiddleware) RegenerateProof(ctx context.Context, id string) (res *models.ProofResult, err error) {
	defer func(begin time.Time) { mw.observe("regenerate_proof", begin, err) }(time.Now())
	return mw.next.RegenerateProof(ctx, id)
}

func (mw *serviceMetricsMiddleware) GetPreview(ctx context.Context, id string) (res *models.PreviewPayload, err error) {
	defer func(begin time.Time) { mw.observe("preview", begin, err) }(time.Now())
	return mw.next.GetPreview(ctx, id)
}

func (mw *serviceMetricsMiddleware) Decide(ctx context.Context, id string, req models.DecisionRequest) (res *models.DecisionResult, err error) {
	defer func(begin time.Time) { mw.observe("decide", begin, err) }(time.Now())
	return mw.next.Decide(ctx, id, req)
}

func (mw *serviceMetricsMiddleware) ResetCampaign(ctx context.Context, id string, clearFeedback bool) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("reset", begin, err) }(time.Now())
	return mw.next.ResetCampaign(ctx, id, clearFeedback)
}

func (mw *serviceMetricsMiddleware) ReviewCampaign(ctx context.Context, id string, req models.ReviewRequest) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("review", begin, err) }(time.Now())
	return mw.next.ReviewCampaign(ctx, id, req)
}

func (mw *serviceMetricsMiddleware) ScheduleCampaign(ctx context.Context, id string, req models.ScheduleRequest) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("schedule", begin, err) }(time.Now())
	return mw.next.ScheduleCampaign(ctx, id, req)
}

func (mw *serviceMetricsMiddleware) CancelSchedule(ctx context.Context, id string) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("cancel_schedule", begin, err) }(time.Now())
	return mw.next.CancelSchedule(ctx, id)
}

func (mw *serviceMetricsMiddleware) MarkSent(ctx context.Context, id string) (c *models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("mark_sent", begin, err) }(time.Now())
	return mw.next.MarkSent(ctx, id)
}

func (mw *serviceMetricsMiddleware) DueCampaigns(ctx context.Context, now time.Time) (due []models.Campaign, err error) {
	defer func(begin time.Time) { mw.observe("due_campaigns", begin, err) }(time.Now())
	return mw.next.DueCampaigns(ctx, now)
}

func (mw *serviceMetricsMiddleware) GetCampaign(ctx context.Context, id string) (res *models.CampaignDetail, err error) {
	defer func(begin time.Time) { mw.observe("get_campaign", begin, err) }(time.Now())
	return mw.next.GetCampaign(ctx, id)
}

func (mw *serviceMetricsMiddleware) GetCampaignStatus(ctx context.Context, id string) (res *models.StatusView, err error) {
	defer func(begin time.Time) { mw.observe("get_status", begin, err) }(time.Now())
	return mw.next.GetCampaignStatus(ctx, id)
}

func (mw *serviceMetricsMiddleware) ListCampaigns(ctx context.Context, filter models.ListFilter) (res *models.CampaignList, err error) {
	defer func(begin time.Time) { mw.observe("list_campaigns", begin, err) }(time.Now())
	return mw.next.ListCampaigns(ctx, filter)
}

func (mw *serviceMetricsMiddleware) DownloadFinal(ctx context.Context, id string) (res *models.DownloadFile, err error) {
	defer func(begin time.Time) { mw.observe("download", begin, err) }(time.Now())
	return mw.next.DownloadFinal(ctx, id)
}

func (mw *serviceMetricsMiddleware) UpdatePerformance(ctx context.Context, id string, req models.PerformanceRequest) (res *models.PerformanceResult, err error) {
	defer func(begin time.Time) { mw.observe("update_performance", begin, err) }(time.Now())
	return mw.next.UpdatePerformance(ctx, id, req)
}

func (mw *serviceMetricsMiddleware) GenerateTestPerformanceData(ctx context.Context) (res *models.TestDataSummary, err error) {
	defer func(begin time.Time) { mw.observe("generate_test_performance", begin, err) }(time.Now())
	return mw.next.GenerateTestPerformanceData(ctx)
}

func (mw *serviceMetricsMiddleware) Recommendations(ctx context.Context, id string) (res *models.Recommendations, err error) {
	defer func(begin time.Time) { mw.observe("recommendations", begin, err) }(time.Now())
	return mw.next.Recommendations(ctx, id)
}
