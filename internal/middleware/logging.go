package middleware

import (
	"context"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	reqcontext "github.com/prajwalbharadwajbm/mailproof/internal/context"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
)

// loggingMiddleware implements logging middleware for CampaignService
type loggingMiddleware struct {
	logger kitlog.Logger
	next   service.CampaignService
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger kitlog.Logger) func(service.CampaignService) service.CampaignService {
	return func(next service.CampaignService) service.CampaignService {
		return &loggingMiddleware{
			logger: logger,
			next:   next,
		}
	}
}

// log writes one line per call. Client errors log at warn, server errors at error.
func (mw *loggingMiddleware) log(ctx context.Context, method string, begin time.Time, err error, kv ...interface{}) {
	logFields := []interface{}{
		"method", method,
		"request_id", reqcontext.GetRequestID(ctx),
	}
	logFields = append(logFields, kv...)
	logFields = append(logFields, "took", time.Since(begin))

	if ua := reqcontext.GetUserAgent(ctx); ua != "" {
		logFields = append(logFields, "user_agent", ua)
	}
	if addr := reqcontext.GetRemoteAddr(ctx); addr != "" {
		logFields = append(logFields, "remote_addr", addr)
	}

	logger := level.Info(mw.logger)
	if err != nil {
		logFields = append(logFields, "error", err.Error(), "error_kind", apperror.KindOf(err).String(), "success", false)
		switch apperror.KindOf(err) {
		case apperror.KindInternal, apperror.KindUpstream:
			logger = level.Error(mw.logger)
		default:
			logger = level.Warn(mw.logger)
		}
	} else {
		logFields = append(logFields, "error", nil, "success", true)
	}
	logger.Log(logFields...)
}

func (mw *loggingMiddleware) UploadCampaign(ctx context.Context, req models.UploadRequest) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		id := req.CampaignID
		if c != nil {
			id = c.ID
		}
		mw.log(ctx, "UploadCampaign", begin, err, "campaign_id", id, "campaign_name", req.CampaignName, "hero_images", len(req.HeroImages))
	}(time.Now())
	return mw.next.UploadCampaign(ctx, req)
}

func (mw *loggingMiddleware) ProcessCampaign(ctx context.Context, id string) (res *models.ProcessResult, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "ProcessCampaign", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.ProcessCampaign(ctx, id)
}

func (mw *loggingMiddleware) UpdateContent(ctx context.Context, id string, edit models.ContentEdit) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "UpdateContent", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.UpdateContent(ctx, id, edit)
}

func (mw *loggingMiddleware) ReplaceImage(ctx context.Context, id string, req models.ReplaceImageRequest) (res *models.ImageReplaceResult, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "ReplaceImage", begin, err, "campaign_id", id, "image_type", req.ImageType, "bytes", len(req.File.Data))
	}(time.Now())
	return mw.next.ReplaceImage(ctx, id, req)
}

func (mw *loggingMiddleware) GenerateProof(ctx context.Context, id string) (res *models.ProofResult, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "GenerateProof", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.GenerateProof(ctx, id)
}

func (mw *loggingMiddleware) RegenerateProof(ctx context.Context, id string) (res *models.ProofResult, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "RegenerateProof", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.RegenerateProof(ctx, id)
}

func (mw *loggingMiddleware) GetPreview(ctx context.Context, id string) (res *models.PreviewPayload, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "GetPreview", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.GetPreview(ctx, id)
}

func (mw *loggingMiddleware) Decide(ctx context.Context, id string, req models.DecisionRequest) (res *models.DecisionResult, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "Decide", begin, err, "campaign_id", id, "decision", req.Decision)
	}(time.Now())
	return mw.next.Decide(ctx, id, req)
}

func (mw *loggingMiddleware) ResetCampaign(ctx context.Context, id string, clearFeedback bool) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "ResetCampaign", begin, err, "campaign_id", id, "clear_feedback", clearFeedback)
	}(time.Now())
	return mw.next.ResetCampaign(ctx, id, clearFeedback)
}

func (mw *loggingMiddleware) ReviewCampaign(ctx context.Context, id string, req models.ReviewRequest) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "ReviewCampaign", begin, err, "campaign_id", id, "review_status", req.ReviewStatus)
	}(time.Now())
	return mw.next.ReviewCampaign(ctx, id, req)
}

func (mw *loggingMiddleware) ScheduleCampaign(ctx context.Context, id string, req models.ScheduleRequest) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "ScheduleCampaign", begin, err, "campaign_id", id, "scheduled_at", req.ScheduledAt)
	}(time.Now())
	return mw.next.ScheduleCampaign(ctx, id, req)
}

func (mw *loggingMiddleware) CancelSchedule(ctx context.Context, id string) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "CancelSchedule", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.CancelSchedule(ctx, id)
}

func (mw *loggingMiddleware) MarkSent(ctx context.Context, id string) (c *models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "MarkSent", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.MarkSent(ctx, id)
}

func (mw *loggingMiddleware) DueCampaigns(ctx context.Context, now time.Time) (due []models.Campaign, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "DueCampaigns", begin, err, "due_count", len(due))
	}(time.Now())
	return mw.next.DueCampaigns(ctx, now)
}

func (mw *loggingMiddleware) GetCampaign(ctx context.Context, id string) (res *models.CampaignDetail, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "GetCampaign", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.GetCampaign(ctx, id)
}

func (mw *loggingMiddleware) GetCampaignStatus(ctx context.Context, id string) (res *models.StatusView, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "GetCampaignStatus", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.GetCampaignStatus(ctx, id)
}

func (mw *loggingMiddleware) ListCampaigns(ctx context.Context, filter models.ListFilter) (res *models.CampaignList, err error) {
	defer func(begin time.Time) {
		count := 0
		if res != nil {
			count = len(res.Campaigns)
		}
		mw.log(ctx, "ListCampaigns", begin, err, "status", filter.Status, "review_status", filter.ReviewStatus,
			"limit", filter.Limit, "offset", filter.Offset, "campaigns_count", count)
	}(time.Now())
	return mw.next.ListCampaigns(ctx, filter)
}

func (mw *loggingMiddleware) DownloadFinal(ctx context.Context, id string) (res *models.DownloadFile, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "DownloadFinal", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.DownloadFinal(ctx, id)
}

func (mw *loggingMiddleware) UpdatePerformance(ctx context.Context, id string, req models.PerformanceRequest) (res *models.PerformanceResult, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "UpdatePerformance", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.UpdatePerformance(ctx, id, req)
}

func (mw *loggingMiddleware) GenerateTestPerformanceData(ctx context.Context) (res *models.TestDataSummary, err error) {
	defer func(begin time.Time) {
		generated := 0
		if res != nil {
			generated = res.Generated
		}
		mw.log(ctx, "GenerateTestPerformanceData", begin, err, "generated", generated)
	}(time.Now())
	return mw.next.GenerateTestPerformanceData(ctx)
}

func (mw *loggingMiddleware) Recommendations(ctx context.Context, id string) (res *models.Recommendations, err error) {
	defer func(begin time.Time) {
		mw.log(ctx, "Recommendations", begin, err, "campaign_id", id)
	}(time.Now())
	return mw.next.Recommendations(ctx, id)
}
