package endpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
)

// CampaignEndpoints holds one endpoint per HTTP-exposed service operation.
type CampaignEndpoints struct {
	UploadEndpoint                  endpoint.Endpoint
	ProcessEndpoint                 endpoint.Endpoint
	EditEndpoint                    endpoint.Endpoint
	ReplaceImageEndpoint            endpoint.Endpoint
	GenerateProofEndpoint           endpoint.Endpoint
	RegenerateProofEndpoint         endpoint.Endpoint
	PreviewEndpoint                 endpoint.Endpoint
	DecideEndpoint                  endpoint.Endpoint
	ResetEndpoint                   endpoint.Endpoint
	ReviewEndpoint                  endpoint.Endpoint
	ScheduleEndpoint                endpoint.Endpoint
	CancelScheduleEndpoint          endpoint.Endpoint
	GetCampaignEndpoint             endpoint.Endpoint
	GetStatusEndpoint               endpoint.Endpoint
	ListEndpoint                    endpoint.Endpoint
	DownloadEndpoint                endpoint.Endpoint
	UpdatePerformanceEndpoint       endpoint.Endpoint
	GeneratePerformanceDataEndpoint endpoint.Endpoint
	RecommendationsEndpoint         endpoint.Endpoint
}

// MakeCampaignEndpoints creates endpoints for the campaign service
func MakeCampaignEndpoints(s service.CampaignService) CampaignEndpoints {
	return CampaignEndpoints{
		UploadEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(UploadRequest)
			return respond(s.UploadCampaign(ctx, req.Upload))
		},
		ProcessEndpoint: byID(s.ProcessCampaign),
		EditEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(EditRequest)
			return respond(s.UpdateContent(ctx, req.ID, req.Edit))
		},
		ReplaceImageEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(ReplaceImageRequest)
			return respond(s.ReplaceImage(ctx, req.ID, req.Replace))
		},
		GenerateProofEndpoint:   byID(s.GenerateProof),
		RegenerateProofEndpoint: byID(s.RegenerateProof),
		PreviewEndpoint:         byID(s.GetPreview),
		DecideEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(DecideRequest)
			return respond(s.Decide(ctx, req.ID, req.Decision))
		},
		ResetEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(ResetRequest)
			return respond(s.ResetCampaign(ctx, req.ID, req.ClearFeedback))
		},
		ReviewEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(ReviewRequest)
			return respond(s.ReviewCampaign(ctx, req.ID, req.Review))
		},
		ScheduleEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(ScheduleRequest)
			return respond(s.ScheduleCampaign(ctx, req.ID, req.Schedule))
		},
		CancelScheduleEndpoint: byID(s.CancelSchedule),
		GetCampaignEndpoint:    byID(s.GetCampaign),
		GetStatusEndpoint:      byID(s.GetCampaignStatus),
		ListEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(ListRequest)
			return respond(s.ListCampaigns(ctx, req.Filter))
		},
		DownloadEndpoint: byID(s.DownloadFinal),
		UpdatePerformanceEndpoint: func(ctx context.Context, request any) (any, error) {
			req := request.(PerformanceRequest)
			return respond(s.UpdatePerformance(ctx, req.ID, req.Metrics))
		},
		GeneratePerformanceDataEndpoint: func(ctx context.Context, _ any) (any, error) {
			return respond(s.GenerateTestPerformanceData(ctx))
		},
		RecommendationsEndpoint: byID(s.Recommendations),
	}
}

// byID adapts a service method that only takes a campaign id.
func byID[T any](call func(ctx context.Context, id string) (T, error)) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(IDRequest)
		return respond(call(ctx, req.ID))
	}
}

// respond packs a service result. Service errors travel in Response.Err so the
// transport can encode them; the endpoint error is reserved for transport failures.
func respond[T any](data T, err error) (any, error) {
	if err != nil {
		return Response{Err: err}, nil
	}
	return Response{Data: data}, nil
}

// Response is the result of every campaign endpoint.
type Response struct {
	Data any   `json:"data,omitempty"`
	Err  error `json:"error,omitempty"`
}

// Failed implements the endpoint.Failer interface
func (r Response) Failed() error {
	return r.Err
}

// IDRequest addresses one campaign.
type IDRequest struct {
	ID string
}

type UploadRequest struct {
	Upload models.UploadRequest
}

type EditRequest struct {
	ID   string
	Edit models.ContentEdit
}

type ReplaceImageRequest struct {
	ID      string
	Replace models.ReplaceImageRequest
}

type DecideRequest struct {
	ID       string
	Decision models.DecisionRequest
}

type ResetRequest struct {
	ID            string
	ClearFeedback bool
}

type ReviewRequest struct {
	ID     string
	Review models.ReviewRequest
}

type ScheduleRequest struct {
	ID       string
	Schedule models.ScheduleRequest
}

type ListRequest struct {
	Filter models.ListFilter
}

type PerformanceRequest struct {
	ID      string
	Metrics models.PerformanceRequest
}
