package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	kittransport "github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	reqcontext "github.com/prajwalbharadwajbm/mailproof/internal/context"
	"github.com/prajwalbharadwajbm/mailproof/internal/endpoint"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
)

// APIPrefix is the path prefix of every campaign route.
const APIPrefix = "/api/v1"

// DefaultMaxRequestBytes caps multipart bodies when Options.MaxRequestBytes is unset.
const DefaultMaxRequestBytes = 32 << 20

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthDetail returns extra diagnostics included in the /health body.
type HealthDetail func(ctx context.Context) interface{}

// HealthRecorder exports health check results. *metrics.Metrics satisfies it.
type HealthRecorder interface {
	SetHealthCheckStatus(checkType string, healthy bool)
}

// Options configures the HTTP surface around the campaign endpoints.
type Options struct {
	Service string
	Version string
	// Checks are run by /health, keyed by the name reported in the response.
	Checks         map[string]HealthCheck
	Details        map[string]HealthDetail
	HealthRecorder HealthRecorder
	// MetricsHandler is served on /metrics when set.
	MetricsHandler  http.Handler
	MaxRequestBytes int64
}

// NewHTTPHandler creates the HTTP router for the campaign service
func NewHTTPHandler(endpoints endpoint.CampaignEndpoints, logger log.Logger, opts Options) *mux.Router {
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerErrorHandler(kittransport.NewLogErrorHandler(level.Debug(logger))),
	}

	handler := func(e func(context.Context, interface{}) (interface{}, error), dec httptransport.DecodeRequestFunc, enc httptransport.EncodeResponseFunc) http.Handler {
		return httptransport.NewServer(e, dec, enc, options...)
	}

	r := mux.NewRouter()
	api := r.PathPrefix(APIPrefix).Subrouter()

	api.Handle("/upload", handler(endpoints.UploadEndpoint, decodeUploadRequest(opts.MaxRequestBytes), encodeCreated)).Methods(http.MethodPost)
	api.Handle("/process/{id}", handler(endpoints.ProcessEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/generate/{id}", handler(endpoints.GenerateProofEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/preview/{id}", handler(endpoints.PreviewEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodGet)
	api.Handle("/approve/{id}", handler(endpoints.DecideEndpoint, decodeDecideRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/download/{id}", handler(endpoints.DownloadEndpoint, decodeIDRequest, encodeDownload)).Methods(http.MethodGet)
	api.Handle("/test/generate-performance-data", handler(endpoints.GeneratePerformanceDataEndpoint, decodeEmpty, encodeResponse)).Methods(http.MethodPost)

	// Static paths under /campaigns go before /campaigns/{id}.
	api.Handle("/campaigns", handler(endpoints.ListEndpoint, decodeListRequest, encodeResponse)).Methods(http.MethodGet)
	api.Handle("/campaigns/review/list", handler(endpoints.ListEndpoint, decodeReviewListRequest, encodeResponse)).Methods(http.MethodGet)
	api.Handle("/campaigns/{id}", handler(endpoints.GetCampaignEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodGet)
	api.Handle("/campaigns/{id}/status", handler(endpoints.GetStatusEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodGet)
	api.Handle("/campaigns/{id}/edit", handler(endpoints.EditEndpoint, decodeEditRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/replace-image", handler(endpoints.ReplaceImageEndpoint, decodeReplaceImageRequest(opts.MaxRequestBytes), encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/regenerate", handler(endpoints.RegenerateProofEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/reset", handler(endpoints.ResetEndpoint, decodeResetRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/review", handler(endpoints.ReviewEndpoint, decodeReviewRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/schedule", handler(endpoints.ScheduleEndpoint, decodeScheduleRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/schedule", handler(endpoints.CancelScheduleEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodDelete)
	api.Handle("/campaigns/{id}/cancel-schedule", handler(endpoints.CancelScheduleEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/performance", handler(endpoints.UpdatePerformanceEndpoint, decodePerformanceRequest, encodeResponse)).Methods(http.MethodPost)
	api.Handle("/campaigns/{id}/recommendations", handler(endpoints.RecommendationsEndpoint, decodeIDRequest, encodeResponse)).Methods(http.MethodPost)

	r.Handle("/health", healthHandler(opts)).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}

	return r
}

func decodeEmpty(_ context.Context, _ *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeIDRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return endpoint.IDRequest{ID: mux.Vars(r)["id"]}, nil
}

func decodeUploadRequest(maxBytes int64) httptransport.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		form, err := parseMultipart(r, maxBytes)
		if err != nil {
			return nil, err
		}

		upload := models.UploadRequest{
			CampaignID:     formValue(form, "campaign_id"),
			CampaignName:   formValue(form, "campaign_name"),
			AdvertiserName: formValue(form, "advertiser_name"),
			SubjectLine:    formValue(form, "subject_line"),
			PreviewText:    formValue(form, "preview_text"),
			BodyCopy:       formValue(form, "body_copy"),
			CTAText:        formValue(form, "cta_text"),
			CTAURL:         formValue(form, "cta_url"),
			FooterText:     formValue(form, "footer_text"),
		}

		if logos := form.File["logo"]; len(logos) > 0 {
			logo, err := readFile(logos[0])
			if err != nil {
				return nil, err
			}
			upload.Logo = &logo
		}
		for _, fh := range form.File["hero_images"] {
			hero, err := readFile(fh)
			if err != nil {
				return nil, err
			}
			upload.HeroImages = append(upload.HeroImages, hero)
		}

		return endpoint.UploadRequest{Upload: upload}, nil
	}
}

func decodeReplaceImageRequest(maxBytes int64) httptransport.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (interface{}, error) {
		form, err := parseMultipart(r, maxBytes)
		if err != nil {
			return nil, err
		}

		files := form.File["file"]
		if len(files) == 0 {
			return nil, apperror.Validation("file is required")
		}
		file, err := readFile(files[0])
		if err != nil {
			return nil, err
		}

		return endpoint.ReplaceImageRequest{
			ID: mux.Vars(r)["id"],
			Replace: models.ReplaceImageRequest{
				ImageType: formValue(form, "image_type"),
				File:      file,
			},
		}, nil
	}
}

func decodeEditRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := endpoint.EditRequest{ID: mux.Vars(r)["id"]}
	if err := decodeJSON(r, &req.Edit); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeDecideRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := endpoint.DecideRequest{ID: mux.Vars(r)["id"]}
	if err := decodeJSON(r, &req.Decision); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeResetRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := endpoint.ResetRequest{ID: mux.Vars(r)["id"]}
	if raw := r.URL.Query().Get("clear_feedback"); raw != "" {
		clearFeedback, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperror.Validation("clear_feedback must be a boolean")
		}
		req.ClearFeedback = clearFeedback
	}
	return req, nil
}

func decodeReviewRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := endpoint.ReviewRequest{ID: mux.Vars(r)["id"]}
	if err := decodeJSON(r, &req.Review); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeScheduleRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := endpoint.ScheduleRequest{ID: mux.Vars(r)["id"]}
	if err := decodeJSON(r, &req.Schedule); err != nil {
		return nil, err
	}
	return req, nil
}

func decodePerformanceRequest(_ context.Context, r *http.Request) (interface{}, error) {
	req := endpoint.PerformanceRequest{ID: mux.Vars(r)["id"]}
	if err := decodeJSON(r, &req.Metrics); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	query := r.URL.Query()
	filter, err := pagination(query.Get("limit"), query.Get("offset"))
	if err != nil {
		return nil, err
	}
	filter.Status = models.CampaignStatus(query.Get("status"))
	filter.ReviewStatus = models.ReviewStatus(query.Get("review_status"))
	return endpoint.ListRequest{Filter: filter}, nil
}

// decodeReviewListRequest lists campaigns that carry a review tag.
func decodeReviewListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	query := r.URL.Query()
	filter, err := pagination(query.Get("limit"), query.Get("offset"))
	if err != nil {
		return nil, err
	}
	filter.ReviewStatus = models.ReviewStatus(query.Get("review_status"))
	filter.OnlyReviewed = true
	return endpoint.ListRequest{Filter: filter}, nil
}

// pagination parses limit and offset. Limit defaults to 100 and must stay within 1..1000.
func pagination(rawLimit, rawOffset string) (models.ListFilter, error) {
	filter := models.ListFilter{Limit: models.DefaultListLimit}
	if rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 1 || limit > models.MaxListLimit {
			return filter, apperror.Validation("limit must be an integer between 1 and %d", models.MaxListLimit)
		}
		filter.Limit = limit
	}
	if rawOffset != "" {
		offset, err := strconv.Atoi(rawOffset)
		if err != nil || offset < 0 {
			return filter, apperror.Validation("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is required")
		}
		return apperror.Validation("invalid JSON body: %v", err)
	}
	return nil
}

func parseMultipart(r *http.Request, maxBytes int64) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.Validation("request body exceeds %d bytes", maxBytes)
		}
		return nil, apperror.Validation("invalid multipart form: %v", err)
	}
	return r.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func readFile(fh *multipart.FileHeader) (models.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return models.FileUpload{}, apperror.Validation("cannot open %s: %v", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.FileUpload{}, apperror.Validation("cannot read %s: %v", fh.Filename, err)
	}
	return models.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// encodeResponse writes the endpoint payload as JSON. Failed responses never
// reach it; go-kit routes them to encodeError.
func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	return writeJSON(w, http.StatusOK, response.(endpoint.Response).Data)
}

func encodeCreated(_ context.Context, w http.ResponseWriter, response interface{}) error {
	return writeJSON(w, http.StatusCreated, response.(endpoint.Response).Data)
}

// encodeDownload serves the approved HTML as an attachment.
func encodeDownload(_ context.Context, w http.ResponseWriter, response interface{}) error {
	file := response.(endpoint.Response).Data.(*models.DownloadFile)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(file.Content)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// encodeError encodes error to HTTP response
func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	kind := apperror.KindOf(err)

	errorResponse := models.NewErrorResponse(err.Error())
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		errorResponse.Error = appErr.Message
		errorResponse.CurrentStatus = appErr.Current
		errorResponse.AllowedStatuses = appErr.Allowed
	}
	// Upstream and internal details stay in the logs.
	switch kind {
	case apperror.KindUpstream:
		errorResponse.Error = "upstream dependency failed"
	case apperror.KindInternal:
		errorResponse.Error = "internal server error"
	}
	errorResponse.RequestID = reqcontext.GetRequestID(ctx)

	_ = writeJSON(w, statusCode(kind), errorResponse)
}

func statusCode(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindStateConflict, apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// healthHandler runs every configured check. A failed check marks the service
// degraded but still answers 200, so the body can be inspected.
func healthHandler(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		checks := make(map[string]string, len(opts.Checks))
		for name, check := range opts.Checks {
			err := check(r.Context())
			if opts.HealthRecorder != nil {
				opts.HealthRecorder.SetHealthCheckStatus(name, err == nil)
			}
			if err != nil {
				checks[name] = "disconnected"
				status = "degraded"
				continue
			}
			checks[name] = "connected"
		}

		response := map[string]any{
			"status":  status,
			"service": opts.Service,
			"version": opts.Version,
			"checks":  checks,
		}
		if len(opts.Details) > 0 {
			details := make(map[string]interface{}, len(opts.Details))
			for name, detail := range opts.Details {
				details[name] = detail(r.Context())
			}
			response["details"] = details
		}
		_ = writeJSON(w, http.StatusOK, response)
	}
}
