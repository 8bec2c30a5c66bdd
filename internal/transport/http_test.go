package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/prajwalbharadwajbm/mailproof/internal/ai"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	"github.com/prajwalbharadwajbm/mailproof/internal/cache"
	reqcontext "github.com/prajwalbharadwajbm/mailproof/internal/context"
	"github.com/prajwalbharadwajbm/mailproof/internal/endpoint"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/proof"
	"github.com/prajwalbharadwajbm/mailproof/internal/render"
	"github.com/prajwalbharadwajbm/mailproof/internal/repository"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
	"github.com/prajwalbharadwajbm/mailproof/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestHandler wires the full HTTP stack over in-memory backends.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store := storage.NewMemoryStore("campaign-assets")
	proofCache, err := cache.NewHybridCache(cache.CacheConfig{MemoryCacheSize: 10, EnableMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { proofCache.Close() })

	renderer, err := render.NewLiquidRenderer()
	require.NoError(t, err)
	proofs := proof.NewGenerator(store, proofCache, renderer, proof.Config{}, log.NewNopLogger())
	svc := service.NewService(repository.NewMemoryRepository(), store, ai.FallbackGenerator{}, proofs, proofCache,
		service.Config{}, log.NewNopLogger(), service.WithClock(func() time.Time { return testNow }))

	return NewHTTPHandler(endpoint.MakeCampaignEndpoints(svc), log.NewNopLogger(), Options{Service: "mailproof", Version: "test"})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 12))
	img.Set(1, 1, color.RGBA{200, 30, 30, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name))
		h.Set("Content-Type", "image/png")
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func uploadCampaign(t *testing.T, h http.Handler) string {
	t.Helper()
	req := multipartRequest(t, "/api/v1/upload", map[string]string{
		"campaign_name":   "Spring Sale",
		"advertiser_name": "Acme",
		"subject_line":    "Spring savings are here",
		"body_copy":       "Everything is 20% off.",
		"cta_text":        "Shop now",
		"cta_url":         "https://acme.test/spring",
	}, []formFile{
		{"logo", "logo.png", pngBytes(t)},
		{"hero_images", "hero.png", pngBytes(t)},
	})

	rr := do(t, h, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var c models.Campaign
	decodeBody(t, rr, &c)
	assert.Equal(t, models.StatusUploaded, c.Status)
	require.NotEmpty(t, c.ID)
	return c.ID
}

func TestNewHTTPHandler(t *testing.T) {
	handler := NewHTTPHandler(endpoint.CampaignEndpoints{}, log.NewNopLogger(), Options{})

	assert.NotNil(t, handler)
	assert.IsType(t, &mux.Router{}, handler)
}

type healthRecorder map[string]bool

func (h healthRecorder) SetHealthCheckStatus(checkType string, healthy bool) {
	h[checkType] = healthy
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus string
		wantChecks map[string]interface{}
	}{
		{
			name:       "no checks",
			wantStatus: "healthy",
			wantChecks: map[string]interface{}{},
		},
		{
			name: "all connected",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"cache":    func(context.Context) error { return nil },
			},
			wantStatus: "healthy",
			wantChecks: map[string]interface{}{"database": "connected", "cache": "connected"},
		},
		{
			name: "storage down",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"storage":  func(context.Context) error { return errors.New("bucket unreachable") },
			},
			wantStatus: "degraded",
			wantChecks: map[string]interface{}{"database": "connected", "storage": "disconnected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := healthRecorder{}
			handler := NewHTTPHandler(endpoint.CampaignEndpoints{}, log.NewNopLogger(), Options{
				Service:        "mailproof",
				Version:        "1.2.3",
				Checks:         tt.checks,
				HealthRecorder: recorder,
			})

			rr := do(t, handler, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var response map[string]interface{}
			decodeBody(t, rr, &response)
			assert.Equal(t, "mailproof", response["service"])
			assert.Equal(t, "1.2.3", response["version"])
			assert.Equal(t, tt.wantStatus, response["status"])
			assert.Equal(t, tt.wantChecks, response["checks"])
			for name, state := range tt.wantChecks {
				assert.Equal(t, state == "connected", recorder[name], name)
			}
		})
	}
}

func TestHealthEndpoint_Details(t *testing.T) {
	handler := NewHTTPHandler(endpoint.CampaignEndpoints{}, log.NewNopLogger(), Options{
		Details: map[string]HealthDetail{
			"proof_cache": func(context.Context) interface{} { return map[string]int{"entries": 4} },
		},
	})

	rr := do(t, handler, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response map[string]interface{}
	decodeBody(t, rr, &response)
	assert.Equal(t, map[string]interface{}{"proof_cache": map[string]interface{}{"entries": 4.0}}, response["details"])
}

func TestMetricsRoute(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})

	withMetrics := NewHTTPHandler(endpoint.CampaignEndpoints{}, log.NewNopLogger(), Options{MetricsHandler: metricsHandler})
	rr := do(t, withMetrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics", rr.Body.String())

	without := NewHTTPHandler(endpoint.CampaignEndpoints{}, log.NewNopLogger(), Options{})
	rr = do(t, without, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	id := uploadCampaign(t, h)

	rr := do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/process/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var processed models.ProcessResult
	decodeBody(t, rr, &processed)
	assert.Equal(t, models.StatusProcessed, processed.Status)
	assert.Equal(t, "/api/v1/preview/"+id, processed.PreviewURL)

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/generate/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var proofResult models.ProofResult
	decodeBody(t, rr, &proofResult)
	assert.Contains(t, proofResult.HTML, "Shop now")

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/preview/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var preview models.PreviewPayload
	decodeBody(t, rr, &preview)
	assert.Equal(t, id, preview.CampaignID)
	assert.Equal(t, proofResult.HTML, preview.HTMLPreview)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/"+id+"/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var view models.StatusView
	decodeBody(t, rr, &view)
	assert.Equal(t, models.StatusReady, view.Status)
	assert.True(t, view.CanPreview)

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/approve/"+id, strings.NewReader(`{"decision":"approve","feedback":"looks good"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var decision models.DecisionResult
	decodeBody(t, rr, &decision)
	assert.Equal(t, models.StatusApproved, decision.Status)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/download/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Spring_Sale_20260501.html"`, rr.Header().Get("Content-Disposition"))
	assert.Contains(t, rr.Body.String(), "https://acme.test/spring")

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+id+"/schedule", strings.NewReader(`{"scheduled_at":"2026-05-02T09:00:00Z"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var scheduled models.Campaign
	decodeBody(t, rr, &scheduled)
	assert.Equal(t, models.SchedulingScheduled, scheduled.SchedulingStatus)

	rr = do(t, h, httptest.NewRequest(http.MethodDelete, "/api/v1/campaigns/"+id+"/schedule", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cancelled models.Campaign
	decodeBody(t, rr, &cancelled)
	assert.Equal(t, models.SchedulingNone, cancelled.SchedulingStatus)
	assert.Nil(t, cancelled.ScheduledAt)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns?status=approved&limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list models.CampaignList
	decodeBody(t, rr, &list)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 10, list.Limit)
	require.Len(t, list.Campaigns, 1)
	assert.Equal(t, id, list.Campaigns[0].ID)
}

func TestRejectAndReviewOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	id := uploadCampaign(t, h)
	require.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/process/"+id, nil)).Code)

	rr := do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/approve/"+id, strings.NewReader(`{"decision":"reject","feedback":"too loud"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+id+"/reset?clear_feedback=true", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var reset models.Campaign
	decodeBody(t, rr, &reset)
	assert.Equal(t, models.StatusUploaded, reset.Status)
	assert.Nil(t, reset.Feedback)

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+id+"/review", strings.NewReader(`{"review_status":"pending","reviewer_notes":"check legal copy"}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/review/list", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var list models.CampaignList
	decodeBody(t, rr, &list)
	require.Len(t, list.Campaigns, 1)
	assert.Equal(t, models.ReviewPending, list.Campaigns[0].ReviewStatus)
}

func TestErrorsOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	id := uploadCampaign(t, h)

	tests := []struct {
		name        string
		req         *http.Request
		wantCode    int
		wantCurrent string
		wantAllowed []string
	}{
		{
			name:     "unknown campaign",
			req:      httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/missing", nil),
			wantCode: http.StatusNotFound,
		},
		{
			name:        "proof before processing",
			req:         httptest.NewRequest(http.MethodPost, "/api/v1/generate/"+id, nil),
			wantCode:    http.StatusBadRequest,
			wantCurrent: "uploaded",
			wantAllowed: []string{"processed", "ready"},
		},
		{
			name:     "malformed json",
			req:      httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/"+id+"/edit", strings.NewReader(`{"subject_line":`)),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "empty body",
			req:      httptest.NewRequest(http.MethodPost, "/api/v1/approve/"+id, nil),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad limit",
			req:      httptest.NewRequest(http.MethodGet, "/api/v1/campaigns?limit=0", nil),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "upload without multipart",
			req:      httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader("plain")),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "replace image without file",
			req:      multipartRequest(t, "/api/v1/campaigns/"+id+"/replace-image", map[string]string{"image_type": "logo"}, nil),
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := reqcontext.NewRequestContext(tt.req.Context(), "req-7", "", "")
			rr := do(t, h, tt.req.WithContext(ctx))

			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			var resp models.ErrorResponse
			decodeBody(t, rr, &resp)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, "req-7", resp.RequestID)
			assert.Equal(t, tt.wantCurrent, resp.CurrentStatus)
			assert.Equal(t, tt.wantAllowed, resp.AllowedStatuses)
		})
	}
}

func TestReplaceImageOverHTTP(t *testing.T) {
	h := newTestHandler(t)
	id := uploadCampaign(t, h)

	req := multipartRequest(t, "/api/v1/campaigns/"+id+"/replace-image", map[string]string{"image_type": "hero_0"},
		[]formFile{{"file", "new-hero.png", pngBytes(t)}})
	rr := do(t, h, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res models.ImageReplaceResult
	decodeBody(t, rr, &res)
	assert.Equal(t, "hero_0", res.ImageType)
	assert.NotEmpty(t, res.ImageURL)
}

func TestEncodeError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{"not found", apperror.NotFound("c-1"), http.StatusNotFound, "campaign c-1 not found"},
		{"validation", apperror.Validation("limit must be positive"), http.StatusBadRequest, "limit must be positive"},
		{"state conflict", apperror.StateConflict("approve", "uploaded", "processed", "ready"), http.StatusBadRequest, ""},
		{"version conflict", apperror.Conflict("c-1"), http.StatusConflict, "campaign c-1 was modified concurrently, retry"},
		{"upstream", apperror.Upstream("s3 put failed", errors.New("timeout")), http.StatusBadGateway, "upstream dependency failed"},
		{"internal", apperror.Internal("marshal payload", errors.New("boom")), http.StatusInternalServerError, "internal server error"},
		{"unclassified", errors.New("raw failure"), http.StatusInternalServerError, "internal server error"},
		{"wrapped", fmt.Errorf("load: %w", apperror.NotFound("c-9")), http.StatusNotFound, "campaign c-9 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			encodeError(context.Background(), tt.err, rr)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			var resp models.ErrorResponse
			decodeBody(t, rr, &resp)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error)
			}
			assert.NotContains(t, resp.Error, "timeout")
			assert.NotContains(t, resp.Error, "boom")
		})
	}
}

func TestDecodeListRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    models.ListFilter
		wantErr bool
	}{
		{name: "defaults", query: "", want: models.ListFilter{Limit: models.DefaultListLimit}},
		{name: "filters", query: "status=ready&review_status=pending&limit=5&offset=10",
			want: models.ListFilter{Status: models.StatusReady, ReviewStatus: models.ReviewPending, Limit: 5, Offset: 10}},
		{name: "max limit", query: "limit=1000", want: models.ListFilter{Limit: 1000}},
		{name: "limit too large", query: "limit=1001", wantErr: true},
		{name: "limit zero", query: "limit=0", wantErr: true},
		{name: "limit not a number", query: "limit=ten", wantErr: true},
		{name: "negative offset", query: "offset=-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns?"+tt.query, nil)

			result, err := decodeListRequest(context.Background(), req)

			if tt.wantErr {
				assert.True(t, apperror.Is(err, apperror.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.(endpoint.ListRequest).Filter)
		})
	}
}

func TestDecodeReviewListRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns/review/list?review_status=approved&limit=3", nil)

	result, err := decodeReviewListRequest(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, models.ListFilter{ReviewStatus: models.ReviewApproved, OnlyReviewed: true, Limit: 3}, result.(endpoint.ListRequest).Filter)
}

func TestDecodeResetRequest(t *testing.T) {
	tests := []struct {
		query   string
		want    bool
		wantErr bool
	}{
		{query: "", want: false},
		{query: "clear_feedback=true", want: true},
		{query: "clear_feedback=0", want: false},
		{query: "clear_feedback=maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns/c-1/reset?"+tt.query, nil)
			req = mux.SetURLVars(req, map[string]string{"id": "c-1"})

			result, err := decodeResetRequest(context.Background(), req)

			if tt.wantErr {
				assert.True(t, apperror.Is(err, apperror.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, endpoint.ResetRequest{ID: "c-1", ClearFeedback: tt.want}, result)
		})
	}
}

func TestDecodeUploadRequest_TooLarge(t *testing.T) {
	req := multipartRequest(t, "/api/v1/upload", map[string]string{"campaign_name": "Big"},
		[]formFile{{"logo", "logo.png", bytes.Repeat([]byte{0x89}, 4096)}})

	_, err := decodeUploadRequest(1024)(context.Background(), req)

	assert.True(t, apperror.Is(err, apperror.KindValidation))
}
