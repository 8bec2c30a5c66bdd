package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/prajwalbharadwajbm/mailproof/internal/apperror"
	reqcontext "github.com/prajwalbharadwajbm/mailproof/internal/context"
	"github.com/prajwalbharadwajbm/mailproof/internal/metrics"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/prajwalbharadwajbm/mailproof/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService implements the few CampaignService methods these tests call.
type stubService struct {
	service.CampaignService
	err error
}

func (s stubService) GetCampaignStatus(ctx context.Context, id string) (*models.StatusView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.StatusView{CampaignID: id, Status: models.StatusReady, CanPreview: true}, nil
}

func (s stubService) ListCampaigns(ctx context.Context, filter models.ListFilter) (*models.CampaignList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.CampaignList{Campaigns: make([]models.Campaign, 2), Total: 2}, nil
}

type recordedOp struct {
	operation string
	errKind   string
}

type opRecorder struct {
	ops []recordedOp
}

func (r *opRecorder) RecordOperation(operation string, _ time.Duration, errKind string) {
	r.ops = append(r.ops, recordedOp{operation, errKind})
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "success",
			contains: []string{"level=info", "method=GetCampaignStatus", "campaign_id=c-1", "request_id=req-42", "success=true", "user_agent=curl/8.0"},
		},
		{
			name:     "client error",
			err:      apperror.NotFound("c-1"),
			contains: []string{"level=warn", "error_kind=not_found", "success=false"},
		},
		{
			name:     "server error",
			err:      apperror.Upstream("store down", assert.AnError),
			contains: []string{"level=error", "error_kind=upstream"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			svc := NewLoggingMiddleware(kitlog.NewLogfmtLogger(&buf))(stubService{err: tt.err})
			ctx := reqcontext.NewRequestContext(context.Background(), "req-42", "curl/8.0", "10.0.0.1:5000")

			_, err := svc.GetCampaignStatus(ctx, "c-1")
			assert.Equal(t, tt.err, err)

			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestLoggingMiddleware_ListCount(t *testing.T) {
	var buf bytes.Buffer
	svc := NewLoggingMiddleware(kitlog.NewLogfmtLogger(&buf))(stubService{})

	_, err := svc.ListCampaigns(context.Background(), models.ListFilter{Status: models.StatusReady, Limit: 10})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "campaigns_count=2")
	assert.Contains(t, buf.String(), "status=ready")
}

func TestServiceMetricsMiddleware(t *testing.T) {
	rec := &opRecorder{}

	_, _ = NewServiceMetricsMiddleware(rec)(stubService{}).GetCampaignStatus(context.Background(), "c-1")
	_, _ = NewServiceMetricsMiddleware(rec)(stubService{err: apperror.StateConflict("generate proof", "uploaded", "processed")}).GetCampaignStatus(context.Background(), "c-1")

	assert.Equal(t, []recordedOp{
		{"get_status", ""},
		{"get_status", "state_conflict"},
	}, rec.ops)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := NewRequestIDMiddleware().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = reqcontext.GetRequestID(r.Context())
	}))

	t.Run("keeps upstream id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "upstream-1")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, "upstream-1", seen)
		assert.Equal(t, "upstream-1", rr.Header().Get("X-Request-ID"))
	})

	t.Run("generates id", func(t *testing.T) {
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})
}

func TestMetricsMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.NewPrometheusMetricsWith(prometheus.NewRegistry())
	r := mux.NewRouter()
	r.Use(NewMetricsMiddleware(m).Middleware)
	r.HandleFunc("/api/v1/process/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/process/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/process/{id}", "202")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPRequestsInFlight.WithLabelValues("POST", "/api/v1/process/{id}")))
}
