package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/text/encoding/charmap"

	"github.com/haasonsaas/concierge/internal/guests"
	"github.com/haasonsaas/concierge/internal/observability"
	"github.com/haasonsaas/concierge/internal/storage"
	"github.com/haasonsaas/concierge/pkg/models"
)

type failingRegistrar struct{}

func (failingRegistrar) Register(context.Context, *guests.Registration, guests.Source) (*models.Guest, error) {
	return nil, errors.New("database is down")
}

type recordedRequest struct {
	method, path, code string
}

type fakeRecorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, code string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, recordedRequest{method, path, code})
}

func newTestServer(t *testing.T, cfg Config) (*Server, storage.GuestStore) {
	t.Helper()
	store := storage.NewMemoryGuestStore()
	if cfg.Guests == nil {
		svc, err := guests.NewService(guests.Config{Store: store})
		if err != nil {
			t.Fatalf("guests.NewService: %v", err)
		}
		cfg.Guests = svc
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, store
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNew_RequiresRegistrar(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["status"] != "healthy" || body["service"] != ServiceName {
		t.Errorf("body = %v", body)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		wantCode int
		wantErr  string
		wantMsg  string
	}{
		{
			name:     "full payload",
			body:     []byte(`{"name":"Maria","guest_count":2,"confirmation_status":"confirmed","comment":"Vegan"}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "defaults",
			body:     []byte(`{"name":"Oleg"}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "missing name",
			body:     []byte(`{"guest_count":2}`),
			wantCode: http.StatusBadRequest,
			wantErr:  CodeValidation,
			wantMsg:  "Name is required",
		},
		{
			name:     "too many guests",
			body:     []byte(`{"name":"A","guest_count":25}`),
			wantCode: http.StatusBadRequest,
			wantErr:  CodeValidation,
			wantMsg:  "Guest count cannot exceed 20",
		},
		{
			name:     "wrong type",
			body:     []byte(`{"name":"A","guest_count":"two"}`),
			wantCode: http.StatusBadRequest,
			wantErr:  CodeValidation,
		},
		{
			name:     "not json",
			body:     []byte(`name=A`),
			wantCode: http.StatusBadRequest,
			wantErr:  CodeInvalidRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, Config{})
			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register", tt.body, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			body := decodeEnvelope(t, rec)
			if tt.wantErr == "" {
				if body["success"] != true {
					t.Errorf("body = %v", body)
				}
				return
			}
			errBody, _ := body["error"].(map[string]any)
			if errBody["code"] != tt.wantErr {
				t.Errorf("code = %v, want %s", errBody["code"], tt.wantErr)
			}
			if tt.wantMsg != "" && errBody["message"] != tt.wantMsg {
				t.Errorf("message = %v, want %s", errBody["message"], tt.wantMsg)
			}
		})
	}
}

func TestRegister_StoresGuest(t *testing.T) {
	s, store := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register",
		[]byte(`{"name":"  Maria ","guest_count":3}`), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	list, err := store.List(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}
	if list[0].Name != "Maria" || list[0].GuestCount != 3 || list[0].Status != models.StatusPending {
		t.Errorf("guest = %+v", list[0])
	}

	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	if data["name"] != "Maria" || data["confirmation_status"] != "pending" {
		t.Errorf("data = %v", data)
	}
}

func TestRegister_Windows1251Body(t *testing.T) {
	s, store := newTestServer(t, Config{})
	body, err := charmap.Windows1251.NewEncoder().Bytes([]byte(`{"name":"Мария","comment":"Без мяса"}`))
	if err != nil {
		t.Fatal(err)
	}
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	list, _ := store.List(context.Background())
	if len(list) != 1 || list[0].Name != "Мария" || list[0].Comment != "Без мяса" {
		t.Errorf("guests = %+v", list)
	}
}

func TestRegister_StoreFailure(t *testing.T) {
	s, _ := newTestServer(t, Config{Guests: failingRegistrar{}})
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register", []byte(`{"name":"A"}`), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	errBody := decodeEnvelope(t, rec)["error"].(map[string]any)
	if errBody["code"] != CodeInternal {
		t.Errorf("code = %v", errBody["code"])
	}
	if strings.Contains(rec.Body.String(), "database is down") {
		t.Error("internal error leaked to the client")
	}
}

func TestRegister_BodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxBodyBytes: 16})
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register",
		[]byte(`{"name":"A very long name indeed"}`), nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNotFound(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	rec := do(t, s.Handler(), http.MethodGet, "/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	errBody := decodeEnvelope(t, rec)["error"].(map[string]any)
	if errBody["code"] != CodeNotFound {
		t.Errorf("code = %v", errBody["code"])
	}
}

func TestCORS(t *testing.T) {
	t.Run("any origin", func(t *testing.T) {
		s, _ := newTestServer(t, Config{})
		rec := do(t, s.Handler(), http.MethodOptions, "/api/v1/guests/register", nil, map[string]string{
			"Origin":                        "https://wedding.example",
			"Access-Control-Request-Method": http.MethodPost,
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("allow origin = %q", got)
		}
	})

	t.Run("restricted", func(t *testing.T) {
		s, _ := newTestServer(t, Config{AllowedOrigins: []string{"https://wedding.example"}})
		rec := do(t, s.Handler(), http.MethodOptions, "/api/v1/guests/register", nil, map[string]string{
			"Origin":                        "https://wedding.example",
			"Access-Control-Request-Method": http.MethodPost,
		})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://wedding.example" {
			t.Errorf("allow origin = %q", got)
		}

		rec = do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register", []byte(`{"name":"A"}`), map[string]string{
			"Origin": "https://evil.example",
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("foreign origin status = %d", rec.Code)
		}
	})
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := do(t, s.Handler(), http.MethodGet, "/health", nil, nil)
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("request id not assigned")
	}

	rec = do(t, s.Handler(), http.MethodGet, "/health", nil, map[string]string{requestIDHeader: "abc-123"})
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	s, _ := newTestServer(t, Config{
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	do(t, s.Handler(), http.MethodGet, "/health", nil, nil)
	do(t, s.Handler(), http.MethodPost, "/api/v1/guests/register", []byte(`{}`), nil)

	if got := testutil.ToFloat64(metrics.HTTPRequestCounter.WithLabelValues(http.MethodGet, "/health", "200")); got != 1 {
		t.Errorf("health requests = %v", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestCounter.WithLabelValues(http.MethodPost, "/api/v1/guests/register", "400")); got != 1 {
		t.Errorf("failed registrations = %v", got)
	}

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "concierge_http_requests_total") {
		t.Errorf("metrics endpoint: %d", rec.Code)
	}
}

func TestMetricsRouteLabel(t *testing.T) {
	rec := &fakeRecorder{}
	s, _ := newTestServer(t, Config{Metrics: rec})
	do(t, s.Handler(), http.MethodGet, "/does/not/exist", nil, nil)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.reqs) != 1 || rec.reqs[0].path != "unmatched" || rec.reqs[0].code != "404" {
		t.Errorf("recorded = %+v", rec.reqs)
	}
}

func TestWebhookMount(t *testing.T) {
	var hits int
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})
	s, _ := newTestServer(t, Config{Webhook: webhook, WebhookPath: "/telegram/webhook"})

	rec := do(t, s.Handler(), http.MethodPost, "/telegram/webhook", []byte(`{}`), nil)
	if rec.Code != http.StatusOK || hits != 1 {
		t.Errorf("status = %d, hits = %d", rec.Code, hits)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, time.Second) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
