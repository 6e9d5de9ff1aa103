package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nijaru/yt-kb/config"
	"github.com/nijaru/yt-kb/logger"
)

func TestLoggingMiddleware(t *testing.T) {
	var gotLogger bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLogger = r.Context().Value(LoggerKey) != nil
		w.WriteHeader(http.StatusTeapot)
	})

	loggedHandler := Chain(handler, RequestID(), Logging(logger.Discard()))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()
	loggedHandler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusTeapot {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusTeapot)
	}
	if !gotLogger {
		t.Error("expected request-scoped logger in context")
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get("X-Request-ID") != seen {
		t.Errorf("expected generated request id, got %q / %q", seen, rr.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("expected caller request id, got %q", seen)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if rr.Body.String() != `{"detail": "Internal server error"}` {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PATCH"},
		MaxAge:         600,
	}
	called := false
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/jobs", nil))

	if called {
		t.Error("preflight must not reach the handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") != "GET,PATCH" {
		t.Errorf("unexpected methods header %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
	if rr.Header().Get("Access-Control-Max-Age") != "600" {
		t.Errorf("unexpected max age %q", rr.Header().Get("Access-Control-Max-Age"))
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rr.Code)
	}

	ws := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	ws.Header.Set("Upgrade", "websocket")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, ws)
	if rr.Code != http.StatusOK {
		t.Fatalf("websocket upgrade should bypass the limiter, got %d", rr.Code)
	}
}

func TestTimeout(t *testing.T) {
	var hasDeadline bool
	handler := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hasDeadline {
		t.Error("expected request deadline")
	}

	ws := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	ws.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), ws)
	if hasDeadline {
		t.Error("websocket requests must not get a deadline")
	}
}
