package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("assigns an id and exposes it to handlers", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		var seen string
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequestIDFromContext(r.Context())
			if !ok {
				t.Fatal("expected request id in context")
			}
			if LoggerFromContext(r.Context()) == nil {
				t.Fatal("expected request logger in context")
			}
			seen = id
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/computers", nil))

		if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
			t.Fatalf("expected response header to echo %q, got %q", seen, rec.Header().Get(RequestIDHeader))
		}
		out := buf.String()
		if !strings.Contains(out, `"request completed"`) || !strings.Contains(out, `"status":418`) {
			t.Fatalf("expected completion log with status, got %s", out)
		}
		if !strings.Contains(out, seen) {
			t.Fatalf("expected request id in logs, got %s", out)
		}
	})

	t.Run("keeps a caller supplied id", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
			t.Fatalf("expected caller id, got %q", got)
		}
	})

	t.Run("replaces oversized ids", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
			t.Fatalf("expected generated uuid, got %q", got)
		}
	})
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	handler := Recoverer(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "サーバー内部でエラーが発生しました。") {
		t.Fatalf("expected localized message, got %s", rec.Body.String())
	}
}

func TestRouterAppliesMiddlewareInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewRouter(RouterConfig{
		Computers:  NewComputerHandler(&computerServiceStub{}, discardLogger()),
		Middleware: []func(http.Handler) http.Handler{mark("outer"), nil, mark("inner")},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/computers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Join(order, ",") != "outer,inner" {
		t.Fatalf("unexpected middleware order %v", order)
	}
}
