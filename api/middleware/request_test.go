package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

func TestRequestIDKeepsValidInboundID(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-abc-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if seen != "trace-abc-123" || resp.Header().Get(requestIDHeader) != "trace-abc-123" {
		t.Fatalf("expected inbound id echoed, got %q", resp.Header().Get(requestIDHeader))
	}
}

func TestRequestIDReplacesUnusableInboundID(t *testing.T) {
	cases := map[string]string{
		"empty":    "",
		"spaces":   "has spaces",
		"control":  "abc\x01",
		"too long": strings.Repeat("a", maxRequestIDLength+1),
	}
	for name, inbound := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(requestIDHeader, inbound)
			resp := httptest.NewRecorder()
			RequestID(nil)(okHandler()).ServeHTTP(resp, req)

			if _, err := uuid.Parse(resp.Header().Get(requestIDHeader)); err != nil {
				t.Fatalf("expected generated uuid, got %q", resp.Header().Get(requestIDHeader))
			}
		})
	}
}

func TestRecovererRendersInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "INTERNAL_ERROR" || strings.Contains(body.Error.Message, "boom") {
		t.Fatalf("panic value must not leak, got %+v", body.Error)
	}
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLoggingRecordsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api-test", Level: zerolog.DebugLevel, Output: &buf})

	r := chi.NewRouter()
	r.Use(Logging(logg))
	r.Get("/api/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/items/42", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["route"] != "/api/v1/items/{id}" || line["path"] != "/api/v1/items/42" {
		t.Fatalf("unexpected route fields %v", line)
	}
	if line["status"] != float64(http.StatusTeapot) || line["bytes"] != float64(5) || line["level"] != "info" {
		t.Fatalf("unexpected status fields %v", line)
	}
}

func TestLoggingDemotesProbes(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "api-test", Level: zerolog.InfoLevel, Output: &buf})

	Logging(logg)(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if buf.Len() != 0 {
		t.Fatalf("probe should log below info, got %q", buf.String())
	}
}

func TestPrincipalHelpersCompose(t *testing.T) {
	id := uuid.New()
	ctx := WithUserID(t.Context(), id.String())
	ctx = WithRole(ctx, "admin")
	ctx = WithStoreID(ctx, "store-1")

	if UserIDFromContext(ctx) != id.String() || RoleFromContext(ctx) != "admin" || StoreIDFromContext(ctx) != "store-1" {
		t.Fatal("expected every principal field preserved")
	}
	if got := ActorIDFromContext(ctx); got == nil || *got != id {
		t.Fatalf("unexpected actor %v", got)
	}
	if ActorIDFromContext(WithUserID(t.Context(), "nope")) != nil {
		t.Fatal("expected nil actor for unparseable id")
	}
}
