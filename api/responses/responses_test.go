package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/stockhold-backend/pkg/errors"
	"github.com/angelmondragon/stockhold-backend/pkg/logger"
)

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"sku": "SKU-1"})

	if w.Code != http.StatusCreated || w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data["sku"] != "SKU-1" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name:        "validation keeps message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").WithDetails(map[string]string{"field": "quantity"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "quantity must be positive",
			wantDetails: true,
		},
		{
			name:    "not found wrapped by fmt",
			err:     fmt.Errorf("load: %w", pkgerrors.New(pkgerrors.CodeNotFound, "item not found")),
			status:  http.StatusNotFound,
			code:    pkgerrors.CodeNotFound,
			message: "item not found",
		},
		{
			name:    "dependency hides message",
			err:     pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp: refused"), "list items"),
			status:  http.StatusServiceUnavailable,
			code:    pkgerrors.CodeDependency,
			message: "dependency unavailable",
		},
		{
			name:    "plain error is internal",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), logger.Nop(), w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, w.Code)
			}
			var body ErrorEnvelope
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != string(tc.code) || body.Error.Message != tc.message {
				t.Fatalf("unexpected error body %+v", body.Error)
			}
			if (body.Error.Details != nil) != tc.wantDetails {
				t.Fatalf("details present=%v want %v", body.Error.Details != nil, tc.wantDetails)
			}
		})
	}
}

func TestWriteErrorLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeConflict, "sku taken"))
	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %q", buf.String())
	}
	for i, want := range []string{"warn", "error"} {
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry["level"] != want {
			t.Fatalf("line %d: expected level %s got %v", i, want, entry["level"])
		}
	}
}
