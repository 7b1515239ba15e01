package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestCatalog(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		details   bool
		message   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, false, true},
		{CodeForbidden, http.StatusForbidden, false, false, true},
		{CodeNotFound, http.StatusNotFound, false, false, true},
		{CodeConflict, http.StatusConflict, false, true, true},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true, true},
		{CodeIdempotency, http.StatusConflict, false, true, true},
		{CodeRateLimit, http.StatusTooManyRequests, false, false, true},
		{CodeInternal, http.StatusInternalServerError, true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, true, true, false},
	}
	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status || meta.Retryable != tt.retryable ||
			meta.DetailsAllowed != tt.details || meta.MessageAllowed != tt.message {
			t.Fatalf("%s: unexpected metadata %+v", tt.code, meta)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("%s: missing public message", tt.code)
		}
	}
	if MetadataFor("NOPE") != MetadataFor(CodeInternal) {
		t.Fatal("unknown codes should render as internal")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "insert movement").WithDetails(map[string]any{"table": "inventory_movements"})

	if !stderrors.Is(err, cause) {
		t.Fatal("cause lost")
	}
	if err.Error() != "DEPENDENCY_ERROR: insert movement: connection reset" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if err.Details() == nil || err.Message() != "insert movement" {
		t.Fatalf("unexpected error %+v", err)
	}
	if New(CodeNotFound, "item not found").Error() != "NOT_FOUND: item not found" {
		t.Fatal("unexpected message without cause")
	}
}

func TestLookupHelpers(t *testing.T) {
	typed := New(CodeStateConflict, "reservation already fulfilled")
	wrapped := fmt.Errorf("fulfill: %w", typed)

	if As(wrapped) != typed {
		t.Fatal("As should find the typed error through fmt wrapping")
	}
	if !IsCode(wrapped, CodeStateConflict) || IsCode(wrapped, CodeConflict) {
		t.Fatal("IsCode mismatch")
	}
	if CodeOf(stderrors.New("plain")) != CodeInternal || CodeOf(wrapped) != CodeStateConflict {
		t.Fatal("CodeOf mismatch")
	}
	if As(nil) != nil {
		t.Fatal("As(nil) should be nil")
	}

	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Error() != "" || nilErr.WithDetails("x") != nil {
		t.Fatal("nil receiver helpers should be safe")
	}
}

func TestDump(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "chk_inventory_items_reserved_le_on_hand", TableName: "inventory_items"}
	dump := Dump(Wrap(CodeConflict, fmt.Errorf("update item: %w", pgErr), "stock insufficient"))

	if dump.Code != CodeConflict || len(dump.Chain) != 3 {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if dump.PGCode != "23514" || dump.PGConstraint != "chk_inventory_items_reserved_le_on_hand" || dump.PGTable != "inventory_items" {
		t.Fatalf("pgx fields missing: %+v", dump)
	}

	dump = Dump(&pq.Error{Code: "23505", Constraint: "ux_inventory_items_sku"})
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_inventory_items_sku" || dump.Code != "" {
		t.Fatalf("pq fields missing: %+v", dump)
	}

	if Dump(nil).TopMessage != "" {
		t.Fatal("nil error should dump empty")
	}
}
