package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeEmptyCart, status: http.StatusUnprocessableEntity, publicMsg: "cart is empty"},
		{code: CodeBackend, status: http.StatusBadGateway, publicMsg: "backend rejected the request", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing quantity")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing quantity" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "quantity"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "kitchen role required")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestBackendKeepsPostgresMessage(t *testing.T) {
	pqErr := &pq.Error{Code: "P0001", Message: "insufficient stock for product"}
	err := Backend(fmt.Errorf("butcher_chicken: %w", pqErr))
	if err.Code() != CodeBackend {
		t.Fatalf("expected backend code, got %s", err.Code())
	}
	if err.PublicMessage() != "insufficient stock for product" {
		t.Fatalf("unexpected public message %q", err.PublicMessage())
	}
	if Backend(nil) != nil {
		t.Fatalf("Backend(nil) should return nil")
	}
}

func TestBackendPreservesTypedErrors(t *testing.T) {
	typed := New(CodeNotFound, "order not found")
	if got := Backend(typed); got.Code() != CodeNotFound {
		t.Fatalf("expected typed error to pass through, got %s", got.Code())
	}
}

func TestPublicMessageHidesInternalDetails(t *testing.T) {
	err := Wrap(CodeInternal, stdErrors.New("dial tcp"), "redis unavailable")
	if err.PublicMessage() != "internal server error" {
		t.Fatalf("unexpected public message %q", err.PublicMessage())
	}
}

func TestDumpCollectsChainAndPostgresFields(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Constraint: "daily_sales_order_id_key", Table: "daily_sales"}
	d := Dump(Wrap(CodeConflict, pqErr, "insert sale"))
	if d.Code != CodeConflict {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "daily_sales_order_id_key" || d.PGTable != "daily_sales" {
		t.Fatalf("postgres fields not extracted: %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(d.Chain))
	}
}

func TestDumpCollectsSQLiteCode(t *testing.T) {
	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	d := Dump(Wrap(CodeConflict, fmt.Errorf("create order: %w", liteErr), "insert order"))
	if d.SQLiteCode != sqlite3.ErrConstraintUnique.Error() {
		t.Fatalf("sqlite code not extracted: %+v", d)
	}
	if d.PGCode != "" {
		t.Fatalf("unexpected postgres code %q", d.PGCode)
	}
}

func TestBackendClassifiesIntegrityViolations(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "pq unique", err: &pq.Error{Code: "23505"}, want: CodeConflict},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, want: CodeValidation},
		{name: "pq check", err: &pq.Error{Code: "23514", Message: "quantity must be positive"}, want: CodeValidation},
		{name: "sqlite unique", err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: CodeConflict},
		{name: "plain", err: stdErrors.New("insufficient live stock"), want: CodeBackend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backend(tt.err).Code(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestBackendCheckViolationSurfacesConstraintMessage(t *testing.T) {
	err := Backend(&pq.Error{Code: "23514", Message: "quantity must be positive"})
	if err.PublicMessage() != "quantity must be positive" {
		t.Fatalf("unexpected public message %q", err.PublicMessage())
	}
}
