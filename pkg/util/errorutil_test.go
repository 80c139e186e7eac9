package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestDomainErrorMapping(t *testing.T) {
	t.Run("pgx no rows maps to not found", func(t *testing.T) {
		de := ToDomainError(fmt.Errorf("lookup: %w", pgx.ErrNoRows))
		if de.Code != "NOT_FOUND" || de.HTTPStatus != http.StatusNotFound {
			t.Fatalf("mapped = %+v, want NOT_FOUND/404", de)
		}
	})

	t.Run("domain errors pass through unchanged", func(t *testing.T) {
		original := NewConflict("query already completed", map[string]any{"query_id": "q-1"})
		de := ToDomainError(fmt.Errorf("wrapped: %w", original))
		if de.Code != "CONFLICT" || de.HTTPStatus != http.StatusConflict {
			t.Fatalf("mapped = %+v, want CONFLICT/409", de)
		}
		if de.Details["query_id"] != "q-1" {
			t.Fatalf("details = %v", de.Details)
		}
	})

	t.Run("unknown errors become internal", func(t *testing.T) {
		cause := errors.New("connection refused")
		de := ToDomainError(cause)
		if de.Code != "INTERNAL_ERROR" || de.HTTPStatus != http.StatusInternalServerError {
			t.Fatalf("mapped = %+v, want INTERNAL_ERROR/500", de)
		}
		if !errors.Is(de, cause) {
			t.Fatal("cause not preserved through Unwrap")
		}
	})

	t.Run("nil maps to nil", func(t *testing.T) {
		if de := ToDomainError(nil); de != nil {
			t.Fatalf("mapped = %+v, want nil", de)
		}
	})

	t.Run("constructors set codes and statuses", func(t *testing.T) {
		cases := []struct {
			err    error
			code   string
			status int
		}{
			{NewValidationError("bad input", nil), "VALIDATION_FAILED", http.StatusBadRequest},
			{NewNotFound("query", nil), "NOT_FOUND", http.StatusNotFound},
			{NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
			{NewForbidden("wrong role"), "FORBIDDEN", http.StatusForbidden},
			{NewConflict("already completed", nil), "CONFLICT", http.StatusConflict},
		}
		for _, tc := range cases {
			var de *DomainError
			if !errors.As(tc.err, &de) {
				t.Fatalf("%v is not a DomainError", tc.err)
			}
			if de.Code != tc.code || de.HTTPStatus != tc.status {
				t.Fatalf("got %s/%d, want %s/%d", de.Code, de.HTTPStatus, tc.code, tc.status)
			}
		}
	})
}
