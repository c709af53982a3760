package core

import (
	"context"
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorTaxonomyStatusMapping(t *testing.T) {
	cases := []struct {
		err      error
		status   int
		textCode string
	}{
		{AuthenticationFailure("bad signature"), http.StatusUnauthorized, ErrorCodeUnauthorized},
		{ValidationFailure("bad payload"), http.StatusBadRequest, ErrorCodeBadPayload},
		{UpstreamTransient(errors.New("502"), "order query"), http.StatusBadGateway, ErrorCodeUpstreamTransient},
		{PersistenceFailure(errors.New("conn refused"), "upsert"), http.StatusInternalServerError, ErrorCodePersistenceFailure},
	}
	for _, tc := range cases {
		mapped := MapError(tc.err)
		if mapped.Code != tc.status {
			t.Fatalf("expected status %d for %v, got %d", tc.status, tc.err, mapped.Code)
		}
		if mapped.TextCode != tc.textCode {
			t.Fatalf("expected text code %s for %v, got %s", tc.textCode, tc.err, mapped.TextCode)
		}
	}
}

func TestMapError_WrapsPlainAndContextErrors(t *testing.T) {
	if status := HTTPStatus(errors.New("boom")); status != http.StatusInternalServerError {
		t.Fatalf("expected 500 for plain error, got %d", status)
	}
	mapped := MapError(context.DeadlineExceeded)
	if mapped.Category != goerrors.CategoryExternal {
		t.Fatalf("expected timeout to map to external category, got %v", mapped.Category)
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded to be transient")
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(UpstreamTransient(errors.New("x"), "y")) {
		t.Fatalf("expected upstream failures to be transient")
	}
	if IsTransient(ValidationFailure("bad")) {
		t.Fatalf("validation failures are not transient")
	}
	if IsTransient(nil) {
		t.Fatalf("nil is not transient")
	}
}
