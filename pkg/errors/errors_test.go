package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		typ       string
		retryable bool
		detailsOK bool
	}{
		{code: CodeBadRequest, status: http.StatusBadRequest, typ: "bad_request", detailsOK: true},
		{code: CodeValidation, status: http.StatusUnprocessableEntity, typ: "validation_error", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, typ: "authentication_error"},
		{code: CodeNotFound, status: http.StatusNotFound, typ: "not_found"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, typ: "state_conflict", detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, typ: "rate_limit_exceeded", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, typ: "internal_error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, typ: "dependency_error", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Type != tt.typ {
			t.Fatalf("code %s expected type %q got %q", tt.code, tt.typ, meta.Type)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
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
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if !strings.Contains(wrapped.Error(), "boom") {
		t.Fatalf("expected cause in message, got %q", wrapped.Error())
	}
}

func TestAsAndIsCodeWalkChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "recommendation not found"))
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("IsCode should match wrapped code")
	}
	if IsCode(stdErrors.New("plain"), CodeNotFound) {
		t.Fatalf("IsCode should not match untyped error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := fmt.Errorf("save feedback: %w", Wrap(CodeInternal, stdErrors.New("disk full"), "insert failed"))
	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %q", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.PGCode != "" {
		t.Fatalf("expected no pg code, got %q", d.PGCode)
	}
}
