package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeConflict, http.StatusConflict, true},
		{CodeStaleBalance, http.StatusConflict, true},
		{CodeInsufficientContext, http.StatusUnprocessableEntity, false},
		{CodeIntegrity, http.StatusInternalServerError, false},
		{CodeInternal, http.StatusInternalServerError, true},
		{Code("UNKNOWN"), http.StatusInternalServerError, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			meta := MetadataFor(tc.code)
			if meta.HTTPStatus != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, meta.HTTPStatus)
			}
			if meta.Retryable != tc.retryable {
				t.Fatalf("expected retryable=%v", tc.retryable)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("row locked")
	err := Wrap(CodeConflict, cause, "allocation in flight")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	inner := New(CodeStaleBalance, "version mismatch")
	outer := fmt.Errorf("recompute balance: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error from wrapped chain")
	}
	if typed.Code() != CodeStaleBalance {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeIntegrity, "duplicate allocation"))
	if !HasCode(err, CodeIntegrity) {
		t.Fatal("expected HasCode to match through the chain")
	}
	if HasCode(err, CodeConflict) {
		t.Fatal("unexpected match for different code")
	}
	if HasCode(nil, CodeConflict) {
		t.Fatal("nil error should never match")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad rate").WithDetails(map[string]string{"commission_rate": "must be between 0 and 100"})
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details["commission_rate"] == "" {
		t.Fatal("expected details to round-trip")
	}
}
