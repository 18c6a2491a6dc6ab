package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("redis: connection refused")
	err := Wrap(CodeStoreUnavailable, cause, "load guest cart")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeStoreUnavailable {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeSyncFailed, "remote write exhausted retries")
	outer := fmt.Errorf("merge: %w", inner)

	typed := As(outer)
	if typed == nil || typed.Code() != CodeSyncFailed {
		t.Fatalf("expected SYNC_FAILED in chain, got %v", typed)
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NO_SUCH_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestRetryableCodes(t *testing.T) {
	t.Parallel()

	if !IsRetryable(New(CodeStoreUnavailable, "down")) {
		t.Fatal("STORE_UNAVAILABLE should be retryable")
	}
	if !IsRetryable(New(CodeSyncFailed, "exhausted")) {
		t.Fatal("SYNC_FAILED should be retryable")
	}
	if IsRetryable(New(CodeInvalidQuantity, "bad qty")) {
		t.Fatal("INVALID_QUANTITY should not be retryable")
	}
	if IsRetryable(stdErrors.New("untyped")) {
		t.Fatal("untyped errors are not retryable")
	}
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", New(CodeInvalidQuantity, "qty < 1"))
	if !HasCode(err, CodeInvalidQuantity) {
		t.Fatal("expected INVALID_QUANTITY")
	}
	if HasCode(err, CodeSyncFailed) {
		t.Fatal("unexpected SYNC_FAILED match")
	}
}
