package inventory

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndKindOf(t *testing.T) {
	err := New(KindInvalidCut, "piece length %d exceeds roll length", 12)
	if KindOf(err) != KindInvalidCut {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindInvalidCut)
	}
	if err.Error() != "InvalidCut: piece length 12 exceeds roll length" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestKindOfUnrelatedError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != "" {
		t.Errorf("KindOf(plain error) = %q, want empty", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("unique_violation")
	err := Wrap(KindDuplicateBatchCode, cause, "batch code %q already exists", "X-1")
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if KindOf(err) != KindDuplicateBatchCode {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindDuplicateBatchCode)
	}
}

func TestAtItemAttachesIndex(t *testing.T) {
	err := AtItem(KindInsufficientPieces, 2, "only %d pieces available", 1)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("errors.As failed")
	}
	if e.Item == nil || *e.Item != 2 {
		t.Errorf("Item = %v, want 2", e.Item)
	}
	if e.Error() != "InsufficientPieces: only 1 pieces available (item 2)" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindPiecesLocked, true},
		{KindConcurrent, true},
		{KindInvalidDispatch, false},
		{KindNotFound, false},
	}
	for _, tc := range cases {
		err := New(tc.kind, "x")
		if got := Retryable(err); got != tc.want {
			t.Errorf("Retryable(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestRetryableWrappedError(t *testing.T) {
	inner := New(KindConcurrent, "stock %s version conflict", "abc")
	outer := fmt.Errorf("apply delta: %w", inner)
	if !Retryable(outer) {
		t.Errorf("Retryable(wrapped Concurrent error) = false, want true")
	}
}
