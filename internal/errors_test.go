package internal

import (
	"errors"
	"testing"
)

func TestConnectorError_ErrorIncludesCause(t *testing.T) {
	cause := errors.New("dial refused")
	err := Wrap(ErrTransfer, "fetching artifact", cause)

	if got := err.Error(); got == "" {
		t.Fatal("Error() returned an empty string")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected errors.Is to find wrapped cause")
	}
}

func TestConnectorError_Retryable(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{ErrTransfer, true},
		{ErrChecksumMismatch, true},
		{ErrNotFound, false},
		{ErrChecksumUnavailable, false},
		{ErrCancelled, false},
		{ErrLockTimeout, false},
	}

	for _, tt := range tests {
		err := New(tt.kind, "boom")
		if got := err.Retryable(); got != tt.retryable {
			t.Errorf("Retryable() for %s = %v, want %v", tt.kind, got, tt.retryable)
		}
	}
}

func TestKindOf_ExtractsConnectorErrorKind(t *testing.T) {
	err := New(ErrNotFound, "missing")
	if got := KindOf(err); got != ErrNotFound {
		t.Errorf("KindOf() = %v, want %v", got, ErrNotFound)
	}
}

func TestKindOf_WrappedConnectorError(t *testing.T) {
	inner := New(ErrLockTimeout, "timed out")
	wrapped := errorsWrap("during retry", inner)
	if got := KindOf(wrapped); got != ErrLockTimeout {
		t.Errorf("KindOf() on wrapped error = %v, want %v", got, ErrLockTimeout)
	}
}

func TestKindOf_DefaultsToTransferForForeignErrors(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != ErrTransfer {
		t.Errorf("KindOf() on a foreign error = %v, want %v", got, ErrTransfer)
	}
}

// errorsWrap wraps err the way a caller outside this package might, in a
// foreign error type with an Unwrap method, to prove KindOf sees through
// arbitrary wrapping layers via errors.As rather than a type assertion on
// the outermost error.
func errorsWrap(msg string, err error) error {
	return &wrappedErr{msg: msg, cause: err}
}

type wrappedErr struct {
	msg   string
	cause error
}

func (w *wrappedErr) Error() string { return w.msg + ": " + w.cause.Error() }
func (w *wrappedErr) Unwrap() error { return w.cause }
