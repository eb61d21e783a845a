package apperr

import (
	"context"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
		code Code
	}{
		{name: "validation", err: Validation(CodeEmptyCart, "empty"), kind: KindValidation, code: CodeEmptyCart},
		{name: "wrapped authorization", err: fmt.Errorf("submit: %w", Authorization(CodePINRejected, "pin")), kind: KindAuthorization, code: CodePINRejected},
		{name: "transport", err: Transport("connection failed", context.DeadlineExceeded), kind: KindTransport, code: CodeConnectionFailed},
		{name: "foreign error", err: fmt.Errorf("boom"), kind: KindUnknown, code: CodeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Fatalf("expected kind %s, got %s", tc.kind, got)
			}
			if got := CodeOf(tc.err); got != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, got)
			}
		})
	}
}

func TestTransportUnwrapsCause(t *testing.T) {
	err := Transport("connection failed", context.DeadlineExceeded)
	if err.Unwrap() != context.DeadlineExceeded {
		t.Fatalf("expected cause to be preserved")
	}
	if MessageOf(err) != "connection failed" {
		t.Fatalf("unexpected message %q", MessageOf(err))
	}
	if Is(nil, KindTransport) {
		t.Fatalf("nil error must not match any kind")
	}
}
