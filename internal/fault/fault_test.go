package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{Validationf("bad input"), KindValidation},
		{NotFoundf("no such task"), KindNotFound},
		{Unauthorizedf("nope"), KindUnauthorized},
		{Domainf(nil, "boom"), KindDomain},
		{errors.New("plain"), KindDomain},
	}

	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := NotFoundf("task missing")
	wrapped := fmt.Errorf("loading: %w", inner)

	if KindOf(wrapped) != KindNotFound {
		t.Error("Expected the kind to survive fmt.Errorf wrapping")
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Error("Expected IsKind to unwrap")
	}
}

func TestDomainf_WrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Domainf(cause, "write event")

	if !errors.Is(err, cause) {
		t.Error("Expected the cause to be reachable via errors.Is")
	}
	if err.Error() != "write event: disk full" {
		t.Errorf("Unexpected message: %q", err.Error())
	}
}

func TestIsKind_Nil(t *testing.T) {
	if IsKind(nil, KindDomain) {
		t.Error("Expected nil to carry no kind")
	}
}

func TestKindString(t *testing.T) {
	if KindValidation.String() != "validation" || KindDomain.String() != "domain" {
		t.Error("Unexpected kind wire names")
	}
}
