package okv

import (
	"testing"
)

func TestHexHelpers(t *testing.T) {
	if got := hexstr(nil); got != "<nil>" {
		t.Fatalf("hexstr(nil) = %q, wanted <nil>", got)
	}
	if got := hexstr([]byte{}); got != "<empty>" {
		t.Fatalf("hexstr(empty) = %q, wanted <empty>", got)
	}
	if got := hexstr([]byte{0xAB, 0x01}); got != "ab01" {
		t.Fatalf("hexstr = %q, wanted ab01", got)
	}
	if a := hexAttr("raw", []byte{0x10}); a.Key != "raw" || a.Value.String() != "10" {
		t.Fatalf("hexAttr = %v, wanted raw=10", a)
	}
}

func TestMust(t *testing.T) {
	deepEqual(t, must(1, nil), 1)
	assertPanics(t, func() {
		must(0, ErrClosed)
	})
	assertPanics(t, func() {
		ensure(ErrEmptyKey)
	})
}
