package gc

import (
	"strings"
	"testing"
)

func TestRuntimePanicFormatsMessage(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("runtimePanic did not panic")
		}
		msg, ok := r.(string)
		if !ok {
			t.Fatalf("panic value is %T, want string", r)
		}
		if !strings.Contains(msg, "gc: ") {
			t.Errorf("panic message %q missing gc: prefix", msg)
		}
		if !strings.Contains(msg, "block 42") {
			t.Errorf("panic message %q missing formatted argument", msg)
		}
	}()
	runtimePanic("invariant broken at %s", "block 42")
}

func TestErrorsAreDistinct(t *testing.T) {
	if ErrNeedGC == ErrOOM {
		t.Fatalf("ErrNeedGC and ErrOOM must be distinct sentinel errors")
	}
	if ErrNeedGC.Error() == "" || ErrOOM.Error() == "" {
		t.Fatalf("sentinel errors should carry a non-empty message")
	}
}
