package errs

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

var errRoot = errors.New("root cause")

func TestWrapPreservesChain(t *testing.T) {
	err := Wrapf(Wrap(errRoot, "scan document"), "job %s", "j-1")
	if !errors.Is(err, errRoot) {
		t.Fatalf("errors.Is(%v, errRoot) = false", err)
	}
	if got := err.Error(); got != "job j-1: scan document: root cause" {
		t.Fatalf("Error() = %q", got)
	}
	if Wrap(nil, "noop") != nil || Wrapf(nil, "noop %d", 1) != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestPermanentSurvivesWrapping(t *testing.T) {
	err := Wrap(Permanent(errRoot), "quarantine")
	if !IsPermanent(err) {
		t.Fatalf("IsPermanent() = false, want true")
	}
	if !errors.Is(err, errRoot) {
		t.Fatalf("permanent error lost its cause")
	}
	if IsPermanent(Wrap(errRoot, "transient")) {
		t.Fatalf("IsPermanent() = true for unmarked error")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must be nil")
	}
}

func TestLoggableIncludesStackOnce(t *testing.T) {
	err := WithStack(WithStack(errRoot))
	var se *StackError
	if !errors.As(err, &se) || errors.Unwrap(se) != errRoot {
		t.Fatalf("WithStack() double wrapped: %#v", err)
	}

	value := Loggable(Wrap(err, "outer")).LogValue()
	if value.Kind() != slog.KindGroup {
		t.Fatalf("LogValue kind = %v", value.Kind())
	}
	found := false
	for _, attr := range value.Group() {
		if attr.Key == "stack" && strings.Contains(attr.Value.String(), "goroutine") {
			found = true
		}
	}
	if !found {
		t.Fatalf("LogValue() missing stack attr")
	}
}
