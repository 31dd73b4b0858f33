package test

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tracemap/tracemap/internal/logger"
)

func AssertEqual(t *testing.T, observed interface{}, expected interface{}) {
	t.Helper()
	if observed != expected {
		t.Fatalf("%v != %v", observed, expected)
	}
}

func AssertEqualWithDiff(t *testing.T, observed string, expected string) {
	t.Helper()
	if observed != expected {
		stderr := logger.GetTerminalInfo(os.Stderr)
		t.Fatal(Diff(expected, observed, stderr.UseColorEscapes))
	}
}

// AssertDeepEqual compares structured values. Nil and empty slices or maps
// are treated as the same thing.
func AssertDeepEqual(t *testing.T, observed interface{}, expected interface{}, options ...cmp.Option) {
	t.Helper()
	options = append(options, cmpopts.EquateEmpty())
	if diff := cmp.Diff(expected, observed, options...); diff != "" {
		t.Fatalf("mismatch (-expected +observed):\n%s", diff)
	}
}
