package testutil

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
)

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// Dump renders a value deterministically, for use in diffs.
func Dump(v interface{}) string {
	return spewConfig.Sdump(v)
}

// AssertEqual is assert.Equal, but on failure it also logs a unified diff of
// the two values' dumps, which reads much better for nested structures like
// expanded build plans.
func AssertEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) bool {
	t.Helper()
	if assert.ObjectsAreEqual(expected, actual) {
		return true
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(Dump(expected)),
		B:        difflib.SplitLines(Dump(actual)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err == nil && diff != "" {
		t.Log("\n" + diff)
	}
	return assert.Equal(t, expected, actual, msgAndArgs...)
}
