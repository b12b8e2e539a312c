package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeIdentical(t *testing.T) {
	require.Empty(t, Compute("hello\nworld", "hello\nworld"))
}

func TestComputeAddition(t *testing.T) {
	result := Compute("line1\nline2", "line1\nline2\nline3")
	require.Contains(t, result, "+line3")
	require.True(t, strings.HasPrefix(result, "@@ -1,2 +1,3 @@\n"), result)
}

func TestComputeDeletion(t *testing.T) {
	require.Contains(t, Compute("line1\nline2\nline3", "line1\nline3"), "-line2")
}

func TestComputeModification(t *testing.T) {
	result := Compute("hello\nworld", "hello\nearth")
	require.Contains(t, result, "-world")
	require.Contains(t, result, "+earth")
}

func TestComputeEmpty(t *testing.T) {
	require.Contains(t, Compute("", "new content"), "+new content")
	require.Contains(t, Compute("old content", ""), "-old content")
}

func TestComputeBothEmpty(t *testing.T) {
	require.Empty(t, Compute("", ""))
}

func TestUnifiedSplitsDistantChanges(t *testing.T) {
	var old, new []string
	for i := 0; i < 20; i++ {
		old = append(old, "same")
		new = append(new, "same")
	}
	old[1], new[1] = "a", "b"
	old[18], new[18] = "c", "d"

	result := Unified(strings.Join(old, "\n"), strings.Join(new, "\n"), 2)
	require.Equal(t, 2, strings.Count(result, "@@ -"), result)
	require.True(t, strings.HasPrefix(result, "@@ -1,4 +1,4 @@\n"), result)
	require.Contains(t, result, "@@ -17,4 +17,4 @@\n")
}

func TestUnifiedMergesNearbyChanges(t *testing.T) {
	result := Unified("a\nx\nb\ny\nc", "a\nX\nb\nY\nc", 1)
	require.Equal(t, 1, strings.Count(result, "@@ -"), result)
}

func TestJSON(t *testing.T) {
	result := JSON(`{"id":1,"name":"Rex"}`, `{"id":1,"name":"Max"}`)
	require.Contains(t, result, `-  "name": "Rex"`)
	require.Contains(t, result, `+  "name": "Max"`)
	require.Contains(t, result, `   "id": 1,`)
}

func TestJSONFallsBackToText(t *testing.T) {
	require.Contains(t, JSON("not json", `{"a":1}`), "-not json")
}
