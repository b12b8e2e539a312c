package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromValue(t *testing.T) {
	tests := []struct {
		marker   string
		inner    string
		supplied string
		kind     Kind
		want     string
	}{
		{"", "X", "anything", KindReplace, "X"},
		{"   ", "X", "anything", KindReplace, "X"},
		{" pad", "X", "val", KindPrefix, "Xval"},
		{"\tpad", "X", "val", KindPrefix, "Xval"},
		{"pad ", "X", "val", KindTrail, "valX"},
		{"pad\t", "X", "val", KindTrail, "valX"},
		{"abc", "X", "val", KindReplace, "abc"},
	}

	for _, tt := range tests {
		s := FromValue(tt.marker, tt.inner)
		require.Equal(t, tt.kind, s.Kind(), "marker %q", tt.marker)
		require.Equal(t, tt.want, s.Process(tt.supplied), "marker %q", tt.marker)
		require.Equal(t, tt.want, MergeFuzzing(tt.marker, tt.supplied, tt.inner))
	}
}

func TestProcess(t *testing.T) {
	require.Equal(t, "d", Replace().WithData("d").Process("v"))
	require.Equal(t, "dv", Prefix().WithData("d").Process("v"))
	require.Equal(t, "vd", Trail().WithData("d").Process("v"))
	require.Equal(t, "v", Skip().Process("v"))
	require.Equal(t, "d", Noop().WithData("d").Process("v"))
}

func TestIsSkip(t *testing.T) {
	require.True(t, Skip().IsSkip())
	require.True(t, Skip().WithData("x").IsSkip())
	require.False(t, Noop().IsSkip())
	require.False(t, Replace().IsSkip())
}

func TestWithDataIsCopy(t *testing.T) {
	base := Prefix()
	a := base.WithData("a")
	b := base.WithData("b")
	require.Equal(t, "a", a.Data())
	require.Equal(t, "b", b.Data())
	require.Equal(t, "PREFIX", base.String())
}

func TestRendering(t *testing.T) {
	require.Equal(t, "SKIP", Skip().String())
	require.Equal(t, "SKIP", Skip().Truncated())
	require.Equal(t, "TRAIL with  ", Trail().WithData(" ").String())

	long := strings.Repeat("a", 40)
	require.Equal(t, "REPLACE with "+long, Replace().WithData(long).String())
	require.Equal(t, "REPLACE with "+strings.Repeat("a", 30)+"...", Replace().WithData(long).Truncated())

	exact := strings.Repeat("b", 30)
	require.Equal(t, "NOOP with "+exact, Noop().WithData(exact).Truncated())
}
