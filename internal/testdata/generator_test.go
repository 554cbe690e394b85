package testdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDemoIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Demo(42, 3)
	b := Demo(42, 3)
	require.Equal(t, a, b)
	require.Len(t, a.Iterations, 3)
	require.Len(t, a.Teams, 3)
	require.NotEmpty(t, a.WorkItems)

	ids := map[int]bool{}
	for _, w := range a.WorkItems {
		require.False(t, ids[w.ID], "duplicate id %d", w.ID)
		ids[w.ID] = true
	}
	for _, l := range a.Links {
		require.True(t, ids[l.Source])
		require.True(t, ids[l.Target])
	}
	require.Equal(t, IterationPath(1), a.Teams[0].CurrentIteration)
}
