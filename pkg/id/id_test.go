package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsMonotonic(t *testing.T) {
	t.Parallel()

	g := NewGen(1)
	fixed := time.Date(2026, 1, 24, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.New()
	}
	assert.True(t, sort.StringsAreSorted(ids))

	seen := map[string]bool{}
	for _, id := range ids {
		assert.Len(t, id, 26)
		assert.False(t, seen[id])
		seen[id] = true
	}

	ts, err := Time(ids[0])
	require.NoError(t, err)
	assert.True(t, fixed.Equal(ts))
}

func TestTimeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Time("not-a-ulid")
	assert.Error(t, err)
	_, err = Time(New())
	assert.NoError(t, err)
}
