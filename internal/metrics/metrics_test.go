package metrics

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCounter(t *testing.T) {
	t.Run("same name twice yields two", func(t *testing.T) {
		c := NewQueryCounter()
		c.Inc("graph_repos_stars")
		c.Inc("graph_repos_stars")
		assert.Equal(t, 2, c.Count("graph_repos_stars"))
	})

	t.Run("different names are independent", func(t *testing.T) {
		c := NewQueryCounter()
		assert.Equal(t, 0, c.Count("user_getter"))
		assert.Equal(t, 0, c.Count("follower_getter"))

		c.Inc("user_getter")
		c.Inc("follower_getter")
		c.Inc("follower_getter")

		assert.Equal(t, 1, c.Count("user_getter"))
		assert.Equal(t, 2, c.Count("follower_getter"))
		assert.Equal(t, 3, c.Total())
		assert.Equal(t, []string{"follower_getter", "user_getter"}, c.Names())
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		c := NewQueryCounter()
		c.Inc("a")
		snap := c.Snapshot()
		snap["a"] = 100
		assert.Equal(t, 1, c.Count("a"))
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		c := NewQueryCounter()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Inc("recursive_loc")
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, c.Count("recursive_loc"))
	})
}

func TestPerfCounter(t *testing.T) {
	sum := func(x, y int) int { return x + y }

	result, elapsed, err := PerfCounter(func() (int, error) { return sum(5, 10), nil })
	require.NoError(t, err)
	assert.Equal(t, 15, result)
	assert.GreaterOrEqual(t, elapsed, 0.0)

	boom := errors.New("boom")
	_, _, err = PerfCounter(func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_, _, _ = PerfCounter(func() (int, error) { panic("bad") })
	})
}

func TestTimingsSummary(t *testing.T) {
	var timings Timings
	assert.Equal(t, Summary{}, timings.Summary())

	timings.Record("followers", 1)
	timings.Record("stars", 3)

	s := timings.Summary()
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 4.0, s.Sum, 1e-9)
	assert.InDelta(t, 2.0, s.Mean, 1e-9)
	assert.InDelta(t, 3.0, s.Max, 1e-9)
	assert.Equal(t, "followers", timings.Entries()[0].Name)
}
