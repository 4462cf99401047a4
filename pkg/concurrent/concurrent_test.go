package concurrent

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach(t *testing.T) {
	var sum atomic.Int64
	err := ForEach([]int{1, 2, 3, 4, 5}, 2, func(v int) error {
		sum.Add(int64(v))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), sum.Load())
}

func TestForEachReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForEach([]int{1, 2, 3}, 0, func(v int) error {
		if v == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestForEachRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 32)
	err := ForEach(items, 3, func(int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMapPreservesOrder(t *testing.T) {
	out, err := Map([]string{"a", "bb", "ccc"}, 2, func(i int, s string) (int, error) {
		return len(s)*10 + i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{10, 21, 32}, out)
}

func TestMapError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Map([]int{1, 2, 3}, 1, func(_ int, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	assert.ErrorIs(t, err, boom)
}
