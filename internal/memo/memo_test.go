package memo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_LoadsOnce(t *testing.T) {
	t.Parallel()
	c := New[int]()
	var calls atomic.Int32

	load := func() (int, error) {
		calls.Add(1)
		return 7, nil
	}
	for range 3 {
		v, err := c.Do("k", load)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ConcurrentMissesShareLoad(t *testing.T) {
	t.Parallel()
	c := New[string]()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Do("blob", func() (string, error) {
				calls.Add(1)
				<-release
				return "decoded", nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "decoded", v)
		}()
	}
	close(release)
	wg.Wait()

	v, ok := c.Get("blob")
	assert.True(t, ok)
	assert.Equal(t, "decoded", v)
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()
	c := New[int]()
	boom := errors.New("boom")

	_, err := c.Do("k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	v, err := c.Do("k", func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestCache_Reset(t *testing.T) {
	t.Parallel()
	c := New[int]()
	_, err := c.Do("k", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	c.Reset()
	_, ok := c.Get("k")
	assert.False(t, ok)
}
