//go:build linux || darwin

package reactor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWakeupChannel_coalesces(t *testing.T) {
	w, err := newWakeupChannel(nil)
	require.NoError(t, err)
	defer w.Close()

	assert.False(t, testReadable(t, w.Fd()))

	const producers = 50
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, w.Raise())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(producers), w.Pending())
	assert.True(t, testReadable(t, w.Fd()))

	// a single OS-level signal was written
	n, err := w.notifier.Drain()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	prev, err := w.ReleaseAll()
	require.NoError(t, err)
	assert.Equal(t, int64(producers), prev)
	assert.Equal(t, int64(0), w.Pending())

	prev, err = w.ReleaseAll()
	require.NoError(t, err)
	assert.Equal(t, int64(0), prev)
}

func TestWakeupChannel_release(t *testing.T) {
	w, err := newWakeupChannel(nil)
	require.NoError(t, err)
	defer w.Close()

	assert.False(t, w.Release())

	require.True(t, w.Raise())
	require.True(t, w.Raise())
	require.True(t, w.Release())
	assert.True(t, testReadable(t, w.Fd()), "consumed before the last release")
	require.True(t, w.Release())
	assert.False(t, testReadable(t, w.Fd()))
	assert.False(t, w.Release())

	require.True(t, w.Raise())
	assert.True(t, testReadable(t, w.Fd()), "signalled again after reaching zero")
}

func TestNotifier(t *testing.T) {
	n, err := NewNotifier()
	require.NoError(t, err)

	n2, err := n.Drain()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n2)

	require.NoError(t, n.Notify())
	require.NoError(t, n.Notify())
	require.NoError(t, n.Notify())
	assert.True(t, testReadable(t, n.Fd()))
	n2, err = n.Drain()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n2)
	assert.False(t, testReadable(t, n.Fd()))

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Notify(), ErrClosed)
	_, err = n.Drain()
	assert.ErrorIs(t, err, ErrClosed)
}
