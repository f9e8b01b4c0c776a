//go:build linux

package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyFdWakesWait(t *testing.T) {
	ep := newEpoll(t)
	n, err := NewNotifyFd()
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, ep.Add(n.Fd(), NotifyRead, 1, Level))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = n.Notify()
	}()

	events, err := ep.Wait(nil, -1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, n.Fd(), events[0].Fd)

	require.NoError(t, n.Notify())
	count, err := n.Drain()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	count, err = n.Drain()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTimerFdFiresOnce(t *testing.T) {
	ep := newEpoll(t)
	tf, err := NewTimerFd()
	require.NoError(t, err)
	defer tf.Close()

	require.NoError(t, ep.Add(tf.Fd(), NotifyRead, 1, Level))
	start := time.Now()
	require.NoError(t, tf.Arm(30*time.Millisecond))

	events, err := ep.Wait(nil, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	expirations, err := tf.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), expirations)

	events, err = ep.Wait(nil, 60*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTimerFdDisarm(t *testing.T) {
	ep := newEpoll(t)
	tf, err := NewTimerFd()
	require.NoError(t, err)
	defer tf.Close()

	require.NoError(t, ep.Add(tf.Fd(), NotifyRead, 1, Level))
	require.NoError(t, tf.Arm(20*time.Millisecond))
	require.NoError(t, tf.Disarm())

	events, err := ep.Wait(nil, 60*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)

	expirations, err := tf.Read()
	require.NoError(t, err)
	assert.Zero(t, expirations)
}
