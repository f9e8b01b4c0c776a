//go:build linux

package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newEpoll(t *testing.T) *Epoll {
	t.Helper()
	ep, err := EpollCreate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func TestEpollReadableEventCarriesTag(t *testing.T) {
	ep := newEpoll(t)
	a, b := socketPair(t)

	require.NoError(t, ep.Add(a, NotifyRead, 42, Level))

	events, err := ep.Wait(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = unix.Write(b, []byte("ping"))
	require.NoError(t, err)

	events, err = ep.Wait(nil, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, a, events[0].Fd)
	assert.Equal(t, Tag(42), events[0].Tag)
	assert.True(t, events[0].Flags.Has(NotifyRead))
	assert.False(t, events[0].Flags.Has(NotifyWrite))
}

func TestEpollRegistrationErrors(t *testing.T) {
	ep := newEpoll(t)
	a, _ := socketPair(t)

	assert.ErrorIs(t, ep.Add(-1, NotifyRead, 1, Level), ErrInvalidFd)
	assert.ErrorIs(t, ep.Modify(a, NotifyRead, 1, Level), ErrNotRegistered)
	assert.ErrorIs(t, ep.Remove(a), ErrNotRegistered)

	require.NoError(t, ep.Add(a, NotifyRead, 1, Level))
	assert.ErrorIs(t, ep.Add(a, NotifyRead, 2, Level), ErrAlreadyRegistered)

	tag, ok := ep.Tag(a)
	assert.True(t, ok)
	assert.Equal(t, Tag(1), tag)

	require.NoError(t, ep.Remove(a))
	_, ok = ep.Tag(a)
	assert.False(t, ok)
}

func TestEpollAddBadDescriptor(t *testing.T) {
	ep := newEpoll(t)
	err := ep.Add(1<<20, NotifyRead, 1, Level)
	assert.ErrorIs(t, err, unix.EBADF)
	_, ok := ep.Tag(1 << 20)
	assert.False(t, ok)
}

func TestEpollOneShotSuppressesUntilModified(t *testing.T) {
	ep := newEpoll(t)
	a, b := socketPair(t)

	require.NoError(t, ep.Add(a, NotifyRead, 7, OneShot))
	_, err := unix.Write(b, []byte("x"))
	require.NoError(t, err)

	events, err := ep.Wait(nil, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// the byte is still unread, yet nothing more is reported
	events, err = ep.Wait(nil, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, ep.Modify(a, NotifyRead, 8, OneShot))
	events, err = ep.Wait(nil, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Tag(8), events[0].Tag)
}

func TestEpollWriteAndHangup(t *testing.T) {
	ep := newEpoll(t)
	a, b := socketPair(t)

	require.NoError(t, ep.Add(a, NotifyWrite|NotifyShutdown, 1, Edge))
	events, err := ep.Wait(nil, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Flags.Has(NotifyWrite))

	require.NoError(t, unix.Shutdown(b, unix.SHUT_WR))
	events, err = ep.Wait(nil, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Flags.Has(NotifyShutdown))
}

func TestEpollWaitTimeout(t *testing.T) {
	ep := newEpoll(t)
	start := time.Now()
	events, err := ep.Wait(nil, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestEpollClosed(t *testing.T) {
	ep, err := EpollCreate()
	require.NoError(t, err)
	require.NoError(t, ep.Close())
	assert.ErrorIs(t, ep.Close(), ErrClosed)
	assert.ErrorIs(t, ep.Add(0, NotifyRead, 1, Level), ErrClosed)
	_, err = ep.Wait(nil, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNextTagUnique(t *testing.T) {
	a, b := NextTag(), NextTag()
	assert.NotZero(t, a)
	assert.NotEqual(t, a, b)
}

func TestNotifyOnString(t *testing.T) {
	assert.Equal(t, "none", NotifyOn(0).String())
	assert.Equal(t, "read|hangup", (NotifyRead | NotifyHangup).String())
	assert.Equal(t, "oneshot", OneShot.String())
}

func TestTimeoutMs(t *testing.T) {
	assert.Equal(t, -1, timeoutMs(-1))
	assert.Equal(t, 0, timeoutMs(0))
	assert.Equal(t, 1, timeoutMs(time.Microsecond))
	assert.Equal(t, 100, timeoutMs(100*time.Millisecond))
}
