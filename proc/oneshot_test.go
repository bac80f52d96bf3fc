package proc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newFakeProcess(t *testing.T, b *fakeBackend, pid int32, st fakeState) *Process {
	t.Helper()
	b.set(pid, st)
	p, err := newProcessWithBackend(b, pid)
	require.NoError(t, err)
	return p
}

func TestOneshotSharesOneFetch(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 101, fakeState{ctime: 50, name: "worker", status: StatusRunning, ppid: 1})

	scope := p.Oneshot()
	defer scope.Close()

	name, err := p.Name()
	require.NoError(t, err)
	require.Equal(t, "worker", name)

	status, err := p.Status()
	require.NoError(t, err)
	require.Equal(t, StatusRunning, status)

	ppid, err := p.Ppid()
	require.NoError(t, err)
	require.Equal(t, int32(1), ppid)

	require.Equal(t, 1, b.fetchCount(101), "accessors inside one scope must share a single fetch")
}

func TestOneshotCloseDiscardsCache(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 102, fakeState{ctime: 50, name: "worker"})

	scope := p.Oneshot()
	_, err := p.Name()
	require.NoError(t, err)
	scope.Close()

	_, err = p.Name()
	require.NoError(t, err)
	require.Equal(t, 2, b.fetchCount(102), "a closed scope must not serve stale records")

	// Closing again is a no-op.
	scope.Close()
	_, err = p.Name()
	require.NoError(t, err)
	require.Equal(t, 3, b.fetchCount(102))
}

func TestOneshotOutsideScopeNeverCaches(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 103, fakeState{ctime: 50, name: "worker"})

	for i := 0; i < 3; i++ {
		_, err := p.Name()
		require.NoError(t, err)
	}
	require.Equal(t, 3, b.fetchCount(103))
}

func TestOneshotErrorsNotCached(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 104, fakeState{ctime: 50, name: "worker"})

	scope := p.Oneshot()
	defer scope.Close()

	b.failNextFetch(104, errors.New("transient"))
	_, err := p.Name()
	require.Error(t, err)

	name, err := p.Name()
	require.NoError(t, err)
	require.Equal(t, "worker", name)
	require.Equal(t, 2, b.fetchCount(104), "a failed fetch must be retried, not cached")

	// The successful record now serves from cache.
	_, err = p.Name()
	require.NoError(t, err)
	require.Equal(t, 2, b.fetchCount(104))
}

func TestOneshotNestedScopesShareOuterCache(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 105, fakeState{ctime: 50, name: "worker"})

	outer := p.Oneshot()
	inner := p.Oneshot()

	_, err := p.Name()
	require.NoError(t, err)

	inner.Close()
	_, err = p.Name()
	require.NoError(t, err)
	require.Equal(t, 1, b.fetchCount(105), "closing an inner scope must not drop the outer cache")

	outer.Close()
	_, err = p.Name()
	require.NoError(t, err)
	require.Equal(t, 2, b.fetchCount(105))
}

func TestWithOneshotReleasesOnError(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 106, fakeState{ctime: 50, name: "worker"})

	wantErr := errors.New("callback failed")
	err := p.WithOneshot(func() error {
		_, err := p.Name()
		require.NoError(t, err)
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, err = p.Name()
	require.NoError(t, err)
	require.Equal(t, 2, b.fetchCount(106), "the cache must be released on the error path")
}
