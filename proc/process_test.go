package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewProcessCapturesToken(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.set(201, fakeState{ctime: 123.5, name: "init"})

	p, err := newProcessWithBackend(b, 201)
	require.NoError(t, err)
	require.Equal(t, int32(201), p.Pid())
	require.Equal(t, 123.5, p.CreateTime())
}

func TestNewProcessUnknownPid(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()

	_, err := newProcessWithBackend(b, 202)
	require.True(t, IsNoSuchProcess(err))

	_, err = newProcessWithBackend(b, -1)
	require.True(t, IsNoSuchProcess(err))
}

func TestReuseGuardDetectsRecycledPid(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 203, fakeState{ctime: 100, name: "victim"})
	require.True(t, p.IsRunning())

	// The PID is recycled by an unrelated process.
	b.set(203, fakeState{ctime: 200, name: "impostor"})
	require.False(t, p.IsRunning())

	err := p.SendSignal(unix.SIGTERM)
	require.True(t, IsNoSuchProcess(err), "a stale handle must never signal the impostor")

	_, err = p.Parent()
	require.True(t, IsNoSuchProcess(err))
}

func TestReuseGuardLatchesDead(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p := newFakeProcess(t, b, 204, fakeState{ctime: 100, name: "victim"})

	b.remove(204)
	require.False(t, p.IsRunning())

	// Even restoring the original token does not revive the handle.
	b.set(204, fakeState{ctime: 100, name: "victim"})
	require.False(t, p.IsRunning())
}

func TestEqualComparesPidAndToken(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	p1 := newFakeProcess(t, b, 205, fakeState{ctime: 100})
	p2, err := newProcessWithBackend(b, 205)
	require.NoError(t, err)

	require.True(t, p1.Equal(p2))
	require.False(t, p1.Equal(nil))

	b.set(205, fakeState{ctime: 300})
	p3, err := newProcessWithBackend(b, 205)
	require.NoError(t, err)
	require.False(t, p1.Equal(p3), "same PID with a different token is a different process")
}

func TestParentChain(t *testing.T) {
	t.Parallel()

	b := newFakeBackend()
	b.set(1, fakeState{ctime: 1, name: "init", ppid: 0})
	b.set(210, fakeState{ctime: 10, name: "daemon", ppid: 1})
	p := newFakeProcess(t, b, 211, fakeState{ctime: 20, name: "worker", ppid: 210})

	parent, err := p.Parent()
	require.NoError(t, err)
	require.Equal(t, int32(210), parent.Pid())

	parents, err := p.Parents()
	require.NoError(t, err)
	require.Len(t, parents, 2)
	require.Equal(t, int32(210), parents[0].Pid())
	require.Equal(t, int32(1), parents[1].Pid())

	top, err := parents[1].Parent()
	require.NoError(t, err)
	require.Nil(t, top, "the root of the chain has no parent")
}

func TestChildren(t *testing.T) {
	b := newFakeBackend()
	p := newFakeProcess(t, b, 220, fakeState{ctime: 1, name: "root"})
	b.set(221, fakeState{ctime: 2, name: "child-a", ppid: 220})
	b.set(222, fakeState{ctime: 3, name: "child-b", ppid: 220})
	b.set(223, fakeState{ctime: 4, name: "grandchild", ppid: 221})
	b.set(230, fakeState{ctime: 5, name: "unrelated", ppid: 1})

	direct, err := p.Children(false)
	require.NoError(t, err)
	require.Len(t, direct, 2)

	all, err := p.Children(true)
	require.NoError(t, err)
	require.Len(t, all, 3)

	pids := map[int32]bool{}
	for _, c := range all {
		pids[c.Pid()] = true
	}
	require.True(t, pids[221] && pids[222] && pids[223])
}

func TestProcessesReusesHandles(t *testing.T) {
	b := newFakeBackend()
	b.set(240, fakeState{ctime: 1, name: "a"})
	b.set(241, fakeState{ctime: 2, name: "b"})

	first, err := processesWithBackend(b)
	require.NoError(t, err)
	require.Len(t, first, 2)

	byPid := map[int32]*Process{}
	for _, p := range first {
		byPid[p.Pid()] = p
	}

	second, err := processesWithBackend(b)
	require.NoError(t, err)
	for _, p := range second {
		require.Same(t, byPid[p.Pid()], p, "a live process must keep its handle across passes")
	}

	// Recycle one PID; its handle must be replaced.
	b.set(240, fakeState{ctime: 9, name: "a2"})
	third, err := processesWithBackend(b)
	require.NoError(t, err)
	for _, p := range third {
		if p.Pid() == 240 {
			require.NotSame(t, byPid[240], p)
		} else {
			require.Same(t, byPid[p.Pid()], p)
		}
	}
}

func TestUnsupportedAccessors(t *testing.T) {
	t.Parallel()

	// The fake backend implements cmdline but none of the other optional
	// capabilities.
	b := newFakeBackend()
	p := newFakeProcess(t, b, 250, fakeState{ctime: 1, name: "a", cmdline: []string{"a", "-v"}})

	args, err := p.Cmdline()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "-v"}, args)

	_, err = p.Umask()
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = p.Rlimit(0)
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = p.Threads()
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = p.OpenFiles()
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestRlimitAtomicityIndicator(t *testing.T) {
	t.Parallel()

	base := newFakeBackend()
	base.set(260, fakeState{ctime: 1, name: "limited"})
	b := &fakeRlimitBackend{
		fakeBackend: base,
		limits:      map[int]Rlimit{7: {Soft: 1024, Hard: 4096}},
	}
	p, err := newProcessWithBackend(b, 260)
	require.NoError(t, err)

	got, err := p.Rlimit(7)
	require.NoError(t, err)
	require.Equal(t, uint64(1024), got.Soft)
	require.Equal(t, uint64(4096), got.Hard)
	require.False(t, got.Atomic, "a two-call backend must not claim atomicity")
	require.False(t, b.RlimitAtomic())

	prev, err := p.SetRlimit(7, Rlimit{Soft: 2048, Hard: 4096})
	require.NoError(t, err)
	require.Equal(t, uint64(1024), prev.Soft)

	got, err = p.Rlimit(7)
	require.NoError(t, err)
	require.Equal(t, uint64(2048), got.Soft)

	_, err = p.SetRlimit(7, Rlimit{Soft: 10, Hard: 5})
	require.Error(t, err, "soft above hard must be rejected before the kernel call")

	b.atomic = true
	got, err = p.Rlimit(7)
	require.NoError(t, err)
	require.True(t, got.Atomic)
	require.True(t, b.RlimitAtomic())
}

func TestProcessesTranslatesPermissionError(t *testing.T) {
	b := newFakeBackend()
	b.set(270, fakeState{ctime: 1, name: "hidden"})
	b.listErr = unix.EACCES

	_, err := processesWithBackend(b)
	require.True(t, IsAccessDenied(err), "enumeration must surface the typed permission error, got %v", err)
}
