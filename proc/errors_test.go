package proc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestZombieUnwrapsToNoSuchProcess(t *testing.T) {
	t.Parallel()

	err := error(&ZombieProcessError{Pid: 42})

	require.True(t, IsZombieProcess(err))
	require.True(t, IsNoSuchProcess(err), "zombie must match no-such-process checks")

	var nsp *NoSuchProcessError
	require.True(t, errors.As(err, &nsp))
	require.Equal(t, int32(42), nsp.Pid)
}

func TestNoSuchProcessIsNotZombie(t *testing.T) {
	t.Parallel()

	err := error(&NoSuchProcessError{Pid: 42})
	require.True(t, IsNoSuchProcess(err))
	require.False(t, IsZombieProcess(err))
}

func TestTranslateError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   error
		want func(error) bool
	}{
		{"esrch", unix.ESRCH, IsNoSuchProcess},
		{"enoent", unix.ENOENT, IsNoSuchProcess},
		{"eperm", unix.EPERM, IsAccessDenied},
		{"eacces", unix.EACCES, IsAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := translateError(7, tc.in)
			require.True(t, tc.want(err))
		})
	}
}

func TestTranslateErrorPassthrough(t *testing.T) {
	t.Parallel()

	require.NoError(t, translateError(7, nil))

	zombie := &ZombieProcessError{Pid: 7}
	require.Same(t, zombie, translateError(7, zombie).(*ZombieProcessError))

	denied := &AccessDeniedError{Pid: 7}
	require.Same(t, denied, translateError(7, denied).(*AccessDeniedError))

	require.ErrorIs(t, translateError(7, ErrNotSupported), ErrNotSupported)

	other := errors.New("disk on fire")
	require.Same(t, other, translateError(7, other))
}

func TestIsTimeoutExpired(t *testing.T) {
	t.Parallel()

	err := error(&TimeoutExpiredError{Pid: 7})
	require.True(t, IsTimeoutExpired(err))
	require.False(t, IsNoSuchProcess(err))
}
