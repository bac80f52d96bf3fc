package proc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindByName(t *testing.T) {
	b := newFakeBackend()
	b.set(400, fakeState{ctime: 1, name: "nginx"})
	b.set(401, fakeState{ctime: 2, name: "nginx"})
	b.set(402, fakeState{ctime: 3, name: "postgres"})

	found, err := findWithBackend(b, func(p *Process) bool {
		n, err := p.Name()
		return err == nil && n == "nginx"
	})
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, p := range found {
		name, err := p.Name()
		require.NoError(t, err)
		require.Equal(t, "nginx", name)
	}
}

func TestFindByCmdlineMatcher(t *testing.T) {
	b := newFakeBackend()
	b.set(410, fakeState{ctime: 1, name: "worker", cmdline: []string{"worker", "--queue", "mail"}})
	b.set(411, fakeState{ctime: 2, name: "worker", cmdline: []string{"worker", "--queue", "web"}})

	found, err := findWithBackend(b, func(p *Process) bool {
		args, err := p.Cmdline()
		if err != nil {
			return false
		}
		for _, arg := range args {
			if arg == "mail" {
				return true
			}
		}
		return false
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, int32(410), found[0].Pid())
}

func TestFindInvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := FindByPattern("(unclosed")
	require.Error(t, err)

	_, err = FindByCmdlinePattern("(unclosed")
	require.Error(t, err)
}
