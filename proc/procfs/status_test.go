package procfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"procview/proc/procfs"
)

const sampleStatus = `Name:	some proc
Umask:	0022
State:	S (sleeping)
Tgid:	1234
Pid:	1234
PPid:	1
Uid:	1000	1001	1002	1003
Gid:	2000	2001	2002	2003
FDSize:	256
Groups:	4 24 27 1000
Threads:	4
SigPnd:	0000000000000000
ShdPnd:	0000000000000100
SigBlk:	0000000000010000
SigIgn:	0000000000381000
SigCgt:	00000001800004ec
`

func TestParseStatus(t *testing.T) {
	t.Parallel()

	t.Run("Fields", func(t *testing.T) {
		t.Parallel()
		st, err := procfs.ParseStatus(sampleStatus)
		require.NoError(t, err)
		require.Equal(t, "some proc", st.Name)
		require.True(t, st.HasUmask)
		require.Equal(t, uint32(0o022), st.Umask)
		require.Equal(t, [4]uint32{1000, 1001, 1002, 1003}, st.Uids)
		require.Equal(t, [4]uint32{2000, 2001, 2002, 2003}, st.Gids)
		require.Equal(t, []uint32{4, 24, 27, 1000}, st.Groups)
		require.Equal(t, int32(4), st.Threads)
		require.Equal(t, uint64(0x100), st.ShdPending)
		require.Equal(t, uint64(0x10000), st.SigBlocked)
		require.Equal(t, uint64(0x381000), st.SigIgnored)
		require.Equal(t, uint64(0x1800004ec), st.SigCaught)
	})

	t.Run("NoUmask", func(t *testing.T) {
		t.Parallel()
		st, err := procfs.ParseStatus("Name:\tinit\nUid:\t0\t0\t0\t0\nGid:\t0\t0\t0\t0\n")
		require.NoError(t, err)
		require.False(t, st.HasUmask)
		require.Equal(t, "init", st.Name)
	})

	t.Run("BadEntry", func(t *testing.T) {
		t.Parallel()
		_, err := procfs.ParseStatus("Uid:\t0\t0\n")
		require.Error(t, err)
	})
}

func TestParseStatm(t *testing.T) {
	t.Parallel()

	st, err := procfs.ParseStatm("54543 456 123 40 0 1200 0\n")
	require.NoError(t, err)
	require.Equal(t, int64(54543), st.Size)
	require.Equal(t, int64(456), st.Resident)
	require.Equal(t, int64(123), st.Shared)
	require.Equal(t, int64(40), st.Text)
	require.Equal(t, int64(1200), st.Data)

	_, err = procfs.ParseStatm("1 2 3")
	require.Error(t, err)
}

func TestParseNulList(t *testing.T) {
	t.Parallel()

	require.Nil(t, procfs.ParseNulList(nil))
	require.Equal(t, []string{"cat", "/etc/hosts"}, procfs.ParseNulList([]byte("cat\x00/etc/hosts\x00")))
	require.Equal(t, []string{"sh"}, procfs.ParseNulList([]byte("sh\x00")))
	require.Equal(t, []string{"no-trailing"}, procfs.ParseNulList([]byte("no-trailing")))
}

func TestParseEnviron(t *testing.T) {
	t.Parallel()

	env := procfs.ParseEnviron([]byte("HOME=/root\x00PATH=/usr/bin:/bin\x00BARE\x00EMPTY=\x00"))
	require.Equal(t, map[string]string{
		"HOME":  "/root",
		"PATH":  "/usr/bin:/bin",
		"EMPTY": "",
	}, env)
}
