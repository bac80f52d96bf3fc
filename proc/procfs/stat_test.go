package procfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"procview/proc/procfs"
)

const sampleStat = "1234 (some proc) S 1 1234 1234 34816 1234 4194304 " +
	"1000 0 0 0 250 130 7 3 20 0 4 0 5678 223412224 1867 " +
	"18446744073709551615 1 1 0 0 0 0 0 4096 81920 0 0 0 17 2 0 0 0 0 0 0 0 0 0 0 0"

func TestParseStat(t *testing.T) {
	t.Parallel()

	t.Run("Fields", func(t *testing.T) {
		t.Parallel()
		st, err := procfs.ParseStat(sampleStat)
		require.NoError(t, err)
		require.Equal(t, "some proc", st.Comm)
		require.Equal(t, byte('S'), st.State)
		require.Equal(t, int32(1), st.Ppid)
		require.Equal(t, int32(1234), st.Pgrp)
		require.Equal(t, int32(1234), st.Session)
		require.Equal(t, int32(34816), st.TTYNr)
		require.Equal(t, int64(250), st.UTime)
		require.Equal(t, int64(130), st.STime)
		require.Equal(t, int64(7), st.CUTime)
		require.Equal(t, int64(3), st.CSTime)
		require.Equal(t, int64(0), st.Nice)
		require.Equal(t, int32(4), st.Threads)
		require.Equal(t, int64(5678), st.StartTime)
		require.Equal(t, int32(2), st.Processor)
	})

	t.Run("CommWithParensAndSpaces", func(t *testing.T) {
		t.Parallel()
		line := "99 (weird ) name() R 1 99 99 0 -1 0 0 0 0 0 1 2 3 4 20 0 1 0 42 0 0 " +
			"0 0 0 0 0 0 0 0 0 0 0 0 0 17 0 0 0 0 0 0 0 0 0 0 0"
		st, err := procfs.ParseStat(line)
		require.NoError(t, err)
		require.Equal(t, "weird ) name(", st.Comm)
		require.Equal(t, byte('R'), st.State)
		require.Equal(t, int32(1), st.Ppid)
		require.Equal(t, int64(42), st.StartTime)
	})

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		_, err := procfs.ParseStat("1234 no-parens S 1")
		require.Error(t, err)

		_, err = procfs.ParseStat("1234 (short) S 1 2 3")
		require.Error(t, err)
	})
}

func TestStatusName(t *testing.T) {
	t.Parallel()
	require.Equal(t, "running", procfs.StatusName('R'))
	require.Equal(t, "disk-sleep", procfs.StatusName('D'))
	require.Equal(t, "zombie", procfs.StatusName('Z'))
	require.Equal(t, "idle", procfs.StatusName('I'))
	require.Equal(t, "?", procfs.StatusName('Q'))
}
