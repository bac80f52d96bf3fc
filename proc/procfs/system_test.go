package procfs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"procview/proc/procfs"
)

const sampleProcStat = `cpu  10132153 290696 3084719 46828483 16683 0 25195 0 175628 0
cpu0 1393280 32966 572056 13343292 6130 0 17875 0 23933 0
intr 1462898 1000
ctxt 115315133
btime 1756400000
processes 33799
procs_running 1
procs_blocked 0
`

func TestParseBootTime(t *testing.T) {
	t.Parallel()

	bt, err := procfs.ParseBootTime(sampleProcStat)
	require.NoError(t, err)
	require.Equal(t, int64(1756400000), bt)

	_, err = procfs.ParseBootTime("cpu 1 2 3 4\n")
	require.Error(t, err)
}

func TestParseCPUStat(t *testing.T) {
	t.Parallel()

	// The aggregate line must be matched, not the per-CPU ones.
	st, err := procfs.ParseCPUStat(sampleProcStat)
	require.NoError(t, err)
	require.Equal(t, int64(10132153), st.User)
	require.Equal(t, int64(290696), st.Nice)
	require.Equal(t, int64(3084719), st.System)
	require.Equal(t, int64(46828483), st.Idle)
	require.Equal(t, int64(16683), st.IOWait)
	require.Equal(t, int64(25195), st.SoftIRQ)
	require.Equal(t, int64(175628), st.Guest)
}

func TestParseUptime(t *testing.T) {
	t.Parallel()

	up, err := procfs.ParseUptime("4034.81 23125.17\n")
	require.NoError(t, err)
	require.InDelta(t, 4034.81, up, 0.001)
}

func TestParseMeminfo(t *testing.T) {
	t.Parallel()

	info, err := procfs.ParseMeminfo("MemTotal:       16316412 kB\nMemFree:    8090760 kB\nHugePages_Total:       4\n")
	require.NoError(t, err)
	require.Equal(t, uint64(16316412)*1024, info["MemTotal"])
	require.Equal(t, uint64(8090760)*1024, info["MemFree"])
	require.Equal(t, uint64(4), info["HugePages_Total"])
}

func TestParseVmstat(t *testing.T) {
	t.Parallel()

	stats, err := procfs.ParseVmstat("nr_free_pages 2022690\npswpin 10\npswpout 33\n")
	require.NoError(t, err)
	require.Equal(t, uint64(2022690), stats["nr_free_pages"])
	require.Equal(t, uint64(10), stats["pswpin"])
	require.Equal(t, uint64(33), stats["pswpout"])
}
