//go:build linux

package sysinfo

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"procview/proc"
)

const sampleMeminfo = `MemTotal:       16384000 kB
MemFree:         4096000 kB
MemAvailable:    8192000 kB
Buffers:          512000 kB
Cached:          2048000 kB
SReclaimable:     256000 kB
Shmem:            128000 kB
Slab:             384000 kB
Active:          6144000 kB
Inactive:        3072000 kB
SwapTotal:       2097152 kB
SwapFree:        1048576 kB
`

const sampleVmstat = `nr_free_pages 1024000
pswpin 100
pswpout 250
`

const sampleStat = `cpu  1000 200 3000 400000 500 60 70 80 0 0
cpu0 500 100 1500 200000 250 30 35 40 0 0
btime 1756400000
`

func withMemProcFS(t *testing.T, files map[string]string) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, "/proc/"+name, []byte(content), 0o444))
	}

	prev := procFS()
	setProcFS(fs)
	t.Cleanup(func() { setProcFS(prev) })
}

func TestVirtualMemory(t *testing.T) {
	withMemProcFS(t, map[string]string{"meminfo": sampleMeminfo})

	st, err := VirtualMemory()
	require.NoError(t, err)

	require.Equal(t, uint64(16384000)*1024, st.Total)
	require.Equal(t, uint64(4096000)*1024, st.Free)
	require.Equal(t, uint64(8192000)*1024, st.Available)
	require.Equal(t, uint64(512000)*1024, st.Buffers)
	require.Equal(t, uint64(2048000+256000)*1024, st.Cached)
	require.Equal(t, uint64(128000)*1024, st.Shared)
	require.Equal(t, uint64(384000)*1024, st.Slab)

	wantUsed := st.Total - st.Free - st.Buffers - st.Cached
	require.Equal(t, wantUsed, st.Used)
	require.InDelta(t, float64(wantUsed)/float64(st.Total)*100, st.UsedPercent, 0.001)
}

func TestVirtualMemoryNoMemAvailable(t *testing.T) {
	withMemProcFS(t, map[string]string{
		"meminfo": "MemTotal: 1000 kB\nMemFree: 400 kB\nBuffers: 100 kB\nCached: 200 kB\n",
	})

	st, err := VirtualMemory()
	require.NoError(t, err)
	require.Equal(t, st.Free+st.Buffers+st.Cached, st.Available)
}

func TestSwapMemory(t *testing.T) {
	withMemProcFS(t, map[string]string{
		"meminfo": sampleMeminfo,
		"vmstat":  sampleVmstat,
	})

	st, err := SwapMemory()
	require.NoError(t, err)

	require.Equal(t, uint64(2097152)*1024, st.Total)
	require.Equal(t, uint64(1048576)*1024, st.Free)
	require.Equal(t, st.Total-st.Free, st.Used)
	require.InDelta(t, 50.0, st.UsedPercent, 0.001)

	page := uint64(proc.PageSize())
	require.Equal(t, 100*page, st.Sin)
	require.Equal(t, 250*page, st.Sout)
}

func TestCPUTimes(t *testing.T) {
	withMemProcFS(t, map[string]string{"stat": sampleStat})

	st, err := CPUTimes()
	require.NoError(t, err)

	tick := float64(proc.ClockTicksPerSecond())
	require.InDelta(t, 1000/tick, st.User, 0.0001)
	require.InDelta(t, 200/tick, st.Nice, 0.0001)
	require.InDelta(t, 3000/tick, st.System, 0.0001)
	require.InDelta(t, 400000/tick, st.Idle, 0.0001)
	require.InDelta(t, 500/tick, st.IOWait, 0.0001)
}

func TestUptimeAndBootTime(t *testing.T) {
	up, err := Uptime()
	require.NoError(t, err)
	require.Greater(t, up.Seconds(), 0.0)

	boot, err := BootTime()
	require.NoError(t, err)
	require.False(t, boot.IsZero())

	since, err := TimeSinceBoot()
	require.NoError(t, err)
	require.InDelta(t, up.Seconds(), since, 5.0)
}

func TestDiskUsage(t *testing.T) {
	st, err := DiskUsage("/")
	require.NoError(t, err)
	require.Greater(t, st.Total, uint64(0))
	require.LessOrEqual(t, st.Used, st.Total)
	require.GreaterOrEqual(t, st.UsedPercent, 0.0)
}
