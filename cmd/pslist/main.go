package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procview/proc"
	"procview/sysinfo"
)

func main() {
	pidFlag := flag.Int("pid", 0, "Show details for a single process")
	nameFlag := flag.String("name", "", "Only list processes whose name contains this substring")
	verboseFlag := flag.Bool("verbose", false, "Include cmdline and memory columns")
	flag.Parse()

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "pslist"))

	if *pidFlag != 0 {
		if err := showProcess(log, int32(*pidFlag)); err != nil {
			log.Infoln("Error:", err)
			os.Exit(1)
		}
		return
	}

	procs, err := proc.ProcessesAvailable()
	if err != nil {
		log.Infoln("Error listing processes:", err)
		os.Exit(1)
	}

	sort.Slice(procs, func(i, j int) bool { return procs[i].Pid() < procs[j].Pid() })

	if boot, err := sysinfo.BootTime(); err == nil {
		log.Debugln("System booted", boot.Format("2006-01-02 15:04:05"))
	}

	shown := 0
	for _, p := range procs {
		if err := printRow(p, *nameFlag, *verboseFlag); err == nil {
			shown++
		}
	}
	log.Infoln("Listed", shown, "of", len(procs), "processes")
}

func printRow(p *proc.Process, nameFilter string, verbose bool) error {
	var name string
	var status proc.Status
	var user string

	err := p.WithOneshot(func() error {
		var err error
		if name, err = p.Name(); err != nil {
			return err
		}
		if status, err = p.Status(); err != nil {
			return err
		}
		user, err = p.Username()
		return err
	})
	if err != nil {
		return err
	}

	if nameFilter != "" && !strings.Contains(name, nameFilter) {
		return fmt.Errorf("filtered")
	}

	if !verbose {
		fmt.Printf("%7d  %-12s %-10s %s\n", p.Pid(), user, status, name)
		return nil
	}

	var rss uint64
	if mem, err := p.MemoryInfo(); err == nil {
		rss = mem.RSS
	}
	cmdline := name
	if args, err := p.Cmdline(); err == nil && len(args) > 0 {
		cmdline = strings.Join(args, " ")
	}
	fmt.Printf("%7d  %-12s %-10s %8dK  %s\n", p.Pid(), user, status, rss/1024, cmdline)
	return nil
}

func showProcess(log *logger.Logger, pid int32) error {
	p, err := proc.NewProcess(pid)
	if err != nil {
		return err
	}

	return p.WithOneshot(func() error {
		name, err := p.Name()
		if err != nil {
			return err
		}
		fmt.Printf("pid:        %d\n", p.Pid())
		fmt.Printf("name:       %s\n", name)
		fmt.Printf("created:    %.3f\n", p.CreateTime())

		if status, err := p.Status(); err == nil {
			fmt.Printf("status:     %s\n", status)
		}
		if ppid, err := p.Ppid(); err == nil {
			fmt.Printf("ppid:       %d\n", ppid)
		}
		if user, err := p.Username(); err == nil {
			fmt.Printf("user:       %s\n", user)
		}
		if args, err := p.Cmdline(); err == nil {
			fmt.Printf("cmdline:    %s\n", strings.Join(args, " "))
		}

		// Per-platform accessors; absence is not an error here.
		if exe, err := p.Exe(); err == nil && exe != "" {
			fmt.Printf("exe:        %s\n", exe)
		}
		if cwd, err := p.Cwd(); err == nil && cwd != "" {
			fmt.Printf("cwd:        %s\n", cwd)
		}
		if term, err := p.Terminal(); err == nil && term != "" {
			fmt.Printf("terminal:   %s\n", term)
		}
		if nice, err := p.Nice(); err == nil {
			fmt.Printf("nice:       %d\n", nice)
		}
		if n, err := p.NumThreads(); err == nil {
			fmt.Printf("threads:    %d\n", n)
		}
		if n, err := p.NumFDs(); err == nil {
			fmt.Printf("fds:        %d\n", n)
		}
		if times, err := p.CPUTimes(); err == nil {
			fmt.Printf("cpu:        user=%.2fs system=%.2fs\n", times.User, times.System)
		}
		if mem, err := p.MemoryInfo(); err == nil {
			fmt.Printf("memory:     rss=%dK vms=%dK\n", mem.RSS/1024, mem.VMS/1024)
		}

		log.Debugln("Detail read complete for pid", pid)
		return nil
	})
}
