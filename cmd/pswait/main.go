package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"procview/proc"
)

func main() {
	pidsFlag := flag.String("pids", "", "Comma-separated PIDs to wait on (e.g. '1234,5678')")
	timeoutFlag := flag.Duration("timeout", -1, "Give up after this long; negative waits forever")
	flag.Parse()

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "pswait"))

	if *pidsFlag == "" {
		fmt.Println("Error: --pids is required")
		flag.Usage()
		os.Exit(1)
	}

	pids, err := parsePids(*pidsFlag)
	if err != nil {
		fmt.Printf("Error parsing --pids: %v\n", err)
		os.Exit(1)
	}

	var procs []*proc.Process
	for _, pid := range pids {
		p, err := proc.NewProcess(pid)
		if err != nil {
			if proc.IsNoSuchProcess(err) {
				log.Infoln("PID", pid, "already gone")
				continue
			}
			log.Infoln("Error attaching to pid", pid, ":", err)
			os.Exit(1)
		}
		procs = append(procs, p)
	}

	if len(procs) == 0 {
		log.Infoln("Nothing to wait for")
		return
	}

	log.Infoln("Waiting on", len(procs), "processes, timeout", *timeoutFlag)
	start := time.Now()

	gone, alive := proc.WaitProcs(procs, *timeoutFlag, func(p *proc.Process) {
		if status, ok := p.ExitStatus(); ok {
			if status < 0 {
				log.Infoln("PID", p.Pid(), "killed by signal", -status)
			} else {
				log.Infoln("PID", p.Pid(), "exited with status", status)
			}
		} else {
			log.Infoln("PID", p.Pid(), "gone")
		}
	})

	log.Infoln("Done after", time.Since(start).Round(time.Millisecond),
		":", len(gone), "exited,", len(alive), "still running")

	if len(alive) > 0 {
		for _, p := range alive {
			log.Debugln("Still alive:", p.Pid())
		}
		os.Exit(2)
	}
}

func parsePids(s string) ([]int32, error) {
	var pids []int32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid pid %q: %w", part, err)
		}
		pids = append(pids, int32(v))
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("no pids given")
	}
	return pids, nil
}
