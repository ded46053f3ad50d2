package executor

import (
	"time"

	"github.com/prometheus/procfs"
)

// cpuSampler derives CPU usage of a process from successive /proc stat reads.
type cpuSampler struct {
	proc    procfs.Proc
	lastCPU float64
	lastAt  time.Time
}

func newCPUSampler(pid int) *cpuSampler {
	if pid <= 0 {
		return nil
	}
	p, err := procfs.NewProc(pid)
	if err != nil {
		return nil
	}
	s := &cpuSampler{proc: p}
	s.sample()
	return s
}

// sample returns the percentage of one core used since the previous call.
func (s *cpuSampler) sample() float64 {
	if s == nil {
		return 0
	}
	stat, err := s.proc.Stat()
	if err != nil {
		return 0
	}
	now := time.Now()
	cpu := stat.CPUTime()
	var pct float64
	if !s.lastAt.IsZero() {
		if wall := now.Sub(s.lastAt).Seconds(); wall > 0 {
			pct = (cpu - s.lastCPU) / wall * 100
		}
	}
	s.lastCPU, s.lastAt = cpu, now
	return pct
}
