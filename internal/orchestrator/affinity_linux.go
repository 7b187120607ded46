//go:build linux

package orchestrator

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// pinCurrentThread restricts the calling OS thread to cores. Callers
// must run this from inside a goroutine locked to its OS thread
// (runtime.LockOSThread) since affinity is a per-thread Linux property.
func pinCurrentThread(cores []int) error {
	if len(cores) == 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	for _, c := range cores {
		set.Set(c)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("orchestrator: sched_setaffinity: %w", err)
	}
	return nil
}
