//go:build !linux

package orchestrator

// pinCurrentThread is a no-op outside Linux; SchedSetaffinity has no
// portable equivalent, and enable_cpu_affinity is documented as
// Linux-only.
func pinCurrentThread(cores []int) error {
	return nil
}
