// Package orchestrator spawns one karva-worker child process per
// partition, waits for them via a non-blocking poll loop that also
// watches a cancellation signal, and aggregates their results through
// internal/rcache once every child has exited.
package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/karvarun/karva/internal/rcache"
)

// pollInterval is how often the wait loop checks whether a child has
// exited.
const pollInterval = 10 * time.Millisecond

// Partition is one worker's share of the run: its assigned test paths and
// the subset of user-facing flags replayed verbatim (verbosity, fail-fast,
// output format, snapshot-update, tag filters, name filters, retry count).
type Partition struct {
	WorkerID int
	Paths    []string
	Flags    []string
}

// Orchestrator spawns and supervises karva-worker children for one run.
type Orchestrator struct {
	CacheDir string
	RunHash  string
}

// New returns an Orchestrator rooted at cacheDir for the given run hash.
func New(cacheDir, runHash string) *Orchestrator {
	return &Orchestrator{CacheDir: cacheDir, RunHash: runHash}
}

type child struct {
	workerID int
	cmd      *exec.Cmd
	done     chan error
}

// Run spawns workerBinary once per non-empty partition, waits for all
// children to exit while watching shutdown, and aggregates their results.
// aborted is true if shutdown fired before every child exited on its own,
// in which case remaining children were killed rather than awaited.
func (o *Orchestrator) Run(workerBinary string, partitions []Partition, shutdown <-chan struct{}) (agg *rcache.AggregatedResults, aborted bool, err error) {
	var children []*child
	for _, p := range partitions {
		if len(p.Paths) == 0 {
			continue
		}
		cmd := exec.Command(workerBinary, buildArgs(o.CacheDir, o.RunHash, p)...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")

		if startErr := cmd.Start(); startErr != nil {
			killAll(children)
			return nil, false, fmt.Errorf("orchestrator: start worker-%d: %w", p.WorkerID, startErr)
		}

		done := make(chan error, 1)
		go func(c *exec.Cmd, ch chan error) { ch <- c.Wait() }(cmd, done)
		children = append(children, &child{workerID: p.WorkerID, cmd: cmd, done: done})
	}

	remaining := make(map[int]*child, len(children))
	for _, c := range children {
		remaining[c.workerID] = c
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for len(remaining) > 0 {
		select {
		case <-shutdown:
			aborted = true
			killAll(mapValues(remaining))
			for _, c := range remaining {
				<-c.done
			}
			remaining = nil
		case <-ticker.C:
			for id, c := range remaining {
				select {
				case <-c.done:
					delete(remaining, id)
				default:
				}
			}
		}
	}

	agg, err = rcache.Aggregate(o.CacheDir, o.RunHash, len(partitions))
	return agg, aborted, err
}

func buildArgs(cacheDir, runHash string, p Partition) []string {
	args := []string{"--cache-dir", cacheDir, "--run-hash", runHash, "--worker-id", strconv.Itoa(p.WorkerID)}
	args = append(args, p.Flags...)
	args = append(args, p.Paths...)
	return args
}

func killAll(children []*child) {
	for _, c := range children {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
	}
}

func mapValues(m map[int]*child) []*child {
	out := make([]*child, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

var (
	shutdownOnce sync.Once
	shutdownCh   = make(chan struct{}, 1)
)

// InstallSignalHandler arranges for SIGINT/SIGTERM to push (at most) one
// value onto the returned channel. Safe to call more than once in the
// same process (e.g. once per test): the underlying signal.Notify only
// ever installs on the first call, and every caller gets the same
// channel.
func InstallSignalHandler() <-chan struct{} {
	shutdownOnce.Do(func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			select {
			case shutdownCh <- struct{}{}:
			default:
			}
		}()
	})
	return shutdownCh
}
