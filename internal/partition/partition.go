// Package partition splits a normalized test list into disjoint,
// load-balanced subsets for parallel worker execution.
package partition

import (
	"container/heap"
	"math"
	"sort"

	"github.com/karvarun/karva/internal/kpath"
)

// MinTestsPerWorker caps the number of workers so a partition never gets
// fewer tests than this, regardless of how many workers were requested.
const MinTestsPerWorker = 5

// Test is one test-path entry to distribute: a file and its approximate
// execution cost.
type Test struct {
	Path        kpath.Path
	DisplayName string
	Duration    float64 // seconds; zero means unknown
}

// Plan is the partitioner's output: one Paths slice per worker, in
// worker-index order. A worker assigned zero tests is simply an empty
// slice; the orchestrator skips spawning for it.
type Plan struct {
	Paths [][]kpath.Path
}

// Partition groups tests into at most numWorkers partitions using the
// longest-processing-time heuristic: tests are sorted by duration
// descending (unknown durations fall back to the median of known
// durations, or 1.0 if none are known) and each is assigned to the
// partition with the smallest running total.
//
// Path granularity is the test file, not the individual test case: once a
// file is assigned to a partition, every test in that file goes with it.
func Partition(tests []Test, numWorkers int) Plan {
	if len(tests) == 0 {
		return Plan{Paths: [][]kpath.Path{}}
	}

	effective := effectiveWorkers(len(tests), numWorkers)

	fallback := fallbackDuration(tests)
	fileDurations := map[string]float64{}
	fileOrder := []string{}
	for _, t := range tests {
		key := t.Path.String()
		d := t.Duration
		if d <= 0 {
			d = fallback
		}
		if _, seen := fileDurations[key]; !seen {
			fileOrder = append(fileOrder, key)
		}
		fileDurations[key] += d
	}

	sort.Slice(fileOrder, func(i, j int) bool {
		return fileDurations[fileOrder[i]] > fileDurations[fileOrder[j]]
	})

	h := make(workerHeap, effective)
	for i := range h {
		h[i] = &workerLoad{id: i}
	}
	heap.Init(&h)

	assigned := make([][]string, effective)
	for _, file := range fileOrder {
		w := heap.Pop(&h).(*workerLoad)
		assigned[w.id] = append(assigned[w.id], file)
		w.total += fileDurations[file]
		heap.Push(&h, w)
	}

	byPath := map[string]kpath.Path{}
	for _, t := range tests {
		byPath[t.Path.String()] = t.Path
	}

	plan := Plan{Paths: make([][]kpath.Path, effective)}
	for i, files := range assigned {
		sort.Strings(files)
		for _, f := range files {
			plan.Paths[i] = append(plan.Paths[i], byPath[f])
		}
	}
	return plan
}

// effectiveWorkers caps requested at ceil(totalTests / MinTestsPerWorker),
// with a floor of 1.
func effectiveWorkers(totalTests, requested int) int {
	max := int(math.Ceil(float64(totalTests) / float64(MinTestsPerWorker)))
	if max < 1 {
		max = 1
	}
	if requested < 1 || requested > max {
		return max
	}
	return requested
}

// fallbackDuration is the median of known (non-zero) durations, or 1.0 if
// none are known.
func fallbackDuration(tests []Test) float64 {
	var known []float64
	for _, t := range tests {
		if t.Duration > 0 {
			known = append(known, t.Duration)
		}
	}
	if len(known) == 0 {
		return 1.0
	}
	sort.Float64s(known)
	mid := len(known) / 2
	if len(known)%2 == 1 {
		return known[mid]
	}
	return (known[mid-1] + known[mid]) / 2
}

type workerLoad struct {
	id    int
	total float64
}

// workerHeap is a min-heap over (total duration, worker id), ties broken
// by id so assignment is deterministic for equal-duration inputs.
type workerHeap []*workerLoad

func (h workerHeap) Len() int { return len(h) }
func (h workerHeap) Less(i, j int) bool {
	if h[i].total != h[j].total {
		return h[i].total < h[j].total
	}
	return h[i].id < h[j].id
}
func (h workerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *workerHeap) Push(x any)   { *h = append(*h, x.(*workerLoad)) }
func (h *workerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
