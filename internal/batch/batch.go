// Package batch assigns loop-iteration (batch) ids to task records using the
// sparse flip markers the hardware emits when a stream rolls over.
//
// Each hardware stream is an independent problem. Within a stream, tasks and
// flips are sorted by timestamp and walked with two cursors: a task belongs
// to the first flip whose timestamp is at or after its own. When the walk
// crosses a flip, the tasks just before it whose task id is below the flip's
// reference task id are moved into the new batch. Those are tasks the
// submitting threads claimed for the next iteration before the rollover was
// recorded.
package batch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/roach88/npuprof/internal/catalog"
)

// Task is the part of a task record batch assignment looks at.
type Task struct {
	StreamID  uint16
	TaskID    uint16
	Timestamp uint64
}

// Flip is a rollover marker. TaskID is the task id active at the rollover.
type Flip struct {
	StreamID  uint16
	FlipNum   uint16
	TaskID    uint16
	Timestamp uint64
}

// Real reports whether the flip marks an iteration boundary. Stream-destroy
// flips do not.
func (f Flip) Real() bool { return f.FlipNum != catalog.StreamDestroy }

// Override moves the task at a sorted position into another batch.
type Override struct {
	Index int
	Batch int64
}

// Result is the assignment for one stream.
type Result struct {
	// Batches holds one batch id per input task, in input order.
	Batches []int64
	// Calibrated counts tasks moved by backward calibration. A task moves at
	// most once.
	Calibrated int
}

// Assign computes batch ids for the tasks of a single stream. tasks and flips
// must all carry the same stream id; use AssignStreams for mixed input.
// Neither slice is modified.
func Assign(tasks []Task, flips []Flip) (Result, error) {
	res := Result{Batches: make([]int64, len(tasks))}
	if len(tasks) == 0 {
		return res, checkFlips(sortedFlips(flips))
	}

	fl := sortedFlips(flips)
	if err := checkFlips(fl); err != nil {
		return Result{}, err
	}
	fl = append(fl, Flip{StreamID: tasks[0].StreamID, FlipNum: catalog.StreamDestroy, Timestamp: math.MaxUint64})

	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tasks[order[a]].Timestamp < tasks[order[b]].Timestamp
	})
	sorted := make([]Task, len(tasks))
	for i, idx := range order {
		sorted[i] = tasks[idx]
	}

	batches := make([]int64, len(sorted))
	var b int64
	lo := 0
	for i := 0; i < len(sorted); {
		flip := fl[b]
		if sorted[i].Timestamp <= flip.Timestamp {
			batches[i] = b
			i++
			continue
		}
		b++
		if flip.Real() {
			ov := calibrate(sorted, lo, i, flip, b)
			for _, o := range ov {
				batches[o.Index] = o.Batch
			}
			res.Calibrated += len(ov)
		}
		// Tasks before i are settled. A moved task is never scanned again,
		// and an empty batch leaves nothing in reach of the next flip.
		lo = i
	}

	for i, idx := range order {
		res.Batches[idx] = batches[i]
	}
	return res, nil
}

// calibrate scans backward from end-1 to lo and returns overrides moving
// every consecutive task whose id is strictly below flip.TaskID into batch.
// The scan stops at the first task that does not qualify.
func calibrate(sorted []Task, lo, end int, flip Flip, batch int64) []Override {
	var out []Override
	for j := end - 1; j >= lo; j-- {
		if sorted[j].TaskID >= flip.TaskID {
			break
		}
		out = append(out, Override{Index: j, Batch: batch})
	}
	return out
}

func sortedFlips(flips []Flip) []Flip {
	fl := make([]Flip, len(flips), len(flips)+1)
	copy(fl, flips)
	sort.SliceStable(fl, func(a, b int) bool { return fl[a].Timestamp < fl[b].Timestamp })
	return fl
}

// checkFlips validates a timestamp-sorted flip list. Real flips must be
// numbered consecutively; numbering restarts after a stream-destroy flip.
func checkFlips(fl []Flip) error {
	var prev *Flip
	for i := range fl {
		f := &fl[i]
		if i > 0 && fl[i-1].Timestamp == f.Timestamp {
			return &InvariantError{
				Code:     ErrCodeDuplicateFlip,
				StreamID: f.StreamID,
				Message:  fmt.Sprintf("flips %d and %d both at %d", fl[i-1].FlipNum, f.FlipNum, f.Timestamp),
			}
		}
		if !f.Real() {
			prev = nil
			continue
		}
		if prev != nil && f.FlipNum != prev.FlipNum+1 {
			return &InvariantError{
				Code:     ErrCodeFlipGap,
				StreamID: f.StreamID,
				Message:  fmt.Sprintf("flip %d at %d follows flip %d at %d", f.FlipNum, f.Timestamp, prev.FlipNum, prev.Timestamp),
			}
		}
		prev = f
	}
	return nil
}

// Assignment is the result of AssignStreams.
type Assignment struct {
	// Batches holds one batch id per input task, in input order. Tasks of a
	// failed stream are set to -1.
	Batches []int64
	// Calibrated counts calibration moves per stream.
	Calibrated map[uint16]int
	// Failed holds the invariant error of every stream that could not be
	// reconstructed.
	Failed map[uint16]error
}

// Err joins the errors of all failed streams, or returns nil.
func (a Assignment) Err() error {
	if len(a.Failed) == 0 {
		return nil
	}
	ids := make([]int, 0, len(a.Failed))
	for id := range a.Failed {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, a.Failed[uint16(id)])
	}
	return errors.Join(errs...)
}

// AssignStreams partitions tasks and flips by stream id and assigns each
// stream independently. A stream that violates a flip invariant fails alone.
func AssignStreams(tasks []Task, flips []Flip) Assignment {
	a := Assignment{
		Batches:    make([]int64, len(tasks)),
		Calibrated: make(map[uint16]int),
		Failed:     make(map[uint16]error),
	}

	taskIdx := make(map[uint16][]int)
	for i, t := range tasks {
		taskIdx[t.StreamID] = append(taskIdx[t.StreamID], i)
	}
	flipsBy := make(map[uint16][]Flip)
	for _, f := range flips {
		flipsBy[f.StreamID] = append(flipsBy[f.StreamID], f)
	}

	for stream, idx := range taskIdx {
		sub := make([]Task, len(idx))
		for i, ti := range idx {
			sub[i] = tasks[ti]
		}
		res, err := Assign(sub, flipsBy[stream])
		if err != nil {
			a.Failed[stream] = err
			for _, ti := range idx {
				a.Batches[ti] = -1
			}
			continue
		}
		for i, ti := range idx {
			a.Batches[ti] = res.Batches[i]
		}
		if res.Calibrated > 0 {
			a.Calibrated[stream] = res.Calibrated
		}
	}
	return a
}
