package controller

import (
	"sync"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
)

// commitTracker records committed windows.  With several workers windows may commit out of order, so it
// also tracks the highest index below which every window is committed.
type commitTracker struct {
	mu             sync.Mutex
	committed      []bool
	lastContiguous int
	rows           int64
	total          int64
	reporter       Reporter
}

func newCommitTracker(windows int, total int64, reporter Reporter) *commitTracker {
	return &commitTracker{
		committed:      make([]bool, windows),
		lastContiguous: -1,
		total:          total,
		reporter:       reporter,
	}
}

func (t *commitTracker) commit(ctx *loadcontext.Context, w Window) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed[w.Index] = true
	t.rows += int64(w.Size)
	for t.lastContiguous+1 < len(t.committed) && t.committed[t.lastContiguous+1] {
		t.lastContiguous++
	}
	if t.reporter != nil {
		t.reporter.Report(ctx, t.rows, t.total)
	}
}

func (t *commitTracker) isCommitted(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed[index]
}

// firstUncommitted returns the lowest window index not committed, or -1 if all are.
func (t *commitTracker) firstUncommitted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastContiguous+1 < len(t.committed) {
		return t.lastContiguous + 1
	}
	return -1
}

func (t *commitTracker) snapshot() (lastContiguous int, rows int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastContiguous, t.rows
}
