package scanner

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fenilsonani/diskscope/internal/queue"
)

// DeleteOutcome collects the per-item results of one deletion batch.
// Failures never abort the batch.
type DeleteOutcome struct {
	SuccessCount  int
	FailedCount   int
	RecoveredSize int64
	FailedPaths   []string
	ErrorMessages []string
}

// deleteRetryDelays backs off on transient in-use failures.
var deleteRetryDelays = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2 * time.Second}

// DeleteItems removes the filesystem items behind the given result IDs.
// The whole batch runs on the serial queue, so deletions never overlap
// other serial work. Successfully removed items are dropped from the result
// list and totals; selection state is cleared unconditionally afterward.
func (s *Scanner) DeleteItems(ctx context.Context, ids []string) DeleteOutcome {
	defer func() {
		s.mu.Lock()
		s.selected = make(map[string]struct{})
		s.mu.Unlock()
	}()

	outcome, _ := queue.DoValue(s.serial, ctx, func(ctx context.Context) (DeleteOutcome, error) {
		return s.deleteBatch(ids), nil
	})
	return outcome
}

// DeleteSelected deletes whatever is currently selected.
func (s *Scanner) DeleteSelected(ctx context.Context) DeleteOutcome {
	return s.DeleteItems(ctx, s.Selected())
}

func (s *Scanner) deleteBatch(ids []string) DeleteOutcome {
	token := s.monitor.Begin("scanner.deleteItems")
	defer token.End()

	var outcome DeleteOutcome
	var removed []string

	for _, id := range ids {
		s.mu.Lock()
		idx, ok := s.byID[id]
		var target Result
		if ok {
			target = s.results[idx]
		}
		s.mu.Unlock()
		if !ok {
			continue
		}

		if err := s.deleteOne(target); err != nil {
			outcome.FailedCount++
			outcome.FailedPaths = append(outcome.FailedPaths, target.Path)
			outcome.ErrorMessages = append(outcome.ErrorMessages, err.Error())
			continue
		}
		outcome.SuccessCount++
		outcome.RecoveredSize += target.Size
		removed = append(removed, id)
	}

	s.dropResults(removed)
	return outcome
}

// deleteOne removes a single item, retrying transient failures. Paths the
// protected-path rules veto are never touched.
func (s *Scanner) deleteOne(r Result) error {
	if s.opts.Protected != nil && s.opts.Protected(r.Path) {
		return &DeleteError{Path: r.Path, Reason: ErrorProtectedPath}
	}

	info, err := os.Lstat(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Already gone counts as success.
			return nil
		}
		return CategorizeError(r.Path, err)
	}

	var lastErr *DeleteError
	for attempt := 0; attempt <= len(deleteRetryDelays); attempt++ {
		var removeErr error
		if info.IsDir() {
			removeErr = os.RemoveAll(r.Path)
		} else {
			removeErr = os.Remove(r.Path)
		}
		if removeErr == nil {
			return nil
		}
		lastErr = CategorizeError(r.Path, removeErr)
		if !lastErr.Retryable || attempt == len(deleteRetryDelays) {
			return lastErr
		}
		time.Sleep(deleteRetryDelays[attempt])
	}
	return lastErr
}

// dropResults removes deleted IDs from the accumulator, recomputes the
// running total, and publishes an updated snapshot.
func (s *Scanner) dropResults(ids []string) {
	if len(ids) == 0 {
		return
	}
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}

	s.mu.Lock()
	kept := s.results[:0]
	var total int64
	for _, r := range s.results {
		if _, ok := gone[r.ID]; ok {
			continue
		}
		kept = append(kept, r)
		total += r.Size
	}
	s.results = kept
	s.totalSize = total
	s.byID = make(map[string]int, len(kept))
	for i, r := range kept {
		s.byID[r.ID] = i
	}
	s.mu.Unlock()

	if s.onSnapshot != nil {
		s.updater.ExecuteImmediately(snapshotKey, s.publish)
	}
}

// Describe formats a one-line human summary of a deletion batch.
func (o DeleteOutcome) Describe() string {
	return fmt.Sprintf("deleted %d item(s), %d failed, recovered %d bytes",
		o.SuccessCount, o.FailedCount, o.RecoveredSize)
}
