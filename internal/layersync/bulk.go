package layersync

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/strata/internal/types"
)

// Target is one increment in a bulk run.
type Target struct {
	IncrementPath  string
	LivingDocsPath string
	IssueID        string
}

// BulkOptions control SyncAll.
type BulkOptions struct {
	// Direction selects the pipeline; push when empty.
	Direction types.Direction
	// Parallelism bounds concurrent runs and sets the batch size.
	Parallelism int
	// BatchDelay is slept between batches to stay under tracker limits.
	BatchDelay time.Duration
}

// BulkResult aggregates a bulk run. Results align with the input targets.
type BulkResult struct {
	Results   []*types.SyncResult
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// SyncAll runs one pipeline per target with bounded parallelism. Targets are
// processed in batches of Parallelism; a failed target does not stop the
// others. A target listed twice is rejected, since concurrent runs on one
// increment are not allowed.
func (e *Engine) SyncAll(ctx context.Context, targets []Target, opts BulkOptions) (*BulkResult, error) {
	dir := opts.Direction
	if dir == "" {
		dir = types.DirectionPush
	}
	if err := e.check(dir != types.DirectionPropagate); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, t := range targets {
		key := filepath.Clean(t.IncrementPath)
		if seen[key] {
			return nil, invalidArg("increment %s listed more than once", t.IncrementPath)
		}
		seen[key] = true
		if dir != types.DirectionPropagate && t.IssueID == "" {
			return nil, invalidArg("increment %s has no issue", t.IncrementPath)
		}
	}
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	start := time.Now()
	out := &BulkResult{Results: make([]*types.SyncResult, len(targets))}

	for batchStart := 0; batchStart < len(targets); batchStart += parallelism {
		if batchStart > 0 && opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.BatchDelay):
			}
		}
		batchEnd := batchStart + parallelism
		if batchEnd > len(targets) {
			batchEnd = len(targets)
		}
		e.msg("Syncing increments %d-%d of %d...", batchStart+1, batchEnd, len(targets))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallelism)
		for i := batchStart; i < batchEnd; i++ {
			i := i
			g.Go(func() error {
				res, err := e.runOne(gctx, dir, targets[i])
				if err != nil {
					return fmt.Errorf("increment %s: %w", targets[i].IncrementPath, err)
				}
				out.Results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for _, res := range out.Results {
		if res.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	out.Duration = time.Since(start)
	return out, nil
}

func (e *Engine) runOne(ctx context.Context, dir types.Direction, t Target) (*types.SyncResult, error) {
	switch dir {
	case types.DirectionPull:
		return e.RunExternalToIncrement(ctx, t.IssueID, t.IncrementPath, t.LivingDocsPath)
	case types.DirectionPropagate:
		return e.PropagateCompletion(ctx, t.IncrementPath, t.LivingDocsPath)
	default:
		return e.RunIncrementToExternal(ctx, t.IncrementPath, t.LivingDocsPath, t.IssueID)
	}
}
