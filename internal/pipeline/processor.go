package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"
)

// Processor drives the AI run: every unprocessed item goes through the
// pipeline, with progress and a task log kept on the run record.
type Processor struct {
	store    *store.Store
	pipeline *Pipeline
	limiter  *rate.Limiter
	opts     Options
}

// NewProcessor creates a processor. rateDelay is the pause enforced between
// consecutive items.
func NewProcessor(s *store.Store, invoker Invoker, opts Options, rateDelay time.Duration) *Processor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rateDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(rateDelay), 1)
	}
	return &Processor{
		store:    s,
		pipeline: New(s, invoker, opts),
		limiter:  limiter,
		opts:     opts,
	}
}

// Run processes all unprocessed items under the given run. It returns
// core.ErrRunCancelled when a checkpoint observes cancellation, and an error
// when any item failed, so the run only ends SUCCESS on a clean sweep.
func (p *Processor) Run(ctx context.Context, runID int64) error {
	items, err := p.store.ListUnprocessedItems()
	if err != nil {
		return err
	}
	total := len(items)

	zero := 0
	p.progress(runID, store.ProgressUpdate{
		Total: &total, Completed: &zero, Succeeded: &zero, Failed: &zero,
		Message:     fmt.Sprintf("Queued %d items", total),
		CurrentTask: "Preparing items",
	})
	_ = p.store.MergeRunStats(runID, map[string]any{
		"ai_timeouts": map[string]any{
			"classification_seconds": int(p.opts.ClassificationTimeout.Seconds()),
			"extraction_seconds":     int(p.opts.ExtractionTimeout.Seconds()),
		},
	})
	p.task(runID, core.TaskEntry{
		Task: fmt.Sprintf("Queued %d items for AI processing", total), Stage: "queue", Status: "completed",
	})

	if total == 0 {
		p.progress(runID, store.ProgressUpdate{
			Total: &zero, Completed: &zero, Succeeded: &zero, Failed: &zero,
			Message: "No unprocessed items found", CurrentTask: "No unprocessed items found",
		})
		p.task(runID, core.TaskEntry{Task: "No unprocessed items found", Stage: "queue", Status: "completed"})
		_ = p.store.MergeRunStats(runID, map[string]any{
			"items_processed": 0, "items_succeeded": 0, "items_failed": 0,
			"message": "No unprocessed items found",
		})
		return nil
	}

	var processed, succeeded, failed int
	var errors []string

	for _, item := range items {
		if err := p.checkpoint(ctx, runID); err != nil {
			return err
		}

		label := ItemLabel(item, p.sourceName(item))
		p.task(runID, core.TaskEntry{
			Task: fmt.Sprintf("Starting item %d", item.ID), Stage: "item",
			ItemID: item.ID, Status: "started", Detail: label,
		})
		p.progress(runID, store.ProgressUpdate{
			CurrentTask: fmt.Sprintf("Starting item %d (%s)", item.ID, label),
		})

		state := p.pipeline.ProcessItem(ctx, runID, item)
		processed++
		if state.Success() {
			succeeded++
		} else {
			failed++
		}
		status := "completed"
		detail := label
		if !state.Success() {
			status = "failed"
			if state.Err != nil {
				detail = state.Err.Error()
				errors = append(errors, state.Err.Error())
			}
		}
		p.task(runID, core.TaskEntry{
			Task: fmt.Sprintf("Finished item %d", item.ID), Stage: "item",
			ItemID: item.ID, Status: status, Detail: detail,
		})
		p.progress(runID, store.ProgressUpdate{
			Total: &total, Completed: &processed, Succeeded: &succeeded, Failed: &failed,
			Message:     fmt.Sprintf("Processed %d of %d items", processed, total),
			CurrentTask: fmt.Sprintf("Processed item %d (%s)", item.ID, label),
		})

		if err := p.limiter.Wait(ctx); err != nil {
			return p.checkpointErr(ctx, runID)
		}
	}

	p.progress(runID, store.ProgressUpdate{
		Total: &total, Completed: &processed, Succeeded: &succeeded, Failed: &failed,
		Message: "AI processing completed", CurrentTask: "AI processing completed",
	})
	p.task(runID, core.TaskEntry{Task: "AI processing completed", Stage: "complete", Status: "completed"})
	if len(errors) > 10 {
		errors = errors[:10]
	}
	_ = p.store.MergeRunStats(runID, map[string]any{
		"items_processed": processed,
		"items_succeeded": succeeded,
		"items_failed":    failed,
		"errors":          errors,
	})

	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, processed)
	}
	return nil
}

// checkpoint returns core.ErrRunCancelled when the context is cancelled or
// the run is no longer RUNNING.
func (p *Processor) checkpoint(ctx context.Context, runID int64) error {
	if ctx.Err() != nil {
		return core.ErrRunCancelled
	}
	run, err := p.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run.Status != core.RunRunning {
		return core.ErrRunCancelled
	}
	return nil
}

func (p *Processor) checkpointErr(ctx context.Context, runID int64) error {
	if err := p.checkpoint(ctx, runID); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Processor) sourceName(item core.ContentItem) string {
	if item.SourceID == nil {
		return ""
	}
	src, err := p.store.GetSource(*item.SourceID)
	if err != nil {
		return ""
	}
	return src.Name
}

func (p *Processor) progress(runID int64, u store.ProgressUpdate) {
	if err := p.store.UpdateRunProgress(runID, "ai_processing", u); err != nil {
		logger.Error("Failed to update run progress", err)
	}
}

func (p *Processor) task(runID int64, entry core.TaskEntry) {
	if err := p.store.AppendRunTask(runID, entry); err != nil {
		logger.Error("Failed to append run task", err)
	}
}
