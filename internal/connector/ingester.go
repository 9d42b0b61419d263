package connector

import (
	"context"
	"fmt"
	"time"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"
)

// Ingester runs one ingestion pass over the enabled feed sources.
type Ingester struct {
	store    *store.Store
	fetcher  *FeedFetcher
	maxItems int
}

// NewIngester creates an ingester. maxItems caps entries taken per source.
func NewIngester(s *store.Store, fetchTimeout time.Duration, maxItems int) *Ingester {
	return &Ingester{
		store:    s,
		fetcher:  NewFeedFetcher(fetchTimeout),
		maxItems: maxItems,
	}
}

// Run fetches every enabled feed source and inserts new items, skipping
// duplicates by hash. A failing source is recorded and skipped; the run
// fails only when every source fails or it is cancelled.
func (g *Ingester) Run(ctx context.Context, runID int64) error {
	sources, err := g.store.ListSources(true)
	if err != nil {
		return err
	}

	var feeds []core.Source
	for _, src := range sources {
		if src.Kind == core.SourceRSS || src.Kind == core.SourceYouTube {
			feeds = append(feeds, src)
		}
	}

	total := len(feeds)
	zero := 0
	g.progress(runID, store.ProgressUpdate{
		Total: &total, Completed: &zero, Succeeded: &zero, Failed: &zero,
		Message:     fmt.Sprintf("Queued %d sources", total),
		CurrentTask: "Preparing sources",
	})
	g.task(runID, core.TaskEntry{
		Task: fmt.Sprintf("Queued %d sources for ingestion", total), Stage: "ingest", Status: "completed",
	})

	if total == 0 {
		g.progress(runID, store.ProgressUpdate{
			Total: &zero, Completed: &zero,
			Message: "No enabled feed sources", CurrentTask: "No enabled feed sources",
		})
		_ = g.store.MergeRunStats(runID, map[string]any{
			"sources_processed": 0, "items_fetched": 0, "items_inserted": 0, "duplicates": 0,
			"message": "No enabled feed sources",
		})
		return nil
	}

	var completed, succeeded, failed int
	var fetched, inserted, duplicates int
	var errors []string
	perSource := make(map[string]any, total)

	for _, src := range feeds {
		if err := g.checkpoint(ctx, runID); err != nil {
			return err
		}
		g.progress(runID, store.ProgressUpdate{
			CurrentTask: fmt.Sprintf("Fetching source: %s", src.Name),
		})
		g.task(runID, core.TaskEntry{
			Task: fmt.Sprintf("Fetching source: %s", src.Name), Stage: "ingest",
			Status: "started", Detail: src.Target,
		})

		items, err := g.fetcher.Fetch(ctx, src, g.maxItems)
		if err != nil {
			failed++
			completed++
			errMsg := fmt.Sprintf("Source %s: %v", src.Name, err)
			errors = append(errors, errMsg)
			logger.Get().Warn().Str("source", src.Name).Err(err).Msg("Source fetch failed")
			g.task(runID, core.TaskEntry{
				Task: fmt.Sprintf("Failed source: %s", src.Name), Stage: "ingest",
				Status: "failed", Detail: errMsg,
			})
			g.progress(runID, store.ProgressUpdate{
				Total: &total, Completed: &completed, Succeeded: &succeeded, Failed: &failed,
				Message: fmt.Sprintf("Processed %d of %d sources", completed, total),
			})
			continue
		}

		var srcInserted, srcDuplicates int
		for _, item := range items {
			if _, ok, err := g.store.InsertContentItem(item); err != nil {
				errors = append(errors, fmt.Sprintf("Source %s item %q: %v", src.Name, item.Title, err))
			} else if ok {
				srcInserted++
			} else {
				srcDuplicates++
			}
		}
		fetched += len(items)
		inserted += srcInserted
		duplicates += srcDuplicates
		perSource[src.Name] = map[string]any{
			"fetched": len(items), "inserted": srcInserted, "duplicates": srcDuplicates,
		}

		succeeded++
		completed++
		g.task(runID, core.TaskEntry{
			Task: fmt.Sprintf("Finished source: %s", src.Name), Stage: "ingest", Status: "completed",
			Detail: fmt.Sprintf("%d fetched, %d new, %d duplicates", len(items), srcInserted, srcDuplicates),
		})
		g.progress(runID, store.ProgressUpdate{
			Total: &total, Completed: &completed, Succeeded: &succeeded, Failed: &failed,
			Message:     fmt.Sprintf("Processed %d of %d sources", completed, total),
			CurrentTask: fmt.Sprintf("Finished source: %s", src.Name),
		})
	}

	g.progress(runID, store.ProgressUpdate{
		Total: &total, Completed: &completed, Succeeded: &succeeded, Failed: &failed,
		Message: "Ingestion completed", CurrentTask: "Ingestion completed",
	})
	g.task(runID, core.TaskEntry{Task: "Ingestion completed", Stage: "ingest", Status: "completed"})

	if len(errors) > 10 {
		errors = errors[:10]
	}
	_ = g.store.MergeRunStats(runID, map[string]any{
		"sources_processed": completed,
		"sources_failed":    failed,
		"items_fetched":     fetched,
		"items_inserted":    inserted,
		"duplicates":        duplicates,
		"by_source":         perSource,
		"errors":            errors,
	})

	if failed == total {
		return fmt.Errorf("all %d sources failed", total)
	}
	return nil
}

func (g *Ingester) checkpoint(ctx context.Context, runID int64) error {
	if ctx.Err() != nil {
		return core.ErrRunCancelled
	}
	run, err := g.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run.Status != core.RunRunning {
		return core.ErrRunCancelled
	}
	return nil
}

func (g *Ingester) progress(runID int64, u store.ProgressUpdate) {
	if err := g.store.UpdateRunProgress(runID, "ingest", u); err != nil {
		logger.Error("Failed to update run progress", err)
	}
}

func (g *Ingester) task(runID int64, entry core.TaskEntry) {
	if err := g.store.AppendRunTask(runID, entry); err != nil {
		logger.Error("Failed to append run task", err)
	}
}
