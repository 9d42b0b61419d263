// Package brief assembles the daily brief: deterministic ranking and
// selection of candidates, then per-topic narrative generation.
package brief

import (
	"context"
	"fmt"
	"time"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
	"dailybrief/internal/ranker"
	"dailybrief/internal/store"
	"dailybrief/internal/topicbrief"
)

// briefSteps is the coarse step count reported while building.
const briefSteps = 4

// Options are per-run overrides for the selection knobs. Nil fields keep the
// configured defaults; out-of-range values fall back too.
type Options struct {
	MaxItems      *int
	MaxPerTopic   *int
	LookbackHours *int
}

// Builder builds briefs for a (date, mode) slot.
type Builder struct {
	store     *store.Store
	generator *topicbrief.Generator

	maxItems      int
	maxPerTopic   int
	lookbackHours int
}

// NewBuilder creates a builder with the configured default knobs.
func NewBuilder(s *store.Store, generator *topicbrief.Generator, maxItems, maxPerTopic, lookbackHours int) *Builder {
	return &Builder{
		store:         s,
		generator:     generator,
		maxItems:      maxItems,
		maxPerTopic:   maxPerTopic,
		lookbackHours: lookbackHours,
	}
}

// Build runs one brief build under the given run. Topic brief failures are
// recorded in the run stats but do not fail the build; only cancellation or
// a selection-phase error does.
func (b *Builder) Build(ctx context.Context, runID int64, date, mode string, opts Options) error {
	maxItems := resolveInt(opts.MaxItems, b.maxItems, 0)
	maxPerTopic := resolveInt(opts.MaxPerTopic, b.maxPerTopic, 0)
	lookbackHours := resolveInt(opts.LookbackHours, b.lookbackHours, 1)

	briefDate, err := parseDate(date)
	if err != nil {
		return err
	}
	dateStr := briefDate.Format("2006-01-02")

	step := 0
	b.progress(runID, "brief_build", store.ProgressUpdate{
		Total: intp(briefSteps), Completed: &step,
		Message: "Starting brief build", CurrentTask: "Starting brief build",
	})
	b.task(runID, core.TaskEntry{Task: "Starting brief build", Stage: "brief_build", Status: "started"})

	if err := b.checkpoint(ctx, runID); err != nil {
		return err
	}

	b.progress(runID, "brief_build", store.ProgressUpdate{
		Total: intp(briefSteps), Completed: &step,
		Message: "Finding candidate items", CurrentTask: "Finding candidate items",
	})
	b.task(runID, core.TaskEntry{Task: "Finding candidate items", Stage: "brief_build", Status: "started"})

	cutoff := briefDate.Add(-time.Duration(lookbackHours) * time.Hour)
	candidates, err := b.store.ListBriefCandidates(cutoff)
	if err != nil {
		return err
	}
	step = 1
	b.task(runID, core.TaskEntry{
		Task: "Candidate items loaded", Stage: "brief_build", Status: "completed",
		Detail: fmt.Sprintf("%d candidates", len(candidates)),
	})
	b.progress(runID, "brief_build", store.ProgressUpdate{
		Total: intp(briefSteps), Completed: &step,
		Message:     fmt.Sprintf("Found %d candidates", len(candidates)),
		CurrentTask: "Ranking candidate items",
	})

	if len(candidates) == 0 {
		zero := 0
		b.progress(runID, "brief_build", store.ProgressUpdate{
			Total: &zero, Completed: &zero,
			Message: "No candidate items found", CurrentTask: "No candidate items found",
		})
		b.task(runID, core.TaskEntry{Task: "No candidate items found", Stage: "brief_build", Status: "completed"})
		_ = b.store.MergeRunStats(runID, map[string]any{
			"date": dateStr, "mode": mode,
			"candidates_evaluated": 0, "items_selected": 0,
			"message": "No candidate items found",
		})
		return nil
	}

	if err := b.checkpoint(ctx, runID); err != nil {
		return err
	}

	b.task(runID, core.TaskEntry{Task: "Ranking candidate items", Stage: "brief_build", Status: "started"})
	ranked := ranker.Rank(candidates, time.Now().UTC())
	step = 2
	b.task(runID, core.TaskEntry{
		Task: "Ranked candidate items", Stage: "brief_build", Status: "completed",
		Detail: fmt.Sprintf("%d ranked", len(ranked)),
	})
	b.progress(runID, "brief_build", store.ProgressUpdate{
		Total: intp(briefSteps), Completed: &step,
		Message: "Applying selection caps", CurrentTask: "Applying selection caps",
	})

	if err := b.checkpoint(ctx, runID); err != nil {
		return err
	}

	b.task(runID, core.TaskEntry{Task: "Applying selection caps", Stage: "brief_build", Status: "started"})
	selected := ranker.ApplyCaps(ranked, maxItems, maxPerTopic)
	step = 3
	b.task(runID, core.TaskEntry{
		Task: "Selection caps applied", Stage: "brief_build", Status: "completed",
		Detail: fmt.Sprintf("%d selected", len(selected)),
	})
	b.progress(runID, "brief_build", store.ProgressUpdate{
		Total: intp(briefSteps), Completed: &step,
		Message: "Creating brief", CurrentTask: "Creating brief",
	})

	if err := b.checkpoint(ctx, runID); err != nil {
		return err
	}

	b.task(runID, core.TaskEntry{Task: "Creating brief", Stage: "brief_build", Status: "started"})
	items := make([]core.BriefItem, 0, len(selected))
	for i, r := range selected {
		items = append(items, core.BriefItem{
			ContentItemID: r.Candidate.Item.ID,
			Rank:          i + 1,
			Reason:        ranker.InclusionReason(r),
		})
	}
	briefRecord, err := b.store.ReplaceBrief(dateStr, mode, items)
	if err != nil {
		return err
	}
	step = 4
	b.task(runID, core.TaskEntry{
		Task: "Brief created", Stage: "brief_build", Status: "completed",
		Detail: fmt.Sprintf("%d items", len(selected)),
	})
	b.progress(runID, "brief_build", store.ProgressUpdate{
		Total: intp(briefSteps), Completed: &step,
		Message:     fmt.Sprintf("Selected %d items", len(selected)),
		CurrentTask: "Generating topic briefs",
	})

	if err := b.checkpoint(ctx, runID); err != nil {
		return err
	}

	b.task(runID, core.TaskEntry{Task: "Generating topic briefs", Stage: "topic_briefs", Status: "started"})
	totalTopics, generated, errors, err := b.generateTopicBriefs(ctx, runID, briefRecord.ID, candidates)
	if err != nil {
		return err
	}

	if len(errors) > 5 {
		errors = errors[:5]
	}
	_ = b.store.MergeRunStats(runID, map[string]any{
		"date": dateStr, "mode": mode,
		"candidates_evaluated": len(candidates),
		"items_selected":       len(selected),
		"brief_id":             briefRecord.ID,
		"topic_briefs": map[string]any{
			"total_topics": totalTopics,
			"generated":    generated,
			"failed":       len(errors),
			"errors":       errors,
		},
	})
	b.task(runID, core.TaskEntry{Task: "Brief build completed", Stage: "brief_build", Status: "completed"})
	return nil
}

// generateTopicBriefs runs the narrative generator over every enabled topic
// with at least two candidates in the window. All candidates feed topic
// briefs, not just the capped selection.
func (b *Builder) generateTopicBriefs(ctx context.Context, runID, briefID int64, candidates []core.BriefCandidate) (int, int, []string, error) {
	type group struct {
		topic core.Topic
		items []core.BriefCandidate
	}
	groups := make(map[int64]*group)
	var order []int64
	for _, c := range candidates {
		for _, at := range c.Assignments {
			if !at.Topic.Enabled {
				continue
			}
			g, ok := groups[at.Topic.ID]
			if !ok {
				g = &group{topic: at.Topic}
				groups[at.Topic.ID] = g
				order = append(order, at.Topic.ID)
			}
			g.items = append(g.items, c)
		}
	}

	var eligible []*group
	for _, id := range order {
		if g := groups[id]; len(g.items) >= 2 {
			eligible = append(eligible, g)
		}
	}

	total := len(eligible)
	zero := 0
	b.progress(runID, "topic_briefs", store.ProgressUpdate{
		Total: &total, Completed: &zero, Succeeded: &zero, Failed: &zero,
		Message:     fmt.Sprintf("Queued %d topic briefs", total),
		CurrentTask: "Queued topic briefs",
	})
	b.task(runID, core.TaskEntry{
		Task: fmt.Sprintf("Queued %d topic briefs", total), Stage: "topic_briefs", Status: "completed",
	})

	var completed, succeeded, failed int
	var errors []string
	for _, g := range eligible {
		if err := b.checkpoint(ctx, runID); err != nil {
			return total, succeeded, errors, err
		}
		b.progress(runID, "topic_briefs", store.ProgressUpdate{
			CurrentTask: fmt.Sprintf("Generating topic brief: %s", g.topic.Name),
		})
		b.task(runID, core.TaskEntry{
			Task: fmt.Sprintf("Starting topic brief: %s", g.topic.Name), Stage: "topic_briefs",
			Status: "started", Detail: fmt.Sprintf("%d items", len(g.items)),
		})

		if _, err := b.generator.GenerateForTopic(ctx, g.topic, g.items, briefID); err != nil {
			failed++
			errMsg := fmt.Sprintf("Topic %s: %v", g.topic.Name, err)
			errors = append(errors, errMsg)
			b.task(runID, core.TaskEntry{
				Task: fmt.Sprintf("Failed topic brief: %s", g.topic.Name), Stage: "topic_briefs",
				Status: "failed", Detail: errMsg,
			})
		} else {
			succeeded++
			b.task(runID, core.TaskEntry{
				Task: fmt.Sprintf("Completed topic brief: %s", g.topic.Name), Stage: "topic_briefs",
				Status: "completed", Detail: fmt.Sprintf("%d items", len(g.items)),
			})
		}
		completed++
		b.progress(runID, "topic_briefs", store.ProgressUpdate{
			Total: &total, Completed: &completed, Succeeded: &succeeded, Failed: &failed,
			Message:     fmt.Sprintf("Generated %d of %d topic briefs", completed, total),
			CurrentTask: fmt.Sprintf("Finished topic brief: %s", g.topic.Name),
		})
	}

	b.progress(runID, "topic_briefs", store.ProgressUpdate{
		Total: &total, Completed: &completed, Succeeded: &succeeded, Failed: &failed,
		Message: "Topic briefs completed", CurrentTask: "Topic briefs completed",
	})
	b.task(runID, core.TaskEntry{Task: "Topic briefs completed", Stage: "topic_briefs", Status: "completed"})
	return total, succeeded, errors, nil
}

// checkpoint returns core.ErrRunCancelled when the context is cancelled or
// the run is no longer RUNNING.
func (b *Builder) checkpoint(ctx context.Context, runID int64) error {
	if ctx.Err() != nil {
		return core.ErrRunCancelled
	}
	run, err := b.store.GetRun(runID)
	if err != nil {
		return err
	}
	if run.Status != core.RunRunning {
		return core.ErrRunCancelled
	}
	return nil
}

func (b *Builder) progress(runID int64, phase string, u store.ProgressUpdate) {
	if err := b.store.UpdateRunProgress(runID, phase, u); err != nil {
		logger.Error("Failed to update run progress", err)
	}
}

func (b *Builder) task(runID int64, entry core.TaskEntry) {
	if err := b.store.AppendRunTask(runID, entry); err != nil {
		logger.Error("Failed to append run task", err)
	}
}

// parseDate returns the midnight UTC time for a YYYY-MM-DD string, or today
// when empty.
func parseDate(date string) (time.Time, error) {
	if date == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
	}
	return t, nil
}

func resolveInt(value *int, fallback, minimum int) int {
	if value == nil || *value < minimum {
		return fallback
	}
	return *value
}

func intp(v int) *int { return &v }
