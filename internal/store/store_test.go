package store

import (
	"testing"
	"time"

	"dailybrief/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestItem(t *testing.T, s *Store, title, url string, published *time.Time) core.ContentItem {
	t.Helper()
	item, inserted, err := s.InsertContentItem(core.ContentItem{
		Kind:        core.SourceRSS,
		URL:         url,
		Title:       title,
		PublishedAt: published,
		FetchedAt:   time.Now().UTC(),
		Hash:        title + ":" + url,
	})
	if err != nil {
		t.Fatalf("failed to insert item: %v", err)
	}
	if !inserted {
		t.Fatalf("item %q should be new", title)
	}
	return item
}

func TestInsertContentItem_DeduplicatesByHash(t *testing.T) {
	s := newTestStore(t)
	first := insertTestItem(t, s, "Title", "https://x.example/1", nil)

	dup, inserted, err := s.InsertContentItem(core.ContentItem{
		Kind: core.SourceRSS, URL: "https://x.example/1", Title: "Title",
		FetchedAt: time.Now().UTC(), Hash: "Title:https://x.example/1",
	})
	if err != nil {
		t.Fatalf("duplicate insert failed: %v", err)
	}
	if inserted {
		t.Error("duplicate hash should not insert")
	}
	if dup.ID != first.ID {
		t.Errorf("duplicate should return the stored item, got id %d want %d", dup.ID, first.ID)
	}
}

func TestListUnprocessedItems_ExcludesExtracted(t *testing.T) {
	s := newTestStore(t)
	processed := insertTestItem(t, s, "Done", "https://x.example/1", nil)
	pending := insertTestItem(t, s, "Pending", "https://x.example/2", nil)

	err := s.ReplaceExtraction(core.Extraction{
		ContentItemID: processed.ID,
		CreatedAt:     time.Now().UTC(),
		Payload:       core.ExtractionPayload{Novelty: "new"},
	})
	if err != nil {
		t.Fatalf("failed to store extraction: %v", err)
	}

	items, err := s.ListUnprocessedItems()
	if err != nil {
		t.Fatalf("failed to list unprocessed: %v", err)
	}
	if len(items) != 1 || items[0].ID != pending.ID {
		t.Errorf("unprocessed = %+v, want only item %d", items, pending.ID)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	run, err := s.CreateRun(core.RunAI, map[string]any{"trigger": "test"})
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.Status != core.RunRunning {
		t.Errorf("new run status = %s, want running", run.Status)
	}

	if err := s.FinishRun(run.ID, core.RunSuccess, ""); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}
	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != core.RunSuccess || got.FinishedAt == nil {
		t.Errorf("finished run = %+v", got)
	}

	// Terminal transitions fire only once.
	if err := s.FinishRun(run.ID, core.RunFailed, "late failure"); err != nil {
		t.Fatalf("second finish errored: %v", err)
	}
	got, _ = s.GetRun(run.ID)
	if got.Status != core.RunSuccess || got.ErrorText != "" {
		t.Errorf("terminal state should not change twice, got %+v", got)
	}
}

func TestCancelRun_OnlyFlipsRunning(t *testing.T) {
	s := newTestStore(t)
	run, _ := s.CreateRun(core.RunIngest, nil)

	flipped, err := s.CancelRun(run.ID, "cancelled by user")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if !flipped {
		t.Error("cancel of a running run should flip")
	}
	got, _ := s.GetRun(run.ID)
	if got.Status != core.RunFailed || got.ErrorText != "cancelled by user" {
		t.Errorf("cancelled run = %+v", got)
	}

	flipped, err = s.CancelRun(run.ID, "again")
	if err != nil {
		t.Fatalf("second cancel errored: %v", err)
	}
	if flipped {
		t.Error("cancel of a finished run should not flip")
	}
}

func TestMergeRunStats_PreservesOtherKeys(t *testing.T) {
	s := newTestStore(t)
	run, _ := s.CreateRun(core.RunAI, map[string]any{"trigger": "test"})

	if err := s.MergeRunStats(run.ID, map[string]any{"items_processed": 3}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if err := s.MergeRunStats(run.ID, map[string]any{"items_failed": 1}); err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	got, _ := s.GetRun(run.ID)
	if got.Stats["trigger"] != "test" {
		t.Error("initial stats key lost")
	}
	if got.Stats["items_processed"] != float64(3) || got.Stats["items_failed"] != float64(1) {
		t.Errorf("merged stats = %+v", got.Stats)
	}
}

func TestUpdateRunProgress_MergesIntoSubMap(t *testing.T) {
	s := newTestStore(t)
	run, _ := s.CreateRun(core.RunAI, nil)

	total := 10
	if err := s.UpdateRunProgress(run.ID, "ai_processing", ProgressUpdate{Total: &total, Message: "Queued"}); err != nil {
		t.Fatalf("progress update failed: %v", err)
	}
	completed := 4
	if err := s.UpdateRunProgress(run.ID, "ai_processing", ProgressUpdate{Completed: &completed}); err != nil {
		t.Fatalf("progress update failed: %v", err)
	}

	got, _ := s.GetRun(run.ID)
	progress, ok := got.Stats["progress"].(map[string]any)
	if !ok {
		t.Fatalf("no progress sub-map in stats: %+v", got.Stats)
	}
	if progress["total"] != float64(10) {
		t.Errorf("total from the first update should survive, got %v", progress["total"])
	}
	if progress["completed"] != float64(4) {
		t.Errorf("completed = %v, want 4", progress["completed"])
	}
	if progress["message"] != "Queued" {
		t.Errorf("message from the first update should survive, got %v", progress["message"])
	}
	if progress["phase"] != "ai_processing" {
		t.Errorf("phase = %v", progress["phase"])
	}
}

func TestAppendRunTask_CapsLog(t *testing.T) {
	s := newTestStore(t)
	run, _ := s.CreateRun(core.RunAI, nil)

	for i := 0; i < maxTaskEntries+25; i++ {
		if err := s.AppendRunTask(run.ID, core.TaskEntry{Task: "tick"}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, _ := s.GetRun(run.ID)
	tasks, ok := got.Stats["tasks"].([]any)
	if !ok {
		t.Fatalf("no task log in stats")
	}
	if len(tasks) != maxTaskEntries {
		t.Errorf("task log length = %d, want %d", len(tasks), maxTaskEntries)
	}
}

func TestReplaceBrief_IsIdempotentPerSlot(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(core.Topic{Name: "AI", Enabled: true})
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	item1 := insertTestItem(t, s, "A", "https://x.example/1", nil)
	item2 := insertTestItem(t, s, "B", "https://x.example/2", nil)

	first, err := s.ReplaceBrief("2026-08-29", "morning", []core.BriefItem{
		{ContentItemID: item1.ID, Rank: 1, Reason: "first"},
	})
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	if _, err := s.InsertTopicBrief(core.TopicBrief{BriefID: first.ID, TopicID: topic.ID, SummaryShort: "s", SummaryFull: "f"}); err != nil {
		t.Fatalf("failed to attach topic brief: %v", err)
	}

	second, err := s.ReplaceBrief("2026-08-29", "morning", []core.BriefItem{
		{ContentItemID: item2.ID, Rank: 1, Reason: "rebuilt"},
	})
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("rebuild should create a fresh brief row")
	}

	_, items, topicBriefs, found, err := s.GetBriefByDate("2026-08-29", "morning")
	if err != nil || !found {
		t.Fatalf("brief not found after rebuild: %v", err)
	}
	if len(items) != 1 || items[0].ContentItemID != item2.ID {
		t.Errorf("rebuilt items = %+v", items)
	}
	if len(topicBriefs) != 0 {
		t.Errorf("old topic briefs should be discarded, got %d", len(topicBriefs))
	}
}

func TestInsertTopicBrief_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(core.Topic{Name: "Chips", Enabled: true})
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	brief, err := s.ReplaceBrief("2026-08-29", "morning", nil)
	if err != nil {
		t.Fatalf("failed to create brief: %v", err)
	}

	stored, err := s.InsertTopicBrief(core.TopicBrief{
		BriefID:        brief.ID,
		TopicID:        topic.ID,
		SummaryShort:   "Short.",
		SummaryFull:    "Full with [[1]](https://x.example/1).",
		ContentItemIDs: []int64{4, 9},
		References: []core.ContentReference{
			{ContentItemID: 4, Title: "T", URL: "https://x.example/1", KeyPoint: "kp"},
		},
		KeyThemes:    []string{"theme one", "theme two"},
		Significance: "Matters now.",
		TraceID:      "trace-1",
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if stored.ID == 0 {
		t.Error("topic brief id should be populated")
	}

	_, _, topicBriefs, _, err := s.GetBriefByDate("2026-08-29", "morning")
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if len(topicBriefs) != 1 {
		t.Fatalf("got %d topic briefs, want 1", len(topicBriefs))
	}
	tb := topicBriefs[0]
	if len(tb.ContentItemIDs) != 2 || tb.ContentItemIDs[0] != 4 {
		t.Errorf("content item ids = %v", tb.ContentItemIDs)
	}
	if len(tb.References) != 1 || tb.References[0].KeyPoint != "kp" {
		t.Errorf("references = %+v", tb.References)
	}
	if len(tb.KeyThemes) != 2 || tb.Significance != "Matters now." {
		t.Errorf("themes/significance = %v / %q", tb.KeyThemes, tb.Significance)
	}
}

func TestListBriefCandidates_Filters(t *testing.T) {
	s := newTestStore(t)
	topic, err := s.CreateTopic(core.Topic{Name: "On", Enabled: true, Priority: 5})
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	disabledTopic, err := s.CreateTopic(core.Topic{Name: "Off", Enabled: false})
	if err != nil {
		t.Fatalf("failed to create topic: %v", err)
	}
	src, err := s.CreateSource(core.Source{Kind: core.SourceRSS, Name: "S", Target: "https://f.example/rss", Enabled: true, Weight: 3})
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	now := time.Now().UTC()
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-100 * time.Hour)

	analyzed := func(item core.ContentItem, topicID int64) core.ContentItem {
		item.SourceID = &src.ID
		item.FetchedAt = now
		stored, _, err := s.InsertContentItem(item)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if err := s.ReplaceExtraction(core.Extraction{
			ContentItemID: stored.ID, CreatedAt: now,
			Payload: core.ExtractionPayload{Novelty: "new", ConfidenceOverall: "high"},
		}); err != nil {
			t.Fatalf("extraction failed: %v", err)
		}
		if err := s.ReplaceAssignments(stored.ID, []core.TopicAssignment{
			{ContentItemID: stored.ID, TopicID: topicID, Score: 0.8},
		}); err != nil {
			t.Fatalf("assignments failed: %v", err)
		}
		return stored
	}

	wanted := analyzed(core.ContentItem{Kind: core.SourceRSS, URL: "https://x.example/1", Title: "In window", PublishedAt: &recent, Hash: "h1"}, topic.ID)
	analyzed(core.ContentItem{Kind: core.SourceRSS, URL: "https://x.example/2", Title: "Too old", PublishedAt: &old, Hash: "h2"}, topic.ID)
	analyzed(core.ContentItem{Kind: core.SourceRSS, URL: "https://x.example/3", Title: "Disabled topic", PublishedAt: &recent, Hash: "h3"}, disabledTopic.ID)

	// Analyzed but without an extraction.
	noExtraction, _, err := s.InsertContentItem(core.ContentItem{
		Kind: core.SourceRSS, URL: "https://x.example/4", Title: "No extraction",
		PublishedAt: &recent, FetchedAt: now, Hash: "h4",
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.ReplaceAssignments(noExtraction.ID, []core.TopicAssignment{
		{ContentItemID: noExtraction.ID, TopicID: topic.ID, Score: 0.8},
	}); err != nil {
		t.Fatalf("assignments failed: %v", err)
	}

	candidates, err := s.ListBriefCandidates(now.Add(-48 * time.Hour))
	if err != nil {
		t.Fatalf("failed to list candidates: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	c := candidates[0]
	if c.Item.ID != wanted.ID {
		t.Errorf("candidate = item %d, want %d", c.Item.ID, wanted.ID)
	}
	if c.SourceWeight != 3 {
		t.Errorf("source weight = %d, want 3", c.SourceWeight)
	}
	if len(c.Assignments) != 1 || c.Assignments[0].Topic.Name != "On" {
		t.Errorf("assignments = %+v", c.Assignments)
	}
	if c.Extraction.Payload.Novelty != "new" {
		t.Errorf("extraction not loaded: %+v", c.Extraction)
	}
}
