package topicbrief

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"dailybrief/internal/core"
	"dailybrief/internal/llm"
	"dailybrief/internal/store"
)

type fakeInvoker struct {
	respond func(prompt llm.Prompt, schema *genai.Schema) (string, error)
	calls   []llm.Prompt
}

func (f *fakeInvoker) Invoke(ctx context.Context, prompt llm.Prompt, schema *genai.Schema, timeout time.Duration) (string, error) {
	f.calls = append(f.calls, prompt)
	return f.respond(prompt, schema)
}

func (f *fakeInvoker) Provider() string  { return "google" }
func (f *fakeInvoker) ModelName() string { return "test-model" }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeCandidates(t *testing.T, s *store.Store, count int) []core.BriefCandidate {
	t.Helper()
	now := time.Now().UTC()
	candidates := make([]core.BriefCandidate, 0, count)
	for i := 0; i < count; i++ {
		published := now.Add(-time.Duration(i) * time.Hour)
		item, _, err := s.InsertContentItem(core.ContentItem{
			Kind:        core.SourceRSS,
			URL:         "https://x.example/" + strings.Repeat("a", i+1),
			Title:       "Item",
			PublishedAt: &published,
			FetchedAt:   now,
		})
		if err != nil {
			t.Fatalf("failed to insert item: %v", err)
		}
		candidates = append(candidates, core.BriefCandidate{
			Item: item,
			Extraction: core.Extraction{Payload: core.ExtractionPayload{
				SummaryBullets: []string{"bullet one", "bullet two"},
			}},
		})
	}
	return candidates
}

func makeBrief(t *testing.T, s *store.Store) core.Brief {
	t.Helper()
	brief, err := s.ReplaceBrief("2026-08-29", "morning", nil)
	if err != nil {
		t.Fatalf("failed to create brief: %v", err)
	}
	return brief
}

func briefJSON(summaryFull string, itemID int64) string {
	return `{"summary_short":"Short overview.",` +
		`"summary_full":"` + summaryFull + `",` +
		`"content_references":[{"content_item_id":` + int64str(itemID) + `,"title":"Item","url":"https://x.example/a","key_point":"the key point"}],` +
		`"key_themes":["theme"],` +
		`"significance":"Matters."}`
}

func int64str(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestGenerateForTopic_DirectPath(t *testing.T) {
	s := newTestStore(t)
	topic, _ := s.CreateTopic(core.Topic{Name: "AI", Description: "AI news", Enabled: true})
	brief := makeBrief(t, s)
	items := makeCandidates(t, s, 3)
	itemID := items[0].Item.ID

	invoker := &fakeInvoker{respond: func(prompt llm.Prompt, schema *genai.Schema) (string, error) {
		if schema == nil {
			t.Error("direct generation should use structured output")
		}
		return briefJSON("A development (id:"+int64str(itemID)+").", itemID), nil
	}}
	g := NewGenerator(s, invoker, 10, 60*time.Second)

	tb, err := g.GenerateForTopic(context.Background(), topic, items, brief.ID)
	if err != nil {
		t.Fatalf("GenerateForTopic() failed: %v", err)
	}
	if len(invoker.calls) != 1 {
		t.Errorf("direct path should make one call, got %d", len(invoker.calls))
	}
	if !strings.Contains(invoker.calls[0].Text, "AI news") {
		t.Error("prompt should carry the topic description")
	}
	if !strings.Contains(tb.SummaryFull, "[[1]](") {
		t.Errorf("citations should be renumbered, got %q", tb.SummaryFull)
	}
	if len(tb.References) != 1 || tb.References[0].KeyPoint != "the key point" {
		t.Errorf("references = %+v", tb.References)
	}
	if len(tb.ContentItemIDs) != 1 || tb.ContentItemIDs[0] != itemID {
		t.Errorf("content item ids = %v", tb.ContentItemIDs)
	}
	if tb.TraceID == "" {
		t.Error("trace id should be set")
	}

	_, _, stored, _, err := s.GetBriefByDate("2026-08-29", "morning")
	if err != nil || len(stored) != 1 {
		t.Fatalf("topic brief not persisted: %v", err)
	}
}

func TestGenerateForTopic_BatchedPathSkipsFailedBatch(t *testing.T) {
	s := newTestStore(t)
	topic, _ := s.CreateTopic(core.Topic{Name: "AI", Enabled: true})
	brief := makeBrief(t, s)
	items := makeCandidates(t, s, 5)
	itemID := items[0].Item.ID

	var batchCalls, synthesisCalls int
	invoker := &fakeInvoker{respond: func(prompt llm.Prompt, schema *genai.Schema) (string, error) {
		if schema == nil {
			batchCalls++
			if batchCalls == 1 {
				return "", errors.New("batch model error")
			}
			return "Batch prose mentioning (id:" + int64str(itemID) + ").", nil
		}
		synthesisCalls++
		return briefJSON("Synthesis cites (id:"+int64str(itemID)+").", itemID), nil
	}}
	g := NewGenerator(s, invoker, 2, 60*time.Second)

	tb, err := g.GenerateForTopic(context.Background(), topic, items, brief.ID)
	if err != nil {
		t.Fatalf("GenerateForTopic() should survive one failed batch, got %v", err)
	}
	if batchCalls != 3 {
		t.Errorf("batch calls = %d, want 3 for 5 items in batches of 2", batchCalls)
	}
	if synthesisCalls != 1 {
		t.Errorf("synthesis calls = %d, want 1", synthesisCalls)
	}
	if tb.SummaryShort == "" {
		t.Error("synthesized brief should be returned")
	}
}

func TestGenerateForTopic_AllBatchesFailed(t *testing.T) {
	s := newTestStore(t)
	topic, _ := s.CreateTopic(core.Topic{Name: "Energy", Enabled: true})
	brief := makeBrief(t, s)
	items := makeCandidates(t, s, 4)

	invoker := &fakeInvoker{respond: func(prompt llm.Prompt, schema *genai.Schema) (string, error) {
		return "", errors.New("model down")
	}}
	g := NewGenerator(s, invoker, 2, 60*time.Second)

	_, err := g.GenerateForTopic(context.Background(), topic, items, brief.ID)
	if err == nil {
		t.Fatal("GenerateForTopic() should fail when every batch fails")
	}
	want := "all batch summarizations failed for topic: Energy"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestGenerateForTopic_TimeoutMessage(t *testing.T) {
	s := newTestStore(t)
	topic, _ := s.CreateTopic(core.Topic{Name: "Chips", Enabled: true})
	brief := makeBrief(t, s)
	items := makeCandidates(t, s, 2)

	invoker := &fakeInvoker{respond: func(prompt llm.Prompt, schema *genai.Schema) (string, error) {
		return "", &llm.TimeoutError{Op: "generate", Timeout: 60 * time.Second}
	}}
	g := NewGenerator(s, invoker, 10, 60*time.Second)

	_, err := g.GenerateForTopic(context.Background(), topic, items, brief.ID)
	if err == nil {
		t.Fatal("GenerateForTopic() should fail on timeout")
	}
	want := "topic brief generation timed out for topic: Chips"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}
}

func TestFormatContentItems(t *testing.T) {
	published := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	items := []core.BriefCandidate{
		{
			Item: core.ContentItem{ID: 7, Title: "With bullets", URL: "https://x.example/1", PublishedAt: &published},
			Extraction: core.Extraction{Payload: core.ExtractionPayload{
				SummaryBullets: []string{"one", "two", "three", "four"},
			}},
		},
		{
			Item: core.ContentItem{ID: 8, Title: "Raw only", URL: "https://x.example/2", RawText: strings.Repeat("y", 300)},
		},
		{
			Item: core.ContentItem{ID: 9, Title: "Nothing", URL: "https://x.example/3"},
		},
	}

	got := formatContentItems(items)
	if !strings.Contains(got, "(id:7)") || !strings.Contains(got, "[With bullets](https://x.example/1)") {
		t.Errorf("missing id marker or link: %q", got)
	}
	if !strings.Contains(got, "one | two | three") || strings.Contains(got, "four") {
		t.Errorf("bullets should be capped at three: %q", got)
	}
	if !strings.Contains(got, "Published: 2026-08-28T10:00:00Z") {
		t.Errorf("missing published timestamp: %q", got)
	}
	if !strings.Contains(got, strings.Repeat("y", 200)) || strings.Contains(got, strings.Repeat("y", 201)) {
		t.Errorf("raw text should be capped at 200 chars")
	}
	if !strings.Contains(got, "No summary available.") || !strings.Contains(got, "Published: unknown") {
		t.Errorf("fallbacks missing: %q", got)
	}
}

func TestGenerateForTopic_CapsItemsAtFifty(t *testing.T) {
	s := newTestStore(t)
	topic, _ := s.CreateTopic(core.Topic{Name: "Flood", Enabled: true})
	brief := makeBrief(t, s)

	now := time.Now().UTC()
	var items []core.BriefCandidate
	for i := 0; i < 60; i++ {
		published := now.Add(-time.Duration(i) * time.Minute)
		items = append(items, core.BriefCandidate{
			Item: core.ContentItem{ID: int64(i + 1), Title: "Item", URL: "https://x.example/n", PublishedAt: &published},
		})
	}

	invoker := &fakeInvoker{respond: func(prompt llm.Prompt, schema *genai.Schema) (string, error) {
		if schema == nil {
			if strings.Contains(prompt.Text, "(id:60)") {
				t.Error("items beyond the newest 50 should be dropped")
			}
			return "Batch prose.", nil
		}
		return briefJSON("Synthesis.", 1), nil
	}}
	g := NewGenerator(s, invoker, 10, 60*time.Second)

	if _, err := g.GenerateForTopic(context.Background(), topic, items, brief.ID); err != nil {
		t.Fatalf("GenerateForTopic() failed: %v", err)
	}
}
