package connector

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"dailybrief/internal/core"
	"dailybrief/internal/store"
)

func TestItemHash_Deterministic(t *testing.T) {
	a := ItemHash("Title", "https://x.example/1")
	b := ItemHash("Title", "https://x.example/1")
	if a != b {
		t.Error("hash should be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if ItemHash("Other", "https://x.example/1") == a {
		t.Error("different titles should hash differently")
	}
	if ItemHash("Title", "https://x.example/2") == a {
		t.Error("different urls should hash differently")
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text passes through", in: "  plain text  ", want: "plain text"},
		{name: "tags removed", in: "<p>Hello <b>world</b></p>", want: "Hello world"},
		{name: "whitespace collapsed", in: "<div>a\n\n  b</div>", want: "a b"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripHTML(tt.in); got != tt.want {
				t.Errorf("stripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	f := NewFeedFetcher(time.Second)
	published := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	source := core.Source{ID: 3, Kind: core.SourceYouTube, Name: "Chan"}

	entry := &gofeed.Item{
		Title:           "A video",
		Link:            "https://youtube.example/watch?v=1",
		GUID:            "yt:video:1",
		Content:         "<p>Full description</p>",
		Description:     "short",
		PublishedParsed: &published,
		UpdatedParsed:   &updated,
		Authors:         []*gofeed.Person{{Name: "Creator"}},
	}

	item := f.normalize(source, entry)
	if item.SourceID == nil || *item.SourceID != 3 {
		t.Errorf("source id = %v", item.SourceID)
	}
	if item.Kind != core.SourceYouTube {
		t.Errorf("kind = %s", item.Kind)
	}
	if item.ExternalID != "yt:video:1" {
		t.Errorf("external id = %q, want the guid", item.ExternalID)
	}
	if item.Author != "Creator" {
		t.Errorf("author = %q", item.Author)
	}
	if item.PublishedAt == nil || !item.PublishedAt.Equal(published) {
		t.Errorf("published = %v, want the published date over updated", item.PublishedAt)
	}
	if item.RawText != "Full description" {
		t.Errorf("raw text = %q, want content over description", item.RawText)
	}
	if item.Hash != ItemHash("A video", "https://youtube.example/watch?v=1") {
		t.Errorf("hash mismatch")
	}
}

func TestNormalize_Fallbacks(t *testing.T) {
	f := NewFeedFetcher(time.Second)
	updated := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	source := core.Source{ID: 1, Kind: core.SourceYouTube}

	entry := &gofeed.Item{
		Link:          "https://feed.example/post",
		Description:   "<p>desc only</p>",
		UpdatedParsed: &updated,
	}

	item := f.normalize(source, entry)
	if item.Title != "Untitled" {
		t.Errorf("title = %q, want Untitled", item.Title)
	}
	if item.ExternalID != "https://feed.example/post" {
		t.Errorf("external id = %q, want the link when no guid", item.ExternalID)
	}
	if item.PublishedAt == nil || !item.PublishedAt.Equal(updated) {
		t.Errorf("published = %v, want the updated date", item.PublishedAt)
	}
	if item.RawText != "desc only" {
		t.Errorf("raw text = %q, want cleaned description", item.RawText)
	}
}

func TestIngesterRun_NoEnabledSources(t *testing.T) {
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	run, err := s.CreateRun(core.RunIngest, nil)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	g := NewIngester(s, time.Second, 10)
	if err := g.Run(context.Background(), run.ID); err != nil {
		t.Fatalf("Run() with no sources should succeed, got %v", err)
	}

	got, _ := s.GetRun(run.ID)
	if got.Stats["message"] != "No enabled feed sources" {
		t.Errorf("stats = %+v", got.Stats)
	}
}

func TestIngesterRun_CancelledRunStopsBeforeFetch(t *testing.T) {
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	if _, err := s.CreateSource(core.Source{
		Kind: core.SourceRSS, Name: "S", Target: "https://feed.invalid/rss", Enabled: true,
	}); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	run, _ := s.CreateRun(core.RunIngest, nil)
	if _, err := s.CancelRun(run.ID, "cancelled by user"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	g := NewIngester(s, time.Second, 10)
	if err := g.Run(context.Background(), run.ID); err != core.ErrRunCancelled {
		t.Errorf("Run() on a cancelled run = %v, want ErrRunCancelled", err)
	}
}
