// Package connector ingests content from configured sources into the store.
package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"dailybrief/internal/core"
	"dailybrief/internal/logger"
)

// FeedFetcher pulls and normalizes RSS/Atom entries. YouTube channel sources
// work through their channel feeds with the same machinery.
type FeedFetcher struct {
	parser  *gofeed.Parser
	client  *http.Client
	timeout time.Duration
}

// NewFeedFetcher creates a fetcher with the given per-request timeout.
func NewFeedFetcher(timeout time.Duration) *FeedFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "dailybrief/1.0"
	return &FeedFetcher{parser: parser, client: client, timeout: timeout}
}

// Fetch pulls up to maxItems entries from the source's feed and normalizes
// them into content items. Entries without a link are skipped.
func (f *FeedFetcher) Fetch(ctx context.Context, source core.Source, maxItems int) ([]core.ContentItem, error) {
	feed, err := f.parser.ParseURLWithContext(source.Target, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed fetch error for %s: %w", source.Target, err)
	}

	entries := feed.Items
	if maxItems > 0 && len(entries) > maxItems {
		entries = entries[:maxItems]
	}

	items := make([]core.ContentItem, 0, len(entries))
	for _, entry := range entries {
		if entry.Link == "" {
			continue
		}
		items = append(items, f.normalize(source, entry))
	}
	return items, nil
}

func (f *FeedFetcher) normalize(source core.Source, entry *gofeed.Item) core.ContentItem {
	title := entry.Title
	if title == "" {
		title = "Untitled"
	}
	externalID := entry.GUID
	if externalID == "" {
		externalID = entry.Link
	}
	author := ""
	if len(entry.Authors) > 0 {
		author = entry.Authors[0].Name
	}

	var published *time.Time
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		published = &t
	} else if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		published = &t
	}

	rawText := entry.Content
	if rawText == "" {
		rawText = entry.Description
	}
	rawText = stripHTML(rawText)
	if rawText == "" && source.Kind == core.SourceRSS {
		rawText = f.fetchArticleText(entry.Link)
	}

	sourceID := source.ID
	return core.ContentItem{
		SourceID:    &sourceID,
		Kind:        source.Kind,
		ExternalID:  externalID,
		URL:         entry.Link,
		Title:       title,
		Author:      author,
		PublishedAt: published,
		FetchedAt:   time.Now().UTC(),
		RawText:     rawText,
		Hash:        ItemHash(title, entry.Link),
	}
}

// fetchArticleText pulls the linked page and extracts readable text. Best
// effort: any failure yields an empty string and the item keeps only its
// title.
func (f *FeedFetcher) fetchArticleText(link string) string {
	resp, err := f.client.Get(link)
	if err != nil {
		logger.Get().Debug().Str("url", link).Err(err).Msg("Article fetch failed")
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	article, err := readability.FromReader(resp.Body, resp.Request.URL)
	if err != nil {
		logger.Get().Debug().Str("url", link).Err(err).Msg("Article parse failed")
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// stripHTML reduces feed HTML to plain text.
func stripHTML(s string) string {
	if s == "" || !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(strings.Join(strings.Fields(doc.Text()), " "))
}

// ItemHash is the dedup hash over title and URL.
func ItemHash(title, url string) string {
	sum := sha256.Sum256([]byte(title + ":" + url))
	return hex.EncodeToString(sum[:])
}
