// Package topicbrief generates per-topic executive narratives with verified
// citations, batching large item sets hierarchically to stay inside model
// context limits.
package topicbrief

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"dailybrief/internal/core"
	"dailybrief/internal/llm"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"
)

// maxItemsPerTopic caps how many items feed one topic brief.
const maxItemsPerTopic = 50

// Invoker is the model call surface the generator needs.
type Invoker interface {
	Invoke(ctx context.Context, prompt llm.Prompt, schema *genai.Schema, timeout time.Duration) (string, error)
	Provider() string
	ModelName() string
}

type referenceOutput struct {
	ContentItemID int64  `json:"content_item_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	KeyPoint      string `json:"key_point"`
}

type briefOutput struct {
	SummaryShort      string            `json:"summary_short"`
	SummaryFull       string            `json:"summary_full"`
	ContentReferences []referenceOutput `json:"content_references"`
	KeyThemes         []string          `json:"key_themes"`
	Significance      string            `json:"significance"`
}

// Generator builds topic briefs.
type Generator struct {
	store     *store.Store
	invoker   Invoker
	batchSize int
	timeout   time.Duration
}

// NewGenerator creates a generator. batchSize controls when the hierarchical
// path kicks in; timeout is the per-call budget for direct generation and
// synthesis, with each batch call getting half.
func NewGenerator(s *store.Store, invoker Invoker, batchSize int, timeout time.Duration) *Generator {
	if batchSize < 1 {
		batchSize = 10
	}
	return &Generator{store: s, invoker: invoker, batchSize: batchSize, timeout: timeout}
}

// GenerateForTopic produces and persists the brief for one topic from its
// candidates in the lookback window. Item sets above the batch size go
// through batch summaries and a synthesis pass; a failed batch is skipped,
// but when every batch fails the topic fails.
func (g *Generator) GenerateForTopic(ctx context.Context, topic core.Topic, items []core.BriefCandidate, briefID int64) (core.TopicBrief, error) {
	if len(items) > maxItemsPerTopic {
		sorted := make([]core.BriefCandidate, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool {
			ti, tj := publishedOrZero(sorted[i]), publishedOrZero(sorted[j])
			return ti.After(tj)
		})
		items = sorted[:maxItemsPerTopic]
	}

	var output briefOutput
	var err error
	if len(items) <= g.batchSize {
		output, err = g.generateDirect(ctx, topic, items)
	} else {
		output, err = g.generateBatched(ctx, topic, items)
	}
	if err != nil {
		return core.TopicBrief{}, err
	}
	return g.save(briefID, topic.ID, output, items)
}

func (g *Generator) generateDirect(ctx context.Context, topic core.Topic, items []core.BriefCandidate) (briefOutput, error) {
	prompt := llm.Prompt{Text: fmt.Sprintf(topicBriefTemplate,
		topic.Name, topic.Description, len(items), formatContentItems(items))}

	raw, err := g.invoker.Invoke(ctx, prompt, topicBriefSchema(), g.timeout)
	if err != nil {
		if llm.IsTimeout(err) {
			return briefOutput{}, fmt.Errorf("topic brief generation timed out for topic: %s", topic.Name)
		}
		return briefOutput{}, fmt.Errorf("topic brief generation failed for topic %s: %w", topic.Name, err)
	}
	return decodeBriefOutput(raw)
}

func (g *Generator) generateBatched(ctx context.Context, topic core.Topic, items []core.BriefCandidate) (briefOutput, error) {
	var batches [][]core.BriefCandidate
	for i := 0; i < len(items); i += g.batchSize {
		end := i + g.batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}

	batchTimeout := g.timeout / 2
	var summaries []string
	for i, batch := range batches {
		summary, err := g.summarizeBatch(ctx, topic, batch, i+1, len(batches), batchTimeout)
		if err != nil {
			logger.Get().Warn().Str("topic", topic.Name).Int("batch", i+1).Err(err).
				Msg("Batch summary failed, skipping batch")
			continue
		}
		summaries = append(summaries, fmt.Sprintf("Batch %d (%d items):\n%s", i+1, len(batch), summary))
	}
	if len(summaries) == 0 {
		return briefOutput{}, fmt.Errorf("all batch summarizations failed for topic: %s", topic.Name)
	}

	prompt := llm.Prompt{Text: fmt.Sprintf(synthesisTemplate,
		topic.Name, topic.Description, len(summaries), len(items), strings.Join(summaries, "\n\n"))}
	raw, err := g.invoker.Invoke(ctx, prompt, topicBriefSchema(), g.timeout)
	if err != nil {
		if llm.IsTimeout(err) {
			return briefOutput{}, fmt.Errorf("executive synthesis timed out for topic: %s", topic.Name)
		}
		return briefOutput{}, fmt.Errorf("executive synthesis failed for topic %s: %w", topic.Name, err)
	}
	return decodeBriefOutput(raw)
}

// summarizeBatch produces the free-text summary of one batch. No schema;
// batch summaries are plain prose carrying (id:N) markers.
func (g *Generator) summarizeBatch(ctx context.Context, topic core.Topic, batch []core.BriefCandidate, num, total int, timeout time.Duration) (string, error) {
	prompt := llm.Prompt{Text: fmt.Sprintf(batchSummaryTemplate,
		topic.Name, topic.Description, num, total, len(batch), formatContentItems(batch))}
	return g.invoker.Invoke(ctx, prompt, nil, timeout)
}

func decodeBriefOutput(raw string) (briefOutput, error) {
	var output briefOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		return briefOutput{}, fmt.Errorf("failed to parse AI output: %w", err)
	}
	return output, nil
}

// save reconciles citations against the candidate set and persists the
// brief: every ID cited in the narrative gets a reference, invalid IDs are
// dropped, and inline citations become numbered links.
func (g *Generator) save(briefID, topicID int64, output briefOutput, items []core.BriefCandidate) (core.TopicBrief, error) {
	citedIDs := ExtractCitedIDs(output.SummaryFull)
	modelRefs := make([]core.ContentReference, 0, len(output.ContentReferences))
	for _, ref := range output.ContentReferences {
		modelRefs = append(modelRefs, core.ContentReference{
			ContentItemID: ref.ContentItemID,
			Title:         ref.Title,
			URL:           ref.URL,
			KeyPoint:      ref.KeyPoint,
		})
	}
	refs := BuildReferences(citedIDs, modelRefs, items)
	summaryFull := RenumberCitations(output.SummaryFull, refs)

	itemIDs := make([]int64, 0, len(refs))
	for _, ref := range refs {
		itemIDs = append(itemIDs, ref.ContentItemID)
	}

	return g.store.InsertTopicBrief(core.TopicBrief{
		BriefID:        briefID,
		TopicID:        topicID,
		SummaryShort:   output.SummaryShort,
		SummaryFull:    summaryFull,
		ContentItemIDs: itemIDs,
		References:     refs,
		KeyThemes:      output.KeyThemes,
		Significance:   output.Significance,
		ModelProvider:  g.invoker.Provider(),
		ModelName:      g.invoker.ModelName(),
		PromptVersion:  PromptVersion,
		TraceID:        uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
	})
}

func formatContentItems(items []core.BriefCandidate) string {
	var b strings.Builder
	for i, c := range items {
		summary := ""
		if bullets := c.Extraction.Payload.SummaryBullets; len(bullets) > 0 {
			if len(bullets) > 3 {
				bullets = bullets[:3]
			}
			summary = strings.Join(bullets, " | ")
		}
		if summary == "" {
			if raw := c.Item.RawText; raw != "" {
				if len(raw) > 200 {
					raw = raw[:200]
				}
				summary = raw
			} else {
				summary = "No summary available."
			}
		}
		published := "unknown"
		if c.Item.PublishedAt != nil {
			published = c.Item.PublishedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%d. (id:%d) [%s](%s)\n   Published: %s\n   Summary: %s\n\n",
			i+1, c.Item.ID, c.Item.Title, c.Item.URL, published, summary)
	}
	return b.String()
}

func publishedOrZero(c core.BriefCandidate) time.Time {
	if c.Item.PublishedAt == nil {
		return time.Time{}
	}
	return *c.Item.PublishedAt
}
