package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dailybrief/internal/core"
	"dailybrief/internal/llm"
)

// Classification limits applied after the model responds.
const (
	maxTopicsPerItem       = 5
	minClassificationScore = 0.5
)

type classificationOutput struct {
	Assignments []assignmentOutput `json:"assignments"`
}

type assignmentOutput struct {
	TopicID        int64   `json:"topic_id"`
	Score          float64 `json:"score"`
	RationaleShort string  `json:"rationale_short"`
}

// classify runs multi-label topic classification and replaces the item's
// assignments with the filtered result. An empty filtered result leaves
// earlier assignments untouched.
func (p *Pipeline) classify(ctx context.Context, state *State) error {
	item := state.Item

	topics, err := p.store.ListTopics(true)
	if err != nil {
		return fmt.Errorf("classification failed for item %d: %w", item.ID, err)
	}
	if len(topics) == 0 {
		// Nothing to classify against counts as success with no assignments.
		return nil
	}

	content := classificationContent(p, item)
	prompt := llm.Prompt{Text: fmt.Sprintf(classificationTemplate, item.Title, content, formatTopics(topics))}

	raw, err := p.invoker.Invoke(ctx, prompt, classificationSchema(), p.opts.ClassificationTimeout)
	if err != nil {
		if llm.IsTimeout(err) {
			return fmt.Errorf("classification timed out after %ds for item %d",
				int(p.opts.ClassificationTimeout.Seconds()), item.ID)
		}
		return fmt.Errorf("classification failed for item %d: %w", item.ID, err)
	}

	var output classificationOutput
	if err := json.Unmarshal([]byte(raw), &output); err != nil {
		return fmt.Errorf("invalid JSON output for item %d: %w", item.ID, err)
	}

	known := make(map[int64]bool, len(topics))
	for _, t := range topics {
		known[t.ID] = true
	}

	var filtered []core.TopicAssignment
	for _, a := range output.Assignments {
		if a.Score < minClassificationScore || !known[a.TopicID] {
			continue
		}
		filtered = append(filtered, core.TopicAssignment{
			ContentItemID: item.ID,
			TopicID:       a.TopicID,
			Score:         a.Score,
			Rationale:     a.RationaleShort,
		})
		if len(filtered) == maxTopicsPerItem {
			break
		}
	}

	if len(filtered) > 0 {
		if err := p.store.ReplaceAssignments(item.ID, filtered); err != nil {
			return fmt.Errorf("classification failed for item %d: %w", item.ID, err)
		}
	}
	state.AssignmentCount = len(filtered)
	return nil
}

// classificationContent prefers the extraction's summary bullets over raw
// text, then falls back to the title.
func classificationContent(p *Pipeline, item core.ContentItem) string {
	content := item.RawText
	if content == "" {
		content = item.Title
	}
	if extraction, ok, err := p.store.GetExtraction(item.ID); err == nil && ok {
		if bullets := extraction.Payload.SummaryBullets; len(bullets) > 0 {
			content = strings.Join(bullets, " | ")
		}
	}
	return content
}

func formatTopics(topics []core.Topic) string {
	lines := make([]string, 0, len(topics))
	for _, t := range topics {
		line := fmt.Sprintf("ID: %d, Name: %s", t.ID, t.Name)
		if t.Description != "" {
			line += ", Description: " + t.Description
		}
		if t.IncludeRules != "" {
			line += ", Include: " + t.IncludeRules
		}
		if t.ExcludeRules != "" {
			line += ", Exclude: " + t.ExcludeRules
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
