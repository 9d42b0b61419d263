package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dailybrief/internal/core"
	"dailybrief/internal/llm"
)

// extractText runs structured extraction on an item's text. A timeout or
// parse failure triggers one retry with a simplified prompt and truncated
// content; other failures are terminal for the item.
func (p *Pipeline) extractText(ctx context.Context, item core.ContentItem) error {
	content := item.RawText
	if content == "" {
		content = item.Title
	}

	prompt := llm.Prompt{Text: fmt.Sprintf(extractionTemplate, item.Title, item.URL, content)}
	raw, err := p.invoker.Invoke(ctx, prompt, extractionSchema(), p.opts.ExtractionTimeout)
	if err == nil {
		payload, perr := decodeExtraction(raw)
		if perr == nil {
			return p.saveExtraction(item.ID, payload, ExtractionPromptName, ExtractionPromptVersion)
		}
		err = perr
	}

	var firstErr string
	switch {
	case llm.IsTimeout(err):
		firstErr = fmt.Sprintf("extraction timed out after %ds for item %d",
			int(p.opts.ExtractionTimeout.Seconds()), item.ID)
	case llm.IsParse(err):
		firstErr = fmt.Sprintf("invalid JSON output for item %d: %v", item.ID, err)
	default:
		return fmt.Errorf("extraction failed for item %d: %w", item.ID, err)
	}

	if retryErr := p.retrySimplified(ctx, item, content); retryErr != nil {
		return fmt.Errorf("%s. Retry also failed: %v", firstErr, retryErr)
	}
	return nil
}

// retrySimplified retries extraction with a simpler prompt and the content
// capped at 500 characters.
func (p *Pipeline) retrySimplified(ctx context.Context, item core.ContentItem, content string) error {
	if len(content) > 500 {
		content = content[:500]
	}

	prompt := llm.Prompt{Text: fmt.Sprintf(simplifiedExtractionTemplate, item.Title, content)}
	raw, err := p.invoker.Invoke(ctx, prompt, extractionSchema(), p.opts.ExtractionTimeout)
	if err != nil {
		return err
	}
	payload, err := decodeExtraction(raw)
	if err != nil {
		return err
	}
	return p.saveExtraction(item.ID, payload, ExtractionPromptName, ExtractionPromptVersion)
}

func decodeExtraction(raw string) (core.ExtractionPayload, error) {
	var payload core.ExtractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return core.ExtractionPayload{}, &llm.ParseError{Op: "extraction decode", Err: err}
	}
	return payload, nil
}

func (p *Pipeline) saveExtraction(itemID int64, payload core.ExtractionPayload, promptName, promptVersion string) error {
	return p.store.ReplaceExtraction(core.Extraction{
		ContentItemID: itemID,
		CreatedAt:     time.Now().UTC(),
		ModelProvider: p.invoker.Provider(),
		ModelName:     p.invoker.ModelName(),
		PromptName:    promptName,
		PromptVersion: promptVersion,
		Payload:       payload,
	})
}
