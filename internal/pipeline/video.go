package pipeline

import (
	"context"

	"dailybrief/internal/core"
	"dailybrief/internal/llm"
	"dailybrief/internal/logger"
)

// extractVideo analyzes a video item with the model's video understanding.
// Any failure, and the disabled gate, falls back to text extraction over the
// item's description. Returns the method that produced the stored extraction.
func (p *Pipeline) extractVideo(ctx context.Context, item core.ContentItem) (string, error) {
	if !p.opts.VideoExtractionEnabled {
		if err := p.extractText(ctx, item); err != nil {
			return "", err
		}
		return "text_fallback", nil
	}

	prompt := llm.Prompt{
		Text:          videoExtractionTemplate,
		MediaURL:      item.URL,
		MediaMIMEType: "video/mp4",
	}
	raw, err := p.invoker.Invoke(ctx, prompt, extractionSchema(), p.opts.VideoTimeout)
	if err == nil {
		if payload, perr := decodeExtraction(raw); perr == nil {
			if serr := p.saveExtraction(item.ID, payload, VideoPromptName, VideoPromptVersion); serr == nil {
				return "video", nil
			} else {
				err = serr
			}
		} else {
			err = perr
		}
	}

	logger.Get().Warn().Int64("item_id", item.ID).Err(err).
		Msg("Video extraction failed, falling back to text")
	if err := p.extractText(ctx, item); err != nil {
		return "", err
	}
	return "text_fallback", nil
}
