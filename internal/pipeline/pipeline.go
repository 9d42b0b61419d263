// Package pipeline runs the per-item AI stages: content type detection,
// multi-label topic classification, then text or video extraction.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/genai"

	"dailybrief/internal/core"
	"dailybrief/internal/llm"
	"dailybrief/internal/logger"
	"dailybrief/internal/store"
)

// Invoker is the model call surface the pipeline needs.
type Invoker interface {
	Invoke(ctx context.Context, prompt llm.Prompt, schema *genai.Schema, timeout time.Duration) (string, error)
	Provider() string
	ModelName() string
}

// Stage is one step of the per-item workflow.
type Stage string

const (
	StageDetectType   Stage = "detect_type"
	StageClassify     Stage = "classify"
	StageTextExtract  Stage = "text_extract"
	StageVideoExtract Stage = "video_extract"
	StageDone         Stage = "done"
)

// State carries one item through the stages.
type State struct {
	Item    core.ContentItem
	RunID   int64 // run whose task log records stage transitions, 0 for none
	Label   string
	IsVideo bool

	ClassifySucceeded bool
	AssignmentCount   int
	ExtractSucceeded  bool
	ExtractMethod     string // "text", "video", or "text_fallback"
	Err               error  // first stage failure, item-level
}

// Success reports whether both stages of the item succeeded.
func (s State) Success() bool {
	return s.ClassifySucceeded && s.ExtractSucceeded
}

// Options carries the per-call budgets and the video gate for one run.
type Options struct {
	ClassificationTimeout  time.Duration
	ExtractionTimeout      time.Duration
	VideoTimeout           time.Duration
	VideoExtractionEnabled bool
}

// Pipeline processes single items. An item succeeds only when both
// classification and extraction succeed; a stage failure is recorded on the
// state, never returned as a pipeline error.
type Pipeline struct {
	store       *store.Store
	invoker     Invoker
	opts        Options
	transitions map[Stage]func(context.Context, *State) Stage
}

// New creates a pipeline.
func New(s *store.Store, invoker Invoker, opts Options) *Pipeline {
	p := &Pipeline{store: s, invoker: invoker, opts: opts}
	p.transitions = map[Stage]func(context.Context, *State) Stage{
		StageDetectType:   p.detectType,
		StageClassify:     p.classifyStage,
		StageTextExtract:  p.textExtractStage,
		StageVideoExtract: p.videoExtractStage,
	}
	return p
}

// ProcessItem drives one item through the stage machine. Stage transitions
// are appended to the run's task log; runID 0 disables the log.
func (p *Pipeline) ProcessItem(ctx context.Context, runID int64, item core.ContentItem) State {
	state := State{Item: item, RunID: runID, Label: ItemLabel(item, "")}
	for stage := StageDetectType; stage != StageDone; {
		stage = p.transitions[stage](ctx, &state)
	}
	return state
}

// logStage appends one stage transition to the run's task log.
func (p *Pipeline) logStage(state *State, stage Stage, status, task, detail string) {
	if state.RunID == 0 {
		return
	}
	entry := core.TaskEntry{
		Task:   task,
		Stage:  string(stage),
		ItemID: state.Item.ID,
		Status: status,
		Detail: detail,
	}
	if err := p.store.AppendRunTask(state.RunID, entry); err != nil {
		logger.Error("Failed to append stage task", err)
	}
}

func (p *Pipeline) detectType(_ context.Context, state *State) Stage {
	state.IsVideo = state.Item.Kind == core.SourceYouTube
	return StageClassify
}

func (p *Pipeline) classifyStage(ctx context.Context, state *State) Stage {
	p.logStage(state, StageClassify, "started",
		fmt.Sprintf("Classifying item %d", state.Item.ID), state.Label)
	if err := p.classify(ctx, state); err != nil {
		state.Err = err
		p.logStage(state, StageClassify, "failed",
			fmt.Sprintf("Classification failed for item %d", state.Item.ID), err.Error())
	} else {
		state.ClassifySucceeded = true
		p.logStage(state, StageClassify, "completed",
			fmt.Sprintf("Classified item %d", state.Item.ID),
			fmt.Sprintf("%d topics assigned", state.AssignmentCount))
	}
	if state.IsVideo {
		return StageVideoExtract
	}
	return StageTextExtract
}

func (p *Pipeline) textExtractStage(ctx context.Context, state *State) Stage {
	if !state.ClassifySucceeded {
		// Extraction requires a successful classification first.
		p.logStage(state, StageTextExtract, "skipped",
			fmt.Sprintf("Skipped extraction for item %d", state.Item.ID), "classification failed")
		return StageDone
	}
	p.logStage(state, StageTextExtract, "started",
		fmt.Sprintf("Extracting item %d", state.Item.ID), state.Label)
	if err := p.extractText(ctx, state.Item); err != nil {
		if state.Err == nil {
			state.Err = err
		}
		p.logStage(state, StageTextExtract, "failed",
			fmt.Sprintf("Extraction failed for item %d", state.Item.ID), err.Error())
	} else {
		state.ExtractSucceeded = true
		state.ExtractMethod = "text"
		p.logStage(state, StageTextExtract, "completed",
			fmt.Sprintf("Extracted item %d", state.Item.ID), "method: text")
	}
	return StageDone
}

func (p *Pipeline) videoExtractStage(ctx context.Context, state *State) Stage {
	if !state.ClassifySucceeded {
		p.logStage(state, StageVideoExtract, "skipped",
			fmt.Sprintf("Skipped extraction for item %d", state.Item.ID), "classification failed")
		return StageDone
	}
	p.logStage(state, StageVideoExtract, "started",
		fmt.Sprintf("Extracting item %d", state.Item.ID), state.Label)
	method, err := p.extractVideo(ctx, state.Item)
	if err != nil {
		if state.Err == nil {
			state.Err = err
		}
		p.logStage(state, StageVideoExtract, "failed",
			fmt.Sprintf("Extraction failed for item %d", state.Item.ID), err.Error())
	} else {
		state.ExtractSucceeded = true
		state.ExtractMethod = method
		p.logStage(state, StageVideoExtract, "completed",
			fmt.Sprintf("Extracted item %d", state.Item.ID), "method: "+method)
	}
	return StageDone
}

// ItemLabel builds a short, readable label for an item: the source kind and
// name, then the truncated title or the URL host.
func ItemLabel(item core.ContentItem, sourceName string) string {
	label := string(item.Kind)
	if label == "" {
		label = "unknown"
	}
	if sourceName != "" {
		label = label + "/" + sourceName
	}
	if item.Title != "" {
		return fmt.Sprintf("%s: %s", label, truncate(item.Title, 90))
	}
	if u, err := url.Parse(item.URL); err == nil && u.Host != "" {
		return fmt.Sprintf("%s: %s", label, u.Host)
	}
	return label
}

func truncate(text string, limit int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if len(cleaned) <= limit {
		return cleaned
	}
	return strings.TrimRight(cleaned[:limit-3], " ") + "..."
}
