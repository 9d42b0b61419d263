// Package core defines the domain records shared across the digest engine.
package core

import (
	"errors"
	"time"
)

// ErrRunCancelled signals that a run was cancelled cooperatively. Work loops
// return it when a checkpoint observes a non-running status; the cancellation
// caller owns the terminal state transition.
var ErrRunCancelled = errors.New("run cancelled")

// SourceKind identifies the connector that produced a content item.
type SourceKind string

const (
	SourceRSS     SourceKind = "rss"
	SourceYouTube SourceKind = "youtube_channel"
	SourceXUser   SourceKind = "x_user"
	SourceWeb     SourceKind = "web"
)

// RunKind identifies what a run executed.
type RunKind string

const (
	RunIngest     RunKind = "ingest"
	RunAI         RunKind = "ai"
	RunBuildBrief RunKind = "build_brief"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Novelty buckets assigned by extraction.
const (
	NoveltyNew       = "new"
	NoveltyUpdate    = "update"
	NoveltyRecurring = "recurring"
)

// Confidence buckets used for claims and overall extraction confidence.
const (
	ConfidenceLow  = "low"
	ConfidenceMed  = "med"
	ConfidenceHigh = "high"
)

// Source is a configured content origin (an RSS feed, a channel, a handle).
type Source struct {
	ID      int64      `json:"id"`      // Unique identifier for the source
	Kind    SourceKind `json:"kind"`    // Connector kind (rss, youtube_channel, ...)
	Name    string     `json:"name"`    // Human-readable name
	Target  string     `json:"target"`  // Feed URL, channel id, or handle
	Enabled bool       `json:"enabled"` // Whether the source participates in ingestion and briefs
	Weight  int        `json:"weight"`  // Ranking weight contribution (0-10)
	Notes   string     `json:"notes"`   // Free-form operator notes
}

// Topic is a classification target with ranking priority.
type Topic struct {
	ID           int64  `json:"id"`            // Unique identifier for the topic
	Name         string `json:"name"`          // Topic name, unique
	Description  string `json:"description"`   // What the topic covers
	IncludeRules string `json:"include_rules"` // Hints for content that belongs
	ExcludeRules string `json:"exclude_rules"` // Hints for content that does not
	Priority     int    `json:"priority"`      // Ranking priority (higher ranks first)
	Enabled      bool   `json:"enabled"`       // Whether the topic is classified against
}

// ContentItem is a normalized unit of ingested content. Immutable after
// creation; downstream analysis lives in TopicAssignment and Extraction rows.
type ContentItem struct {
	ID          int64      `json:"id"`           // Unique identifier for the item
	SourceID    *int64     `json:"source_id"`    // Producing source, nil for manual inserts
	Kind        SourceKind `json:"kind"`         // Source kind tag (drives video routing)
	ExternalID  string     `json:"external_id"`  // Identifier from the origin system
	URL         string     `json:"url"`          // Canonical URL
	Title       string     `json:"title"`        // Item title
	Author      string     `json:"author"`       // Author or channel name
	PublishedAt *time.Time `json:"published_at"` // Publication timestamp, nil if unknown
	FetchedAt   time.Time  `json:"fetched_at"`   // When the connector fetched the item
	RawText     string     `json:"raw_text"`     // Extracted plain text
	Hash        string     `json:"hash"`         // Dedup hash over url+title
}

// TopicAssignment links a content item to a topic with a confidence score.
// All assignments for an item are replaced atomically on reclassification.
type TopicAssignment struct {
	ID            int64   `json:"id"`
	ContentItemID int64   `json:"content_item_id"`
	TopicID       int64   `json:"topic_id"`
	Score         float64 `json:"score"`           // Classifier confidence in [0,1]
	Rationale     string  `json:"rationale_short"` // Short explanation, <=500 chars
}

// KeyClaim is a factual assertion extracted from content.
type KeyClaim struct {
	Claim      string `json:"claim"`      // The assertion, <=500 chars
	Confidence string `json:"confidence"` // low, med, or high
}

// ExtractionPayload is the structured analysis produced for one item.
type ExtractionPayload struct {
	SummaryBullets    []string   `json:"summary_bullets"`      // 2-5 core takeaways
	WhyItMatters      []string   `json:"why_it_matters"`       // 1-2 significance points
	KeyClaims         []KeyClaim `json:"key_claims"`           // Up to 5 claims
	Novelty           string     `json:"novelty"`              // new, update, or recurring
	ConfidenceOverall string     `json:"confidence_overall"`   // low, med, or high
	FollowUps         []string   `json:"follow_ups,omitempty"` // Up to 3 related threads
}

// Extraction is the persisted analysis row for a content item. At most one
// live row per item; replaced wholesale on reprocessing.
type Extraction struct {
	ID            int64             `json:"id"`
	ContentItemID int64             `json:"content_item_id"`
	CreatedAt     time.Time         `json:"created_at"`
	ModelProvider string            `json:"model_provider"` // Provider that produced the payload
	ModelName     string            `json:"model_name"`     // Model identity
	PromptName    string            `json:"prompt_name"`    // Prompt used
	PromptVersion string            `json:"prompt_version"` // Prompt version tag
	Payload       ExtractionPayload `json:"payload"`        // Structured analysis
}

// TaskEntry is one timestamped line in a run's task log.
type TaskEntry struct {
	At     string `json:"at"`                // UTC timestamp, RFC3339
	Task   string `json:"task"`              // What happened
	Stage  string `json:"stage,omitempty"`   // Pipeline stage tag
	ItemID int64  `json:"item_id,omitempty"` // Content item involved, if any
	Status string `json:"status,omitempty"`  // started, completed, failed, skipped
	Detail string `json:"detail,omitempty"`  // Item label or error text
}

// Progress is the coarse progress counter kept in a run's stats blob.
type Progress struct {
	Phase       string `json:"phase"`
	UpdatedAt   string `json:"updated_at"`
	Total       *int   `json:"total,omitempty"`
	Completed   *int   `json:"completed,omitempty"`
	Succeeded   *int   `json:"succeeded,omitempty"`
	Failed      *int   `json:"failed,omitempty"`
	Message     string `json:"message,omitempty"`
	CurrentTask string `json:"current_task,omitempty"`
}

// Run records one execution of ingestion, AI processing, or a brief build.
// Created RUNNING, mutated incrementally through stats merges, terminated
// exactly once to SUCCESS or FAILED.
type Run struct {
	ID         int64          `json:"id"`
	Kind       RunKind        `json:"kind"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	Stats      map[string]any `json:"stats"`      // Free-form stats blob, merge-updated
	ErrorText  string         `json:"error_text"` // Terminal error, if failed
}

// Brief is the daily selection for a (date, mode) pair.
type Brief struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Mode      string    `json:"mode"` // e.g. "morning"
	CreatedAt time.Time `json:"created_at"`
}

// BriefItem is one ranked selection inside a brief.
type BriefItem struct {
	ID            int64  `json:"id"`
	BriefID       int64  `json:"brief_id"`
	ContentItemID int64  `json:"content_item_id"`
	Rank          int    `json:"rank"`            // 1-based position
	Reason        string `json:"reason_included"` // Human-readable inclusion reason
}

// ContentReference points a topic brief narrative at a specific content item.
type ContentReference struct {
	ContentItemID int64  `json:"content_item_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	KeyPoint      string `json:"key_point"` // One-line contribution to the narrative
}

// TopicBrief is the per-topic narrative attached to a brief.
type TopicBrief struct {
	ID             int64              `json:"id"`
	BriefID        int64              `json:"brief_id"`
	TopicID        int64              `json:"topic_id"`
	SummaryShort   string             `json:"summary_short"`    // 2-3 sentence overview
	SummaryFull    string             `json:"summary_full"`     // Markdown narrative with [[k]](url) citations
	ContentItemIDs []int64            `json:"content_item_ids"` // Items referenced, reference-list order
	References     []ContentReference `json:"content_references"`
	KeyThemes      []string           `json:"key_themes"`
	Significance   string             `json:"significance"`
	ModelProvider  string             `json:"model_provider"`
	ModelName      string             `json:"model_name"`
	PromptVersion  string             `json:"prompt_version"`
	TraceID        string             `json:"trace_id"` // Generation trace identifier
	CreatedAt      time.Time          `json:"created_at"`
}

// AssignmentWithTopic pairs an assignment with its topic for ranking.
type AssignmentWithTopic struct {
	Assignment TopicAssignment
	Topic      Topic
}

// BriefCandidate is a fully-loaded candidate for ranking and topic briefs:
// the item plus its assignments (with topics), extraction, and source weight.
type BriefCandidate struct {
	Item         ContentItem
	Assignments  []AssignmentWithTopic
	Extraction   Extraction
	SourceWeight int // 0 when the item has no source
}

// BestAssignment returns the highest-scoring topic assignment, or false when
// the candidate has none.
func (c BriefCandidate) BestAssignment() (AssignmentWithTopic, bool) {
	if len(c.Assignments) == 0 {
		return AssignmentWithTopic{}, false
	}
	best := c.Assignments[0]
	for _, a := range c.Assignments[1:] {
		if a.Assignment.Score > best.Assignment.Score {
			best = a
		}
	}
	return best, true
}
