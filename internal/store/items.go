package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dailybrief/internal/core"
)

// InsertContentItem persists a new item and returns it with its id populated.
// Items with a hash already present are skipped; the stored duplicate is
// returned with inserted=false.
func (s *Store) InsertContentItem(item core.ContentItem) (core.ContentItem, bool, error) {
	if item.Hash != "" {
		existing, err := s.getItemByHash(item.Hash)
		if err == nil {
			return existing, false, nil
		}
		if err != sql.ErrNoRows {
			return core.ContentItem{}, false, err
		}
	}

	res, err := s.db.Exec(
		`INSERT INTO content_items (source_id, kind, external_id, url, title, author, published_at, fetched_at, raw_text, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SourceID, string(item.Kind), item.ExternalID, item.URL, item.Title, item.Author,
		nullableTime(item.PublishedAt), item.FetchedAt, item.RawText, item.Hash,
	)
	if err != nil {
		return core.ContentItem{}, false, fmt.Errorf("failed to insert content item: %w", err)
	}
	item.ID, _ = res.LastInsertId()
	return item, true, nil
}

func (s *Store) getItemByHash(hash string) (core.ContentItem, error) {
	row := s.db.QueryRow(itemSelect+` WHERE hash = ?`, hash)
	return scanContentItem(row)
}

// GetContentItem returns one item by id.
func (s *Store) GetContentItem(id int64) (core.ContentItem, error) {
	row := s.db.QueryRow(itemSelect+` WHERE id = ?`, id)
	item, err := scanContentItem(row)
	if err == sql.ErrNoRows {
		return core.ContentItem{}, fmt.Errorf("content item %d not found", id)
	}
	return item, err
}

// ListUnprocessedItems returns items without an extraction, newest first.
func (s *Store) ListUnprocessedItems() ([]core.ContentItem, error) {
	rows, err := s.db.Query(itemSelect + `
		 WHERE id NOT IN (SELECT content_item_id FROM extractions)
		 ORDER BY published_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

const itemSelect = `SELECT id, source_id, kind, external_id, url, title, author, published_at, fetched_at, raw_text, hash FROM content_items`

func scanContentItem(row rowScanner) (core.ContentItem, error) {
	var item core.ContentItem
	var kind string
	var sourceID sql.NullInt64
	var published sql.NullTime
	err := row.Scan(&item.ID, &sourceID, &kind, &item.ExternalID, &item.URL, &item.Title,
		&item.Author, &published, &item.FetchedAt, &item.RawText, &item.Hash)
	if err != nil {
		return core.ContentItem{}, err
	}
	item.Kind = core.SourceKind(kind)
	if sourceID.Valid {
		item.SourceID = &sourceID.Int64
	}
	if published.Valid {
		t := published.Time
		item.PublishedAt = &t
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]core.ContentItem, error) {
	var items []core.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// ReplaceAssignments atomically replaces all topic assignments for an item.
func (s *Store) ReplaceAssignments(itemID int64, assignments []core.TopicAssignment) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM topic_assignments WHERE content_item_id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to delete assignments for item %d: %w", itemID, err)
	}
	for _, a := range assignments {
		if _, err := tx.Exec(
			`INSERT INTO topic_assignments (content_item_id, topic_id, score, rationale) VALUES (?, ?, ?, ?)`,
			itemID, a.TopicID, a.Score, a.Rationale,
		); err != nil {
			return fmt.Errorf("failed to insert assignment for item %d: %w", itemID, err)
		}
	}
	return tx.Commit()
}

// ListAssignments returns all topic assignments for an item.
func (s *Store) ListAssignments(itemID int64) ([]core.TopicAssignment, error) {
	rows, err := s.db.Query(
		`SELECT id, content_item_id, topic_id, score, rationale FROM topic_assignments WHERE content_item_id = ? ORDER BY score DESC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []core.TopicAssignment
	for rows.Next() {
		var a core.TopicAssignment
		if err := rows.Scan(&a.ID, &a.ContentItemID, &a.TopicID, &a.Score, &a.Rationale); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ReplaceExtraction atomically replaces the extraction row for an item.
func (s *Store) ReplaceExtraction(e core.Extraction) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction payload: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM extractions WHERE content_item_id = ?`, e.ContentItemID); err != nil {
		return fmt.Errorf("failed to delete extraction for item %d: %w", e.ContentItemID, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO extractions (content_item_id, created_at, model_provider, model_name, prompt_name, prompt_version, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ContentItemID, e.CreatedAt, e.ModelProvider, e.ModelName, e.PromptName, e.PromptVersion, string(payload),
	); err != nil {
		return fmt.Errorf("failed to insert extraction for item %d: %w", e.ContentItemID, err)
	}
	return tx.Commit()
}

// GetExtraction returns the extraction for an item, or found=false.
func (s *Store) GetExtraction(itemID int64) (core.Extraction, bool, error) {
	row := s.db.QueryRow(
		`SELECT id, content_item_id, created_at, model_provider, model_name, prompt_name, prompt_version, payload
		 FROM extractions WHERE content_item_id = ?`, itemID)
	e, err := scanExtraction(row)
	if err == sql.ErrNoRows {
		return core.Extraction{}, false, nil
	}
	if err != nil {
		return core.Extraction{}, false, err
	}
	return e, true, nil
}

func scanExtraction(row rowScanner) (core.Extraction, error) {
	var e core.Extraction
	var payload string
	err := row.Scan(&e.ID, &e.ContentItemID, &e.CreatedAt, &e.ModelProvider, &e.ModelName,
		&e.PromptName, &e.PromptVersion, &payload)
	if err != nil {
		return core.Extraction{}, err
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return core.Extraction{}, fmt.Errorf("failed to unmarshal extraction payload: %w", err)
	}
	return e, nil
}

// ListBriefCandidates loads fully-joined candidates for ranking: items that
// have an extraction, at least one assignment on an enabled topic, were
// published at or after cutoff, and whose source (if any) is enabled.
// Order: published descending, then id ascending, which is the tie-break
// order ranking preserves.
func (s *Store) ListBriefCandidates(cutoff time.Time) ([]core.BriefCandidate, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT ci.id, ci.source_id, ci.kind, ci.external_id, ci.url, ci.title, ci.author,
		       ci.published_at, ci.fetched_at, ci.raw_text, ci.hash, COALESCE(src.weight, 0)
		FROM content_items ci
		JOIN extractions e ON e.content_item_id = ci.id
		JOIN topic_assignments ta ON ta.content_item_id = ci.id
		JOIN topics t ON t.id = ta.topic_id AND t.enabled = 1
		LEFT JOIN sources src ON src.id = ci.source_id
		WHERE ci.published_at IS NOT NULL
		  AND ci.published_at >= ?
		  AND (ci.source_id IS NULL OR src.enabled = 1)
		ORDER BY ci.published_at DESC, ci.id ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query brief candidates: %w", err)
	}
	defer rows.Close()

	var candidates []core.BriefCandidate
	for rows.Next() {
		var c core.BriefCandidate
		var kind string
		var sourceID sql.NullInt64
		var published sql.NullTime
		if err := rows.Scan(&c.Item.ID, &sourceID, &kind, &c.Item.ExternalID, &c.Item.URL,
			&c.Item.Title, &c.Item.Author, &published, &c.Item.FetchedAt, &c.Item.RawText,
			&c.Item.Hash, &c.SourceWeight); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		c.Item.Kind = core.SourceKind(kind)
		if sourceID.Valid {
			c.Item.SourceID = &sourceID.Int64
		}
		if published.Valid {
			t := published.Time
			c.Item.PublishedAt = &t
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range candidates {
		if err := s.loadCandidateDetails(&candidates[i]); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

func (s *Store) loadCandidateDetails(c *core.BriefCandidate) error {
	rows, err := s.db.Query(`
		SELECT ta.id, ta.content_item_id, ta.topic_id, ta.score, ta.rationale,
		       t.id, t.name, t.description, t.include_rules, t.exclude_rules, t.priority, t.enabled
		FROM topic_assignments ta
		JOIN topics t ON t.id = ta.topic_id
		WHERE ta.content_item_id = ?
		ORDER BY ta.score DESC, ta.topic_id ASC`, c.Item.ID)
	if err != nil {
		return fmt.Errorf("failed to load assignments for item %d: %w", c.Item.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var at core.AssignmentWithTopic
		if err := rows.Scan(&at.Assignment.ID, &at.Assignment.ContentItemID, &at.Assignment.TopicID,
			&at.Assignment.Score, &at.Assignment.Rationale,
			&at.Topic.ID, &at.Topic.Name, &at.Topic.Description, &at.Topic.IncludeRules,
			&at.Topic.ExcludeRules, &at.Topic.Priority, &at.Topic.Enabled); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		c.Assignments = append(c.Assignments, at)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	extraction, ok, err := s.GetExtraction(c.Item.ID)
	if err != nil {
		return err
	}
	if ok {
		c.Extraction = extraction
	}
	return nil
}
