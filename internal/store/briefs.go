package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dailybrief/internal/core"
)

// ReplaceBrief upserts the brief for a (date, mode) pair, discarding any
// previous selection and topic briefs for it. Rebuilding the same slot is
// idempotent.
func (s *Store) ReplaceBrief(date, mode string, items []core.BriefItem) (core.Brief, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return core.Brief{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(`SELECT id FROM briefs WHERE date = ? AND mode = ?`, date, mode).Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return core.Brief{}, fmt.Errorf("failed to look up brief: %w", err)
	}
	if err == nil {
		if _, err := tx.Exec(`DELETE FROM brief_items WHERE brief_id = ?`, existing); err != nil {
			return core.Brief{}, fmt.Errorf("failed to clear brief items: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM topic_briefs WHERE brief_id = ?`, existing); err != nil {
			return core.Brief{}, fmt.Errorf("failed to clear topic briefs: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM briefs WHERE id = ?`, existing); err != nil {
			return core.Brief{}, fmt.Errorf("failed to clear brief: %w", err)
		}
	}

	brief := core.Brief{Date: date, Mode: mode, CreatedAt: time.Now().UTC()}
	res, err := tx.Exec(`INSERT INTO briefs (date, mode, created_at) VALUES (?, ?, ?)`,
		brief.Date, brief.Mode, brief.CreatedAt)
	if err != nil {
		return core.Brief{}, fmt.Errorf("failed to insert brief: %w", err)
	}
	brief.ID, _ = res.LastInsertId()

	for _, item := range items {
		if _, err := tx.Exec(
			`INSERT INTO brief_items (brief_id, content_item_id, rank, reason) VALUES (?, ?, ?, ?)`,
			brief.ID, item.ContentItemID, item.Rank, item.Reason,
		); err != nil {
			return core.Brief{}, fmt.Errorf("failed to insert brief item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Brief{}, fmt.Errorf("failed to commit brief: %w", err)
	}
	return brief, nil
}

// InsertTopicBrief attaches one topic narrative to a brief.
func (s *Store) InsertTopicBrief(tb core.TopicBrief) (core.TopicBrief, error) {
	ids, err := json.Marshal(tb.ContentItemIDs)
	if err != nil {
		return core.TopicBrief{}, fmt.Errorf("failed to marshal content item ids: %w", err)
	}
	refs, err := json.Marshal(tb.References)
	if err != nil {
		return core.TopicBrief{}, fmt.Errorf("failed to marshal references: %w", err)
	}
	themes, err := json.Marshal(tb.KeyThemes)
	if err != nil {
		return core.TopicBrief{}, fmt.Errorf("failed to marshal key themes: %w", err)
	}
	if tb.CreatedAt.IsZero() {
		tb.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Exec(
		`INSERT INTO topic_briefs (brief_id, topic_id, summary_short, summary_full, content_item_ids,
			refs, key_themes, significance, model_provider, model_name, prompt_version, trace_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tb.BriefID, tb.TopicID, tb.SummaryShort, tb.SummaryFull, string(ids),
		string(refs), string(themes), tb.Significance, tb.ModelProvider, tb.ModelName,
		tb.PromptVersion, tb.TraceID, tb.CreatedAt,
	)
	if err != nil {
		return core.TopicBrief{}, fmt.Errorf("failed to insert topic brief: %w", err)
	}
	tb.ID, _ = res.LastInsertId()
	return tb, nil
}

// GetBriefByDate returns the brief for a (date, mode) pair with its items and
// topic briefs, or found=false.
func (s *Store) GetBriefByDate(date, mode string) (core.Brief, []core.BriefItem, []core.TopicBrief, bool, error) {
	var brief core.Brief
	err := s.db.QueryRow(`SELECT id, date, mode, created_at FROM briefs WHERE date = ? AND mode = ?`, date, mode).
		Scan(&brief.ID, &brief.Date, &brief.Mode, &brief.CreatedAt)
	if err == sql.ErrNoRows {
		return core.Brief{}, nil, nil, false, nil
	}
	if err != nil {
		return core.Brief{}, nil, nil, false, fmt.Errorf("failed to look up brief: %w", err)
	}

	items, err := s.listBriefItems(brief.ID)
	if err != nil {
		return core.Brief{}, nil, nil, false, err
	}
	topicBriefs, err := s.listTopicBriefs(brief.ID)
	if err != nil {
		return core.Brief{}, nil, nil, false, err
	}
	return brief, items, topicBriefs, true, nil
}

func (s *Store) listBriefItems(briefID int64) ([]core.BriefItem, error) {
	rows, err := s.db.Query(
		`SELECT id, brief_id, content_item_id, rank, reason FROM brief_items WHERE brief_id = ? ORDER BY rank ASC`,
		briefID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list brief items: %w", err)
	}
	defer rows.Close()

	var items []core.BriefItem
	for rows.Next() {
		var item core.BriefItem
		if err := rows.Scan(&item.ID, &item.BriefID, &item.ContentItemID, &item.Rank, &item.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan brief item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) listTopicBriefs(briefID int64) ([]core.TopicBrief, error) {
	rows, err := s.db.Query(
		`SELECT id, brief_id, topic_id, summary_short, summary_full, content_item_ids, refs,
			key_themes, significance, model_provider, model_name, prompt_version, trace_id, created_at
		 FROM topic_briefs WHERE brief_id = ? ORDER BY id ASC`, briefID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topic briefs: %w", err)
	}
	defer rows.Close()

	var briefs []core.TopicBrief
	for rows.Next() {
		var tb core.TopicBrief
		var ids, refs, themes string
		if err := rows.Scan(&tb.ID, &tb.BriefID, &tb.TopicID, &tb.SummaryShort, &tb.SummaryFull,
			&ids, &refs, &themes, &tb.Significance, &tb.ModelProvider, &tb.ModelName,
			&tb.PromptVersion, &tb.TraceID, &tb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan topic brief: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &tb.ContentItemIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content item ids: %w", err)
		}
		if refs != "" && refs != "{}" {
			if err := json.Unmarshal([]byte(refs), &tb.References); err != nil {
				return nil, fmt.Errorf("failed to unmarshal references: %w", err)
			}
		}
		if themes != "" {
			if err := json.Unmarshal([]byte(themes), &tb.KeyThemes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal key themes: %w", err)
			}
		}
		briefs = append(briefs, tb)
	}
	return briefs, rows.Err()
}
