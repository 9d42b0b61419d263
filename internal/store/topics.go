package store

import (
	"database/sql"
	"fmt"

	"dailybrief/internal/core"
)

// CreateTopic inserts a topic and returns it with its id populated.
func (s *Store) CreateTopic(t core.Topic) (core.Topic, error) {
	res, err := s.db.Exec(
		`INSERT INTO topics (name, description, include_rules, exclude_rules, priority, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.Description, t.IncludeRules, t.ExcludeRules, t.Priority, t.Enabled,
	)
	if err != nil {
		return core.Topic{}, fmt.Errorf("failed to create topic: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return t, nil
}

// UpdateTopic updates all mutable fields of a topic.
func (s *Store) UpdateTopic(t core.Topic) error {
	_, err := s.db.Exec(
		`UPDATE topics SET name = ?, description = ?, include_rules = ?, exclude_rules = ?, priority = ?, enabled = ?
		 WHERE id = ?`,
		t.Name, t.Description, t.IncludeRules, t.ExcludeRules, t.Priority, t.Enabled, t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic %d: %w", t.ID, err)
	}
	return nil
}

// GetTopic returns one topic by id.
func (s *Store) GetTopic(id int64) (core.Topic, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, include_rules, exclude_rules, priority, enabled FROM topics WHERE id = ?`, id)
	return scanTopic(row)
}

// ListTopics returns topics, optionally restricted to enabled ones, ordered
// by priority descending then name.
func (s *Store) ListTopics(enabledOnly bool) ([]core.Topic, error) {
	query := `SELECT id, name, description, include_rules, exclude_rules, priority, enabled FROM topics`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY priority DESC, name ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []core.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopic(row rowScanner) (core.Topic, error) {
	var t core.Topic
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.IncludeRules, &t.ExcludeRules, &t.Priority, &t.Enabled)
	if err == sql.ErrNoRows {
		return core.Topic{}, fmt.Errorf("topic not found")
	}
	if err != nil {
		return core.Topic{}, fmt.Errorf("failed to scan topic: %w", err)
	}
	return t, nil
}

// CreateSource inserts a source and returns it with its id populated.
func (s *Store) CreateSource(src core.Source) (core.Source, error) {
	res, err := s.db.Exec(
		`INSERT INTO sources (kind, name, target, enabled, weight, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		string(src.Kind), src.Name, src.Target, src.Enabled, src.Weight, src.Notes,
	)
	if err != nil {
		return core.Source{}, fmt.Errorf("failed to create source: %w", err)
	}
	src.ID, _ = res.LastInsertId()
	return src, nil
}

// GetSource returns one source by id.
func (s *Store) GetSource(id int64) (core.Source, error) {
	row := s.db.QueryRow(`SELECT id, kind, name, target, enabled, weight, notes FROM sources WHERE id = ?`, id)
	var src core.Source
	var kind string
	err := row.Scan(&src.ID, &kind, &src.Name, &src.Target, &src.Enabled, &src.Weight, &src.Notes)
	if err == sql.ErrNoRows {
		return core.Source{}, fmt.Errorf("source not found")
	}
	if err != nil {
		return core.Source{}, fmt.Errorf("failed to scan source: %w", err)
	}
	src.Kind = core.SourceKind(kind)
	return src, nil
}

// UpdateSource updates all mutable fields of a source.
func (s *Store) UpdateSource(src core.Source) error {
	_, err := s.db.Exec(
		`UPDATE sources SET kind = ?, name = ?, target = ?, enabled = ?, weight = ?, notes = ? WHERE id = ?`,
		string(src.Kind), src.Name, src.Target, src.Enabled, src.Weight, src.Notes, src.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update source %d: %w", src.ID, err)
	}
	return nil
}

// ListSources returns sources, optionally restricted to enabled ones.
func (s *Store) ListSources(enabledOnly bool) ([]core.Source, error) {
	query := `SELECT id, kind, name, target, enabled, weight, notes FROM sources`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []core.Source
	for rows.Next() {
		var src core.Source
		var kind string
		if err := rows.Scan(&src.ID, &kind, &src.Name, &src.Target, &src.Enabled, &src.Weight, &src.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.Kind = core.SourceKind(kind)
		sources = append(sources, src)
	}
	return sources, rows.Err()
}
