package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"dailybrief/internal/core"
)

// maxTaskEntries caps the task log kept in a run's stats blob.
const maxTaskEntries = 200

// CreateRun inserts a RUNNING run with the given initial stats.
func (s *Store) CreateRun(kind core.RunKind, stats map[string]any) (core.Run, error) {
	if stats == nil {
		stats = map[string]any{}
	}
	blob, err := json.Marshal(stats)
	if err != nil {
		return core.Run{}, fmt.Errorf("failed to marshal run stats: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO runs (kind, status, started_at, stats) VALUES (?, ?, ?, ?)`,
		string(kind), string(core.RunRunning), now, string(blob),
	)
	if err != nil {
		return core.Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	id, _ := res.LastInsertId()
	return core.Run{ID: id, Kind: kind, Status: core.RunRunning, StartedAt: now, Stats: stats}, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(id int64) (core.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, status, started_at, finished_at, stats, error_text FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return core.Run{}, fmt.Errorf("run %d not found", id)
	}
	return run, err
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]core.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, kind, status, started_at, finished_at, stats, error_text
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRunningRuns returns all RUNNING runs of a kind, used by the startup
// sweep.
func (s *Store) ListRunningRuns(kind core.RunKind) ([]core.Run, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, status, started_at, finished_at, stats, error_text
		 FROM runs WHERE kind = ? AND status = ?`, string(kind), string(core.RunRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to list running runs: %w", err)
	}
	defer rows.Close()

	var runs []core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (core.Run, error) {
	var run core.Run
	var kind, status, stats string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &kind, &status, &run.StartedAt, &finished, &stats, &run.ErrorText)
	if err != nil {
		return core.Run{}, err
	}
	run.Kind = core.RunKind(kind)
	run.Status = core.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	run.Stats = map[string]any{}
	if stats != "" {
		if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
			return core.Run{}, fmt.Errorf("failed to unmarshal run stats: %w", err)
		}
	}
	return run, nil
}

// FinishRun terminates a run to SUCCESS or FAILED. Only RUNNING runs are
// touched, so a terminal transition never fires twice.
func (s *Store) FinishRun(id int64, status core.RunStatus, errText string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, error_text = CASE WHEN ? = '' THEN error_text
			WHEN error_text = '' THEN ? ELSE error_text || char(10) || char(10) || ? END
		 WHERE id = ? AND status = ?`,
		string(status), time.Now().UTC(), errText, errText, errText, id, string(core.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", id, err)
	}
	return nil
}

// CancelRun performs the compare-on-status terminal transition for a
// cancellation: only a RUNNING run flips to FAILED. Returns whether the flip
// happened.
func (s *Store) CancelRun(id int64, note string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, error_text = CASE WHEN error_text = '' THEN ?
			ELSE error_text || char(10) || char(10) || ? END
		 WHERE id = ? AND status = ?`,
		string(core.RunFailed), time.Now().UTC(), note, note, id, string(core.RunRunning),
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel run %d: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// MergeRunStats merges top-level keys into a run's stats blob, preserving
// fields written by other phases.
func (s *Store) MergeRunStats(id int64, updates map[string]any) error {
	return s.mutateStats(id, func(stats map[string]any) {
		for k, v := range updates {
			stats[k] = v
		}
	})
}

// ProgressUpdate carries optional progress counter fields. Nil counters and
// empty strings leave the stored value untouched.
type ProgressUpdate struct {
	Total       *int
	Completed   *int
	Succeeded   *int
	Failed      *int
	Message     string
	CurrentTask string
}

// UpdateRunProgress merges progress fields into the stats blob's "progress"
// sub-map.
func (s *Store) UpdateRunProgress(id int64, phase string, u ProgressUpdate) error {
	return s.mutateStats(id, func(stats map[string]any) {
		progress := map[string]any{}
		if existing, ok := stats["progress"].(map[string]any); ok {
			for k, v := range existing {
				progress[k] = v
			}
		}
		progress["phase"] = phase
		progress["updated_at"] = time.Now().UTC().Format(time.RFC3339)
		if u.Total != nil {
			progress["total"] = *u.Total
		}
		if u.Completed != nil {
			progress["completed"] = *u.Completed
		}
		if u.Succeeded != nil {
			progress["succeeded"] = *u.Succeeded
		}
		if u.Failed != nil {
			progress["failed"] = *u.Failed
		}
		if u.Message != "" {
			progress["message"] = u.Message
		}
		if u.CurrentTask != "" {
			progress["current_task"] = u.CurrentTask
		}
		stats["progress"] = progress
	})
}

// AppendRunTask appends a timestamped entry to the stats blob's task log,
// keeping only the most recent entries.
func (s *Store) AppendRunTask(id int64, entry core.TaskEntry) error {
	if entry.At == "" {
		entry.At = time.Now().UTC().Format(time.RFC3339)
	}
	return s.mutateStats(id, func(stats map[string]any) {
		var tasks []any
		if existing, ok := stats["tasks"].([]any); ok {
			tasks = existing
		}
		tasks = append(tasks, taskEntryMap(entry))
		if len(tasks) > maxTaskEntries {
			tasks = tasks[len(tasks)-maxTaskEntries:]
		}
		stats["tasks"] = tasks
	})
}

func taskEntryMap(entry core.TaskEntry) map[string]any {
	m := map[string]any{"at": entry.At, "task": entry.Task}
	if entry.Stage != "" {
		m["stage"] = entry.Stage
	}
	if entry.ItemID != 0 {
		m["item_id"] = entry.ItemID
	}
	if entry.Status != "" {
		m["status"] = entry.Status
	}
	if entry.Detail != "" {
		m["detail"] = entry.Detail
	}
	return m
}

// mutateStats performs a read-merge-write cycle on the stats blob so that
// progress, task log, and aggregate keys from different phases never clobber
// each other.
func (s *Store) mutateStats(id int64, mutate func(map[string]any)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var blob string
	if err := tx.QueryRow(`SELECT stats FROM runs WHERE id = ?`, id).Scan(&blob); err != nil {
		return fmt.Errorf("failed to read stats for run %d: %w", id, err)
	}
	stats := map[string]any{}
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), &stats); err != nil {
			stats = map[string]any{}
		}
	}
	mutate(stats)
	merged, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats for run %d: %w", id, err)
	}
	if _, err := tx.Exec(`UPDATE runs SET stats = ? WHERE id = ?`, string(merged), id); err != nil {
		return fmt.Errorf("failed to write stats for run %d: %w", id, err)
	}
	return tx.Commit()
}
