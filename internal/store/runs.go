package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// ErrSnapshotNotFound 指定指纹没有持久化快照
var ErrSnapshotNotFound = errors.New("snapshot not found")

// RunSummary 运行日志摘要
type RunSummary struct {
	RunID        string    `json:"runId"`
	InputDigest  string    `json:"inputDigest"`
	Status       string    `json:"status"`
	AdvisorCount int       `json:"advisorCount"`
	StoreCount   int       `json:"storeCount"`
	WarningCount int       `json:"warningCount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RecordRun 落一条对账运行日志
func (s *Store) RecordRun(report *model.ReconcileReport) error {
	_, err := s.db.Exec(`
		INSERT INTO reconcile_runs
			(run_id, input_digest, status, advisor_count, store_count, warning_count, error_message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID, report.InputDigest, report.Status,
		report.AdvisorCount, report.StoreCount, len(report.Warnings),
		report.Error, report.StartedAt, report.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecordFailedRun 落一条失败的运行日志
func (s *Store) RecordFailedRun(runID, digest, errorMessage string, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO reconcile_runs (run_id, input_digest, status, error_message, started_at)
		VALUES (?, ?, 'error', ?, ?)
	`, runID, digest, errorMessage, startedAt)
	if err != nil {
		return fmt.Errorf("failed to record failed run: %w", err)
	}
	return nil
}

// ListRuns 最近的运行日志，按时间倒序
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT run_id, input_digest, status, advisor_count, store_count, warning_count, error_message, created_at
		FROM reconcile_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.InputDigest, &r.Status, &r.AdvisorCount,
			&r.StoreCount, &r.WarningCount, &r.ErrorMessage, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveSnapshot 持久化对账快照（同指纹整体覆盖）
func (s *Store) SaveSnapshot(snap *model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO snapshots (input_digest, payload) VALUES (?, ?)
		ON CONFLICT(input_digest) DO UPDATE SET payload = excluded.payload, created_at = CURRENT_TIMESTAMP
	`, snap.Report.InputDigest, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot 按输入指纹读快照
func (s *Store) LoadSnapshot(digest string) (*model.Snapshot, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM snapshots WHERE input_digest = ?`, digest).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// LoadLatestSnapshot 最近一次持久化的快照（服务重启后恢复看板）
func (s *Store) LoadLatestSnapshot() (*model.Snapshot, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM snapshots ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
