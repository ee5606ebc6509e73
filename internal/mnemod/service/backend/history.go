package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mnemora/mnemora/pkg/utils/json"
)

// HistoryEntry is one audit row describing a mutation applied to a record.
type HistoryEntry struct {
	ID        int64                  `json:"id"`
	RecordID  string                 `json:"record_id"`
	Operation string                 `json:"operation"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// HistoryStore is a sqlite-backed append-only audit log of record
// mutations.
type HistoryStore struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id  TEXT NOT NULL,
	operation  TEXT NOT NULL,
	payload    TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_record ON history(record_id);
`

// NewHistoryStore opens (or creates) the audit database at path. Use
// ":memory:" for an ephemeral store.
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store at %s: %w", path, err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare history schema: %w", err)
	}
	return &HistoryStore{db: db}, nil
}

// Append records one mutation.
func (h *HistoryStore) Append(ctx context.Context, recordID, op string, payload map[string]interface{}) error {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO history (record_id, operation, payload, created_at) VALUES (?, ?, ?, ?)`,
		recordID, op, string(raw), time.Now())
	return err
}

// Recent returns the most recent entries, newest first. recordID narrows
// to a single record when non-empty; limit <= 0 selects 100.
func (h *HistoryStore) Recent(ctx context.Context, recordID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, record_id, operation, payload, created_at FROM history`
	args := []interface{}{}
	if recordID != "" {
		query += ` WHERE record_id = ?`
		args = append(args, recordID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var payload sql.NullString
		if err := rows.Scan(&entry.ID, &entry.RecordID, &entry.Operation, &payload, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &entry.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}
