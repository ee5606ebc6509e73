// Package backend defines the storage contract memory records are kept
// behind, plus the bundled implementations: an in-memory store, a bolt
// file store and a sqlite-backed audit log.
package backend

import (
	"context"
	"time"
)

// Record is one stored memory.
type Record struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	UserID    string                 `json:"user_id,omitempty"`
	AgentID   string                 `json:"agent_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Filter narrows listing and search to an owner.
type Filter struct {
	UserID  string
	AgentID string
}

// Match reports whether the record satisfies the filter.
func (f Filter) Match(rec Record) bool {
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	if f.AgentID != "" && rec.AgentID != f.AgentID {
		return false
	}
	return true
}

// Client is the storage interface memory operations run against.
type Client interface {
	Add(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	GetAll(ctx context.Context, filter Filter) ([]Record, error)
	Update(ctx context.Context, id, content string, metadata map[string]interface{}) (Record, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, filter Filter, limit int) ([]ScoredRecord, error)
	Close() error
}

// ScoredRecord is a search hit with its relevance score.
type ScoredRecord struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}
