package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Client used for tests and as the default
// backend when no store path is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Client = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Add(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("record %s not found", id)
	}
	return rec, nil
}

func (s *MemoryStore) GetAll(ctx context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, id, content string, metadata map[string]interface{}) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, fmt.Errorf("record %s not found", id)
	}
	if content != "" {
		rec.Content = content
	}
	if metadata != nil {
		rec.Metadata = metadata
	}
	rec.UpdatedAt = time.Now()
	s.records[id] = rec
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("record %s not found", id)
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, query string, filter Filter, limit int) ([]ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := searchRecords(s.records, query, filter, limit)
	return hits, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// searchRecords performs term-overlap scoring over the record contents.
// It is shared with the bolt store, which loads its bucket into a map.
func searchRecords(records map[string]Record, query string, filter Filter, limit int) []ScoredRecord {
	terms := strings.Fields(strings.ToLower(query))

	var hits []ScoredRecord
	for _, rec := range records {
		if !filter.Match(rec) {
			continue
		}
		score := scoreContent(strings.ToLower(rec.Content), terms)
		if score > 0 {
			hits = append(hits, ScoredRecord{Record: rec, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.CreatedAt.Before(hits[j].Record.CreatedAt)
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func scoreContent(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, term := range terms {
		if strings.Contains(content, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
