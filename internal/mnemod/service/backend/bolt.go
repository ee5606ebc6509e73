package backend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/mnemora/mnemora/pkg/utils/json"
)

var recordsBucket = []byte("records")

// BoltStore is a file-backed Client on top of bolt. Records are stored as
// JSON values keyed by their ID in a single bucket.
type BoltStore struct {
	db *bolt.DB
}

var _ Client = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the store file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Add(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := s.db.Update(func(tx *bolt.Tx) error {
		return putRecord(tx, rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *BoltStore) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordsBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("record %s not found", id)
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec, err
}

func (s *BoltStore) GetAll(ctx context.Context, filter Filter) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(_, raw []byte) error {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			if filter.Match(rec) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *BoltStore) Update(ctx context.Context, id, content string, metadata map[string]interface{}) (Record, error) {
	var rec Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordsBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("record %s not found", id)
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if content != "" {
			rec.Content = content
		}
		if metadata != nil {
			rec.Metadata = metadata
		}
		rec.UpdatedAt = time.Now()
		return putRecord(tx, rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *BoltStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("record %s not found", id)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) Search(ctx context.Context, query string, filter Filter, limit int) ([]ScoredRecord, error) {
	records := make(map[string]Record)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordsBucket).ForEach(func(key, raw []byte) error {
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			records[string(key)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return searchRecords(records, query, filter, limit), nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putRecord(tx *bolt.Tx, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(recordsBucket).Put([]byte(rec.ID), raw)
}
