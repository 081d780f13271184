package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// BoltStore implements Store on a local bbolt file. All entries are
// mirrored in memory for brute-force cosine search; writes go through a
// single bbolt update transaction, reads come from the cache under an
// RWMutex. Suitable for collections up to the tens of thousands of
// chunks this system indexes.
type BoltStore struct {
	db        *bbolt.DB
	dimension int

	mu      sync.RWMutex
	entries map[string]boltEntry
	nextSeq uint64
}

// boltEntry is the stored form of an Entry. Insertion is a monotonically
// increasing counter assigned on first insert and preserved across
// overwrites, so distance ties resolve by original insertion order.
type boltEntry struct {
	Vector    []float32 `json:"v"`
	Text      string    `json:"t"`
	Source    string    `json:"s"`
	Sequence  int       `json:"n"`
	Insertion uint64    `json:"i"`
}

// NewBoltStore opens (or creates) the database file. dimension fixes the
// collection's vector size; entries with any other dimension are rejected.
func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dimension)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreUnreachable, path, err)
	}

	store := &BoltStore{
		db:        db,
		dimension: dimension,
		entries:   make(map[string]boltEntry),
	}

	if err := store.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load entries: %w", err)
	}
	return store, nil
}

// load fills the in-memory cache from disk and recovers the insertion
// counter from the highest value seen.
func (s *BoltStore) load() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketEntries)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var stored boltEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt entry %q: %w", k, err)
			}
			s.entries[string(k)] = stored
			if stored.Insertion >= s.nextSeq {
				s.nextSeq = stored.Insertion + 1
			}
			return nil
		})
	})
}

// Upsert writes entries keyed by id, replacing existing ids in place.
// An existing entry keeps its original insertion counter so re-ingestion
// does not shuffle tie-break ordering.
func (s *BoltStore) Upsert(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	for i, e := range entries {
		if len(e.Embedding) != s.dimension {
			return fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(e.Embedding), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]boltEntry, len(entries))
	for _, e := range entries {
		insertion := s.nextSeq
		if existing, ok := s.entries[e.ID]; ok {
			insertion = existing.Insertion
		} else if prev, ok := staged[e.ID]; ok {
			insertion = prev.Insertion
		} else {
			s.nextSeq++
		}
		staged[e.ID] = boltEntry{
			Vector:    e.Embedding,
			Text:      e.Text,
			Source:    e.Source,
			Sequence:  e.Sequence,
			Insertion: insertion,
		}
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		for id, stored := range staged {
			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	// Cache updates only after the transaction committed.
	for id, stored := range staged {
		s.entries[id] = stored
	}
	return nil
}

// Query returns the k entries nearest vector by cosine distance,
// ascending; ties break by insertion order.
func (s *BoltStore) Query(ctx context.Context, vector []float32, k int) ([]ScoredEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		id        string
		distance  float64
		insertion uint64
	}
	scores := make([]scored, 0, len(s.entries))
	for id, entry := range s.entries {
		scores = append(scores, scored{
			id:        id,
			distance:  1 - cosineSimilarity(vector, entry.Vector),
			insertion: entry.Insertion,
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].distance != scores[j].distance {
			return scores[i].distance < scores[j].distance
		}
		return scores[i].insertion < scores[j].insertion
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]ScoredEntry, k)
	for i := 0; i < k; i++ {
		entry := s.entries[scores[i].id]
		results[i] = ScoredEntry{
			Entry: Entry{
				ID:        scores[i].id,
				Embedding: entry.Vector,
				Text:      entry.Text,
				Source:    entry.Source,
				Sequence:  entry.Sequence,
			},
			Distance: scores[i].distance,
		}
	}
	return results, nil
}

// Count returns the number of entries in the collection.
func (s *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Health verifies the database file is still readable.
func (s *BoltStore) Health(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketEntries) == nil {
			return fmt.Errorf("%w: entries bucket missing", ErrStoreUnreachable)
		}
		return nil
	})
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// cosineSimilarity computes the cosine similarity of two equal-length
// vectors; zero vectors compare as 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
