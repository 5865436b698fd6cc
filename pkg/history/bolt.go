package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	runsBucket        = []byte("cruces")
	extractionsBucket = []byte("extracciones")
)

// BoltStore keeps the history in a single bbolt file.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the history file at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{runsBucket, extractionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise history: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (s *BoltStore) Exists(ctx context.Context, asOf string) (bool, error) {
	_, err := s.Latest(ctx, asOf)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// Latest returns the newest completed run for asOf.
func (s *BoltStore) Latest(ctx context.Context, asOf string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var found *Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt run %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if r.AsOf == asOf && r.Status == StatusCompleted {
				found = &r
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Save stores run and assigns its ID. ProcessedAt and Status default to
// now and completed.
func (s *BoltStore) Save(ctx context.Context, run *Run) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if run.ProcessedAt.IsZero() {
		run.ProcessedAt = s.now()
	}
	if run.Status == "" {
		run.Status = StatusCompleted
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		run.ID = id
		data, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return run.ID, nil
}

// List returns up to limit runs, newest first.
func (s *BoltStore) List(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt run %d: %w", binary.BigEndian.Uint64(k), err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}

func (s *BoltStore) SaveExtraction(ctx context.Context, e *Extraction) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = s.now()
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(extractionsBucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.ID = id
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(itob(id), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to save extraction: %w", err)
	}
	return e.ID, nil
}
