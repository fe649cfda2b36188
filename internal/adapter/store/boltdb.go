package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketCounts = []byte("counts")
	bucketMeta   = []byte("meta")
)

// openTimeout bounds how long Open waits for another process's file lock.
const openTimeout = time.Second

// BoltStore persists token counts keyed by model and content hash.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCounts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type countRecord struct {
	Count    int   `json:"count"`
	StoredAt int64 `json:"stored_at"`
}

// GetCount returns the stored count for key, if any.
func (s *BoltStore) GetCount(key string) (int, bool, error) {
	var (
		rec   countRecord
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCounts).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return 0, false, err
	}
	return rec.Count, found, nil
}

// PutCount stores count under key, replacing any previous value.
func (s *BoltStore) PutCount(key string, count int) error {
	data, err := json.Marshal(countRecord{Count: count, StoredAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCounts).Put([]byte(key), data)
	})
}

// Stats describes the contents of the count store.
type Stats struct {
	Entries int
	Oldest  time.Time
	Newest  time.Time
}

func (s *BoltStore) GetStats() (Stats, error) {
	var st Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCounts).ForEach(func(k, v []byte) error {
			var rec countRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			st.Entries++
			t := time.Unix(rec.StoredAt, 0)
			if st.Oldest.IsZero() || t.Before(st.Oldest) {
				st.Oldest = t
			}
			if t.After(st.Newest) {
				st.Newest = t
			}
			return nil
		})
	})
	return st, err
}

// PruneBefore deletes counts stored before cutoff and returns how many
// were removed.
func (s *BoltStore) PruneBefore(cutoff time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCounts)
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec countRecord
			if err := json.Unmarshal(v, &rec); err != nil || rec.StoredAt < cutoff.Unix() {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
