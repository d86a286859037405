// Package state persists finalized workouts and small KV session state in a
// per-datadir bbolt database, with gzipped geojson route files alongside.
package state

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jellydator/ttlcache/v3"
	"go.etcd.io/bbolt"

	"github.com/runstr/trackd/events"
	"github.com/runstr/trackd/params"
	"github.com/runstr/trackd/types/workout"
)

const appDBName = "trackd.db"
const routeDirName = "routes"

var workoutsBucket = []byte("workouts")
var stateBucket = []byte("state")

// Store is the persistence collaborator. One writable Store per datadir;
// bbolt's file lock enforces that.
type Store struct {
	DB   *bbolt.DB
	root string

	// lastKnown caches the most recent published snapshot per user, for
	// cheap "where are they now" reads without touching the DB.
	lastKnown *ttlcache.Cache[string, events.Snapshot]
}

// Open opens (creating if necessary) the store rooted at datadir.
func Open(datadir string) (*Store, error) {
	if err := os.MkdirAll(datadir, 0700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(filepath.Join(datadir, appDBName), 0600, nil)
	if err != nil {
		return nil, err
	}
	cache := ttlcache.New[string, events.Snapshot](
		ttlcache.WithTTL[string, events.Snapshot](params.CacheLastKnownTTL))
	go cache.Start()
	return &Store{DB: db, root: datadir, lastKnown: cache}, nil
}

func (s *Store) Close() error {
	s.lastKnown.Stop()
	return s.DB.Close()
}

// workoutKey orders records by start time, with the ID as tiebreaker.
func workoutKey(w *workout.Workout) []byte {
	return []byte(fmt.Sprintf("%020d-%s", w.Start.UTC().UnixNano(), w.ID))
}

// StoreWorkout writes one finalized record.
func (s *Store) StoreWorkout(w *workout.Workout) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("storeWorkout: missing workout ID")
	}
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(workoutsBucket)
		if err != nil {
			return err
		}
		return bucket.Put(workoutKey(w), b)
	})
}

// ReadWorkout looks up a record by ID.
func (s *Store) ReadWorkout(id string) (*workout.Workout, error) {
	var found *workout.Workout
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(workoutsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			if !strings.HasSuffix(string(k), id) {
				return nil
			}
			w := &workout.Workout{}
			if err := json.Unmarshal(v, w); err != nil {
				return err
			}
			found = w
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("readWorkout: %q not found", id)
	}
	return found, nil
}

// ListWorkouts returns all records in start-time order.
func (s *Store) ListWorkouts() ([]*workout.Workout, error) {
	out := []*workout.Workout{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(workoutsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			w := &workout.Workout{}
			if err := json.Unmarshal(v, w); err != nil {
				return err
			}
			out = append(out, w)
			return nil
		})
	})
	return out, err
}

// WriteKV stores a small state value in the shared KV bucket.
func (s *Store) WriteKV(key, value []byte) error {
	if key == nil {
		return fmt.Errorf("writeKV: nil key")
	}
	if value == nil {
		return fmt.Errorf("writeKV: nil value")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(stateBucket)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

// ReadKV reads a value written by WriteKV. Missing keys return nil, nil.
func (s *Store) ReadKV(key []byte) ([]byte, error) {
	var out []byte
	err := s.DB.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(stateBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(key); v != nil {
			out = bytes.Clone(v)
		}
		return nil
	})
	return out, err
}

// SetLastSnapshot caches the latest published snapshot for a user.
func (s *Store) SetLastSnapshot(userID string, snap events.Snapshot) {
	s.lastKnown.Set(userID, snap, ttlcache.DefaultTTL)
}

// LastSnapshot returns the cached snapshot, if fresh.
func (s *Store) LastSnapshot(userID string) (events.Snapshot, bool) {
	item := s.lastKnown.Get(userID)
	if item == nil {
		return events.Snapshot{}, false
	}
	return item.Value(), true
}

// WriteRouteGZ writes the workout's route as a gzipped geojson feature file
// under the datadir, named by workout ID.
func (s *Store) WriteRouteGZ(w *workout.Workout) (string, error) {
	dir := filepath.Join(s.root, routeDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, w.ID+".geojson.gz")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(w.Feature()); err != nil {
		gz.Close()
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return path, nil
}
