// Package session is the local persistent store for sign-in state and
// cached snapshots. It keeps a single pebble handle for the process, the
// same way the rest of the app treats the push connection: one per user,
// opened at startup.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"heartlink/pkg/logger"
	"heartlink/pkg/models"
)

var (
	db            *pebble.DB
	dbPath        string
	maxValueBytes uint64
)

// ErrNotOpen is returned by accessors before Open succeeded.
var ErrNotOpen = errors.New("session store not opened; call session.Open first")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("session record not found")

// ErrValueTooLarge is returned when a cached record exceeds the configured
// size cap.
var ErrValueTooLarge = errors.New("record exceeds the cache size cap")

// SetCacheLimit bounds the encoded size of any single cached record; zero
// removes the cap. The sign-in record is exempt.
func SetCacheLimit(n uint64) { maxValueBytes = n }

// Key layout:
//   session:current                 -> models.Session
//   profile:<userID>                -> models.Profile
//   watermark:<conversation key>    -> watermarkRecord
const (
	sessionKey      = "session:current"
	profilePrefix   = "profile:"
	watermarkPrefix = "watermark:"
)

type watermarkRecord struct {
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// Open opens (or creates) the pebble database at the given path and keeps a
// package-global handle.
func Open(path string) error {
	var err error
	logger.Info("opening_session_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("session_store_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	return nil
}

// Close closes the opened store if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("session_store_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func Ready() bool { return db != nil }

// Path returns the on-disk location of the store ("" before Open).
func Path() string { return dbPath }

func set(key string, v any) error {
	if db == nil {
		return ErrNotOpen
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if maxValueBytes > 0 && key != sessionKey && uint64(len(data)) > maxValueBytes {
		logger.Warn("cache_record_over_cap", "key", key, "size", len(data), "cap", maxValueBytes)
		return fmt.Errorf("%w: %s is %d bytes (cap %d)", ErrValueTooLarge, key, len(data), maxValueBytes)
	}
	return db.Set([]byte(key), data, pebble.Sync)
}

func get(key string, v any) error {
	if db == nil {
		return ErrNotOpen
	}
	data, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(data, v)
}

// SaveSession persists the current sign-in record.
func SaveSession(s models.Session) error {
	if s.SignedInAt.IsZero() {
		s.SignedInAt = time.Now().UTC()
	}
	return set(sessionKey, s)
}

// LoadSession returns the current sign-in record, ErrNotFound when signed
// out.
func LoadSession() (models.Session, error) {
	var s models.Session
	err := get(sessionKey, &s)
	return s, err
}

// ClearSession removes the sign-in record (sign-out).
func ClearSession() error {
	if db == nil {
		return ErrNotOpen
	}
	return db.Delete([]byte(sessionKey), pebble.Sync)
}

// SaveProfile caches a profile snapshot keyed by user id.
func SaveProfile(p models.Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("profile missing user id")
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now().UTC()
	}
	return set(profilePrefix+p.UserID, p)
}

// LoadProfile returns the cached profile snapshot for userID.
func LoadProfile(userID string) (models.Profile, error) {
	var p models.Profile
	err := get(profilePrefix+userID, &p)
	return p, err
}

// SaveWatermark records when a conversation was last fully synced.
func SaveWatermark(key models.ConversationKey, at time.Time) error {
	return set(watermarkPrefix+key.String(), watermarkRecord{LastSyncedAt: at.UTC()})
}

// LoadWatermark returns a conversation's last sync time, ErrNotFound when
// the conversation was never synced.
func LoadWatermark(key models.ConversationKey) (time.Time, error) {
	var w watermarkRecord
	if err := get(watermarkPrefix+key.String(), &w); err != nil {
		return time.Time{}, err
	}
	return w.LastSyncedAt, nil
}

// Entry is one raw record, used by the inspect tool and the retention sweep.
type Entry struct {
	Key   string
	Value []byte
}

// List returns all entries under prefix in key order.
func List(prefix string) ([]Entry, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		out = append(out, Entry{Key: string(iter.Key()), Value: v})
	}
	return out, iter.Error()
}

// SweepOlderThan deletes cached profiles and watermarks whose stored
// timestamp predates cutoff. The session record itself is never swept.
// Returns the number of records deleted (or that would be, in dry-run).
func SweepOlderThan(cutoff time.Time, dryRun bool) (int, error) {
	if db == nil {
		return 0, ErrNotOpen
	}
	removed := 0
	for _, prefix := range []string{profilePrefix, watermarkPrefix} {
		entries, err := List(prefix)
		if err != nil {
			return removed, err
		}
		for _, e := range entries {
			var ts time.Time
			switch {
			case strings.HasPrefix(e.Key, profilePrefix):
				var p models.Profile
				if json.Unmarshal(e.Value, &p) == nil {
					ts = p.FetchedAt
				}
			case strings.HasPrefix(e.Key, watermarkPrefix):
				var w watermarkRecord
				if json.Unmarshal(e.Value, &w) == nil {
					ts = w.LastSyncedAt
				}
			}
			// unparseable records are left alone rather than destroyed
			if ts.IsZero() || !ts.Before(cutoff) {
				continue
			}
			removed++
			if dryRun {
				continue
			}
			if err := db.Delete([]byte(e.Key), pebble.Sync); err != nil {
				return removed, err
			}
		}
	}
	return removed, nil
}

// upperBound returns the smallest key greater than every key with the given
// prefix.
func upperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}
