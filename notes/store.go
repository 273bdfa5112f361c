package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"snapnotes/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// StorageKey is the key the whole note collection lives under.
const StorageKey = "notes"

// DateLayout renders creation dates the way the mobile client displayed them (en-US short date).
const DateLayout = "1/2/2006"

var ErrNoteNotFound = errors.New("note not found")

// DeserializationError is returned when the stored collection is not a JSON array of notes.
type DeserializationError struct {
	Key string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("decode %q collection: %v", e.Key, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Read-modify-write cycles are serialized per (backend, key) across every Store
// in the process. Backends are compared by identity, so kv must be comparable;
// every backend in this module is a pointer.
type lockKey struct {
	kv  core.KVStore
	key string
}

var (
	keyLocksMu sync.Mutex
	keyLocks   = make(map[lockKey]*sync.Mutex)
)

func lockFor(kv core.KVStore, key string) *sync.Mutex {
	keyLocksMu.Lock()
	defer keyLocksMu.Unlock()

	k := lockKey{kv: kv, key: key}
	mu, ok := keyLocks[k]
	if !ok {
		mu = &sync.Mutex{}
		keyLocks[k] = mu
	}
	return mu
}

// Store owns the persisted note collection. Every mutation loads the full
// collection, transforms it in memory and writes the full collection back.
type Store struct {
	kv  core.KVStore
	key string
	mu  *sync.Mutex
}

// NewStore returns a note store persisting to kv under StorageKey.
func NewStore(kv core.KVStore) *Store {
	return &Store{
		kv:  kv,
		key: StorageKey,
		mu:  lockFor(kv, StorageKey),
	}
}

// NewNote stamps a fresh id and today's date onto the given fields.
func NewNote(title, description, image string, now time.Time) core.Note {
	return core.Note{
		ID:          ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Title:       title,
		Description: description,
		Image:       image,
		Date:        now.Format(DateLayout),
	}
}

// List returns the stored notes in stored order. An absent key yields an empty slice.
func (s *Store) List(ctx context.Context) ([]core.Note, error) {
	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	if !found || len(data) == 0 {
		logrus.WithField("key", s.key).Debug("No stored notes, returning empty list")
		return []core.Note{}, nil
	}

	var notes []core.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, &DeserializationError{Key: s.key, Err: err}
	}
	if notes == nil {
		notes = []core.Note{}
	}

	logrus.WithFields(logrus.Fields{
		"key":   s.key,
		"count": len(notes),
	}).Debug("Notes loaded")
	return notes, nil
}

// Get returns the first note with the given id.
func (s *Store) Get(ctx context.Context, id string) (*core.Note, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(notes, id); i >= 0 {
		return &notes[i], nil
	}
	return nil, ErrNoteNotFound
}

// Search returns the notes whose title or description contains query,
// ignoring case. An empty query matches everything.
func (s *Store) Search(ctx context.Context, query string) ([]core.Note, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	if query == "" {
		return notes, nil
	}

	matched := make([]core.Note, 0, len(notes))
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), query) ||
			strings.Contains(strings.ToLower(n.Description), query) {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// Create appends note to the end of the collection. Uniqueness of note.ID is the caller's concern.
func (s *Store) Create(ctx context.Context, note core.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, err := s.List(ctx)
	if err != nil {
		return err
	}

	notes = append(notes, note)
	if err := s.persist(ctx, notes); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"note_id": note.ID,
		"count":   len(notes),
	}).Info("Note created successfully")
	return nil
}

// Update replaces the patched fields of the first note with the given id.
// A missing id is a no-op: nothing is written and updated is false.
func (s *Store) Update(ctx context.Context, id string, patch core.NotePatch) (updated bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("note_id", id)

	notes, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	i := indexOf(notes, id)
	if i < 0 {
		log.Warn("Note not found for update, nothing changed")
		return false, nil
	}

	notes[i] = patch.Apply(notes[i])
	if err := s.persist(ctx, notes); err != nil {
		return false, err
	}

	log.Info("Note updated successfully")
	return true, nil
}

// Delete removes every note with the given id, keeping the rest in order.
// Deleting an id that is not stored is a no-op and writes nothing.
func (s *Store) Delete(ctx context.Context, id string) (deleted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithField("note_id", id)

	notes, err := s.List(ctx)
	if err != nil {
		return false, err
	}

	kept := make([]core.Note, 0, len(notes))
	for _, n := range notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}

	if len(kept) == len(notes) {
		log.Warn("Note not found for deletion, considered successful")
		return false, nil
	}

	if err := s.persist(ctx, kept); err != nil {
		return false, err
	}

	log.Info("Note deleted successfully")
	return true, nil
}

func (s *Store) persist(ctx context.Context, notes []core.Note) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}
	return nil
}

func indexOf(notes []core.Note, id string) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
