package memory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// memStore keeps every key in process memory. Each instance is isolated.
type memStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.values[key]
	if !ok {
		logrus.WithField("key", key).Debug("Key not found in memory store")
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *memStore) Set(ctx context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	s.mu.Lock()
	s.values[key] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"key":         key,
		"data_length": len(value),
	}).Debug("Value stored in memory")
	return nil
}
