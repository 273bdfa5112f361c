package photos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"snapnotes/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "photo-"

var ErrPhotoNotFound = errors.New("photo not found")

// Store keeps captured photos as individual values on the backend.
type Store struct {
	kv core.KVStore
}

func NewStore(kv core.KVStore) *Store {
	return &Store{kv: kv}
}

// Save stores data under a new id and returns the id.
func (s *Store) Save(ctx context.Context, data []byte) (string, error) {
	id := ulid.Make().String()
	log := logrus.WithFields(logrus.Fields{
		"photo_id":    id,
		"data_length": len(data),
	})

	if err := s.kv.Set(ctx, keyPrefix+id, data); err != nil {
		log.WithError(err).Error("Failed to save photo")
		return "", fmt.Errorf("save photo: %w", err)
	}

	log.Info("Photo saved successfully")
	return id, nil
}

// Load returns the bytes of the photo with the given id.
func (s *Store) Load(ctx context.Context, id string) ([]byte, error) {
	log := logrus.WithField("photo_id", id)

	if !validID(id) {
		log.Warn("Rejected malformed photo id")
		return nil, ErrPhotoNotFound
	}

	data, found, err := s.kv.Get(ctx, keyPrefix+id)
	if err != nil {
		log.WithError(err).Error("Failed to load photo")
		return nil, fmt.Errorf("load photo %s: %w", id, err)
	}
	if !found {
		log.Warn("Photo with specified ID not found")
		return nil, ErrPhotoNotFound
	}
	return data, nil
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(id))
	return err == nil
}
