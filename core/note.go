package core

import (
	"context"
	"errors"
)

var (
	// ErrIncompleteNote is returned by Validate when a required field is blank.
	ErrIncompleteNote = errors.New("please fill in all fields")

	// ErrInvalidKey is returned by backends for keys they cannot address.
	ErrInvalidKey = errors.New("invalid storage key")
)

type (
	// Note is a single photo note as persisted in the notes collection.
	Note struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Image       string `json:"image"` // Opaque photo reference, never inspected by the store.
		Date        string `json:"date"`  // Human-readable creation date, fixed at creation.
	}

	// NotePatch carries the fields an update replaces. Nil fields are left untouched.
	// ID and Date are immutable and therefore not part of a patch.
	NotePatch struct {
		Title       *string `json:"title,omitempty"`
		Description *string `json:"description,omitempty"`
		Image       *string `json:"image,omitempty"`
	}

	// KVStore is the persistent byte store the note and photo stores sit on.
	// Get and Set are atomic per key; there is no compare-and-swap.
	KVStore interface {
		// Get returns the value stored under key. found is false when the key is absent.
		Get(ctx context.Context, key string) (value []byte, found bool, err error)

		// Set overwrites the value stored under key.
		Set(ctx context.Context, key string, value []byte) error
	}
)

// Validate reports ErrIncompleteNote if title, description or image is empty.
// Callers check this before handing a note to the store; the store itself does not.
func (n Note) Validate() error {
	if n.Title == "" || n.Description == "" || n.Image == "" {
		return ErrIncompleteNote
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p NotePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Image == nil
}

// Validate rejects a patch that would blank out a required field.
func (p NotePatch) Validate() error {
	for _, field := range []*string{p.Title, p.Description, p.Image} {
		if field != nil && *field == "" {
			return ErrIncompleteNote
		}
	}
	return nil
}

// Apply returns n with the patch's non-nil fields replaced.
func (p NotePatch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Image != nil {
		n.Image = *p.Image
	}
	return n
}
