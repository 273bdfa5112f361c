package notes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"snapnotes/core"
	notestore "snapnotes/notes"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	// NoteStore is the subset of notes.Store the handlers need.
	NoteStore interface {
		List(ctx context.Context) ([]core.Note, error)
		Search(ctx context.Context, query string) ([]core.Note, error)
		Get(ctx context.Context, id string) (*core.Note, error)
		Create(ctx context.Context, note core.Note) error
		Update(ctx context.Context, id string, patch core.NotePatch) (bool, error)
		Delete(ctx context.Context, id string) (bool, error)
	}

	CreateNoteRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Image       string `json:"image"`
	}
)

// Now is the clock used to stamp new notes.
var Now = time.Now

func errorJSON(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}

// storeError answers a failed store call, singling out a corrupt collection.
func storeError(w http.ResponseWriter, r *http.Request, err error, message string) {
	log := logrus.WithError(err)
	var derr *notestore.DeserializationError
	if errors.As(err, &derr) {
		log.Error("Stored notes could not be decoded")
		errorJSON(w, r, http.StatusInternalServerError, "stored notes are corrupt")
		return
	}
	log.Error(message)
	errorJSON(w, r, http.StatusInternalServerError, message)
}

// HandleListNotes lists every note, or only matching ones when ?q= is given.
func HandleListNotes(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")

		var (
			list []core.Note
			err  error
		)
		if query != "" {
			list, err = store.Search(r.Context(), query)
		} else {
			list, err = store.List(r.Context())
		}
		if err != nil {
			storeError(w, r, err, "Failed to list notes")
			return
		}

		if list == nil {
			list = []core.Note{}
		}
		render.JSON(w, r, list)
	}
}

func HandleGetNote(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		note, err := store.Get(r.Context(), id)
		if errors.Is(err, notestore.ErrNoteNotFound) {
			errorJSON(w, r, http.StatusNotFound, "Note not found")
			return
		}
		if err != nil {
			storeError(w, r, err, "Failed to get note")
			return
		}

		render.JSON(w, r, note)
	}
}

// HandleCreateNote validates the fields, stamps id and date and appends the note.
func HandleCreateNote(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithField("error", err).Warn("Failed to decode request")
			errorJSON(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}

		note := notestore.NewNote(req.Title, req.Description, req.Image, Now())
		if err := note.Validate(); err != nil {
			errorJSON(w, r, http.StatusBadRequest, err.Error())
			return
		}

		if err := store.Create(r.Context(), note); err != nil {
			storeError(w, r, err, "Failed to create note")
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, note)
	}
}

// HandleUpdateNote applies a partial update. An unknown id answers 404.
func HandleUpdateNote(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var patch core.NotePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			logrus.WithField("error", err).Warn("Failed to decode request")
			errorJSON(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if patch.Empty() {
			errorJSON(w, r, http.StatusBadRequest, "Nothing to update")
			return
		}
		if err := patch.Validate(); err != nil {
			errorJSON(w, r, http.StatusBadRequest, err.Error())
			return
		}

		updated, err := store.Update(r.Context(), id, patch)
		if err != nil {
			storeError(w, r, err, "Failed to update note")
			return
		}
		if !updated {
			errorJSON(w, r, http.StatusNotFound, "Note not found")
			return
		}

		note, err := store.Get(r.Context(), id)
		if errors.Is(err, notestore.ErrNoteNotFound) {
			errorJSON(w, r, http.StatusNotFound, "Note not found")
			return
		}
		if err != nil {
			storeError(w, r, err, "Failed to get note")
			return
		}
		render.JSON(w, r, note)
	}
}

// HandleDeleteNote removes the note. Deleting an unknown id still succeeds.
func HandleDeleteNote(store NoteStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if _, err := store.Delete(r.Context(), id); err != nil {
			storeError(w, r, err, "Failed to delete note")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
