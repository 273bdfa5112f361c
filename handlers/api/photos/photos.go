package photos

import (
	"context"
	"errors"
	"io"
	"net/http"

	photostore "snapnotes/photos"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// MaxPhotoSize caps an uploaded photo at 10 MiB.
const MaxPhotoSize = 10 << 20

type (
	PhotoStore interface {
		Save(ctx context.Context, data []byte) (string, error)
		Load(ctx context.Context, id string) ([]byte, error)
	}

	UploadPhotoResponse struct {
		ID    string `json:"id"`
		Image string `json:"image"` // Reference to put in a note's image field.
	}
)

// ImageRef is the reference notes carry for the photo with the given id.
func ImageRef(id string) string {
	return "/api/photos/" + id
}

func HandleUploadPhoto(store PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPhotoSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, map[string]string{"error": "Photo is too large"})
				return
			}
			logrus.WithField("error", err).Error("Failed to read request body")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		if len(data) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Photo is empty"})
			return
		}

		id, err := store.Save(r.Context(), data)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to save photo")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save photo"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, UploadPhotoResponse{ID: id, Image: ImageRef(id)})
	}
}

func HandleGetPhoto(store PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		data, err := store.Load(r.Context(), id)
		if errors.Is(err, photostore.ErrPhotoNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Photo not found"})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"photo_id": id,
			}).Error("Failed to load photo")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load photo"})
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(data))
		if _, err := w.Write(data); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"photo_id": id,
			}).Warn("Failed to write photo response")
		}
	}
}
