package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	notesapi "snapnotes/handlers/api/notes"
	photosapi "snapnotes/handlers/api/photos"
	"snapnotes/handlers/auth"
	authMiddleware "snapnotes/middleware"
	"snapnotes/notes"
	"snapnotes/photos"
	"snapnotes/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func setupRouter(noteStore notesapi.NoteStore, photoStore photosapi.PhotoStore, tokens *auth.Tokens) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api", func(r chi.Router) {
		if tokens.Enabled() {
			r.Use(authMiddleware.AuthJWT(tokens))
		}

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", notesapi.HandleListNotes(noteStore))
			r.Post("/", notesapi.HandleCreateNote(noteStore))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", notesapi.HandleGetNote(noteStore))
				r.Patch("/", notesapi.HandleUpdateNote(noteStore))
				r.Delete("/", notesapi.HandleDeleteNote(noteStore))
			})
		})

		r.Route("/photos", func(r chi.Router) {
			r.Post("/", photosapi.HandleUploadPhoto(photoStore))
			r.Get("/{id}", photosapi.HandleGetPhoto(photoStore))
		})
	})

	return r
}

func newServeCmd() *cobra.Command {
	var listenAddress string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the notes and photos HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withBackend(ctx, "", func(backend stores.Store) error {
				tokens := auth.NewTokens(os.Getenv("JWT_SECRET"))
				if !tokens.Enabled() {
					logrus.Warn("JWT_SECRET is not set, /api is served without authentication")
				}

				server := &http.Server{
					Addr:    listenAddress,
					Handler: setupRouter(notes.NewStore(backend), photos.NewStore(backend), tokens),
				}
				return serve(ctx, server)
			})
		},
	}
	cmd.Flags().StringVar(&listenAddress, "listen", ":3002", "host:port to listen on.")
	return cmd
}

// serve runs server until it fails or ctx is cancelled, then drains open connections.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", server.Addr).Info("Starting server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logrus.Info("Received shutdown signal, shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("Server stopped")
	return nil
}
