package main

import (
	"context"
	"fmt"
	"os"

	"snapnotes/stores"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "snapnotes",
		Short: "Photo notes kept as a single collection in a local key-value store",
		Long: `snapnotes stores notes (title, description, photo, date) as one list under
the "notes" key of the backend chosen by STORAGE_TYPE, and serves them over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			logrus.SetLevel(level)
			logrus.SetFormatter(&logrus.TextFormatter{
				FullTimestamp: true,
			})
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "The log level (debug, info, warn, error).")

	rootCmd.AddCommand(
		newServeCmd(),
		newListCmd(),
		newShowCmd(),
		newAddCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newTokenCmd(),
	)
	return rootCmd
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cliStorageType backs one-shot commands when STORAGE_TYPE is unset, so a note
// added by one invocation is still there for the next.
const cliStorageType = "filesystem"

// withBackend opens the configured backend for the duration of fn. An empty
// STORAGE_TYPE selects fallbackType.
func withBackend(ctx context.Context, fallbackType string, fn func(stores.Store) error) error {
	backend, err := stores.GetStoreOrDefault(ctx, fallbackType)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(backend); err != nil {
			logrus.WithError(err).Warn("Failed to close storage")
		}
	}()
	return fn(backend)
}
