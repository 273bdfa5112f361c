package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"snapnotes/core"
	photosapi "snapnotes/handlers/api/photos"
	"snapnotes/handlers/auth"
	"snapnotes/notes"
	"snapnotes/photos"
	"snapnotes/stores"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newListCmd() *cobra.Command {
	var (
		query  string
		asJSON bool
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), cliStorageType, func(backend stores.Store) error {
				list, err := notes.NewStore(backend).Search(cmd.Context(), query)
				if err != nil {
					return err
				}
				switch {
				case asJSON:
					return printJSON(cmd.OutOrStdout(), list)
				case asYAML:
					return printYAML(cmd.OutOrStdout(), list)
				}
				return printTable(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only show notes whose title or description contains this text.")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the notes as a JSON array.")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the notes as a YAML sequence.")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")
	return cmd
}

func newShowCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one note as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), cliStorageType, func(backend stores.Store) error {
				note, err := notes.NewStore(backend).Get(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				if asYAML {
					return printYAML(cmd.OutOrStdout(), note)
				}
				return printJSON(cmd.OutOrStdout(), note)
			})
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the note as YAML instead.")
	return cmd
}

func newAddCmd() *cobra.Command {
	var title, description, image, photoPath string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a note",
		Long: `Create a note with the given title, description and image reference.
Pass --photo to store a local image file and reference it from the note instead of --image.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if photoPath != "" && image != "" {
				return errors.New("use either --image or --photo, not both")
			}
			return withBackend(cmd.Context(), cliStorageType, func(backend stores.Store) error {
				if photoPath != "" {
					data, err := os.ReadFile(photoPath)
					if err != nil {
						return fmt.Errorf("read photo: %w", err)
					}
					id, err := photos.NewStore(backend).Save(cmd.Context(), data)
					if err != nil {
						return err
					}
					image = photosapi.ImageRef(id)
				}

				note := notes.NewNote(title, description, image, time.Now())
				if err := note.Validate(); err != nil {
					return err
				}
				if err := notes.NewStore(backend).Create(cmd.Context(), note); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), note.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Note title.")
	cmd.Flags().StringVar(&description, "description", "", "Note description.")
	cmd.Flags().StringVar(&image, "image", "", "Image reference (URI) for the note.")
	cmd.Flags().StringVar(&photoPath, "photo", "", "Path of an image file to store alongside the note.")
	return cmd
}

func newEditCmd() *cobra.Command {
	var title, description, image string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title, description or image of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.NotePatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("image") {
				patch.Image = &image
			}
			if patch.Empty() {
				return errors.New("nothing to update, pass --title, --description or --image")
			}
			if err := patch.Validate(); err != nil {
				return err
			}

			return withBackend(cmd.Context(), cliStorageType, func(backend stores.Store) error {
				updated, err := notes.NewStore(backend).Update(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				if !updated {
					return fmt.Errorf("%s: %w", args[0], notes.ErrNoteNotFound)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Note updated:", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title.")
	cmd.Flags().StringVar(&description, "description", "", "New description.")
	cmd.Flags().StringVar(&image, "image", "", "New image reference.")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd.Context(), cliStorageType, func(backend stores.Store) error {
				deleted, err := notes.NewStore(backend).Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if deleted {
					fmt.Fprintln(cmd.OutOrStdout(), "Note deleted:", args[0])
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No note with id", args[0])
				}
				return nil
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		device  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.NewTokens(os.Getenv("JWT_SECRET")).Issue(subject, device, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "owner", "Subject the token is issued to.")
	cmd.Flags().StringVar(&device, "device", "", "Optional device name recorded in the token.")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "How long the token stays valid.")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printTable(w io.Writer, list []core.Note) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tDESCRIPTION")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Date, n.Title, n.Description)
	}
	return tw.Flush()
}
