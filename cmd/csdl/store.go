package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStoreCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the document store used to resolve references",
	}
	cmd.AddCommand(newStorePutCommand(a))
	cmd.AddCommand(newStoreGetCommand(a))
	cmd.AddCommand(newStoreListCommand(a))
	cmd.AddCommand(newStoreDeleteCommand(a))
	return cmd
}

func newStorePutCommand(a *app) *cobra.Command {
	var uri string
	cmd := &cobra.Command{
		Use:   "put <file>...",
		Short: "Store documents under their reference URI",
		Long: `Stores each file under its base name, or under --uri when a single file is given.
Documents referencing that URI then resolve it from the store when references.use_store is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if uri != "" && len(args) > 1 {
				return fmt.Errorf("--uri can only be used with a single file")
			}
			s, err := a.openStore()
			if err != nil {
				return err
			}
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				key := uri
				if key == "" {
					key = filepath.Base(path)
				}
				doc, changed, err := s.Put(cmd.Context(), key, content)
				if err != nil {
					return err
				}
				if changed {
					color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "stored %s (%s, %s)\n", doc.URI, doc.Format, doc.Hash)
				} else {
					color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "unchanged %s\n", doc.URI)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "reference URI to store the document under")
	return cmd
}

func newStoreGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <uri>",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			doc, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(doc.Content)
			return err
		},
	}
}

func newStoreListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			docs, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "URI\tFORMAT\tSIZE\tHASH\tUPDATED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.URI, d.Format, d.Size, d.Hash, d.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newStoreDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uri>",
		Short: "Remove a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
