package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/alquilibros/alquilibros-server/internal/store"
)

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Dump every collection as a db.json document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.store()
			if err != nil {
				return err
			}

			data, err := exportDocument(cmd.Context(), st)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "db.json", "file to write, - for stdout")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a db.json document into the configured store",
		Long:  "Writes every record of the document under its own id, replacing records with the same id. Keys that are not collections are ignored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			st, err := a.store()
			if err != nil {
				return err
			}

			counts, err := importDocument(cmd.Context(), st, f)
			if err != nil {
				return err
			}
			for _, name := range st.Collections() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", name, counts[name])
			}
			return nil
		},
	}
}

// exportDocument reads every collection in one transaction.
func exportDocument(ctx context.Context, st store.Store) ([]byte, error) {
	names := st.Collections()
	doc := make(map[string][]store.Record, len(names))
	err := st.View(ctx, func(tx store.Tx) error {
		for _, name := range names {
			records, err := tx.List(name)
			if err != nil {
				return err
			}
			doc[name] = records
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store.MarshalDocument(names, doc)
}

// importDocument upserts every record of a db.json document in one transaction and reports how many records
// each collection received.
func importDocument(ctx context.Context, st store.Store, r io.Reader) (map[string]int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := store.UnmarshalDocument(data)
	if err != nil {
		return nil, err
	}

	names := st.Collections()
	counts := make(map[string]int, len(names))
	err = st.Update(ctx, func(tx store.Tx) error {
		for name, records := range doc {
			if !slices.Contains(names, name) {
				continue
			}
			for _, rec := range records {
				if err := tx.Put(name, rec); err != nil {
					return fmt.Errorf("%s/%s: %w", name, rec.ID(), err)
				}
				counts[name]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
