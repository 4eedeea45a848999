package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/measx/codec"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		table  string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history <series>",
		Short: "List the recorded exports of a recording",
		Long: `List the exports fetch recorded for a recording, newest first.

The series argument must be spelled as it was passed to fetch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if table == "" {
				table = a.cfg.Export.CatalogTable
			}
			if table == "" {
				return errors.New("no catalog table: pass --catalog or set export.catalog_table")
			}

			catalog, err := newCatalog(ctx, table)
			if err != nil {
				return err
			}
			entries, err := catalog.History(ctx, args[0], limit)
			if err != nil {
				return err
			}

			if asJSON {
				for _, e := range entries {
					if err := codec.WriteLine(a.out, a.codec, e); err != nil {
						return err
					}
				}
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(a.out, "%s  %s  %s  %s\n",
					a.style.value(fmt.Sprintf("v%d", e.Version)),
					e.Created.Format(time.RFC3339),
					a.style.label(fmt.Sprintf("%d rows", e.Rows)),
					e.Object)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&table, "catalog", "", "DynamoDB catalog table (default from config)")
	f.IntVarP(&limit, "limit", "n", 10, "number of entries, 0 for all")
	f.BoolVar(&asJSON, "json", false, "print as JSON lines")
	return cmd
}
