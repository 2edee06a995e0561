package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyjia/toolcrib/internal/container"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

func newCatalogCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "catalog [domain]",
		Short: "Print the status catalog",
		Long: `Print the status catalog as loaded from the store.

Without an argument every domain is printed. Valid domains are resource,
loan and maintenance.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domains := entity.Domains()
			if len(args) == 1 {
				d := entity.Domain(args[0])
				if !d.IsValid() {
					return fmt.Errorf("unknown domain %q", args[0])
				}
				domains = []entity.Domain{d}
			}

			c, err := container.NewContainer(a.cfg, a.logger, container.WithoutWorkers())
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			defer c.Close()

			entries := make(map[entity.Domain][]entity.StatusEntry, len(domains))
			for _, d := range domains {
				entries[d] = c.Catalog().Entries(d)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return printCatalog(cmd.OutOrStdout(), domains, entries)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printCatalog(out io.Writer, domains []entity.Domain, entries map[entity.Domain][]entity.StatusEntry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tID\tNAME\tDESCRIPTION")
	for _, d := range domains {
		for _, e := range entries[d] {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d, e.ID, e.Name, e.Description)
		}
	}
	return w.Flush()
}
