// cmd/facecast/expressions.go
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"facecast/pkg/registry"

	"github.com/spf13/cobra"
)

func newExpressionsCommand(a *app) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "expressions",
		Short: "List the expression catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return fail("expressions", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tDEFAULT\tTAGS\tDESCRIPTION")
			for _, e := range cat.Expressions {
				if tag != "" && !containsFold(e.Tags, tag) {
					continue
				}
				def := ""
				if e.Default {
					def = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Label, def, strings.Join(e.Tags, ","), e.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Only list expressions with this tag")
	return cmd
}

func (a *app) catalog() (*registry.Catalog, error) {
	if a.cfg.Generation.CatalogPath == "" {
		return registry.Default(), nil
	}
	return registry.LoadCatalog(a.cfg.Generation.CatalogPath)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
