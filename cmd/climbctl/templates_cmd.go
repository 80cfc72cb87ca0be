package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ignite/climblog/internal/datanorm"
)

func newTemplatesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the built-in source templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			templates := datanorm.Templates()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), templates)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tNAME\tFORMAT\tGRADES\tCOLUMNS")
			for _, t := range templates {
				format := "CSV"
				if t.IsJSON {
					format = "JSON"
				}
				system := string(t.GradeSystem)
				if system == "" {
					system = "-"
				}
				keys := make([]string, 0, len(t.Mapping))
				for k := range t.Mapping {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", t.SourceType, t.Name, format, system, len(keys))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print full template definitions as JSON")
	return cmd
}
