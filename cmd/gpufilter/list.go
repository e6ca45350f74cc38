package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/gpufilter/backend"
	"github.com/gogpu/gpufilter/kernels"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends, kernels and filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

		fmt.Fprintln(w, "BACKENDS")
		def := backend.Default()
		for _, name := range backend.Available() {
			mark := ""
			if name == def {
				mark = "default"
			}
			fmt.Fprintf(w, "  %s\t%s\n", name, mark)
		}

		fmt.Fprintln(w, "\nKERNELS")
		for _, entry := range kernels.EntryPoints() {
			fmt.Fprintf(w, "  %s\n", entry)
		}

		fmt.Fprintln(w, "\nFILTERS")
		for _, name := range recipeNames() {
			r := recipes[name]
			fmt.Fprintf(w, "  %s\t%s\t%s\n", name, r.entry, r.help)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
