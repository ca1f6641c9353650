package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/generyand/sinag-sub010/internal/template"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect indicator templates",
	}
	cmd.AddCommand(newTemplatesCheckCmd())
	return cmd
}

func newTemplatesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [DIR]",
		Short: "Load and validate templates (the bundled set when DIR is omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				inds []template.Indicator
				err  error
			)
			if len(args) == 1 {
				inds, err = template.LoadDir(args[0])
			} else {
				inds, err = template.LoadDefaults()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ind := range inds {
				fmt.Fprintf(out, "%-8s %-28s %s\n", ind.Code, ind.GovernanceArea, ind.Name)
			}
			fmt.Fprintf(out, "%d indicator(s) OK\n", len(inds))
			return nil
		},
	}
}
