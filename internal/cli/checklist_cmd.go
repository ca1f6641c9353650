package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/generyand/sinag-sub010/internal/mov"
)

func newChecklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Work with MOV checklists",
	}
	cmd.AddCommand(newChecklistValidateCmd())
	return cmd
}

func newChecklistValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a MOV checklist (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDoc(cmd, args[0])
			if err != nil {
				return err
			}
			cl, err := mov.Parse(doc)
			if err != nil {
				return fmt.Errorf("parse checklist: %w", err)
			}

			res := mov.Validate(cl)
			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				printResult(out, res, mov.CountItems(cl.Items))
			}

			if !res.IsValid {
				return fmt.Errorf("checklist has %d error(s)", len(res.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printResult(w io.Writer, res mov.Result, items int) {
	if res.IsValid {
		fmt.Fprintf(w, "valid: %d item(s), %d warning(s)\n", items, len(res.Warnings))
	} else {
		fmt.Fprintf(w, "invalid: %d error(s), %d warning(s)\n", len(res.Errors), len(res.Warnings))
	}
	for _, is := range res.Errors {
		fmt.Fprintf(w, "  error    %s.%s: %s\n", is.ItemID, is.Field, is.Message)
	}
	for _, is := range res.Warnings {
		fmt.Fprintf(w, "  warning  %s.%s: %s\n", is.ItemID, is.Field, is.Message)
	}
}
