package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/generyand/sinag-sub010/internal/formschema"
)

func newFormCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Work with form schemas",
	}
	cmd.AddCommand(newFormVisibleCmd())
	return cmd
}

func newFormVisibleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "visible SCHEMA VALUES",
		Short: "List the fields shown for a set of answers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDoc(cmd, args[0])
			if err != nil {
				return err
			}
			schema, err := formschema.Parse(doc)
			if err != nil {
				return fmt.Errorf("parse form schema: %w", err)
			}
			values, err := readValues(cmd, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range formschema.VisibleFields(schema, values) {
				fmt.Fprintf(out, "%s\t%s\n", f.ID, f.Label)
			}
			if missing := formschema.MissingRequired(schema, values); len(missing) > 0 {
				fmt.Fprintf(out, "missing required: %s\n", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
