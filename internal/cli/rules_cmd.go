package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/generyand/sinag-sub010/internal/calculation"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with calculation schemas",
	}
	cmd.AddCommand(newRulesEvalCmd())
	return cmd
}

func newRulesEvalCmd() *cobra.Command {
	var bbi map[string]string

	cmd := &cobra.Command{
		Use:   "eval SCHEMA VALUES",
		Short: "Evaluate a calculation schema against submitted values",
		Long: `Evaluate a calculation schema against a JSON or YAML object of answers
keyed by field id. BBI statuses used by BBI_FUNCTIONALITY_CHECK rules are
passed with --bbi CODE=STATUS.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDoc(cmd, args[0])
			if err != nil {
				return err
			}
			schema, err := calculation.Parse(doc)
			if err != nil {
				return fmt.Errorf("parse schema: %w", err)
			}
			if problems := calculation.ValidateSchema(schema); len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", p.Path, p.Message)
				}
				return fmt.Errorf("schema has %d problem(s)", len(problems))
			}

			values, err := readValues(cmd, args[1])
			if err != nil {
				return err
			}

			ev := calculation.NewEvaluator(calculation.StaticBBIStatuses(bbi))
			out := cmd.OutOrStdout()
			for i, g := range schema.ConditionGroups {
				fmt.Fprintf(out, "group %d %-4s %s  %s\n", i+1, g.Operator, passFail(ev.EvaluateGroup(g, values)), calculation.DescribeGroup(g))
			}
			fmt.Fprintf(out, "status: %s\n", ev.Status(schema, values))
			return nil
		},
	}

	cmd.Flags().StringToStringVar(&bbi, "bbi", nil, "BBI status as CODE=STATUS (repeatable)")
	return cmd
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
