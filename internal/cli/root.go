// Package cli implements sinagctl, an offline companion to the API for
// checking indicator definitions before they are loaded.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/generyand/sinag-sub010/internal/template"
)

// NewRootCmd creates the top-level "sinagctl" command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sinagctl",
		Short:         "Validate and evaluate SGLGB indicator definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newChecklistCmd(),
		newRulesCmd(),
		newFormCmd(),
		newTemplatesCmd(),
	)

	return root
}

// readDoc reads a JSON or YAML file and returns it as JSON. "-" reads the
// command's stdin.
func readDoc(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	doc, err := template.ToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// readValues decodes a file of submitted answers keyed by field id.
func readValues(cmd *cobra.Command, path string) (map[string]any, error) {
	doc, err := readDoc(cmd, path)
	if err != nil {
		return nil, err
	}
	values := map[string]any{}
	if err := json.Unmarshal(doc, &values); err != nil {
		return nil, fmt.Errorf("%s: values must be an object: %w", path, err)
	}
	return values, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
