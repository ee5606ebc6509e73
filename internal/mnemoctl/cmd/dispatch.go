package cmd

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/mnemora/mnemora/pkg/utils/json"
)

// NewCmdDispatch returns the 'dispatch' sub command.
func NewCmdDispatch() *cobra.Command {
	var paramsJSON string

	cmd := &cobra.Command{
		Use:   "dispatch TOOL.OPERATION",
		Short: "Dispatch one operation",
		Example: heredoc.Doc(`
			# Store a memory
			mnemoctl dispatch memory.add -p '{"content": "likes go", "user_id": "u1"}'

			# Search memories
			mnemoctl dispatch memory.search -p '{"query": "go"}'`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, op, ok := strings.Cut(args[0], ".")
			if !ok {
				return fmt.Errorf("expected TOOL.OPERATION, got %q", args[0])
			}

			params := map[string]interface{}{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("--params is not valid JSON: %w", err)
				}
			}

			body := map[string]interface{}{
				"tool":      tool,
				"operation": op,
				"params":    params,
			}

			var resp map[string]interface{}
			if err := client().post(cmd.Context(), "/v1/dispatch", body, &resp); err != nil {
				return err
			}

			pretty, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(pretty))
			return nil
		},
	}

	cmd.Flags().StringVarP(&paramsJSON, "params", "p", "", "Operation parameters as a JSON object.")
	return cmd
}
