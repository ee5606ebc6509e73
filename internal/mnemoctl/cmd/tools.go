package cmd

import (
	"sort"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type toolsResponse struct {
	Tools []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Operations  map[string]struct {
			Description string `json:"description"`
		} `json:"operations"`
	} `json:"tools"`
}

// NewCmdTools returns the 'tools' sub command.
func NewCmdTools() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed by the server",
		Example: heredoc.Doc(`
			# List every tool and its operations
			mnemoctl tools`),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp toolsResponse
			if err := client().get(cmd.Context(), "/v1/tools", &resp); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("TOOL", "OPERATION", "DESCRIPTION")
			for _, tool := range resp.Tools {
				ops := make([]string, 0, len(tool.Operations))
				for name := range tool.Operations {
					ops = append(ops, name)
				}
				sort.Strings(ops)
				for _, name := range ops {
					table.AddRow(tool.Name, name, tool.Operations[name].Description)
				}
			}

			cmd.Println(table)
			return nil
		},
	}
}
