package cmd

import (
	"fmt"
	"net/url"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type eventsResponse struct {
	Events []struct {
		Name      string                 `json:"name"`
		Payload   map[string]interface{} `json:"payload"`
		Timestamp string                 `json:"timestamp"`
	} `json:"events"`
}

// NewCmdEvents returns the 'events' sub command.
func NewCmdEvents() *cobra.Command {
	var name string
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the recent event history",
		Example: heredoc.Doc(`
			# Show the last 20 events
			mnemoctl events --limit 20

			# Show only memory.added events
			mnemoctl events --name memory.added`),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if name != "" {
				query.Set("name", name)
			}
			query.Set("limit", fmt.Sprintf("%d", limit))

			var resp eventsResponse
			if err := client().get(cmd.Context(), "/v1/events?"+query.Encode(), &resp); err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 80
			table.AddRow("TIMESTAMP", "EVENT", "PAYLOAD")
			for _, evt := range resp.Events {
				table.AddRow(evt.Timestamp, evt.Name, fmt.Sprintf("%v", evt.Payload))
			}
			cmd.Println(table)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Only show events with this name.")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to show.")
	return cmd
}
