package cmd

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

type pluginsResponse struct {
	Plugins []struct {
		Metadata struct {
			Name         string   `json:"name"`
			Version      string   `json:"version"`
			Dependencies []string `json:"dependencies"`
		} `json:"metadata"`
		State string   `json:"state"`
		Error string   `json:"error"`
		Tools []string `json:"tools"`
	} `json:"plugins"`
}

// NewCmdPlugins returns the 'plugins' sub command.
func NewCmdPlugins() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List registered plugins and their state",
		Example: heredoc.Doc(`
			# List every plugin
			mnemoctl plugins

			# Reload the memory plugin
			mnemoctl plugins reload memory`),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp pluginsResponse
			if err := client().get(cmd.Context(), "/v1/plugins", &resp); err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("NAME", "VERSION", "STATE", "DEPENDS ON", "TOOLS")
			for _, p := range resp.Plugins {
				state := p.State
				switch state {
				case "active":
					state = color.GreenString(state)
				case "failed":
					state = color.RedString(state)
				}
				table.AddRow(p.Metadata.Name, p.Metadata.Version, state,
					strings.Join(p.Metadata.Dependencies, ","), strings.Join(p.Tools, ","))
			}
			cmd.Println(table)

			for _, p := range resp.Plugins {
				if p.Error != "" {
					cmd.Printf("%s %s: %s\n", color.RedString("!"), p.Metadata.Name, p.Error)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reload NAME",
		Short: "Tear a plugin down and initialize it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/plugins/%s/reload", args[0])
			if err := client().post(cmd.Context(), path, nil, nil); err != nil {
				return err
			}
			cmd.Printf("plugin %s reloaded\n", args[0])
			return nil
		},
	})

	return cmd
}
