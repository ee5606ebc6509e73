// Package cmd implements the mnemoctl command line client for the mnemod
// gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var serverURL string

// NewDefaultMnemoCtlCommand creates the `mnemoctl` command with default
// arguments.
func NewDefaultMnemoCtlCommand() *cobra.Command {
	cmds := &cobra.Command{
		Use:   "mnemoctl",
		Short: "mnemoctl talks to a running mnemod server",
		Long: heredoc.Doc(`
			mnemoctl is the CLI client for the mnemod dispatch server.

			It lists the exposed tools and plugins, dispatches operations and
			inspects the event history over the HTTP gateway.`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmds.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://127.0.0.1:8420",
		"Base URL of the mnemod HTTP gateway.")

	cmds.AddCommand(
		NewCmdTools(),
		NewCmdPlugins(),
		NewCmdDispatch(),
		NewCmdEvents(),
	)

	return cmds
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewDefaultMnemoCtlCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func client() *Client {
	return NewClient(serverURL)
}
