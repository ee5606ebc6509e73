// Package app builds command-line applications out of option structs.
// It wires cobra, viper and grouped pflag sets together so every binary
// gets the same flag/config/env layering.
package app

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mnemora/mnemora/pkg/logger"
	cliflag "github.com/mnemora/mnemora/pkg/utils/cliflag"
)

// RunFunc is the application's startup callback.
type RunFunc func(basename string) error

// CliOptions abstracts the configuration options an application reads
// from the command line.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets
	// Validate checks the options and returns all violations found.
	Validate() []error
}

// CompleteableOptions is implemented by options that can fill in defaults.
type CompleteableOptions interface {
	Complete() error
}

// App is a structured command-line application.
type App struct {
	basename    string
	name        string
	description string
	options     CliOptions
	runFunc     RunFunc
	silence     bool
	noConfig    bool
	cmd         *cobra.Command
	args        cobra.PositionalArgs
}

// Option configures an App.
type Option func(*App)

// WithOptions attaches command-line option structs to the application.
func WithOptions(opts CliOptions) Option {
	return func(a *App) {
		a.options = opts
	}
}

// WithRunFunc sets the application startup callback.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) {
		a.runFunc = run
	}
}

// WithDescription sets the long description shown in help output.
func WithDescription(desc string) Option {
	return func(a *App) {
		a.description = desc
	}
}

// WithSilence suppresses the startup banner.
func WithSilence() Option {
	return func(a *App) {
		a.silence = true
	}
}

// WithNoConfig disables the --config flag and config-file loading.
func WithNoConfig() Option {
	return func(a *App) {
		a.noConfig = true
	}
}

// WithDefaultValidArgs rejects any positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// NewApp creates an application with the given name, binary basename and
// options.
func NewApp(name string, basename string, opts ...Option) *App {
	a := &App{
		name:     name,
		basename: basename,
	}

	for _, o := range opts {
		o(a)
	}

	a.buildCommand()

	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           formatBaseName(a.basename),
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		namedFlagSets.AddTo(cmd.Flags())
	}

	if !a.noConfig {
		addConfigFlag(a.basename, namedFlagSets.FlagSet("global"))
		cmd.Flags().AddFlagSet(namedFlagSets.FlagSet("global"))
	}

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		fmt.Fprintf(c.OutOrStdout(), "%s\n", c.Long)
		cliflag.PrintSections(c.OutOrStdout(), namedFlagSets, 100)
	})

	cmd.RunE = a.runCommand
	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	if !a.silence {
		logger.Info("%v starting %s ...", progressMessage(), a.name)
		logger.Info("%v golang version: %s", progressMessage(), runtime.Version())
	}

	if !a.noConfig {
		if err := bindConfig(cmd, a.options); err != nil {
			return err
		}
	}

	if a.options != nil {
		if err := a.applyOptions(); err != nil {
			return err
		}
	}

	if a.runFunc != nil {
		return a.runFunc(a.basename)
	}

	return nil
}

func (a *App) applyOptions() error {
	if completeable, ok := a.options.(CompleteableOptions); ok {
		if err := completeable.Complete(); err != nil {
			return err
		}
	}

	if errs := a.options.Validate(); len(errs) != 0 {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// Run launches the application. It exits the process on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// Command exposes the underlying cobra command, mainly for tests.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func formatBaseName(basename string) string {
	if runtime.GOOS == "windows" {
		basename = strings.TrimSuffix(strings.ToLower(basename), ".exe")
	}
	return basename
}

func progressMessage() string {
	return color.GreenString("==>")
}
