// Package mnemod wires the dispatch runtime, the HTTP gateway and the MCP
// transport into the mnemod server binary.
package mnemod

import (
	"github.com/mnemora/mnemora/internal/mnemod/config"
	"github.com/mnemora/mnemora/internal/mnemod/options"
	"github.com/mnemora/mnemora/pkg/app"
	"github.com/mnemora/mnemora/pkg/logger"
)

const commandDesc = `The mnemod server hosts the memory dispatch runtime: plugins expose
tools whose operations are validated, cached, streamed and audited, and
clients reach them over the HTTP gateway or MCP on stdio.`

// NewApp creates the mnemod application.
func NewApp(basename string) *app.App {
	opts := options.NewOptions()
	application := app.NewApp("mnemod",
		basename,
		app.WithOptions(opts),
		app.WithDescription(commandDesc),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.Options) app.RunFunc {
	return func(basename string) error {
		if opts.LogOptions.Path != "" {
			if err := logger.InitLog(opts.LogOptions.Path); err != nil {
				return err
			}
			defer logger.FlushLog()
		}
		logger.SetLevel(opts.LogOptions.Level)

		cfg, err := config.CreateConfigFromOptions(opts)
		if err != nil {
			return err
		}

		return Run(cfg)
	}
}
