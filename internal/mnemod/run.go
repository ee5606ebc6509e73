package mnemod

import (
	"github.com/mnemora/mnemora/internal/mnemod/config"
)

// Run boots the mnemod server with the given configuration and blocks
// until it stops.
func Run(cfg *config.Config) error {
	server, err := createAPIServer(cfg)
	if err != nil {
		return err
	}

	return server.PrepareRun().Run()
}
