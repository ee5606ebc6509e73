// Package posixsignal provides a shutdown manager triggered by POSIX
// signals.
package posixsignal

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mnemora/mnemora/pkg/shutdown"
)

// Name is the manager identifier passed to shutdown callbacks.
const Name = "PosixSignalManager"

// PosixSignalManager triggers a shutdown on the configured signals.
type PosixSignalManager struct {
	signals []os.Signal
}

// NewPosixSignalManager creates a manager for the given signals, defaulting
// to SIGINT and SIGTERM.
func NewPosixSignalManager(sig ...os.Signal) *PosixSignalManager {
	if len(sig) == 0 {
		sig = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return &PosixSignalManager{signals: sig}
}

// Name implements shutdown.Manager.
func (m *PosixSignalManager) Name() string {
	return Name
}

// Start implements shutdown.Manager. It waits for a signal on its own
// goroutine and exits the process once the callbacks finish.
func (m *PosixSignalManager) Start(gs *shutdown.GracefulShutdown) error {
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, m.signals...)
		<-c

		gs.StartShutdown(m)
		signal.Stop(c)
		os.Exit(0)
	}()

	return nil
}
