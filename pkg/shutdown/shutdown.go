// Package shutdown coordinates graceful process termination: managers
// listen for a trigger (such as a POSIX signal) and run the registered
// callbacks before the process exits.
package shutdown

import (
	"sync"
)

// Callback is invoked when a shutdown is triggered.
type Callback interface {
	OnShutdown(trigger string) error
}

// Func adapts a function into a Callback.
type Func func(trigger string) error

// OnShutdown implements Callback.
func (f Func) OnShutdown(trigger string) error {
	return f(trigger)
}

// Manager watches for a shutdown trigger and reports it back.
type Manager interface {
	Name() string
	Start(gs *GracefulShutdown) error
}

// ErrorHandler receives callback and manager errors.
type ErrorHandler interface {
	OnError(err error)
}

// GracefulShutdown dispatches shutdown triggers to callbacks.
type GracefulShutdown struct {
	mu           sync.Mutex
	callbacks    []Callback
	managers     []Manager
	errorHandler ErrorHandler
}

// New creates an empty GracefulShutdown.
func New() *GracefulShutdown {
	return &GracefulShutdown{}
}

// AddShutdownManager registers a trigger source.
func (gs *GracefulShutdown) AddShutdownManager(m Manager) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.managers = append(gs.managers, m)
}

// AddShutdownCallback registers work to run on shutdown.
func (gs *GracefulShutdown) AddShutdownCallback(cb Callback) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.callbacks = append(gs.callbacks, cb)
}

// SetErrorHandler registers the receiver of callback errors.
func (gs *GracefulShutdown) SetErrorHandler(h ErrorHandler) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.errorHandler = h
}

// Start launches every registered manager.
func (gs *GracefulShutdown) Start() error {
	gs.mu.Lock()
	managers := make([]Manager, len(gs.managers))
	copy(managers, gs.managers)
	gs.mu.Unlock()

	for _, m := range managers {
		if err := m.Start(gs); err != nil {
			return err
		}
	}
	return nil
}

// StartShutdown runs all callbacks. Managers call this when triggered.
func (gs *GracefulShutdown) StartShutdown(m Manager) {
	gs.mu.Lock()
	callbacks := make([]Callback, len(gs.callbacks))
	copy(callbacks, gs.callbacks)
	handler := gs.errorHandler
	gs.mu.Unlock()

	var wg sync.WaitGroup
	for _, cb := range callbacks {
		wg.Add(1)
		go func(cb Callback) {
			defer wg.Done()
			if err := cb.OnShutdown(m.Name()); err != nil && handler != nil {
				handler.OnError(err)
			}
		}(cb)
	}
	wg.Wait()
}
