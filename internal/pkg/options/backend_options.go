package options

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
)

// BackendOptions configures the storage backends.
type BackendOptions struct {
	// StorePath is the bolt file holding memory records. Empty selects
	// the in-memory store.
	StorePath string `json:"store-path" mapstructure:"store-path"`
	// HistoryPath is the sqlite file holding the mutation audit log.
	// Empty selects an in-memory database.
	HistoryPath string `json:"history-path" mapstructure:"history-path"`
}

// NewBackendOptions creates a BackendOptions with default parameters.
func NewBackendOptions() *BackendOptions {
	return &BackendOptions{}
}

// Validate checks BackendOptions fields.
func (o *BackendOptions) Validate() []error {
	var errs []error

	for flag, path := range map[string]string{
		"--backend.store-path":   o.StorePath,
		"--backend.history-path": o.HistoryPath,
	} {
		if path == "" || path == ":memory:" {
			continue
		}
		if !filepath.IsAbs(path) && filepath.Clean(path) != path {
			errs = append(errs, fmt.Errorf("%s %q is not a clean path", flag, path))
		}
	}

	return errs
}

// AddFlags adds flags for the backend options.
func (o *BackendOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.StorePath, "backend.store-path", o.StorePath,
		"Bolt file holding memory records. Empty keeps records in memory.")
	fs.StringVar(&o.HistoryPath, "backend.history-path", o.HistoryPath,
		"Sqlite file holding the mutation audit log. Empty keeps it in memory.")
}
