package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"

	"github.com/mnemora/mnemora/internal/pkg/server"
)

// ServerRunOptions contains the options while running a generic API server.
type ServerRunOptions struct {
	// Mode is the gin run mode: debug, test or release.
	Mode string `json:"mode" mapstructure:"mode"`
	// BindAddress is the IP the HTTP gateway listens on.
	BindAddress string `json:"bind-address" mapstructure:"bind-address"`
	// BindPort is the port the HTTP gateway listens on.
	BindPort int `json:"bind-port" mapstructure:"bind-port"`
	// Healthz installs the /healthz readiness route.
	Healthz bool `json:"healthz" mapstructure:"healthz"`
	// Profiling installs the pprof routes under /debug/pprof.
	Profiling bool `json:"profiling" mapstructure:"profiling"`
}

// NewServerRunOptions creates a ServerRunOptions with default parameters.
func NewServerRunOptions() *ServerRunOptions {
	return &ServerRunOptions{
		Mode:        "release",
		BindAddress: "127.0.0.1",
		BindPort:    8420,
		Healthz:     true,
		Profiling:   false,
	}
}

// ApplyTo applies the run options to the method receiver and returns self.
func (s *ServerRunOptions) ApplyTo(c *server.Config) error {
	c.Mode = s.Mode
	c.BindAddress = s.BindAddress
	c.BindPort = s.BindPort
	c.Healthz = s.Healthz
	c.Profiling = s.Profiling
	return nil
}

// Validate checks ServerRunOptions fields.
func (s *ServerRunOptions) Validate() []error {
	var errs []error

	if s.BindPort < 1 || s.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("--serving.bind-port %d must be between 1 and 65535", s.BindPort))
	}
	if net.ParseIP(s.BindAddress) == nil {
		errs = append(errs, fmt.Errorf("--serving.bind-address %q is not a valid IP", s.BindAddress))
	}
	switch s.Mode {
	case "debug", "test", "release":
	default:
		errs = append(errs, fmt.Errorf("--serving.mode %q must be debug, test or release", s.Mode))
	}

	return errs
}

// AddFlags adds flags for a specific APIServer to the specified FlagSet.
func (s *ServerRunOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Mode, "serving.mode", s.Mode,
		"Run mode of the HTTP gateway: debug, test or release.")
	fs.StringVar(&s.BindAddress, "serving.bind-address", s.BindAddress,
		"IP address the HTTP gateway listens on.")
	fs.IntVar(&s.BindPort, "serving.bind-port", s.BindPort,
		"Port the HTTP gateway listens on.")
	fs.BoolVar(&s.Healthz, "serving.healthz", s.Healthz,
		"Install the /healthz readiness route.")
	fs.BoolVar(&s.Profiling, "serving.profiling", s.Profiling,
		"Install the pprof routes under /debug/pprof.")
}
