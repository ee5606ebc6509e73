package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// RuntimeOptions configures the dispatch runtime itself.
type RuntimeOptions struct {
	// EventHistorySize bounds the event bus history.
	EventHistorySize int `json:"event-history-size" mapstructure:"event-history-size"`
	// CacheTTL is the lifetime of cached operation results.
	CacheTTL time.Duration `json:"cache-ttl" mapstructure:"cache-ttl"`
	// StreamChunkSize is the number of items per streamed chunk.
	StreamChunkSize int `json:"stream-chunk-size" mapstructure:"stream-chunk-size"`
	// RateLimitRPS caps dispatches per second. Zero disables limiting.
	RateLimitRPS float64 `json:"rate-limit-rps" mapstructure:"rate-limit-rps"`
	// RateLimitBurst is the limiter bucket size.
	RateLimitBurst int `json:"rate-limit-burst" mapstructure:"rate-limit-burst"`
}

// NewRuntimeOptions creates a RuntimeOptions with default parameters.
func NewRuntimeOptions() *RuntimeOptions {
	return &RuntimeOptions{
		EventHistorySize: 1000,
		CacheTTL:         5 * time.Minute,
		StreamChunkSize:  50,
		RateLimitRPS:     0,
		RateLimitBurst:   0,
	}
}

// Validate checks RuntimeOptions fields.
func (o *RuntimeOptions) Validate() []error {
	var errs []error

	if o.EventHistorySize < 0 {
		errs = append(errs, fmt.Errorf("--runtime.event-history-size must not be negative"))
	}
	if o.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("--runtime.cache-ttl must not be negative"))
	}
	if o.StreamChunkSize < 0 {
		errs = append(errs, fmt.Errorf("--runtime.stream-chunk-size must not be negative"))
	}
	if o.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("--runtime.rate-limit-rps must not be negative"))
	}

	return errs
}

// AddFlags adds flags for the runtime options.
func (o *RuntimeOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.EventHistorySize, "runtime.event-history-size", o.EventHistorySize,
		"Number of past events retained by the event bus.")
	fs.DurationVar(&o.CacheTTL, "runtime.cache-ttl", o.CacheTTL,
		"Lifetime of cached operation results.")
	fs.IntVar(&o.StreamChunkSize, "runtime.stream-chunk-size", o.StreamChunkSize,
		"Items per chunk for streamed results.")
	fs.Float64Var(&o.RateLimitRPS, "runtime.rate-limit-rps", o.RateLimitRPS,
		"Dispatches per second before requests are rejected. 0 disables limiting.")
	fs.IntVar(&o.RateLimitBurst, "runtime.rate-limit-burst", o.RateLimitBurst,
		"Burst size of the rate limiter.")
}
