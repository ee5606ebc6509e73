// Package server provides the generic HTTP API server every binary builds
// its gateway on: a gin engine with the standard health, version and
// profiling routes installed.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/mnemora/mnemora/pkg/logger"
)

// Config is the configuration of a GenericAPIServer.
type Config struct {
	Mode        string
	BindAddress string
	BindPort    int
	Healthz     bool
	Profiling   bool
}

// NewConfig returns a Config struct with default values.
func NewConfig() *Config {
	return &Config{
		Mode:        gin.ReleaseMode,
		BindAddress: "127.0.0.1",
		BindPort:    8420,
		Healthz:     true,
		Profiling:   false,
	}
}

// CompletedConfig is the completed configuration for GenericAPIServer.
type CompletedConfig struct {
	*Config
}

// Complete fills in any fields not set that are required to have valid
// data and can be derived from other fields.
func (c *Config) Complete() CompletedConfig {
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	return CompletedConfig{c}
}

// New returns a new instance of GenericAPIServer from the given config.
func (c CompletedConfig) New() (*GenericAPIServer, error) {
	gin.SetMode(c.Mode)

	s := &GenericAPIServer{
		Engine:  gin.New(),
		healthz: c.Healthz,
		address: fmt.Sprintf("%s:%d", c.BindAddress, c.BindPort),
	}

	s.Engine.Use(gin.Recovery())

	if c.Healthz {
		s.Engine.GET("/healthz", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
	if c.Profiling {
		pprof.Register(s.Engine)
	}

	return s, nil
}

// GenericAPIServer wraps a gin engine and the http server running it.
type GenericAPIServer struct {
	Engine  *gin.Engine
	healthz bool
	address string
	server  *http.Server
}

// Run starts the HTTP server. It blocks until the server stops.
func (s *GenericAPIServer) Run() error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("[Server] HTTP gateway listening on %s", s.address)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close gracefully shuts the server down, waiting for in-flight requests.
func (s *GenericAPIServer) Close() {
	if s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warn("[Server] graceful shutdown failed: %v", err)
	}
}
