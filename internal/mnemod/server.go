package mnemod

import (
	"context"
	"log"

	"github.com/mnemora/mnemora/internal/mnemod/config"
	"github.com/mnemora/mnemora/internal/mnemod/service/plugin/builtin"
	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
	genericapiserver "github.com/mnemora/mnemora/internal/pkg/server"
	"github.com/mnemora/mnemora/pkg/app"
	"github.com/mnemora/mnemora/pkg/logger"
	"github.com/mnemora/mnemora/pkg/shutdown"
	"github.com/mnemora/mnemora/pkg/shutdown/posixsignal"
)

type apiServer struct {
	gs               *shutdown.GracefulShutdown
	genericAPIServer *genericapiserver.GenericAPIServer
	runtime          *runtime.Runtime
	mcpServer        *mcpServer
	watcher          *configWatcher
}

type preparedAPIServer struct {
	*apiServer
}

func createAPIServer(cfg *config.Config) (*apiServer, error) {
	gs := shutdown.New()
	gs.AddShutdownManager(posixsignal.NewPosixSignalManager())

	genericConfig, err := buildGenericConfig(cfg)
	if err != nil {
		return nil, err
	}
	genericServer, err := genericConfig.Complete().New()
	if err != nil {
		return nil, err
	}

	// Dispatch runtime (Config -> Complete -> New).
	runtimeCfg := &runtime.Config{
		EventHistorySize: cfg.RuntimeOptions.EventHistorySize,
		StorePath:        cfg.BackendOptions.StorePath,
		HistoryPath:      cfg.BackendOptions.HistoryPath,
		CacheTTL:         cfg.RuntimeOptions.CacheTTL,
		StreamChunkSize:  cfg.RuntimeOptions.StreamChunkSize,
	}
	rt, err := runtimeCfg.Complete().New()
	if err != nil {
		return nil, err
	}

	if cfg.PluginOptions.Enabled {
		loader := builtin.NewLoader(cfg.PluginOptions, builtin.Defaults{
			CacheTTL:       cfg.RuntimeOptions.CacheTTL,
			ChunkSize:      cfg.RuntimeOptions.StreamChunkSize,
			RateLimitRPS:   cfg.RuntimeOptions.RateLimitRPS,
			RateLimitBurst: cfg.RuntimeOptions.RateLimitBurst,
		})
		if err := rt.LoadFrom(loader); err != nil {
			return nil, err
		}
		if err := rt.Init(context.Background()); err != nil {
			return nil, err
		}
		logger.Info("[Mnemod] runtime initialized with %d plugins", len(rt.Registry().Infos()))
	} else {
		logger.Info("[Mnemod] plugin system disabled (plugins.enabled=false)")
	}

	server := &apiServer{
		gs:               gs,
		genericAPIServer: genericServer,
		runtime:          rt,
	}

	if cfg.MCPOptions.Enabled {
		server.mcpServer = newMCPServer(cfg.MCPOptions.ServerName, rt)
	}

	if configFile := app.ConfigFileUsed(); configFile != "" {
		watcher, err := newConfigWatcher(configFile, rt.Bus())
		if err != nil {
			logger.Warn("[Mnemod] config watcher disabled: %v", err)
		} else {
			server.watcher = watcher
		}
	}

	return server, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	initRouter(s.genericAPIServer.Engine, s.runtime)

	s.gs.AddShutdownCallback(shutdown.Func(func(string) error {
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.runtime.Shutdown(context.Background())
		s.genericAPIServer.Close()
		return nil
	}))

	return preparedAPIServer{s}
}

func (s preparedAPIServer) Run() error {
	if s.watcher != nil {
		s.watcher.Start()
	}
	if s.mcpServer != nil {
		go func() {
			if err := s.mcpServer.Serve(); err != nil {
				logger.Error("[Mnemod] MCP transport stopped: %v", err)
			}
		}()
	}

	if err := s.gs.Start(); err != nil {
		log.Fatalf("start shutdown manager failed: %s", err.Error())
	}

	return s.genericAPIServer.Run()
}

func buildGenericConfig(cfg *config.Config) (genericConfig *genericapiserver.Config, lastErr error) {
	genericConfig = genericapiserver.NewConfig()
	if lastErr = cfg.GenericServerRunOptions.ApplyTo(genericConfig); lastErr != nil {
		return
	}

	return
}
