// Package app wires the subsystems together and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mcpd/internal/core/health"
	"mcpd/internal/search"
	"mcpd/internal/server"
	"mcpd/internal/service/web"
	"mcpd/internal/shared/logger"
	"mcpd/internal/shared/settings"
	"mcpd/internal/shared/types"
	"mcpd/internal/storage"
	"mcpd/internal/tools"
)

const healthCheckInterval = 30 * time.Second

// AppServer is the application's main struct.
type AppServer struct {
	cfg             *types.Config
	settingsManager *settings.SettingsManager

	store     storage.DocumentStore
	searcher  *search.CollySearcher
	registry  *tools.Registry
	mcpServer *server.MCPServer

	hub        *web.Hub
	webServer  *web.Server
	checker    *health.Checker
	grpcHealth *health.GRPCServer

	healthCheckTicker *time.Ticker
	stopCh            chan struct{}

	waitGroup sync.WaitGroup
	stopOnce  sync.Once

	log zerolog.Logger
}

var _ web.StatusProvider = (*AppServer)(nil)

// New builds the full service graph from the configuration. settingsPath
// may be empty to keep runtime settings in memory.
func New(cfg *types.Config, settingsPath string) (*AppServer, error) {
	sm, err := settings.NewSettingsManager(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("settings manager: %w", err)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	searcher := search.NewCollySearcher(search.ConfigFromConf(cfg.SearchConf))

	registry := tools.NewRegistry()
	registry.RegisterProvider(tools.NewMathProvider())
	registry.RegisterProvider(tools.NewDatabaseProvider(store))
	registry.RegisterProvider(tools.NewSearchProvider(searcher))

	s := &AppServer{
		cfg:               cfg,
		settingsManager:   sm,
		store:             store,
		searcher:          searcher,
		registry:          registry,
		mcpServer:         server.New(registry),
		hub:               web.NewHub(),
		checker:           health.New(0, store, searcher),
		healthCheckTicker: time.NewTicker(healthCheckInterval),
		stopCh:            make(chan struct{}),
		log:               logger.WithComponent("app"),
	}

	if cfg.GrpcConf.HealthAddr != "" {
		s.grpcHealth = health.NewGRPCServer()
	}

	s.webServer = web.NewServer(cfg, sm, s, s.hub, s.mcpServer.HandleWebSocket)

	// Subscribe the hot-reloadable modules, then apply the current
	// settings once so startup and update share one code path.
	logSub := &logLevelSubscriber{}
	sm.Register(settings.ModuleSearch, searcher)
	sm.Register(settings.ModuleLogging, logSub)

	initial := sm.Get()
	if initial.Search != nil {
		if err := searcher.OnSettingsUpdate(settings.ModuleSearch, initial.Search); err != nil {
			return nil, fmt.Errorf("apply search settings: %w", err)
		}
	}
	if initial.Logging != nil {
		if err := logSub.OnSettingsUpdate(settings.ModuleLogging, initial.Logging); err != nil {
			return nil, fmt.Errorf("apply logging settings: %w", err)
		}
	}

	return s, nil
}

// Run starts the background services and blocks serving HTTP until Stop
// is called.
func (s *AppServer) Run() error {
	if _, err := s.webServer.InitializeListener(); err != nil {
		return err
	}
	s.startBackground()
	return s.webServer.Serve()
}

// Start launches the server without blocking and reports the HTTP port
// actually bound, which matters when the address requests port 0.
func (s *AppServer) Start() (int, error) {
	port, err := s.webServer.InitializeListener()
	if err != nil {
		return 0, err
	}
	s.startBackground()

	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		if err := s.webServer.Serve(); err != nil {
			s.log.Error().Err(err).Msg("http server failed")
		}
	}()

	return port, nil
}

func (s *AppServer) startBackground() {
	go s.hub.Run()

	if s.grpcHealth != nil {
		s.waitGroup.Add(1)
		go func() {
			defer s.waitGroup.Done()
			if err := s.grpcHealth.Serve(s.cfg.GrpcConf.HealthAddr); err != nil {
				s.log.Error().Err(err).Msg("grpc health endpoint failed")
			}
		}()
	}

	s.waitGroup.Add(1)
	go s.healthCheckLoop()
}

// Stop shuts the server down and waits for the background loops to drain.
func (s *AppServer) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		s.log.Info().Msg("stopping server")
		s.healthCheckTicker.Stop()
		close(s.stopCh)

		s.mcpServer.CloseAll()

		if err := s.webServer.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("http shutdown")
		}
		if s.grpcHealth != nil {
			s.grpcHealth.Stop()
		}
		if err := s.store.Close(ctx); err != nil {
			s.log.Warn().Err(err).Msg("closing document store")
		}

		s.waitGroup.Wait()
	})
}

// Healthy implements web.StatusProvider.
func (s *AppServer) Healthy() bool {
	return s.checker.Healthy()
}

// BackendStates implements web.StatusProvider.
func (s *AppServer) BackendStates() map[string]*types.BackendState {
	return s.checker.Last()
}

// ConnectionCount implements web.StatusProvider.
func (s *AppServer) ConnectionCount() int {
	return s.mcpServer.ConnectionCount()
}

// healthCheckLoop runs one check cycle immediately, then keeps checking
// on the ticker until Stop.
func (s *AppServer) healthCheckLoop() {
	defer s.waitGroup.Done()

	s.publishHealth(context.Background())

	for {
		select {
		case <-s.healthCheckTicker.C:
			s.publishHealth(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// publishHealth probes the backends and pushes the snapshot to the
// monitoring hub and the gRPC health endpoint.
func (s *AppServer) publishHealth(ctx context.Context) {
	states := s.checker.Check(ctx)

	s.hub.BroadcastStatusUpdate(&web.StatusUpdate{
		Timestamp:   time.Now(),
		Healthy:     s.checker.Healthy(),
		Backends:    states,
		Connections: s.mcpServer.ConnectionCount(),
	})

	if s.grpcHealth != nil {
		s.grpcHealth.Publish(states)
	}
}

// logLevelSubscriber applies runtime logging settings to the global logger.
type logLevelSubscriber struct{}

var _ settings.ConfigurableModule = (*logLevelSubscriber)(nil)

func (l *logLevelSubscriber) OnSettingsUpdate(moduleKey string, newSettings interface{}) error {
	conf, ok := newSettings.(*settings.LoggingSettings)
	if !ok {
		return fmt.Errorf("invalid settings type for module %s", moduleKey)
	}
	return logger.SetLevel(conf.Level)
}
