// @title                       Space Maquette Rig API
// @version                     1.0
// @description                 Host service for the motorized camera and rangefinder rig.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "space_maquette/docs"
	"space_maquette/internal/config"
	"space_maquette/internal/dispatch"
	"space_maquette/internal/handlers"
	"space_maquette/internal/logger"
	"space_maquette/internal/repository"
	"space_maquette/internal/repository/db"
	"space_maquette/internal/server"
	"space_maquette/internal/service"
	"space_maquette/internal/simulator"
	"space_maquette/internal/transport"

	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load configs/config.yml (+ .env, RIG_* overrides)
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)

	// open DB
	sqlDB, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	tr := newTransport(cfg, log)
	disp := dispatch.New(tr,
		dispatch.WithChecksum(cfg.Transport.Checksum),
		dispatch.WithLogger(log.Component("dispatch")),
	)
	repos := repository.NewRepository(sqlDB, cfg.HostConfigPath)
	services, err := service.NewService(repos, disp, authConfig(cfg, log),
		service.WithRigLogger(log),
		service.WithCommandTimeout(cfg.Transport.CommandTimeout),
		service.WithPollInterval(cfg.Status.Interval),
		service.WithAutoPoll(cfg.Status.AutoStart),
	)
	if err != nil {
		log.Fatalw("failed to init services", "err", err)
	}
	apiHandler := handlers.NewHandler(services, log)

	// best-effort: the rig can also be connected later over the API
	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Transport.TCP.DialTimeout)
	if err := services.Rig.Connect(connectCtx); err != nil {
		log.Warnw("rig not connected at startup", "transport", cfg.Transport.Kind, "err", err)
	}
	connectCancel()

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(services.Rig, srv, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DBPath)
	return db.InitDB(cfg.DBPath)
}

// newTransport picks the controller link from transport.kind.
func newTransport(cfg *config.Config, log *logger.Logger) transport.Transport {
	switch cfg.Transport.Kind {
	case config.TransportSerial:
		log.Infow("using serial transport", "port", cfg.Transport.Serial.Port, "baud", cfg.Transport.Serial.Baud)
		return transport.NewSerial(transport.SerialConfig{
			Port:        cfg.Transport.Serial.Port,
			Baud:        cfg.Transport.Serial.Baud,
			ReadTimeout: cfg.Transport.Serial.ReadTimeout,
		})
	case config.TransportTCP:
		log.Infow("using tcp transport", "host", cfg.Transport.TCP.Host, "port", cfg.Transport.TCP.Port)
		return transport.NewTCP(transport.TCPConfig{
			Host:        cfg.Transport.TCP.Host,
			Port:        cfg.Transport.TCP.Port,
			DialTimeout: cfg.Transport.TCP.DialTimeout,
		})
	default:
		log.Infow("using in-process simulator", "tick", cfg.Simulator.Tick)
		sim := simulator.New(simulator.WithLogger(log.Component("simulator")))
		return transport.NewSim(sim, cfg.Simulator.Tick)
	}
}

// authConfig falls back to a per-process signing key when none is configured.
func authConfig(cfg *config.Config, log *logger.Logger) service.AuthConfig {
	key := cfg.Auth.SigningKey
	if key == "" {
		log.Warnw("auth.signing_key not set; tokens will not survive a restart")
		key = uuid.NewString()
	}
	return service.AuthConfig{SigningKey: key, TokenTTL: cfg.Auth.TokenTTL}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(rig service.Rig, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight requests to complete
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// stop polling and release the port
	if rig.Connected() {
		if err := rig.Disconnect(ctx); err != nil {
			log.Errorw("rig disconnect failed", "err", err)
		}
	}
}
