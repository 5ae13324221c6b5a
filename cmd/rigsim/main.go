// Command rigsim serves the rig simulator over TCP so the host service can
// be pointed at it with transport.kind=tcp.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"space_maquette/internal/config"
	"space_maquette/internal/logger"
	"space_maquette/internal/simulator"
)

func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	addr := flag.String("addr", cfg.Simulator.Addr, "listen address")
	tick := flag.Duration("tick", cfg.Simulator.Tick, "motion update interval")
	flag.Parse()

	log := logger.Get(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.New(simulator.WithLogger(log.Component("simulator")))
	go sim.Run(ctx, *tick)

	srv := simulator.NewServer(sim, log.Component("simulator_server"))
	if err := srv.ListenAndServe(ctx, *addr); err != nil {
		log.Fatalw("simulator server stopped", "err", err)
	}
	log.Infow("simulator stopped")
}
