package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/rexbrahh/raydium-swaps/ingestor/geyser"
	natsx "github.com/rexbrahh/raydium-swaps/sinks/nats"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	programsPath := os.Getenv("PROGRAMS_YAML_PATH")
	geyserCfg, err := geyser.LoadConfig(programsPath)
	if err != nil {
		zl.Fatal("load geyser config", zap.Error(err))
	}

	natsCfg, err := natsx.FromEnv()
	if err != nil {
		zl.Fatal("load nats config", zap.Error(err))
	}

	metricsAddr := os.Getenv("INGESTOR_METRICS_ADDR")

	svc, err := geyser.NewService(geyserCfg, natsCfg, metricsAddr, zl)
	if err != nil {
		zl.Fatal("init service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		zl.Info("shutdown signal received")
		cancel()
	}()

	startSlot := uint64(0)
	if v := os.Getenv("INGESTOR_START_SLOT"); v != "" {
		startSlot, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			zl.Fatal("invalid INGESTOR_START_SLOT", zap.String("value", v), zap.Error(err))
		}
	}

	if err := svc.Run(ctx, startSlot); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("service run failed", zap.Error(err))
	}

	zl.Info("service stopped")
}
