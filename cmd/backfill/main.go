package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rexbrahh/raydium-swaps/backfill/orchestrator"
	"github.com/rexbrahh/raydium-swaps/backfill/rpc"
	natsx "github.com/rexbrahh/raydium-swaps/sinks/nats"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	orchCfg, err := orchestrator.FromEnv()
	if err != nil {
		zl.Fatal("load backfill config", zap.Error(err))
	}

	rpcCfg, err := rpc.FromEnv()
	if err != nil {
		zl.Fatal("load rpc config", zap.Error(err))
	}

	fetcher, err := rpc.NewClient(rpcCfg)
	if err != nil {
		zl.Fatal("init rpc client", zap.Error(err))
	}

	natsCfg, err := natsx.FromEnv()
	if err != nil {
		zl.Fatal("load nats config", zap.Error(err))
	}

	publisher, err := natsx.NewPublisher(natsCfg)
	if err != nil {
		zl.Fatal("init nats publisher", zap.Error(err))
	}
	defer publisher.Close()

	orch, err := orchestrator.New(orchCfg, fetcher, publisher, nil, zl)
	if err != nil {
		zl.Fatal("init orchestrator", zap.Error(err))
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

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("backfill failed", zap.Error(err))
	}

	totals := orch.Totals()
	zl.Info("backfill complete",
		zap.Uint64("swaps", totals.SwapsProduced),
		zap.Uint64("instructions", totals.InstructionsExamined),
		zap.Uint64("last_slot", totals.Slot))
}
