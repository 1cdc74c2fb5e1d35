package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rexbrahh/raydium-swaps/bridge"
)

func main() {
	logger := log.New(os.Stdout, "bridge ", log.LstdFlags|log.Lshortfile)

	cfg, err := bridge.FromEnv()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	svc, err := bridge.New(cfg)
	if err != nil {
		logger.Fatalf("init bridge: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("shutdown signal received")
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("bridge run failed: %v", err)
	}
}
