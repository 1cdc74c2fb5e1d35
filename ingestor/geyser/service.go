package geyser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
	natsx "github.com/rexbrahh/raydium-swaps/sinks/nats"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// ClientInterface captures the subset of the geyser client used by the service.
type ClientInterface interface {
	Connect() error
	Subscribe(startSlot uint64) (<-chan *pb.SubscribeUpdate, <-chan error)
	Close() error
}

// Service wires the geyser client, block processor, and publisher together.
type Service struct {
	client        ClientInterface
	processor     *Processor
	log           *zap.Logger
	metricsServer *http.Server
	metricsStopCh chan struct{}
}

// NewService constructs a service from the geyser client configuration and
// JetStream publisher configuration. When metricsAddr is non-empty the
// service exposes Prometheus metrics on that address.
func NewService(geyserCfg *Config, natsCfg natsx.Config, metricsAddr string, log *zap.Logger) (*Service, error) {
	if geyserCfg == nil {
		return nil, errors.New("geyser config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := NewClient(geyserCfg, log.Named("client"))
	if err != nil {
		return nil, fmt.Errorf("init geyser client: %w", err)
	}

	publisher, err := natsx.NewPublisher(natsCfg)
	if err != nil {
		return nil, fmt.Errorf("init nats publisher: %w", err)
	}

	registry := ray.DefaultRegistry()
	if geyserCfg.RegistryOverrides != "" {
		if err := registry.LoadOverrides(geyserCfg.RegistryOverrides); err != nil {
			return nil, fmt.Errorf("load registry overrides: %w", err)
		}
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promReg.MustRegister(collectors.NewGoCollector())

	return &Service{
		client:        client,
		processor:     NewProcessor(publisher, registry, promReg, log.Named("processor")),
		log:           log,
		metricsServer: buildMetricsServer(metricsAddr, promReg),
		metricsStopCh: make(chan struct{}),
	}, nil
}

// Run connects to geyser, processes updates, and blocks until the context is
// cancelled or an unrecoverable error occurs.
func (s *Service) Run(ctx context.Context, startSlot uint64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("connect geyser: %w", err)
	}
	defer s.client.Close()

	updates, errs := s.client.Subscribe(startSlot)

	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Warn("metrics server error", zap.Error(err))
			}
			close(s.metricsStopCh)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			s.shutdownMetrics()
			return ctx.Err()
		case err := <-errs:
			if err != nil {
				s.shutdownMetrics()
				return err
			}
		case update, ok := <-updates:
			if !ok {
				s.shutdownMetrics()
				return nil
			}
			if err := s.processor.HandleUpdate(ctx, update); err != nil {
				s.shutdownMetrics()
				return err
			}
		}
	}
}

func (s *Service) shutdownMetrics() {
	if s.metricsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.metricsServer.Shutdown(ctx)
	<-s.metricsStopCh
}

func buildMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	if addr == "" {
		return nil
	}
	return &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
