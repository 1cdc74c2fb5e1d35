package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
	"github.com/rexbrahh/raydium-swaps/observability"
	natsx "github.com/rexbrahh/raydium-swaps/sinks/nats"
)

// SubjectMapper maps canonical subjects to downstream equivalents.
// Returning ok=false drops the message while still acknowledging the
// source.
type SubjectMapper func(subject string) (mapped string, ok bool)

// Option customises Service behaviour.
type Option func(*Service)

const (
	defaultFetchBatch     = 64
	defaultFetchWait      = 100 * time.Millisecond
	defaultPublishTimeout = 2 * time.Second

	swapSubjectSuffix = ".swap"
)

// Service replicates the swap stream into a downstream archive stream.
// Subjects carrying swap records are decoded before forwarding, so
// malformed payloads never reach the archive, and a record arriving
// without a dedup header gets one derived from its position so the
// archive stream deduplicates the same way the source does.
type Service struct {
	cfg          Config
	mapper       SubjectMapper
	customMapper bool

	fetchBatch     int
	fetchWait      time.Duration
	publishTimeout time.Duration

	metrics     *relayMetrics
	gatherer    prometheus.Gatherer
	metricsAddr string
}

// New creates a Service with validated configuration.
func New(cfg Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:            cfg,
		fetchBatch:     defaultFetchBatch,
		fetchWait:      defaultFetchWait,
		publishTimeout: defaultPublishTimeout,
		metricsAddr:    cfg.MetricsAddr,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}

	if !svc.customMapper && len(cfg.SubjectMappings) > 0 {
		m, err := newSubjectMap(cfg.SubjectMappings)
		if err != nil {
			return nil, err
		}
		svc.mapper = m.resolve
	}
	if svc.mapper == nil {
		svc.mapper = identityMapper
	}

	if svc.metrics == nil {
		registry := prometheus.NewRegistry()
		svc.metrics = newRelayMetrics(registry)
		svc.gatherer = registry
	}

	if svc.fetchBatch <= 0 {
		return nil, fmt.Errorf("fetch batch must be positive")
	}
	if svc.fetchWait <= 0 {
		svc.fetchWait = defaultFetchWait
	}

	return svc, nil
}

// WithSubjectMapper overrides the mapping built from configuration.
func WithSubjectMapper(mapper SubjectMapper) Option {
	return func(s *Service) {
		if mapper != nil {
			s.mapper = mapper
			s.customMapper = true
		}
	}
}

// WithMetricsRegisterer registers the relay metrics on a caller-owned
// registry. When omitted the service uses an isolated registry so tests
// and multi-tenant binaries never collide on registration.
func WithMetricsRegisterer(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(s *Service) {
		s.metrics = newRelayMetrics(reg)
		s.gatherer = gatherer
	}
}

// WithMetricsServer configures an HTTP endpoint (e.g. ":9090") exposing
// the relay metrics.
func WithMetricsServer(addr string) Option {
	return func(s *Service) {
		s.metricsAddr = addr
	}
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Run replicates until the context is cancelled. One pull consumer runs
// per source-stream subject; a consumer failure tears the whole relay
// down so a restart resumes from the durables.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	source, err := openStream(s.cfg.SourceURL)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer source.close()

	target, err := openStream(s.cfg.TargetURL)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	defer target.close()

	info, err := source.js.StreamInfo(s.cfg.SourceStream)
	if err != nil {
		return fmt.Errorf("describe source stream %q: %w", s.cfg.SourceStream, err)
	}
	if len(info.Config.Subjects) == 0 {
		return fmt.Errorf("source stream %q exposes no subjects", s.cfg.SourceStream)
	}

	g, runCtx := errgroup.WithContext(ctx)
	s.serveMetrics(runCtx, g)

	for _, subject := range info.Config.Subjects {
		sub, err := source.js.PullSubscribe(subject, durableName(subject),
			nats.BindStream(s.cfg.SourceStream), nats.ManualAck())
		if err != nil {
			return fmt.Errorf("pull subscribe %q: %w", subject, err)
		}

		w := &relay{svc: s, target: target.js, sub: sub}
		g.Go(func() error {
			defer w.sub.Unsubscribe()
			return w.run(runCtx)
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return err
	}
	return nil
}

func (s *Service) serveMetrics(ctx context.Context, g *errgroup.Group) {
	if s.metricsAddr == "" || s.gatherer == nil {
		return
	}
	srv := &http.Server{
		Addr:              s.metricsAddr,
		Handler:           promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		err := srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	})
}

// relay is one subject's replication worker.
type relay struct {
	svc    *Service
	target nats.JetStreamContext
	sub    *nats.Subscription
}

func (w *relay) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := w.sub.Fetch(w.svc.fetchBatch, nats.MaxWait(w.svc.fetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		for _, msg := range msgs {
			if err := w.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (w *relay) handle(ctx context.Context, msg *nats.Msg) error {
	m := w.svc.metrics
	if md, err := msg.Metadata(); err == nil {
		lag := time.Since(md.Timestamp).Seconds()
		if lag < 0 {
			lag = 0
		}
		m.sourceLag.WithLabelValues(msg.Subject).Set(lag)
	}

	mapped, ok := w.svc.mapper(msg.Subject)
	if !ok {
		m.dropped.WithLabelValues(msg.Subject).Inc()
		return msg.Ack()
	}

	out := &nats.Msg{Subject: mapped, Data: msg.Data, Header: cloneHeader(msg.Header)}

	var slot uint64
	isSwap := strings.HasSuffix(msg.Subject, swapSubjectSuffix)
	if isSwap {
		var swap ray.Swap
		if err := json.Unmarshal(msg.Data, &swap); err != nil || swap.Signature == "" {
			m.invalid.WithLabelValues(msg.Subject).Inc()
			return msg.Ack()
		}
		slot = swap.Slot
		if out.Header == nil {
			out.Header = nats.Header{}
		}
		// Records republished by tooling can lose their dedup header;
		// rebuilding it from the swap's position keeps archive-side
		// dedup aligned with the source stream.
		if out.Header.Get(nats.MsgIdHdr) == "" {
			out.Header.Set(nats.MsgIdHdr, natsx.SwapMsgID(&swap))
		}
	}

	pubCtx, cancel := context.WithTimeout(ctx, w.svc.publishTimeout)
	ack, err := w.target.PublishMsg(out, nats.Context(pubCtx), nats.ExpectStream(w.svc.cfg.TargetStream))
	cancel()
	if err != nil {
		m.publishErr.WithLabelValues(mapped).Inc()
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return fmt.Errorf("publish to %s: %w", mapped, err)
	}
	if ack != nil && ack.Stream != "" && ack.Stream != w.svc.cfg.TargetStream {
		return fmt.Errorf("publish to %s: unexpected ack stream %q", mapped, ack.Stream)
	}

	if err := msg.Ack(); err != nil {
		return fmt.Errorf("ack source message: %w", err)
	}
	m.forwarded.WithLabelValues(mapped).Inc()
	if isSwap {
		m.lastSlot.Set(float64(slot))
	}
	return nil
}

// conn bundles a NATS connection with its JetStream context.
type conn struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

func openStream(url string) (*conn, error) {
	nc, err := nats.Connect(url, nats.Name("raydium-swaps-bridge"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &conn{nc: nc, js: js}, nil
}

func (c *conn) close() {
	if c != nil && c.nc != nil {
		c.nc.Close()
	}
}

func identityMapper(subject string) (string, bool) {
	return subject, true
}

func durableName(subject string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', ':':
			return '_'
		default:
			return r
		}
	}, subject)
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		cleaned = "all"
	}
	if len(cleaned) > 64 {
		cleaned = cleaned[:64]
	}
	return "bridge_" + cleaned
}

func cloneHeader(h nats.Header) nats.Header {
	if len(h) == 0 {
		return nil
	}
	dup := nats.Header{}
	for k, values := range h {
		copied := make([]string, len(values))
		copy(copied, values)
		dup[k] = copied
	}
	return dup
}

type relayMetrics struct {
	forwarded  *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	invalid    *prometheus.CounterVec
	publishErr *prometheus.CounterVec
	sourceLag  *prometheus.GaugeVec
	lastSlot   prometheus.Gauge
}

func newRelayMetrics(reg prometheus.Registerer) *relayMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dex",
			Subsystem: "bridge",
			Name:      name,
			Help:      help,
		}, []string{"subject"})
	}

	return &relayMetrics{
		forwarded:  counter(observability.MetricBridgeForwardTotal, "Messages mirrored to the downstream stream."),
		dropped:    counter(observability.MetricBridgeDroppedTotal, "Messages dropped by subject mapping rules."),
		invalid:    counter(observability.MetricBridgeInvalidTotal, "Swap payloads that failed typed decode and were discarded."),
		publishErr: counter(observability.MetricBridgePublishErrors, "Publish failures toward the downstream stream."),
		sourceLag: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dex",
			Subsystem: "bridge",
			Name:      observability.MetricBridgeSourceLagSecond,
			Help:      "Age in seconds of the source message at forwarding time.",
		}, []string{"subject"}),
		lastSlot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dex",
			Subsystem: "bridge",
			Name:      observability.MetricBridgeLastSlot,
			Help:      "Slot of the most recently forwarded swap record.",
		}),
	}
}
