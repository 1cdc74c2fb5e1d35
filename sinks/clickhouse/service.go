package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
)

type swapWriter interface {
	WriteSwaps(ctx context.Context, swaps []ray.Swap) error
	Flush(ctx context.Context) error
}

// Service drains the swap stream into ClickHouse through a durable pull
// consumer. Messages are acked only after the writer accepts them, so a
// crash replays at-least-once and the dedup key upstream keeps the table
// consistent.
type Service struct {
	cfg    ServiceConfig
	conn   *nats.Conn
	sub    *nats.Subscription
	writer swapWriter
}

func NewService(ctx context.Context, cfg ServiceConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer, err := NewWithConfig(ctx, cfg.Writer)
	if err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	subject := cfg.SubjectRoot + ".>"
	sub, err := js.PullSubscribe(subject, cfg.Consumer, nats.BindStream(cfg.Stream), nats.ManualAck())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pull subscribe: %w", err)
	}

	return &Service{
		cfg:    cfg,
		conn:   conn,
		sub:    sub,
		writer: writer,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	flushTicker := time.NewTicker(s.cfg.Writer.FlushInterval)
	defer flushTicker.Stop()
	defer s.conn.Drain()
	defer s.writer.Flush(context.Background())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-flushTicker.C:
			if err := s.writer.Flush(ctx); err != nil {
				return err
			}
		default:
		}

		msgs, err := s.sub.Fetch(s.cfg.PullBatch, nats.MaxWait(s.cfg.PullTimeout))
		if errors.Is(err, nats.ErrTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		for _, msg := range msgs {
			if err := s.handleMessage(ctx, msg); err != nil {
				_ = msg.Nak()
				return err
			}
			_ = msg.Ack()
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, msg *nats.Msg) error {
	if !strings.HasSuffix(msg.Subject, ".swap") {
		// Unknown subjects still need an ack so the consumer advances.
		return nil
	}

	var swap ray.Swap
	if err := json.Unmarshal(msg.Data, &swap); err != nil {
		return fmt.Errorf("unmarshal swap: %w", err)
	}
	return s.writer.WriteSwaps(ctx, []ray.Swap{swap})
}
