package natsx

import (
	"context"
	"encoding/json"
	"fmt"

	nats "github.com/nats-io/nats.go"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
)

// Publisher emits swap records to a JetStream stream as JSON. Messages carry
// a deduplication id derived from the record's position, so replays after a
// reconnect collapse server-side.
type Publisher struct {
	cfg  Config
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher validates configuration, connects, and binds JetStream.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := nats.Connect(cfg.URL, nats.Name("raydium-swaps-ingestor"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind jetstream: %w", err)
	}
	return &Publisher{cfg: cfg, conn: conn, js: js}, nil
}

// PublishSwap publishes one swap record to "<root>.swap".
func (p *Publisher) PublishSwap(ctx context.Context, swap *ray.Swap) error {
	if swap == nil {
		return nil
	}

	payload, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("marshal swap: %w", err)
	}

	msg := nats.NewMsg(p.cfg.SubjectRoot + ".swap")
	msg.Header.Set("Nats-Msg-Id", SwapMsgID(swap))
	msg.Data = payload

	pubCtx, cancel := p.WithTimeout(ctx)
	defer cancel()

	if _, err := p.js.PublishMsg(msg, nats.Context(pubCtx), nats.ExpectStream(p.cfg.Stream)); err != nil {
		return fmt.Errorf("publish swap: %w", err)
	}
	return nil
}

// SwapMsgID builds the deduplication id for a swap record. IndexInTx
// restarts at 0 in every inner-instruction group, so the group ordinal
// (-1 at top level) is part of the tuple; without it two swaps routed
// through different inner groups of one transaction would collapse into
// a single stream entry.
func SwapMsgID(swap *ray.Swap) string {
	return fmt.Sprintf("%d:%s:%d:%d:%d",
		swap.Slot, swap.Signature, swap.IndexInSlot, swap.InnerGroup, swap.IndexInTx)
}

// WithTimeout returns a context with the publisher's timeout applied.
func (p *Publisher) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := p.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return context.WithTimeout(parent, timeout)
}

// Config exposes a copy of the publisher configuration.
func (p *Publisher) Config() Config {
	return p.cfg
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
