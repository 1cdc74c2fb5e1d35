package geyser

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"time"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
)

const (
	// ReplaySlotWindow defines how many slots to replay on reconnect
	ReplaySlotWindow = 64
	// ReconnectBackoff is the delay between reconnect attempts
	ReconnectBackoff = 5 * time.Second
)

// tokenAuth implements PerRPCCredentials for x-token authentication
type tokenAuth struct {
	token string
}

func (t tokenAuth) GetRequestMetadata(ctx context.Context, in ...string) (map[string]string, error) {
	return map[string]string{"x-token": t.token}, nil
}

func (tokenAuth) RequireTransportSecurity() bool {
	return true
}

// Client wraps a Yellowstone Geyser gRPC connection with automatic
// reconnection. It subscribes to confirmed blocks with full transactions;
// everything downstream runs on whole-block decode walks.
type Client struct {
	cfg    *Config
	conn   *grpc.ClientConn
	client pb.GeyserClient
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new Geyser client with the provided configuration
func NewClient(cfg *Config, log *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Connect establishes the gRPC connection to the Geyser endpoint with TLS
func (c *Client) Connect() error {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(1024 * 1024 * 1024), // block updates are large
		),
		grpc.WithPerRPCCredentials(tokenAuth{token: c.cfg.APIKey}),
	}

	conn, err := grpc.DialContext(c.ctx, c.cfg.Endpoint, opts...) //nolint:staticcheck // DialContext remains viable for gRPC 1.x
	if err != nil {
		return fmt.Errorf("failed to dial geyser: %w", err)
	}

	c.conn = conn
	c.client = pb.NewGeyserClient(conn)
	return nil
}

// Subscribe creates a subscription to the Geyser stream with the configured filters
func (c *Client) Subscribe(startSlot uint64) (<-chan *pb.SubscribeUpdate, <-chan error) {
	updateCh := make(chan *pb.SubscribeUpdate, 100)
	errCh := make(chan error, 1)

	go c.subscribeLoop(startSlot, updateCh, errCh)

	return updateCh, errCh
}

// subscribeLoop handles the subscription lifecycle with automatic reconnection
func (c *Client) subscribeLoop(startSlot uint64, updateCh chan<- *pb.SubscribeUpdate, errCh chan<- error) {
	defer close(updateCh)
	defer close(errCh)

	currentSlot := startSlot

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Replay a safety window so a reconnect never loses blocks.
		replaySlot := currentSlot
		if currentSlot > ReplaySlotWindow {
			replaySlot = currentSlot - ReplaySlotWindow
		}

		c.log.Info("starting geyser subscription",
			zap.Uint64("slot", currentSlot),
			zap.Uint64("replay_slot", replaySlot))

		req := c.buildSubscribeRequest(replaySlot)

		stream, err := c.client.Subscribe(c.ctx)
		if err != nil {
			c.log.Warn("failed to create subscription", zap.Error(err))
			errCh <- fmt.Errorf("subscribe failed: %w", err)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(ReconnectBackoff):
				continue
			}
		}

		if err := stream.Send(req); err != nil {
			c.log.Warn("failed to send subscribe request", zap.Error(err))
			errCh <- fmt.Errorf("send request failed: %w", err)

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(ReconnectBackoff):
				continue
			}
		}

		lastSlot := c.processStream(stream, updateCh, errCh)
		if lastSlot > currentSlot {
			currentSlot = lastSlot
		}

		c.log.Info("stream ended, reconnecting", zap.Uint64("slot", currentSlot))

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(ReconnectBackoff):
			// Continue to reconnect
		}
	}
}

// buildSubscribeRequest constructs a block subscription filtered to the
// configured programs. Full transactions ride along in each block update.
func (c *Client) buildSubscribeRequest(startSlot uint64) *pb.SubscribeRequest {
	includeTxs := true

	programs := make([]string, 0, len(c.cfg.ProgramFilters))
	for _, programID := range c.cfg.ProgramFilters {
		programs = append(programs, programID)
	}

	commitment := pb.CommitmentLevel_CONFIRMED

	return &pb.SubscribeRequest{
		Slots: map[string]*pb.SubscribeRequestFilterSlots{
			"client": {},
		},
		Accounts:           map[string]*pb.SubscribeRequestFilterAccounts{},
		Transactions:       map[string]*pb.SubscribeRequestFilterTransactions{},
		TransactionsStatus: map[string]*pb.SubscribeRequestFilterTransactions{},
		Entry:              map[string]*pb.SubscribeRequestFilterEntry{},
		Blocks: map[string]*pb.SubscribeRequestFilterBlocks{
			"client": {
				AccountInclude:      programs,
				IncludeTransactions: &includeTxs,
			},
		},
		BlocksMeta:        map[string]*pb.SubscribeRequestFilterBlocksMeta{},
		AccountsDataSlice: []*pb.SubscribeRequestAccountsDataSlice{},
		Commitment:        &commitment,
		FromSlot:          &startSlot,
	}
}

// processStream reads messages from the stream and forwards them to the update channel
func (c *Client) processStream(stream pb.Geyser_SubscribeClient, updateCh chan<- *pb.SubscribeUpdate, errCh chan<- error) uint64 {
	var lastSlot uint64

	for {
		select {
		case <-c.ctx.Done():
			return lastSlot
		default:
		}

		update, err := stream.Recv()
		if err == io.EOF {
			c.log.Info("stream closed by server")
			return lastSlot
		}
		if err != nil {
			c.log.Warn("stream receive error", zap.Error(err))
			errCh <- fmt.Errorf("stream recv failed: %w", err)
			return lastSlot
		}

		slot := extractSlotFromUpdate(update)
		if slot > lastSlot {
			lastSlot = slot
		}

		select {
		case updateCh <- update:
		case <-c.ctx.Done():
			return lastSlot
		}
	}
}

// extractSlotFromUpdate extracts the slot number from various update types
func extractSlotFromUpdate(update *pb.SubscribeUpdate) uint64 {
	switch u := update.UpdateOneof.(type) {
	case *pb.SubscribeUpdate_Slot:
		return u.Slot.Slot
	case *pb.SubscribeUpdate_Block:
		return u.Block.Slot
	case *pb.SubscribeUpdate_BlockMeta:
		return u.BlockMeta.Slot
	default:
		return 0
	}
}

// Close gracefully shuts down the client
func (c *Client) Close() error {
	c.cancel()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
