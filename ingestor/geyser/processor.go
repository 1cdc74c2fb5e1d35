package geyser

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
	"github.com/rexbrahh/raydium-swaps/ingestor/common"
	swapdecoder "github.com/rexbrahh/raydium-swaps/ingestor/decoder"
	"github.com/rexbrahh/raydium-swaps/observability"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// SwapPublisher publishes normalized swap records.
type SwapPublisher interface {
	PublishSwap(ctx context.Context, swap *ray.Swap) error
}

// Processor consumes geyser block updates, walks each block through the
// decode pipeline, and publishes the resulting swap records.
type Processor struct {
	publisher SwapPublisher
	decoder   *swapdecoder.Decoder
	observer  *walkObserver
	seen      *common.SlotCache
	log       *zap.Logger
}

// Reconnects replay up to ReplaySlotWindow slots; anything older than this
// many slots behind the head can be pruned from the seen-slot cache.
const seenSlotRetention = 4 * ReplaySlotWindow

// NewProcessor initialises a Processor. A nil registry selects the built-in
// programs; a nil registerer keeps metrics on a private registry.
func NewProcessor(publisher SwapPublisher, registry *ray.Registry, reg prometheus.Registerer, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		publisher: publisher,
		decoder:   swapdecoder.New(registry),
		observer: &walkObserver{
			metrics: observability.NewWalkMetrics(reg),
			log:     log,
		},
		seen: common.NewSlotCache(),
		log:  log,
	}
}

// HandleUpdate inspects an incoming geyser update and routes block payloads
// to the decode walk. Other update kinds are ignored.
func (p *Processor) HandleUpdate(ctx context.Context, update *pb.SubscribeUpdate) error {
	if update == nil {
		return nil
	}

	if u, ok := update.GetUpdateOneof().(*pb.SubscribeUpdate_Block); ok {
		return p.handleBlock(ctx, u.Block)
	}
	return nil
}

func (p *Processor) handleBlock(ctx context.Context, raw *pb.SubscribeUpdateBlock) error {
	block := common.ConvertBlock(raw)
	if block == nil {
		return nil
	}

	if p.seen.Seen(block.Slot) {
		p.log.Debug("skipping replayed block", zap.Uint64("slot", block.Slot))
		return nil
	}

	walk := p.decoder.WalkBlock(block, p.observer)
	for swap := range walk.Swaps() {
		if err := p.publisher.PublishSwap(ctx, swap); err != nil {
			return fmt.Errorf("publish swap at slot %d: %w", swap.Slot, err)
		}
	}

	p.seen.Record(block.Slot, time.Unix(block.BlockTime, 0))
	if block.Slot > seenSlotRetention {
		p.seen.PruneBefore(block.Slot - seenSlotRetention)
	}

	summary := walk.Summary()
	p.log.Debug("block walked",
		zap.Uint64("slot", summary.Slot),
		zap.Uint64("instructions", summary.InstructionsExamined),
		zap.Uint64("swaps", summary.SwapsProduced),
		zap.Uint64("failures", summary.Failures()))
	return nil
}

// walkObserver fans walk events out to metrics and logs. Decode failures
// log at debug level; they are expected background noise on mainnet.
type walkObserver struct {
	metrics *observability.WalkMetrics
	log     *zap.Logger
}

func (o *walkObserver) OnSkip(program string) {
	o.metrics.OnSkip(program)
}

func (o *walkObserver) OnDecodeError(program string, err error) {
	o.metrics.OnDecodeError(program, err)
	o.log.Debug("instruction decode failed", zap.String("program", program), zap.Error(err))
}

func (o *walkObserver) OnSummary(summary swapdecoder.Summary) {
	o.metrics.OnSummary(summary)
}
