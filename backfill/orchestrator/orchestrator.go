package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
	"github.com/rexbrahh/raydium-swaps/ingestor/common"
	swapdecoder "github.com/rexbrahh/raydium-swaps/ingestor/decoder"
)

// ErrSlotNotFound signals a slot with no confirmed block. Skipped slots are
// routine on Solana and are not treated as failures.
var ErrSlotNotFound = errors.New("orchestrator: slot not found")

// Range is an inclusive slot interval handed to a worker.
type Range struct {
	StartSlot uint64
	EndSlot   uint64
}

// BlockFetcher retrieves the confirmed block for a slot. Implementations
// return ErrSlotNotFound for slots the cluster skipped.
type BlockFetcher interface {
	FetchBlock(ctx context.Context, slot uint64) (*common.Block, error)
}

// Publisher receives every swap decoded during the backfill.
type Publisher interface {
	PublishSwap(ctx context.Context, swap *ray.Swap) error
}

// Orchestrator replays a historical slot range through the swap decoder,
// fanning ranges out to workers and merging their walk summaries.
type Orchestrator struct {
	cfg       Config
	fetcher   BlockFetcher
	publisher Publisher
	dec       *swapdecoder.Decoder
	log       *zap.Logger

	mu     sync.Mutex
	totals swapdecoder.Summary
}

// New wires an orchestrator. A nil registry selects the built-in layouts and
// a nil logger discards output.
func New(cfg Config, fetcher BlockFetcher, publisher Publisher, registry *ray.Registry, log *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("block fetcher is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		publisher: publisher,
		dec:       swapdecoder.New(registry),
		log:       log,
		totals:    swapdecoder.Summary{FailuresByProgram: map[string]uint64{}},
	}, nil
}

// Run slices the configured slot range into batches and processes them with
// the configured concurrency. It returns the first worker error, if any.
func (o *Orchestrator) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	ranges := make(chan Range)

	grp.Go(func() error {
		defer close(ranges)
		start := o.cfg.StartSlot
		for start <= o.cfg.EndSlot {
			end := addWithOverflow(start, o.cfg.BatchSize-1)
			if end > o.cfg.EndSlot {
				end = o.cfg.EndSlot
			}
			select {
			case ranges <- Range{StartSlot: start, EndSlot: end}:
			case <-ctx.Done():
				return ctx.Err()
			}
			if end == math.MaxUint64 {
				break
			}
			start = end + 1
		}
		return nil
	})

	for i := 0; i < o.cfg.Concurrency; i++ {
		grp.Go(func() error {
			for rng := range ranges {
				if err := o.processRange(ctx, rng); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return grp.Wait()
}

// Totals reports the merged walk summary across every processed slot.
func (o *Orchestrator) Totals() swapdecoder.Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.totals
	out.FailuresByProgram = make(map[string]uint64, len(o.totals.FailuresByProgram))
	for program, n := range o.totals.FailuresByProgram {
		out.FailuresByProgram[program] = n
	}
	return out
}

func (o *Orchestrator) processRange(ctx context.Context, rng Range) error {
	o.log.Debug("processing range",
		zap.Uint64("start_slot", rng.StartSlot),
		zap.Uint64("end_slot", rng.EndSlot))

	for slot := rng.StartSlot; ; slot++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processSlot(ctx, slot); err != nil {
			return fmt.Errorf("slot %d: %w", slot, err)
		}
		if slot == rng.EndSlot {
			return nil
		}
	}
}

func (o *Orchestrator) processSlot(ctx context.Context, slot uint64) error {
	block, err := o.fetcher.FetchBlock(ctx, slot)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil
		}
		return fmt.Errorf("fetch block: %w", err)
	}

	walk := o.dec.WalkBlock(block, nil)
	for swap := range walk.Swaps() {
		if err := o.publisher.PublishSwap(ctx, swap); err != nil {
			return fmt.Errorf("publish swap: %w", err)
		}
	}
	o.merge(walk.Summary())
	return nil
}

func (o *Orchestrator) merge(summary swapdecoder.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.totals.InstructionsExamined += summary.InstructionsExamined
	o.totals.SwapsProduced += summary.SwapsProduced
	if summary.Slot > o.totals.Slot {
		o.totals.Slot = summary.Slot
	}
	for program, n := range summary.FailuresByProgram {
		o.totals.FailuresByProgram[program] += n
	}
}

func addWithOverflow(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
