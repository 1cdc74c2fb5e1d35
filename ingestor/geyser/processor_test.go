package geyser

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58/base58"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

type capturePublisher struct {
	swaps   []*ray.Swap
	failAll bool
}

func (c *capturePublisher) PublishSwap(_ context.Context, swap *ray.Swap) error {
	if c.failAll {
		return errors.New("publish refused")
	}
	c.swaps = append(c.swaps, swap)
	return nil
}

func generateAddress(seed byte) []byte {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = seed
	}
	return buf
}

func le64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// buildBlockUpdate assembles a block containing one V4 swap_base_in whose
// balance deltas reverse the declared direction.
func buildBlockUpdate(t *testing.T) *pb.SubscribeUpdate {
	t.Helper()

	program, err := base58.Decode(ray.ProgramIDV4)
	if err != nil {
		t.Fatalf("decode program id: %v", err)
	}

	// Nineteen keys: the program plus eighteen instruction accounts.
	accounts := make([][]byte, 19)
	accounts[0] = program
	for i := 1; i < len(accounts); i++ {
		accounts[i] = generateAddress(byte(i))
	}

	instrAccounts := make([]byte, 18)
	for i := range instrAccounts {
		instrAccounts[i] = byte(i + 1)
	}

	payload := append([]byte{9}, le64(250000)...)
	payload = append(payload, le64(240000)...)

	transaction := &pb.Transaction{
		Signatures: [][]byte{generateAddress(0x99)},
		Message: &pb.Message{
			AccountKeys: accounts,
			Instructions: []*pb.CompiledInstruction{
				{
					ProgramIdIndex: 0,
					Accounts:       instrAccounts,
					Data:           payload,
				},
			},
		},
	}

	meta := &pb.TransactionStatusMeta{
		PreTokenBalances: []*pb.TokenBalance{
			{AccountIndex: 6, Mint: "mintA", Owner: "pool", UiTokenAmount: &pb.UiTokenAmount{Amount: "1000"}},
			{AccountIndex: 7, Mint: "mintB", Owner: "pool", UiTokenAmount: &pb.UiTokenAmount{Amount: "500"}},
		},
		PostTokenBalances: []*pb.TokenBalance{
			{AccountIndex: 6, Mint: "mintA", Owner: "pool", UiTokenAmount: &pb.UiTokenAmount{Amount: "900"}},
			{AccountIndex: 7, Mint: "mintB", Owner: "pool", UiTokenAmount: &pb.UiTokenAmount{Amount: "600"}},
		},
	}

	return &pb.SubscribeUpdate{
		UpdateOneof: &pb.SubscribeUpdate_Block{
			Block: &pb.SubscribeUpdateBlock{
				Slot: 555000,
				Transactions: []*pb.SubscribeUpdateTransactionInfo{
					{
						Signature:   generateAddress(0x99),
						Transaction: transaction,
						Meta:        meta,
						Index:       0,
					},
				},
			},
		},
	}
}

func TestProcessorHandlesBlockUpdate(t *testing.T) {
	pub := &capturePublisher{}
	proc := NewProcessor(pub, nil, nil, nil)

	if err := proc.HandleUpdate(context.Background(), buildBlockUpdate(t)); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}

	if len(pub.swaps) != 1 {
		t.Fatalf("published %d swaps, want 1", len(pub.swaps))
	}

	swap := pub.swaps[0]
	if swap.Slot != 555000 {
		t.Errorf("Slot = %d, want 555000", swap.Slot)
	}
	if swap.AmountIn != 100 || swap.AmountOut != 100 {
		t.Errorf("amounts = %d/%d, want 100/100", swap.AmountIn, swap.AmountOut)
	}
	if swap.MintIn != "mintB" || swap.MintOut != "mintA" {
		t.Errorf("mints = %s/%s, want mintB/mintA (reversed)", swap.MintIn, swap.MintOut)
	}
	if want := base58.Encode(generateAddress(0x99)); swap.Signature != want {
		t.Errorf("Signature = %q, want %q", swap.Signature, want)
	}
}

func TestProcessorSkipsReplayedBlocks(t *testing.T) {
	pub := &capturePublisher{}
	proc := NewProcessor(pub, nil, nil, nil)

	if err := proc.HandleUpdate(context.Background(), buildBlockUpdate(t)); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	// Reconnect replay delivers the same slot again.
	if err := proc.HandleUpdate(context.Background(), buildBlockUpdate(t)); err != nil {
		t.Fatalf("HandleUpdate() replay error = %v", err)
	}

	if len(pub.swaps) != 1 {
		t.Fatalf("published %d swaps, want 1 after replay skip", len(pub.swaps))
	}
}

func TestProcessorIgnoresOtherUpdates(t *testing.T) {
	pub := &capturePublisher{}
	proc := NewProcessor(pub, nil, nil, nil)

	update := &pb.SubscribeUpdate{
		UpdateOneof: &pb.SubscribeUpdate_Slot{
			Slot: &pb.SubscribeUpdateSlot{Slot: 1},
		},
	}
	if err := proc.HandleUpdate(context.Background(), update); err != nil {
		t.Fatalf("HandleUpdate() error = %v", err)
	}
	if len(pub.swaps) != 0 {
		t.Fatalf("published %d swaps, want 0", len(pub.swaps))
	}

	if err := proc.HandleUpdate(context.Background(), nil); err != nil {
		t.Fatalf("HandleUpdate(nil) error = %v", err)
	}
}

func TestProcessorPropagatesPublishErrors(t *testing.T) {
	pub := &capturePublisher{failAll: true}
	proc := NewProcessor(pub, nil, nil, nil)

	if err := proc.HandleUpdate(context.Background(), buildBlockUpdate(t)); err == nil {
		t.Fatal("expected publish error to propagate")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		Endpoint: "grpc.example.com:443",
		APIKey:   "secret",
		ProgramFilters: map[string]string{
			"raydium_v4": ray.ProgramIDV4,
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cfg.ProgramFilters = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing program filters")
	}
}
