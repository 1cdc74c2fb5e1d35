package raydium

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestFixture represents the structure of our test fixture JSON files
type TestFixture struct {
	Description     string `json:"description"`
	Signature       string `json:"signature"`
	Slot            uint64 `json:"slot"`
	ProgramID       string `json:"program_id"`
	InstructionData string `json:"instruction_data"`
	MintIn          string `json:"mint_in"`
	MintOut         string `json:"mint_out"`
	PreVaultIn      uint64 `json:"pre_vault_in"`
	PostVaultIn     uint64 `json:"post_vault_in"`
	PreVaultOut     uint64 `json:"pre_vault_out"`
	PostVaultOut    uint64 `json:"post_vault_out"`

	ExpectedAmountIn    uint64 `json:"expected_amount_in"`
	ExpectedAmountOut   uint64 `json:"expected_amount_out"`
	ExpectedLimitAmount uint64 `json:"expected_limit_amount"`
	ExpectedLimitSide   string `json:"expected_limit_side"`
	ExpectedMintIn      string `json:"expected_mint_in"`
	ExpectedMintOut     string `json:"expected_mint_out"`
	ExpectedPostIn      uint64 `json:"expected_post_in"`
	ExpectedPostOut     uint64 `json:"expected_post_out"`
}

func loadTestFixture(t *testing.T, filename string) *TestFixture {
	t.Helper()

	path := filepath.Join("testdata", filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", filename, err)
	}

	var fixture TestFixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		t.Fatalf("failed to unmarshal fixture %s: %v", filename, err)
	}

	return &fixture
}

func fixtureContext(fixture *TestFixture) *SwapContext {
	return &SwapContext{
		In:            VaultState{Mint: fixture.MintIn, Pre: fixture.PreVaultIn, Post: fixture.PostVaultIn},
		Out:           VaultState{Mint: fixture.MintOut, Pre: fixture.PreVaultOut, Post: fixture.PostVaultOut},
		HasBalances:   true,
		Slot:          fixture.Slot,
		Signature:     fixture.Signature,
		WasSuccessful: true,
	}
}

func TestParseSwapEventFixtures(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
	}{
		{
			name:    "swap_base_in with reversed roles",
			fixture: "swap_base_in_reversed.json",
		},
		{
			name:    "swap_base_out declared roles kept",
			fixture: "swap_base_out.json",
		},
		{
			name:    "clmm swap_v2 full payload",
			fixture: "clmm_swap_v2.json",
		},
	}

	registry := DefaultRegistry()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := loadTestFixture(t, tt.fixture)

			payload, err := hex.DecodeString(fixture.InstructionData)
			if err != nil {
				t.Fatalf("failed to decode instruction data: %v", err)
			}

			rule, ok, err := registry.Lookup(fixture.ProgramID, payload)
			if !ok {
				t.Fatalf("program %s not registered", fixture.ProgramID)
			}
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}

			instr, err := ParseSwapInstruction(rule, payload)
			if err != nil {
				t.Fatalf("ParseSwapInstruction() error = %v", err)
			}

			swap, err := ParseSwapEvent(instr, fixtureContext(fixture))
			if err != nil {
				t.Fatalf("ParseSwapEvent() error = %v", err)
			}

			if swap.AmountIn != fixture.ExpectedAmountIn {
				t.Errorf("AmountIn = %v, want %v", swap.AmountIn, fixture.ExpectedAmountIn)
			}
			if swap.AmountOut != fixture.ExpectedAmountOut {
				t.Errorf("AmountOut = %v, want %v", swap.AmountOut, fixture.ExpectedAmountOut)
			}
			if swap.LimitAmount != fixture.ExpectedLimitAmount {
				t.Errorf("LimitAmount = %v, want %v", swap.LimitAmount, fixture.ExpectedLimitAmount)
			}
			if string(swap.LimitSide) != fixture.ExpectedLimitSide {
				t.Errorf("LimitSide = %v, want %v", swap.LimitSide, fixture.ExpectedLimitSide)
			}
			if swap.MintIn != fixture.ExpectedMintIn {
				t.Errorf("MintIn = %v, want %v", swap.MintIn, fixture.ExpectedMintIn)
			}
			if swap.MintOut != fixture.ExpectedMintOut {
				t.Errorf("MintOut = %v, want %v", swap.MintOut, fixture.ExpectedMintOut)
			}
			if swap.PostPoolBalanceMintIn != fixture.ExpectedPostIn {
				t.Errorf("PostPoolBalanceMintIn = %v, want %v", swap.PostPoolBalanceMintIn, fixture.ExpectedPostIn)
			}
			if swap.PostPoolBalanceMintOut != fixture.ExpectedPostOut {
				t.Errorf("PostPoolBalanceMintOut = %v, want %v", swap.PostPoolBalanceMintOut, fixture.ExpectedPostOut)
			}
			if swap.Slot != fixture.Slot {
				t.Errorf("Slot = %v, want %v", swap.Slot, fixture.Slot)
			}
			if swap.Signature != fixture.Signature {
				t.Errorf("Signature = %v, want %v", swap.Signature, fixture.Signature)
			}
		})
	}
}

func TestDirectionNormalization(t *testing.T) {
	instr := &SwapInstruction{Amount: 10, Limit: 9, LimitSide: LimitMintOut}

	tests := []struct {
		name          string
		preIn, postIn uint64
		preOut        uint64
		postOut       uint64
		wantIn        uint64
		wantOut       uint64
		wantReversed  bool
	}{
		{
			name:  "in gains out loses keeps roles",
			preIn: 100, postIn: 150, preOut: 200, postOut: 170,
			wantIn: 50, wantOut: 30,
		},
		{
			name:  "in loses out gains reverses roles",
			preIn: 150, postIn: 100, preOut: 170, postOut: 200,
			wantIn: 30, wantOut: 50, wantReversed: true,
		},
		{
			name:  "both negative keeps roles",
			preIn: 100, postIn: 90, preOut: 100, postOut: 80,
			wantIn: 10, wantOut: 20,
		},
		{
			name:  "both positive keeps roles",
			preIn: 90, postIn: 100, preOut: 80, postOut: 100,
			wantIn: 10, wantOut: 20,
		},
		{
			name:  "zero in delta keeps roles",
			preIn: 100, postIn: 100, preOut: 170, postOut: 200,
			wantIn: 0, wantOut: 30,
		},
		{
			name:  "in loses zero out delta keeps roles",
			preIn: 150, postIn: 100, preOut: 200, postOut: 200,
			wantIn: 50, wantOut: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &SwapContext{
				In:          VaultState{Mint: "mintA", Pre: tt.preIn, Post: tt.postIn},
				Out:         VaultState{Mint: "mintB", Pre: tt.preOut, Post: tt.postOut},
				HasBalances: true,
				Signature:   "sig",
			}

			swap, err := ParseSwapEvent(instr, ctx)
			if err != nil {
				t.Fatalf("ParseSwapEvent() error = %v", err)
			}

			if swap.AmountIn != tt.wantIn {
				t.Errorf("AmountIn = %v, want %v", swap.AmountIn, tt.wantIn)
			}
			if swap.AmountOut != tt.wantOut {
				t.Errorf("AmountOut = %v, want %v", swap.AmountOut, tt.wantOut)
			}

			wantMintIn := "mintA"
			if tt.wantReversed {
				wantMintIn = "mintB"
			}
			if swap.MintIn != wantMintIn {
				t.Errorf("MintIn = %v, want %v", swap.MintIn, wantMintIn)
			}
		})
	}
}

func TestParseSwapEventFailures(t *testing.T) {
	instr := &SwapInstruction{Amount: 10, Limit: 9, LimitSide: LimitMintOut}

	t.Run("no balance snapshots", func(t *testing.T) {
		ctx := &SwapContext{Signature: "sig"}
		if _, err := ParseSwapEvent(instr, ctx); !errors.Is(err, ErrNoBalances) {
			t.Errorf("error = %v, want ErrNoBalances", err)
		}
	})

	t.Run("missing signature", func(t *testing.T) {
		ctx := &SwapContext{HasBalances: true}
		if _, err := ParseSwapEvent(instr, ctx); !errors.Is(err, ErrNoSignature) {
			t.Errorf("error = %v, want ErrNoSignature", err)
		}
	})
}

func TestParseSwapInstructionFlag(t *testing.T) {
	payload := func(flag byte) []byte {
		data, _ := hex.DecodeString("2b0000000000000040420f0000000000b82e0f000000000000000000000000000000000000000000")
		return append(data, flag)
	}

	registry := DefaultRegistry()

	t.Run("flag set keeps exact-input roles", func(t *testing.T) {
		rule, _, err := registry.Lookup(ProgramIDCLMM, payload(1))
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		instr, err := ParseSwapInstruction(rule, payload(1))
		if err != nil {
			t.Fatalf("ParseSwapInstruction() error = %v", err)
		}
		if instr.Amount != 1000000 || instr.Limit != 995000 {
			t.Errorf("amount/limit = %v/%v, want 1000000/995000", instr.Amount, instr.Limit)
		}
		if instr.LimitSide != LimitMintOut {
			t.Errorf("LimitSide = %v, want %v", instr.LimitSide, LimitMintOut)
		}
	})

	t.Run("zero flag inverts roles", func(t *testing.T) {
		rule, _, err := registry.Lookup(ProgramIDCLMM, payload(0))
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		instr, err := ParseSwapInstruction(rule, payload(0))
		if err != nil {
			t.Fatalf("ParseSwapInstruction() error = %v", err)
		}
		if instr.Amount != 995000 || instr.Limit != 1000000 {
			t.Errorf("amount/limit = %v/%v, want 995000/1000000", instr.Amount, instr.Limit)
		}
		if instr.LimitSide != LimitMintIn {
			t.Errorf("LimitSide = %v, want %v", instr.LimitSide, LimitMintIn)
		}
	})
}

func TestRegistryLookup(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("unknown program", func(t *testing.T) {
		_, ok, _ := registry.Lookup("11111111111111111111111111111111", []byte{9, 0})
		if ok {
			t.Error("expected ok=false for unregistered program")
		}
	})

	t.Run("unknown discriminator", func(t *testing.T) {
		_, ok, err := registry.Lookup(ProgramIDV4, []byte{42, 0, 0, 0})
		if !ok {
			t.Fatal("expected ok=true for registered program")
		}
		if !errors.Is(err, ErrUnknownDiscriminator) {
			t.Errorf("error = %v, want ErrUnknownDiscriminator", err)
		}
	})

	t.Run("payload below rule minimum", func(t *testing.T) {
		_, _, err := registry.Lookup(ProgramIDV4, []byte{9, 1, 2, 3})
		if !errors.Is(err, ErrPayloadTooShort) {
			t.Errorf("error = %v, want ErrPayloadTooShort", err)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		_, _, err := registry.Lookup(ProgramIDV4, nil)
		if !errors.Is(err, ErrPayloadTooShort) {
			t.Errorf("error = %v, want ErrPayloadTooShort", err)
		}
	})

	t.Run("short wide payload selects flagless sub-rule", func(t *testing.T) {
		data, _ := hex.DecodeString("2b0000000000000040420f0000000000b82e0f0000000000")
		rule, _, err := registry.Lookup(ProgramIDCLMM, data)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if rule.MinLen != 24 {
			t.Errorf("selected rule MinLen = %v, want 24", rule.MinLen)
		}
		if rule.FlagOffset != -1 {
			t.Errorf("selected rule FlagOffset = %v, want -1", rule.FlagOffset)
		}
	})

	t.Run("full wide payload selects flagged sub-rule", func(t *testing.T) {
		data, _ := hex.DecodeString("2b0000000000000040420f0000000000b82e0f00000000000000000000000000000000000000000001")
		rule, _, err := registry.Lookup(ProgramIDCLMM, data)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if rule.MinLen != 41 {
			t.Errorf("selected rule MinLen = %v, want 41", rule.MinLen)
		}
	})
}

func TestVaultIndices(t *testing.T) {
	accounts := func(n int) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = uint32(i)
		}
		return out
	}

	tests := []struct {
		name    string
		family  *Family
		count   int
		wantIn  uint32
		wantOut uint32
		wantErr bool
	}{
		{name: "amm seventeen accounts", family: familyAmm, count: 17, wantIn: 4, wantOut: 5},
		{name: "amm eighteen accounts", family: familyAmm, count: 18, wantIn: 5, wantOut: 6},
		{name: "amm too few accounts", family: familyAmm, count: 16, wantErr: true},
		{name: "concentrated eleven accounts", family: familyConcentrated, count: 11, wantIn: 5, wantOut: 6},
		{name: "concentrated thirteen accounts", family: familyConcentrated, count: 13, wantIn: 7, wantOut: 8},
		{name: "concentrated too few accounts", family: familyConcentrated, count: 10, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out, err := tt.family.VaultIndices(accounts(tt.count))
			if tt.wantErr {
				if !errors.Is(err, ErrInsufficientAccounts) {
					t.Errorf("error = %v, want ErrInsufficientAccounts", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("VaultIndices() error = %v", err)
			}
			if in != tt.wantIn || out != tt.wantOut {
				t.Errorf("VaultIndices() = (%v, %v), want (%v, %v)", in, out, tt.wantIn, tt.wantOut)
			}
		})
	}
}

func BenchmarkParseSwapInstruction(b *testing.B) {
	payload, _ := hex.DecodeString("0990d003000000000080a9030000000000")
	registry := DefaultRegistry()
	rule, _, _ := registry.Lookup(ProgramIDV4, payload)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseSwapInstruction(rule, payload)
	}
}

func BenchmarkParseSwapEvent(b *testing.B) {
	instr := &SwapInstruction{Amount: 250000, Limit: 240000, LimitSide: LimitMintOut}
	ctx := &SwapContext{
		In:          VaultState{Mint: "So11111111111111111111111111111111111111112", Pre: 15234567890123, Post: 15235567890123},
		Out:         VaultState{Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Pre: 98765432109876, Post: 98765372109876},
		HasBalances: true,
		Slot:        245123456,
		Signature:   "5wJwKxPzF3QnhU8vN2K9L7tYmF4xB1cA9qR8pD6sE3mH2jT4vC7nW1kS9pX5rZ8y",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParseSwapEvent(instr, ctx)
	}
}
