package raydium

// LimitSide names which side of a swap the user-declared slippage bound
// constrains.
type LimitSide string

const (
	// LimitMintIn caps how much of the input token may be spent
	// (exact-output swaps).
	LimitMintIn LimitSide = "mint_in"
	// LimitMintOut floors how much of the output token must be received
	// (exact-input swaps).
	LimitMintOut LimitSide = "mint_out"
)

// VaultPositions maps an account-list size to the positions of the pool's
// input and output token vaults within an instruction's account list.
// Longer account lists belong to newer program layouts and shift the vaults.
type VaultPositions struct {
	MinAccounts int
	In          int
	Out         int
}

// Family groups layout rules that share an account layout. Vaults must be
// ordered by ascending MinAccounts; the largest entry satisfied by an
// instruction's account count applies.
type Family struct {
	Name   string
	Vaults []VaultPositions
}

// VaultIndices resolves the pool vault positions for the given instruction
// account list and returns the referenced account-list indices. Fails with
// ErrInsufficientAccounts when the list is shorter than every entry in the
// family's table.
func (f *Family) VaultIndices(accounts []uint32) (in, out uint32, err error) {
	var match *VaultPositions
	for i := range f.Vaults {
		if len(accounts) >= f.Vaults[i].MinAccounts {
			match = &f.Vaults[i]
		}
	}
	if match == nil {
		return 0, 0, ErrInsufficientAccounts
	}
	return accounts[match.In], accounts[match.Out], nil
}

// LayoutRule describes one wire layout of a swap payload: where the two
// 8-byte little-endian quantities live, which one is the declared amount
// versus the slippage bound, and whether a trailing direction flag can
// invert those roles. Rules are data, not control flow; a new program
// version is a new table entry.
type LayoutRule struct {
	Discriminator byte
	// MinLen is the smallest payload this rule can decode. Several rules
	// may share a discriminator; the longest satisfied rule wins.
	MinLen int
	// AmountOffset locates the declared swap quantity, LimitOffset the
	// user's slippage bound.
	AmountOffset int
	LimitOffset  int
	LimitSide    LimitSide
	// FlagOffset points at a one-byte direction flag, or -1 when the
	// layout has none. A zero flag swaps the amount/limit roles and
	// flips the limit side.
	FlagOffset int
	Family     *Family
}

// The exact-input and exact-output instructions of the original AMM share
// one account layout: seventeen accounts in the oldest revision, eighteen
// once the user wallet was appended, moving the vaults from (4,5) to (5,6).
var familyAmm = &Family{
	Name: "amm",
	Vaults: []VaultPositions{
		{MinAccounts: 17, In: 4, Out: 5},
		{MinAccounts: 18, In: 5, Out: 6},
	},
}

// The concentrated-liquidity style programs carry wider payloads and larger
// account lists; their vault positions shift again at thirteen accounts.
var familyConcentrated = &Family{
	Name: "concentrated",
	Vaults: []VaultPositions{
		{MinAccounts: 11, In: 5, Out: 6},
		{MinAccounts: 13, In: 7, Out: 8},
	},
}

const (
	// Single-byte discriminators of the original AMM instruction set.
	discSwapBaseIn  = 9
	discSwapBaseOut = 11

	// Leading bytes of the 8-byte anchor discriminators used by the
	// concentrated-liquidity era programs. Only the first byte is needed
	// to tell the swap variants apart.
	discConcentratedSwap   = 0xf8 // swap
	discConcentratedSwapV2 = 0x2b // swap_v2
	discCpSwapBaseInput    = 0x8f // swap_base_input
	discCpSwapBaseOutput   = 0x37 // swap_base_output
)

// concentratedRules builds the shared rule set for an anchor-era swap
// discriminator: quantities at offsets 8 and 16 past the 8-byte method id,
// a third quantity (the price bound) at 24 that is never read, and a
// trailing direction flag at 40 in the full-width revision. A payload too
// short for the flag decodes under the flagless sub-rule.
func concentratedRules(disc byte) []LayoutRule {
	return []LayoutRule{
		{
			Discriminator: disc,
			MinLen:        24,
			AmountOffset:  8,
			LimitOffset:   16,
			LimitSide:     LimitMintOut,
			FlagOffset:    -1,
			Family:        familyConcentrated,
		},
		{
			Discriminator: disc,
			MinLen:        41,
			AmountOffset:  8,
			LimitOffset:   16,
			LimitSide:     LimitMintOut,
			FlagOffset:    40,
			Family:        familyConcentrated,
		},
	}
}

var ammRules = []LayoutRule{
	{
		Discriminator: discSwapBaseIn,
		MinLen:        17,
		AmountOffset:  1,
		LimitOffset:   9,
		LimitSide:     LimitMintOut,
		FlagOffset:    -1,
		Family:        familyAmm,
	},
	{
		// Exact-output swaps store the bound first and the declared
		// quantity second, the reverse of swap_base_in.
		Discriminator: discSwapBaseOut,
		MinLen:        17,
		AmountOffset:  9,
		LimitOffset:   1,
		LimitSide:     LimitMintIn,
		FlagOffset:    -1,
		Family:        familyAmm,
	},
}

var cpRules = []LayoutRule{
	{
		Discriminator: discCpSwapBaseInput,
		MinLen:        24,
		AmountOffset:  8,
		LimitOffset:   16,
		LimitSide:     LimitMintOut,
		FlagOffset:    -1,
		Family:        familyConcentrated,
	},
	{
		Discriminator: discCpSwapBaseOutput,
		MinLen:        24,
		AmountOffset:  16,
		LimitOffset:   8,
		LimitSide:     LimitMintIn,
		FlagOffset:    -1,
		Family:        familyConcentrated,
	},
}
