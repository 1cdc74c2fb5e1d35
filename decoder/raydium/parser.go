package raydium

// VaultState carries the snapshot data for one pool vault: its mint and
// its balance before and after the transaction. A vault absent from one
// snapshot contributes zero for that side.
type VaultState struct {
	Mint string
	Pre  uint64
	Post uint64
}

// SwapContext is the transaction-level context a swap instruction decodes
// against: the two vault states the layout family selected, plus the
// identifying fields copied onto the output record.
type SwapContext struct {
	In  VaultState
	Out VaultState

	// HasBalances is false when the transaction carried no token
	// balance snapshots at all, which makes reconciliation impossible.
	HasBalances bool

	Slot          uint64
	IndexInSlot   int
	IndexInTx     int
	InnerGroup    int
	Signature     string
	WasSuccessful bool
}

// signedDelta returns |post-pre| and whether the change was a decrease.
// Magnitude comparison keeps 64-bit amounts exact where int64 would not.
func signedDelta(pre, post uint64) (mag uint64, negative bool) {
	if post >= pre {
		return post - pre, false
	}
	return pre - post, true
}

// ParseSwapEvent reconciles a decoded instruction against observed vault
// deltas and assembles the output record. Declared roles are a hint: when
// the declared input vault gained funds and the declared output vault lost
// them, the roles are reversed and the record reports the corrected
// orientation. Every other sign combination keeps the declared roles and
// reports absolute deltas unchanged.
func ParseSwapEvent(instr *SwapInstruction, ctx *SwapContext) (*Swap, error) {
	if ctx.Signature == "" {
		return nil, ErrNoSignature
	}
	if !ctx.HasBalances {
		return nil, ErrNoBalances
	}

	in, out := ctx.In, ctx.Out
	deltaIn, inNeg := signedDelta(in.Pre, in.Post)
	deltaOut, outNeg := signedDelta(out.Pre, out.Post)

	amountIn, amountOut := deltaIn, deltaOut
	if inNeg && deltaIn > 0 && !outNeg && deltaOut > 0 {
		in, out = out, in
		amountIn, amountOut = deltaOut, deltaIn
	}

	return &Swap{
		Slot:                   ctx.Slot,
		IndexInSlot:            ctx.IndexInSlot,
		IndexInTx:              ctx.IndexInTx,
		InnerGroup:             ctx.InnerGroup,
		Signature:              ctx.Signature,
		WasSuccessful:          ctx.WasSuccessful,
		MintIn:                 in.Mint,
		MintOut:                out.Mint,
		AmountIn:               amountIn,
		AmountOut:              amountOut,
		LimitAmount:            instr.Limit,
		LimitSide:              instr.LimitSide,
		PostPoolBalanceMintIn:  in.Post,
		PostPoolBalanceMintOut: out.Post,
	}, nil
}
