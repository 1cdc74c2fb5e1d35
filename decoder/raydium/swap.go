package raydium

// Swap is one normalized swap record, immutable once produced. Amounts are
// the observed vault flows, never the raw declared values; exact integers
// because token quantities routinely exceed the 53-bit float-safe range.
type Swap struct {
	Slot        uint64 `json:"slot"`
	IndexInSlot int    `json:"index_in_slot"`
	IndexInTx   int    `json:"index_in_tx"`

	// InnerGroup is the owning top-level instruction index when the swap
	// came from an inner-instruction group, -1 for top-level instructions.
	// IndexInTx restarts at 0 inside every group, so only the pair
	// (InnerGroup, IndexInTx) locates an instruction within its
	// transaction.
	InnerGroup int `json:"inner_group"`

	// Signature is the transaction's canonical identifier, its first
	// signature in base58 form.
	Signature string `json:"signature"`

	WasSuccessful bool `json:"was_successful"`

	MintIn  string `json:"mint_in"`
	MintOut string `json:"mint_out"`

	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`

	// LimitAmount is the user's slippage bound; LimitSide names which
	// flow it constrains.
	LimitAmount uint64    `json:"limit_amount"`
	LimitSide   LimitSide `json:"limit_side"`

	// Post-swap vault balances, read from the post snapshot after any
	// direction correction.
	PostPoolBalanceMintIn  uint64 `json:"post_pool_balance_mint_in"`
	PostPoolBalanceMintOut uint64 `json:"post_pool_balance_mint_out"`
}
