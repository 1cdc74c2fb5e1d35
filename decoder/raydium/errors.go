package raydium

import "errors"

// Decode failures are local to one instruction. Callers skip the
// instruction and count the failure; nothing is retried.
var (
	ErrPayloadTooShort      = errors.New("instruction payload too short")
	ErrUnknownDiscriminator = errors.New("unknown swap discriminator")
	ErrInsufficientAccounts = errors.New("insufficient accounts for layout family")
	ErrNoBalances           = errors.New("transaction has no token balance snapshots")
	ErrMissingMint          = errors.New("mint not present in post-balance snapshot")
	ErrUnresolvedAccount    = errors.New("account index outside resolved account list")
	ErrNoSignature          = errors.New("transaction has no signature")
	ErrMissingPoolIndex     = errors.New("parsed instruction lacks pool index hint")
)
