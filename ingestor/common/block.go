package common

// Block is one confirmed ledger unit: an ordered batch of transactions at a
// given slot. Blocks are read-only inputs; nothing in the pipeline mutates
// them after conversion from the wire format.
type Block struct {
	Slot         uint64
	BlockTime    int64
	Transactions []Transaction
}

// Transaction carries the compiled message, execution metadata, and
// signatures for one transaction. Index is the transaction's 0-based
// position within its block.
type Transaction struct {
	Index      int
	Message    Message
	Meta       Meta
	Signatures []string
}

// Signature returns the transaction's canonical identifier (the first
// signature) or the empty string when none is present.
func (tx *Transaction) Signature() string {
	if len(tx.Signatures) == 0 {
		return ""
	}
	return tx.Signatures[0]
}

// Message holds the static account keys and the top-level instructions in
// their compiled order.
type Message struct {
	AccountKeys  []string
	Instructions []Instruction
}

// Meta is the execution outcome of a transaction: failure flag, inner
// instruction groups keyed by their owning top-level instruction, token
// balance snapshots, and any addresses loaded through lookup tables.
type Meta struct {
	Failed                  bool
	InnerInstructions       []InnerInstructionGroup
	PreTokenBalances        []TokenBalance
	PostTokenBalances       []TokenBalance
	LoadedWritableAddresses []string
	LoadedReadonlyAddresses []string
}

// InnerInstructionGroup is the ordered set of instructions emitted while a
// top-level instruction executed. Index refers to that owning top-level
// instruction; inner instructions share the parent transaction's account
// index space.
type InnerInstructionGroup struct {
	Index        uint32
	Instructions []Instruction
}

// TokenBalance is a pre- or post-execution snapshot of one SPL token
// account. Amount is the raw integer quantity; token amounts routinely
// exceed the float64-safe range, so it is never carried as a float.
type TokenBalance struct {
	AccountIndex uint32
	Mint         string
	Owner        string
	Amount       uint64
}

// Instruction is the closed set of transport representations an instruction
// can arrive in. Exactly one concrete type applies to any instance:
// CompiledInstruction (payload still transport-encoded), RawInstruction
// (payload already raw bytes), or ParsedInstruction (semantic fields spelled
// out by an upstream decoder).
type Instruction interface {
	isInstruction()
}

// CompiledInstruction is the standard compiled form: account references by
// index and a base58 transport-encoded payload.
type CompiledInstruction struct {
	ProgramIndex uint32
	Accounts     []uint32
	Data         string // base58
}

// RawInstruction matches CompiledInstruction except that the payload has
// already been decoded to raw bytes, as delivered by the Yellowstone gRPC
// wire format.
type RawInstruction struct {
	ProgramIndex uint32
	Accounts     []uint32
	Data         []byte
}

// ParsedInstruction is the pre-parsed structured form: a field map carrying
// the semantic event directly ("type", "amountIn", "minAmountOut", pool
// index hints). Its schema is provisional; absent amount fields read as
// zero, absent pool hints are a decode failure downstream.
type ParsedInstruction struct {
	ProgramID string
	Fields    map[string]any
}

func (*CompiledInstruction) isInstruction() {}

func (*RawInstruction) isInstruction() {}

func (*ParsedInstruction) isInstruction() {}

// ResolveAccountKeys builds the flat, order-significant account list for a
// transaction: static keys, then loaded writable, then loaded readonly.
// Every account index used by instructions or balance records resolves
// against this concatenation; addresses loaded through lookup tables only
// exist in versioned transactions and always follow the static entries.
func ResolveAccountKeys(tx *Transaction) []string {
	static := tx.Message.AccountKeys
	writable := tx.Meta.LoadedWritableAddresses
	readonly := tx.Meta.LoadedReadonlyAddresses

	keys := make([]string, 0, len(static)+len(writable)+len(readonly))
	keys = append(keys, static...)
	keys = append(keys, writable...)
	keys = append(keys, readonly...)
	return keys
}
