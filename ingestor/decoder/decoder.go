package decoder

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58/base58"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
	"github.com/rexbrahh/raydium-swaps/ingestor/common"
)

// Decoder routes block instructions through the swap decode pipeline:
// classification against the program registry, payload decoding, pool vault
// resolution, and balance reconciliation. A Decoder is stateless and safe
// for concurrent use.
type Decoder struct {
	registry *ray.Registry
}

// New constructs a decoder. A nil registry selects the built-in production
// programs.
func New(registry *ray.Registry) *Decoder {
	if registry == nil {
		registry = ray.DefaultRegistry()
	}
	return &Decoder{registry: registry}
}

// Registry exposes the program registry so callers can share it with other
// components (e.g. configuration reload paths).
func (d *Decoder) Registry() *ray.Registry {
	return d.registry
}

// DecodeError annotates decode failures with the program identifier.
type DecodeError struct {
	Program string
	Err     error
}

func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Program, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// txView is the per-transaction decode state: the resolved account list and
// the balance snapshots indexed by resolved account position. Built once,
// shared by every instruction in the transaction.
type txView struct {
	tx          *common.Transaction
	accounts    []string
	pre         map[uint32]common.TokenBalance
	post        map[uint32]common.TokenBalance
	hasBalances bool
	slot        uint64
}

func newTxView(slot uint64, tx *common.Transaction) *txView {
	v := &txView{
		tx:       tx,
		accounts: common.ResolveAccountKeys(tx),
		pre:      make(map[uint32]common.TokenBalance, len(tx.Meta.PreTokenBalances)),
		post:     make(map[uint32]common.TokenBalance, len(tx.Meta.PostTokenBalances)),
		slot:     slot,
	}
	for _, bal := range tx.Meta.PreTokenBalances {
		v.pre[bal.AccountIndex] = bal
	}
	for _, bal := range tx.Meta.PostTokenBalances {
		v.post[bal.AccountIndex] = bal
	}
	v.hasBalances = len(v.pre) > 0 || len(v.post) > 0
	return v
}

// vaultState assembles one vault's snapshot data from the balance maps. An
// index absent from one snapshot contributes zero for that side; the mint
// comes from the post snapshot, falling back to pre, and its absence from
// both is a decode failure.
func (v *txView) vaultState(index uint32) (ray.VaultState, error) {
	if int(index) >= len(v.accounts) {
		return ray.VaultState{}, ray.ErrUnresolvedAccount
	}
	var state ray.VaultState
	if bal, ok := v.pre[index]; ok {
		state.Pre = bal.Amount
		state.Mint = bal.Mint
	}
	if bal, ok := v.post[index]; ok {
		state.Post = bal.Amount
		state.Mint = bal.Mint
	}
	if state.Mint == "" {
		return ray.VaultState{}, ray.ErrMissingMint
	}
	return state, nil
}

func (v *txView) swapContext(inIndex, outIndex uint32, pos instrPos) (*ray.SwapContext, error) {
	in, err := v.vaultState(inIndex)
	if err != nil {
		return nil, err
	}
	out, err := v.vaultState(outIndex)
	if err != nil {
		return nil, err
	}
	return &ray.SwapContext{
		In:            in,
		Out:           out,
		HasBalances:   v.hasBalances,
		Slot:          v.slot,
		IndexInSlot:   v.tx.Index,
		IndexInTx:     pos.indexInTx,
		InnerGroup:    pos.innerGroup,
		Signature:     v.tx.Signature(),
		WasSuccessful: !v.tx.Meta.Failed,
	}, nil
}

// instrPos locates an instruction within its transaction: the position in
// its containing list and, for inner instructions, the owning top-level
// index. innerGroup is -1 at top level.
type instrPos struct {
	indexInTx  int
	innerGroup int
}

// decodeInstruction runs one instruction through the pipeline. A nil swap
// with a nil error means the instruction was skipped (unregistered program
// or unresolvable program index); failures for registered programs come
// back as *DecodeError.
func (d *Decoder) decodeInstruction(view *txView, pos instrPos, instr common.Instruction) (*ray.Swap, error) {
	switch in := instr.(type) {
	case *common.CompiledInstruction:
		programID, ok := d.compiledProgramID(view, in.ProgramIndex)
		if !ok {
			return nil, nil
		}
		payload, err := base58.Decode(in.Data)
		if err != nil {
			return nil, &DecodeError{Program: programID, Err: fmt.Errorf("decode payload: %w", err)}
		}
		return d.decodeCompiled(view, pos, programID, in.Accounts, payload)
	case *common.RawInstruction:
		programID, ok := d.compiledProgramID(view, in.ProgramIndex)
		if !ok {
			return nil, nil
		}
		return d.decodeCompiled(view, pos, programID, in.Accounts, in.Data)
	case *common.ParsedInstruction:
		return d.decodeParsed(view, pos, in)
	default:
		return nil, nil
	}
}

// compiledProgramID resolves the program of a compiled instruction. An
// out-of-bounds program index or an unregistered program is a skip, never a
// failure.
func (d *Decoder) compiledProgramID(view *txView, programIndex uint32) (string, bool) {
	if int(programIndex) >= len(view.accounts) {
		return "", false
	}
	programID := view.accounts[programIndex]
	if !d.registry.Registered(programID) {
		return "", false
	}
	return programID, true
}

func (d *Decoder) decodeCompiled(view *txView, pos instrPos, programID string, accounts []uint32, payload []byte) (*ray.Swap, error) {
	rule, ok, err := d.registry.Lookup(programID, payload)
	if err != nil {
		return nil, &DecodeError{Program: programID, Err: err}
	}
	// Registration is re-checked here so a registry swapped under a live
	// decoder degrades to a skip instead of a nil-rule dereference.
	if !ok {
		return nil, nil
	}

	instr, err := ray.ParseSwapInstruction(rule, payload)
	if err != nil {
		return nil, &DecodeError{Program: programID, Err: err}
	}

	inIndex, outIndex, err := rule.Family.VaultIndices(accounts)
	if err != nil {
		return nil, &DecodeError{Program: programID, Err: err}
	}

	ctx, err := view.swapContext(inIndex, outIndex, pos)
	if err != nil {
		return nil, &DecodeError{Program: programID, Err: err}
	}

	swap, err := ray.ParseSwapEvent(instr, ctx)
	if err != nil {
		return nil, &DecodeError{Program: programID, Err: err}
	}
	return swap, nil
}

// decodeParsed handles the pre-parsed variant: quantities are read by name
// with zero defaults, pool vault indices are explicit hints and required.
func (d *Decoder) decodeParsed(view *txView, pos instrPos, in *common.ParsedInstruction) (*ray.Swap, error) {
	if in.ProgramID == "" || !d.registry.Registered(in.ProgramID) {
		return nil, nil
	}

	inIndex, ok := uintField(in.Fields, "poolInIndex")
	if !ok {
		return nil, &DecodeError{Program: in.ProgramID, Err: ray.ErrMissingPoolIndex}
	}
	outIndex, ok := uintField(in.Fields, "poolOutIndex")
	if !ok {
		return nil, &DecodeError{Program: in.ProgramID, Err: ray.ErrMissingPoolIndex}
	}

	amount, _ := uintField(in.Fields, "amountIn")
	limit, _ := uintField(in.Fields, "minAmountOut")
	instr := &ray.SwapInstruction{
		Amount:    amount,
		Limit:     limit,
		LimitSide: ray.LimitMintOut,
	}

	ctx, err := view.swapContext(uint32(inIndex), uint32(outIndex), pos)
	if err != nil {
		return nil, &DecodeError{Program: in.ProgramID, Err: err}
	}

	swap, err := ray.ParseSwapEvent(instr, ctx)
	if err != nil {
		return nil, &DecodeError{Program: in.ProgramID, Err: err}
	}
	return swap, nil
}

// uintField reads a numeric field from a parsed-instruction mapping. Native
// producers yield integer types; JSON decoding yields float64, or
// json.Number / decimal strings from producers that keep amounts above the
// 53-bit float-safe range exact.
func uintField(fields map[string]any, key string) (uint64, bool) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case json.Number:
		return parseUintText(v.String())
	case string:
		return parseUintText(v)
	default:
		return 0, false
	}
}

func parseUintText(s string) (uint64, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
