package decoder

import (
	"errors"
	"iter"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
	"github.com/rexbrahh/raydium-swaps/ingestor/common"
)

// Summary aggregates the counters of one block walk. It is complete once
// the walk's sequence has been fully consumed.
type Summary struct {
	Slot                 uint64
	InstructionsExamined uint64
	SwapsProduced        uint64
	FailuresByProgram    map[string]uint64
}

// Failures returns the total decode-failure count across programs.
func (s Summary) Failures() uint64 {
	var n uint64
	for _, c := range s.FailuresByProgram {
		n += c
	}
	return n
}

// Walk is a lazy, single-pass traversal of one block: top-level
// instructions of each transaction in order, then the transaction's inner
// groups in their declared order. Per-instruction failures are counted and
// skipped; nothing aborts the walk except the consumer stopping early.
type Walk struct {
	dec   *Decoder
	block *common.Block
	obs   Observer

	summary Summary
}

// WalkBlock prepares a walk over the given block. A nil observer discards
// events. The walk performs no work until its sequence is consumed.
func (d *Decoder) WalkBlock(block *common.Block, obs Observer) *Walk {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Walk{dec: d, block: block, obs: obs}
}

// Swaps returns the record sequence. The walk is restart-by-reiteration:
// each call over the same block yields an identical sequence, and the
// counters reset when iteration begins. Stopping early abandons the
// remaining work without a summary event.
func (w *Walk) Swaps() iter.Seq[*ray.Swap] {
	return func(yield func(*ray.Swap) bool) {
		var slot uint64
		if w.block != nil {
			slot = w.block.Slot
		}
		w.summary = Summary{Slot: slot, FailuresByProgram: make(map[string]uint64)}

		if w.block == nil {
			w.obs.OnSummary(w.summary)
			return
		}

		for ti := range w.block.Transactions {
			tx := &w.block.Transactions[ti]
			view := newTxView(w.block.Slot, tx)

			for ii, instr := range tx.Message.Instructions {
				if !w.step(view, instrPos{indexInTx: ii, innerGroup: -1}, instr, yield) {
					return
				}
			}
			for gi := range tx.Meta.InnerInstructions {
				group := &tx.Meta.InnerInstructions[gi]
				for ii, instr := range group.Instructions {
					pos := instrPos{indexInTx: ii, innerGroup: int(group.Index)}
					if !w.step(view, pos, instr, yield) {
						return
					}
				}
			}
		}

		w.obs.OnSummary(w.summary)
	}
}

// Summary returns the counters of the most recent iteration. Values are
// only complete after the sequence has been consumed to its end.
func (w *Walk) Summary() Summary {
	return w.summary
}

func (w *Walk) step(view *txView, pos instrPos, instr common.Instruction, yield func(*ray.Swap) bool) bool {
	w.summary.InstructionsExamined++

	swap, err := w.dec.decodeInstruction(view, pos, instr)
	if err != nil {
		program := ""
		var derr *DecodeError
		if errors.As(err, &derr) {
			program = derr.Program
		}
		w.summary.FailuresByProgram[program]++
		w.obs.OnDecodeError(program, err)
		return true
	}
	if swap == nil {
		w.obs.OnSkip(instructionProgram(view, instr))
		return true
	}

	w.summary.SwapsProduced++
	return yield(swap)
}

// instructionProgram resolves an instruction's program identifier on a
// best-effort basis for observer events; empty when unresolvable.
func instructionProgram(view *txView, instr common.Instruction) string {
	switch in := instr.(type) {
	case *common.CompiledInstruction:
		if int(in.ProgramIndex) < len(view.accounts) {
			return view.accounts[in.ProgramIndex]
		}
	case *common.RawInstruction:
		if int(in.ProgramIndex) < len(view.accounts) {
			return view.accounts[in.ProgramIndex]
		}
	case *common.ParsedInstruction:
		return in.ProgramID
	}
	return ""
}
