package raydium

import "encoding/binary"

// SwapInstruction is the declared half of a swap: the quantity the user
// asked to trade and the slippage bound they set. Declared values are a
// hint only; reported amounts always come from balance reconciliation.
type SwapInstruction struct {
	// Amount is the quantity named by the instruction payload.
	Amount uint64

	// Limit is the user's slippage bound, constraining the side named
	// by LimitSide.
	Limit uint64

	LimitSide LimitSide

	// Rule is the layout rule the payload decoded under.
	Rule *LayoutRule
}

// ParseSwapInstruction decodes a raw swap payload under the given layout
// rule. Both quantities are 8-byte little-endian reads at the rule's
// offsets. When the rule carries a direction flag and the flag byte is
// zero, the amount and limit trade places and the limit switches sides.
func ParseSwapInstruction(rule *LayoutRule, data []byte) (*SwapInstruction, error) {
	if len(data) < rule.MinLen {
		return nil, ErrPayloadTooShort
	}

	instr := &SwapInstruction{
		Amount:    binary.LittleEndian.Uint64(data[rule.AmountOffset:]),
		Limit:     binary.LittleEndian.Uint64(data[rule.LimitOffset:]),
		LimitSide: rule.LimitSide,
		Rule:      rule,
	}

	if rule.FlagOffset >= 0 && data[rule.FlagOffset] == 0 {
		instr.Amount, instr.Limit = instr.Limit, instr.Amount
		instr.LimitSide = instr.LimitSide.invert()
	}

	return instr, nil
}

func (s LimitSide) invert() LimitSide {
	if s == LimitMintIn {
		return LimitMintOut
	}
	return LimitMintIn
}
