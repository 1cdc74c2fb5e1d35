package common

import (
	"strconv"

	"github.com/mr-tron/base58/base58"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
)

// ConvertBlock builds a domain Block from a Yellowstone block update. This is
// the only seam where wire types appear; everything downstream works on the
// domain model. Returns nil when the update carries no usable payload.
func ConvertBlock(update *pb.SubscribeUpdateBlock) *Block {
	if update == nil {
		return nil
	}

	block := &Block{
		Slot:         update.GetSlot(),
		Transactions: make([]Transaction, 0, len(update.GetTransactions())),
	}
	if ts := update.GetBlockTime(); ts != nil {
		block.BlockTime = ts.GetTimestamp()
	}

	for _, info := range update.GetTransactions() {
		tx := convertTransaction(info)
		if tx == nil {
			continue
		}
		block.Transactions = append(block.Transactions, *tx)
	}
	return block
}

func convertTransaction(info *pb.SubscribeUpdateTransactionInfo) *Transaction {
	if info == nil {
		return nil
	}
	inner := info.GetTransaction()
	meta := info.GetMeta()
	if inner == nil || inner.GetMessage() == nil {
		return nil
	}
	msg := inner.GetMessage()

	tx := &Transaction{
		Index: int(info.GetIndex()),
		Message: Message{
			AccountKeys:  encodeKeys(msg.GetAccountKeys()),
			Instructions: make([]Instruction, 0, len(msg.GetInstructions())),
		},
		Signatures: encodeKeys(inner.GetSignatures()),
	}

	for _, instr := range msg.GetInstructions() {
		tx.Message.Instructions = append(tx.Message.Instructions, &RawInstruction{
			ProgramIndex: instr.GetProgramIdIndex(),
			Accounts:     widenIndices(instr.GetAccounts()),
			Data:         instr.GetData(),
		})
	}

	if meta != nil {
		tx.Meta = Meta{
			Failed:                  meta.GetErr() != nil,
			PreTokenBalances:        convertBalances(meta.GetPreTokenBalances()),
			PostTokenBalances:       convertBalances(meta.GetPostTokenBalances()),
			LoadedWritableAddresses: encodeKeys(meta.GetLoadedWritableAddresses()),
			LoadedReadonlyAddresses: encodeKeys(meta.GetLoadedReadonlyAddresses()),
		}
		for _, group := range meta.GetInnerInstructions() {
			converted := InnerInstructionGroup{
				Index:        group.GetIndex(),
				Instructions: make([]Instruction, 0, len(group.GetInstructions())),
			}
			for _, instr := range group.GetInstructions() {
				converted.Instructions = append(converted.Instructions, &RawInstruction{
					ProgramIndex: instr.GetProgramIdIndex(),
					Accounts:     widenIndices(instr.GetAccounts()),
					Data:         instr.GetData(),
				})
			}
			tx.Meta.InnerInstructions = append(tx.Meta.InnerInstructions, converted)
		}
	}

	return tx
}

// convertBalances keeps the raw integer amount exactly: the wire carries it
// as a decimal string and the ui_amount float is never consulted.
func convertBalances(balances []*pb.TokenBalance) []TokenBalance {
	if len(balances) == 0 {
		return nil
	}
	out := make([]TokenBalance, 0, len(balances))
	for _, bal := range balances {
		amountStr := bal.GetUiTokenAmount().GetAmount()
		if amountStr == "" {
			continue
		}
		amount, err := strconv.ParseUint(amountStr, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, TokenBalance{
			AccountIndex: bal.GetAccountIndex(),
			Mint:         bal.GetMint(),
			Owner:        bal.GetOwner(),
			Amount:       amount,
		})
	}
	return out
}

func encodeKeys(raw [][]byte) []string {
	if len(raw) == 0 {
		return nil
	}
	keys := make([]string, len(raw))
	for i, b := range raw {
		keys[i] = base58.Encode(b)
	}
	return keys
}

// widenIndices expands the wire's packed byte indices into uint32s so the
// domain model has a single index type across instruction variants.
func widenIndices(packed []byte) []uint32 {
	if len(packed) == 0 {
		return nil
	}
	indices := make([]uint32, len(packed))
	for i, b := range packed {
		indices[i] = uint32(b)
	}
	return indices
}
