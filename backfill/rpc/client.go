package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rexbrahh/raydium-swaps/backfill/orchestrator"
	"github.com/rexbrahh/raydium-swaps/ingestor/common"
)

// Slot-skipped error codes returned by Solana JSON-RPC nodes. Long-term
// storage nodes use -32009, regular validators -32007.
const (
	codeSlotSkipped         = -32007
	codeSlotSkippedLongTerm = -32009
)

const defaultTimeout = 30 * time.Second

// Config holds JSON-RPC client parameters.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// FromEnv builds a Config from RPC_ENDPOINT and RPC_TIMEOUT_MS.
func FromEnv() (Config, error) {
	cfg := Config{
		Endpoint: os.Getenv("RPC_ENDPOINT"),
		Timeout:  defaultTimeout,
	}
	if v := os.Getenv("RPC_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return Config{}, fmt.Errorf("invalid RPC_TIMEOUT_MS: %q", v)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("rpc timeout must be positive")
	}
	return nil
}

// Client fetches confirmed blocks over Solana JSON-RPC.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ orchestrator.BlockFetcher = (*Client)(nil)

// NewClient prepares a Client for the given endpoint.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result *rpcBlock `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcBlock struct {
	BlockTime    *int64           `json:"blockTime"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcTransaction struct {
	Transaction rpcTxBody `json:"transaction"`
	Meta        *rpcMeta  `json:"meta"`
}

type rpcTxBody struct {
	Signatures []string   `json:"signatures"`
	Message    rpcMessage `json:"message"`
}

type rpcMessage struct {
	AccountKeys  []string         `json:"accountKeys"`
	Instructions []rpcInstruction `json:"instructions"`
}

type rpcInstruction struct {
	ProgramIDIndex uint32   `json:"programIdIndex"`
	Accounts       []uint32 `json:"accounts"`
	Data           string   `json:"data"`
}

type rpcMeta struct {
	Err               any                 `json:"err"`
	PreTokenBalances  []rpcTokenBalance   `json:"preTokenBalances"`
	PostTokenBalances []rpcTokenBalance   `json:"postTokenBalances"`
	InnerInstructions []rpcInnerGroup     `json:"innerInstructions"`
	LoadedAddresses   *rpcLoadedAddresses `json:"loadedAddresses"`
}

type rpcTokenBalance struct {
	AccountIndex  uint32           `json:"accountIndex"`
	Mint          string           `json:"mint"`
	Owner         string           `json:"owner"`
	UITokenAmount rpcUITokenAmount `json:"uiTokenAmount"`
}

type rpcUITokenAmount struct {
	Amount string `json:"amount"`
}

type rpcInnerGroup struct {
	Index        uint32           `json:"index"`
	Instructions []rpcInstruction `json:"instructions"`
}

type rpcLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

// FetchBlock retrieves one confirmed block. Skipped slots map to
// orchestrator.ErrSlotNotFound.
func (c *Client) FetchBlock(ctx context.Context, slot uint64) (*common.Block, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getBlock",
		Params: []any{
			slot,
			map[string]any{
				"encoding":                       "json",
				"transactionDetails":             "full",
				"commitment":                     "confirmed",
				"maxSupportedTransactionVersion": 0,
				"rewards":                        false,
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post getBlock: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getBlock: unexpected status %d", resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if parsed.Error != nil {
		if parsed.Error.Code == codeSlotSkipped || parsed.Error.Code == codeSlotSkippedLongTerm {
			return nil, orchestrator.ErrSlotNotFound
		}
		return nil, fmt.Errorf("getBlock: rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return nil, orchestrator.ErrSlotNotFound
	}

	return convertBlock(slot, parsed.Result), nil
}

func convertBlock(slot uint64, raw *rpcBlock) *common.Block {
	block := &common.Block{Slot: slot}
	if raw.BlockTime != nil {
		block.BlockTime = *raw.BlockTime
	}

	block.Transactions = make([]common.Transaction, 0, len(raw.Transactions))
	for i, rtx := range raw.Transactions {
		tx := common.Transaction{
			Index:      i,
			Signatures: rtx.Transaction.Signatures,
			Message: common.Message{
				AccountKeys:  rtx.Transaction.Message.AccountKeys,
				Instructions: convertInstructions(rtx.Transaction.Message.Instructions),
			},
		}
		if meta := rtx.Meta; meta != nil {
			tx.Meta.Failed = meta.Err != nil
			tx.Meta.PreTokenBalances = convertBalances(meta.PreTokenBalances)
			tx.Meta.PostTokenBalances = convertBalances(meta.PostTokenBalances)
			for _, group := range meta.InnerInstructions {
				tx.Meta.InnerInstructions = append(tx.Meta.InnerInstructions, common.InnerInstructionGroup{
					Index:        group.Index,
					Instructions: convertInstructions(group.Instructions),
				})
			}
			if meta.LoadedAddresses != nil {
				tx.Meta.LoadedWritableAddresses = meta.LoadedAddresses.Writable
				tx.Meta.LoadedReadonlyAddresses = meta.LoadedAddresses.Readonly
			}
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block
}

func convertInstructions(raw []rpcInstruction) []common.Instruction {
	out := make([]common.Instruction, 0, len(raw))
	for _, ins := range raw {
		out = append(out, &common.CompiledInstruction{
			ProgramIndex: ins.ProgramIDIndex,
			Accounts:     ins.Accounts,
			Data:         ins.Data,
		})
	}
	return out
}

func convertBalances(raw []rpcTokenBalance) []common.TokenBalance {
	out := make([]common.TokenBalance, 0, len(raw))
	for _, bal := range raw {
		amount, err := strconv.ParseUint(bal.UITokenAmount.Amount, 10, 64)
		if err != nil {
			// Balances that do not parse as raw integers are dropped,
			// matching the streaming converter.
			continue
		}
		out = append(out, common.TokenBalance{
			AccountIndex: bal.AccountIndex,
			Mint:         bal.Mint,
			Owner:        bal.Owner,
			Amount:       amount,
		})
	}
	return out
}
