package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rexbrahh/raydium-swaps/backfill/orchestrator"
	"github.com/rexbrahh/raydium-swaps/ingestor/common"
)

const blockResponse = `{
  "jsonrpc": "2.0",
  "id": 1,
  "result": {
    "blockTime": 1756400000,
    "transactions": [
      {
        "transaction": {
          "signatures": ["sigRPC"],
          "message": {
            "accountKeys": ["prog", "acct1", "acct2"],
            "instructions": [
              {"programIdIndex": 0, "accounts": [1, 2], "data": "3Bxs4h24hBtQy9rw"}
            ]
          }
        },
        "meta": {
          "err": null,
          "preTokenBalances": [
            {"accountIndex": 1, "mint": "mintA", "owner": "own", "uiTokenAmount": {"amount": "1000"}}
          ],
          "postTokenBalances": [
            {"accountIndex": 1, "mint": "mintA", "owner": "own", "uiTokenAmount": {"amount": "900"}},
            {"accountIndex": 2, "mint": "mintB", "owner": "own", "uiTokenAmount": {"amount": "bogus"}}
          ],
          "innerInstructions": [
            {"index": 0, "instructions": [{"programIdIndex": 0, "accounts": [2], "data": "11"}]}
          ],
          "loadedAddresses": {"writable": ["w0"], "readonly": ["r0"]}
        }
      }
    ]
  }
}`

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Endpoint: srv.URL, Timeout: defaultTimeout})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFetchBlock(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "getBlock" {
			t.Errorf("unexpected method %q", req.Method)
		}
		w.Write([]byte(blockResponse))
	})

	block, err := client.FetchBlock(context.Background(), 12345)
	if err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}

	if block.Slot != 12345 {
		t.Fatalf("slot = %d, want 12345", block.Slot)
	}
	if block.BlockTime != 1756400000 {
		t.Fatalf("block time = %d", block.BlockTime)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(block.Transactions))
	}

	tx := block.Transactions[0]
	if tx.Signature() != "sigRPC" {
		t.Fatalf("signature = %q", tx.Signature())
	}
	if tx.Meta.Failed {
		t.Fatal("transaction unexpectedly failed")
	}

	ins, ok := tx.Message.Instructions[0].(*common.CompiledInstruction)
	if !ok {
		t.Fatalf("unexpected instruction type %T", tx.Message.Instructions[0])
	}
	if ins.Data != "3Bxs4h24hBtQy9rw" || ins.ProgramIndex != 0 {
		t.Fatalf("unexpected instruction: %+v", ins)
	}

	if len(tx.Meta.PostTokenBalances) != 1 {
		t.Fatalf("expected 1 parseable post balance, got %d", len(tx.Meta.PostTokenBalances))
	}
	if tx.Meta.PostTokenBalances[0].Amount != 900 {
		t.Fatalf("post balance = %d", tx.Meta.PostTokenBalances[0].Amount)
	}

	if len(tx.Meta.InnerInstructions) != 1 || tx.Meta.InnerInstructions[0].Index != 0 {
		t.Fatalf("unexpected inner groups: %+v", tx.Meta.InnerInstructions)
	}
	if len(tx.Meta.LoadedWritableAddresses) != 1 || tx.Meta.LoadedWritableAddresses[0] != "w0" {
		t.Fatalf("unexpected loaded addresses: %+v", tx.Meta)
	}
}

func TestFetchBlockSkippedSlot(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32007,"message":"Slot 1 was skipped"}}`))
	})

	_, err := client.FetchBlock(context.Background(), 1)
	if !errors.Is(err, orchestrator.ErrSlotNotFound) {
		t.Fatalf("FetchBlock = %v, want ErrSlotNotFound", err)
	}
}

func TestFetchBlockNullResult(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":null}`))
	})

	_, err := client.FetchBlock(context.Background(), 2)
	if !errors.Is(err, orchestrator.ErrSlotNotFound) {
		t.Fatalf("FetchBlock = %v, want ErrSlotNotFound", err)
	}
}

func TestFetchBlockRPCError(t *testing.T) {
	client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"bad params"}}`))
	})

	_, err := client.FetchBlock(context.Background(), 3)
	if err == nil || errors.Is(err, orchestrator.ErrSlotNotFound) {
		t.Fatalf("FetchBlock = %v, want hard error", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if err := (Config{Endpoint: "http://localhost:8899"}).Validate(); err == nil {
		t.Fatal("expected error for zero timeout")
	}
	if err := (Config{Endpoint: "http://localhost:8899", Timeout: defaultTimeout}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
