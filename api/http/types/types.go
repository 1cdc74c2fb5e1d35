package types

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	ray "github.com/rexbrahh/raydium-swaps/decoder/raydium"
)

// HealthResponse represents the shape of /healthz responses.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// SwapsResponse represents the JSON response from the slot swaps endpoint.
type SwapsResponse struct {
	Slot  uint64     `json:"slot"`
	Swaps []ray.Swap `json:"swaps"`
}

// SlotSummary aggregates the swaps observed in one slot.
type SlotSummary struct {
	Slot      uint64   `json:"slot"`
	SwapCount int      `json:"swap_count"`
	Mints     []string `json:"mints"`
}

// ErrorResponse is a generic API error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrNotFound indicates missing resources.
var ErrNotFound = errors.New("not found")

// ParseSlot validates and parses a slot path parameter.
func ParseSlot(raw string) (uint64, error) {
	if raw == "" {
		return 0, errors.New("missing slot")
	}
	slot, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", raw)
	}
	return slot, nil
}

// Summarize builds a SlotSummary from the swaps of one slot. The mint list
// is deduplicated and sorted for stable output.
func Summarize(slot uint64, swaps []ray.Swap) SlotSummary {
	seen := make(map[string]struct{})
	for _, swap := range swaps {
		seen[swap.MintIn] = struct{}{}
		seen[swap.MintOut] = struct{}{}
	}
	mints := make([]string, 0, len(seen))
	for mint := range seen {
		mints = append(mints, mint)
	}
	sort.Strings(mints)
	return SlotSummary{
		Slot:      slot,
		SwapCount: len(swaps),
		Mints:     mints,
	}
}
