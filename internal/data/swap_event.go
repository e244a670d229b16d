package data

import (
	"encoding/json"
	"fmt"

	"github.com/swapwatch/swapwatch-backend/internal/utils"
)

// SwapEvent is the decoded form of a provider swap delivery. It is transient
// and never persisted; rooms receive the raw payload and decode the fields
// they need through ParseSwapEvent.
type SwapEvent struct {
	TxHash        string          `json:"txHash,omitempty"`
	WalletAddress string          `json:"walletAddress,omitempty"`
	TokenIn       string          `json:"tokenIn,omitempty"`
	TokenOut      string          `json:"tokenOut,omitempty"`
	AmountInUsd   float64         `json:"amountInUsd,omitempty"`
	AmountOutUsd  *float64        `json:"amountOutUsd,omitempty"`
	Timestamp     *int64          `json:"timestamp,omitempty"`
	Enrichment    json.RawMessage `json:"enrichment,omitempty"`
}

// ParseSwapEvent decodes raw into a SwapEvent and validates it.
func ParseSwapEvent(raw []byte) (*SwapEvent, error) {
	event := &SwapEvent{}
	if err := json.Unmarshal(raw, event); err != nil {
		return nil, fmt.Errorf("unmarshalling swap event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validating swap event: %w", err)
	}
	return event, nil
}

// Validate checks the invariants a decoded event must hold. The wallet
// address, when present, must already be in canonical lowercase form.
func (e *SwapEvent) Validate() error {
	if e.AmountInUsd < 0 {
		return fmt.Errorf("amountInUsd cannot be negative")
	}
	if e.WalletAddress != "" {
		canonical, err := utils.CanonicalizeWalletAddress(e.WalletAddress)
		if err != nil {
			return fmt.Errorf("invalid walletAddress: %w", err)
		}
		if canonical != e.WalletAddress {
			return fmt.Errorf("walletAddress is not in canonical form")
		}
	}
	return nil
}
