package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseSwapEvent(t *testing.T) {
	t.Run("decodes a full payload", func(t *testing.T) {
		raw := []byte(`{
			"txHash": "0xabc123",
			"walletAddress": "` + testWallet1 + `",
			"tokenIn": "WETH",
			"tokenOut": "USDC",
			"amountInUsd": 1523.45,
			"amountOutUsd": 1520.10,
			"timestamp": 1735689600000,
			"enrichment": {"dex": "uniswap-v3"}
		}`)

		event, err := ParseSwapEvent(raw)
		require.NoError(t, err)

		assert.Equal(t, "0xabc123", event.TxHash)
		assert.Equal(t, testWallet1, event.WalletAddress)
		assert.Equal(t, "WETH", event.TokenIn)
		assert.Equal(t, "USDC", event.TokenOut)
		assert.Equal(t, 1523.45, event.AmountInUsd)
		require.NotNil(t, event.AmountOutUsd)
		assert.Equal(t, 1520.10, *event.AmountOutUsd)
		require.NotNil(t, event.Timestamp)
		assert.Equal(t, int64(1735689600000), *event.Timestamp)
		assert.JSONEq(t, `{"dex": "uniswap-v3"}`, string(event.Enrichment))
	})

	t.Run("optional fields may be absent", func(t *testing.T) {
		event, err := ParseSwapEvent([]byte(`{"txHash": "0xabc", "amountInUsd": 10}`))
		require.NoError(t, err)

		assert.Empty(t, event.WalletAddress)
		assert.Nil(t, event.AmountOutUsd)
		assert.Nil(t, event.Timestamp)
		assert.Nil(t, event.Enrichment)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		event, err := ParseSwapEvent([]byte(`{not json`))
		assert.Nil(t, event)
		assert.ErrorContains(t, err, "unmarshalling swap event")
	})

	t.Run("rejects a negative amountInUsd", func(t *testing.T) {
		event, err := ParseSwapEvent([]byte(`{"amountInUsd": -1}`))
		assert.Nil(t, event)
		assert.ErrorContains(t, err, "amountInUsd cannot be negative")
	})

	t.Run("rejects a malformed wallet address", func(t *testing.T) {
		event, err := ParseSwapEvent([]byte(`{"walletAddress": "0x123"}`))
		assert.Nil(t, event)
		assert.ErrorContains(t, err, "invalid walletAddress")
	})

	t.Run("rejects a wallet address that is not lowercased", func(t *testing.T) {
		event, err := ParseSwapEvent([]byte(`{"walletAddress": "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"}`))
		assert.Nil(t, event)
		assert.ErrorContains(t, err, "not in canonical form")
	})
}
