package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_CanonicalizeWalletAddress(t *testing.T) {
	testCases := []struct {
		name            string
		address         string
		wantAddress     string
		wantErrContains string
	}{
		{
			name:            "returns an error if the address is empty",
			address:         "",
			wantErrContains: "wallet address cannot be empty",
		},
		{
			name:            "returns an error if the address is missing the 0x prefix",
			address:         "71c7656ec7ab88b098defb751b7401b5f6d8976f",
			wantErrContains: "not a valid 0x-prefixed hex address",
		},
		{
			name:            "returns an error if the address is too short",
			address:         "0x71c7656ec7ab88b098defb751b7401b5f6d8976",
			wantErrContains: "not a valid 0x-prefixed hex address",
		},
		{
			name:            "returns an error if the address is too long",
			address:         "0x71c7656ec7ab88b098defb751b7401b5f6d8976f0",
			wantErrContains: "not a valid 0x-prefixed hex address",
		},
		{
			name:            "returns an error if the address contains non-hex characters",
			address:         "0x71c7656ec7ab88b098defb751b7401b5f6d8976z",
			wantErrContains: "not a valid 0x-prefixed hex address",
		},
		{
			name:        "🎉 successfully canonicalizes a lowercase address",
			address:     "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
			wantAddress: "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		},
		{
			name:        "🎉 successfully canonicalizes a checksummed address",
			address:     "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
			wantAddress: "0x71c7656ec7ab88b098defb751b7401b5f6d8976f",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotAddress, err := CanonicalizeWalletAddress(tc.address)
			if tc.wantErrContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErrContains)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.wantAddress, gotAddress)
			}
		})
	}
}

func Test_ShortenAddress(t *testing.T) {
	assert.Equal(t, "0x71c7…976f", ShortenAddress("0x71c7656ec7ab88b098defb751b7401b5f6d8976f"))
	assert.Equal(t, "0xabc", ShortenAddress("0xabc"))
	assert.Equal(t, "", ShortenAddress(""))
}

func Test_TrimAndLower(t *testing.T) {
	assert.Equal(t, "whale wallet", TrimAndLower("  Whale Wallet "))
	assert.Equal(t, "", TrimAndLower(strings.Repeat(" ", 4)))
}
