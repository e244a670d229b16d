package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// rxWalletAddress matches a 20-byte hex address with its 0x prefix. Mixed
// case is accepted on input; the canonical stored form is always lowercase.
var rxWalletAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var ErrInvalidWalletAddress = fmt.Errorf("the provided wallet address is not a valid 0x-prefixed hex address")

// CanonicalizeWalletAddress validates the given address and returns its
// canonical (lowercased) form.
func CanonicalizeWalletAddress(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("wallet address cannot be empty")
	}

	if !rxWalletAddress.MatchString(address) {
		return "", ErrInvalidWalletAddress
	}

	return strings.ToLower(address), nil
}

// IsWalletAddress reports whether the given string is a well-formed wallet
// address, regardless of casing.
func IsWalletAddress(address string) bool {
	return rxWalletAddress.MatchString(address)
}

// ShortenAddress renders an address in the `0x1234…abcd` form used in
// human-facing notifications. Addresses too short to elide are returned
// unchanged.
func ShortenAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
