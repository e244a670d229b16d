package validators

import (
	"strings"

	"github.com/swapwatch/swapwatch-backend/internal/utils"
)

// MaxLabelLength caps a wallet label after trimming.
const MaxLabelLength = 100

type AddWalletRequest struct {
	Address string `json:"address"`
	// Wallet is an accepted alias for Address; some clients send the field
	// under this name.
	Wallet string `json:"wallet"`
	Label  string `json:"label"`
}

type UpdateWalletRequest struct {
	Label string `json:"label"`
}

type WalletValidator struct {
	*Validator
}

func NewWalletValidator() *WalletValidator {
	return &WalletValidator{Validator: NewValidator()}
}

// ValidateAddWalletRequest normalizes the address to its canonical lowercase
// form and trims the optional label.
func (wv *WalletValidator) ValidateAddWalletRequest(reqBody *AddWalletRequest) *AddWalletRequest {
	wv.Check(reqBody != nil, "body", "request body is empty")
	if wv.HasErrors() {
		return nil
	}

	rawAddress := reqBody.Address
	if rawAddress == "" {
		rawAddress = reqBody.Wallet
	}
	address := wv.ValidateAddress(rawAddress)
	label := wv.validateLabel(reqBody.Label)

	if wv.HasErrors() {
		return nil
	}

	return &AddWalletRequest{
		Address: address,
		Label:   label,
	}
}

// ValidateUpdateWalletRequest trims and validates the label. An empty label
// unsets the stored one.
func (wv *WalletValidator) ValidateUpdateWalletRequest(reqBody *UpdateWalletRequest) *UpdateWalletRequest {
	wv.Check(reqBody != nil, "body", "request body is empty")
	if wv.HasErrors() {
		return nil
	}

	label := wv.validateLabel(reqBody.Label)
	if wv.HasErrors() {
		return nil
	}

	return &UpdateWalletRequest{Label: label}
}

// ValidateAddress canonicalizes a wallet address coming from a request body
// or a path parameter.
func (wv *WalletValidator) ValidateAddress(address string) string {
	canonical, err := utils.CanonicalizeWalletAddress(strings.TrimSpace(address))
	wv.CheckError(err, "address", "")
	return canonical
}

func (wv *WalletValidator) validateLabel(label string) string {
	label = strings.TrimSpace(label)
	wv.Check(len(label) <= MaxLabelLength, "label", "label cannot be longer than 100 characters")
	return label
}
