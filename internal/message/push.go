package message

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/swapwatch/swapwatch-backend/internal/utils"
)

// explorerTxBaseURL is where the push message links the transaction to.
const explorerTxBaseURL = "https://etherscan.io/tx/"

// Push is one notification bound for a room's external webhook.
type Push struct {
	WebhookURL string
	Text       string
}

// Validate checks the push carries everything a client needs to deliver it.
func (p *Push) Validate() error {
	if err := utils.ValidateTelegramWebhookURL(p.WebhookURL); err != nil {
		return fmt.Errorf("invalid push: %w", err)
	}

	if strings.Trim(p.Text, " ") == "" {
		return fmt.Errorf("push text is empty")
	}

	return nil
}

// SwapPushText renders the Markdown notification for a swap. The wallet
// address is shortened for readability and the USD amount is fixed to two
// decimal places.
func SwapPushText(walletAddress string, amountInUsd float64, tokenIn, tokenOut, txHash string) string {
	var sb strings.Builder

	sb.WriteString("🔔 *Swap detected*\n")
	sb.WriteString(fmt.Sprintf("Wallet: `%s`\n", utils.ShortenAddress(walletAddress)))
	sb.WriteString(fmt.Sprintf("Amount: *$%s*\n", decimal.NewFromFloat(amountInUsd).StringFixed(2)))

	if tokenIn != "" && tokenOut != "" {
		sb.WriteString(fmt.Sprintf("Swap: %s → %s\n", tokenIn, tokenOut))
	}

	if txHash != "" {
		sb.WriteString(fmt.Sprintf("[View transaction](%s%s)", explorerTxBaseURL, txHash))
	}

	return strings.TrimRight(sb.String(), "\n")
}
