package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
)

// telegramWebhookHost is the only upstream allowed to receive push
// notifications.
const telegramWebhookHost = "api.telegram.org"

var rxRoomCode = regexp.MustCompile(`^[A-Za-z0-9-]{1,64}$`)

// IsRoomCode reports whether code is a well-formed room code. Codes are
// treated case-insensitively everywhere, so callers should lowercase them
// before storage or lookup.
func IsRoomCode(code string) bool {
	return rxRoomCode.MatchString(code)
}

// ValidateTelegramWebhookURL checks that webhookURL is a well-formed
// http(s) URL pointing at the Telegram Bot API.
func ValidateTelegramWebhookURL(webhookURL string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL cannot be empty")
	}

	if !govalidator.IsRequestURL(webhookURL) {
		return fmt.Errorf("invalid webhook URL provided")
	}

	u, err := url.ParseRequestURI(webhookURL)
	if err != nil {
		return fmt.Errorf("parsing webhook URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use the http or https scheme")
	}

	if !strings.Contains(u.Host, telegramWebhookHost) {
		return fmt.Errorf("webhook URL host must be %s", telegramWebhookHost)
	}

	return nil
}
