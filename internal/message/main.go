package message

import (
	"fmt"
	"slices"
	"strings"

	"github.com/swapwatch/swapwatch-backend/internal/serve/httpclient"
)

type PushNotifierType string

const (
	// PushNotifierTypeTelegram delivers push notifications through the
	// Telegram Bot API webhook stored in each room's config.
	PushNotifierTypeTelegram PushNotifierType = "TELEGRAM"
	// PushNotifierTypeDryRun is used for development environment
	PushNotifierTypeDryRun PushNotifierType = "DRY_RUN"
)

func (pt PushNotifierType) All() []PushNotifierType {
	return []PushNotifierType{PushNotifierTypeTelegram, PushNotifierTypeDryRun}
}

func ParsePushNotifierType(pushNotifierTypeStr string) (PushNotifierType, error) {
	pushTypeStrUpper := strings.ToUpper(pushNotifierTypeStr)
	pType := PushNotifierType(pushTypeStrUpper)

	if slices.Contains(PushNotifierType("").All(), pType) {
		return pType, nil
	}

	return "", fmt.Errorf("invalid push notifier type %q", pushTypeStrUpper)
}

type PushNotifierOptions struct {
	PushNotifierType PushNotifierType
	Environment      string

	// Telegram
	HTTPClient httpclient.HttpClientInterface
}

func GetClient(opts PushNotifierOptions) (PushNotifierClient, error) {
	switch opts.PushNotifierType {
	case PushNotifierTypeTelegram:
		return NewTelegramClient(opts.HTTPClient)
	case PushNotifierTypeDryRun:
		return NewDryRunClient()

	default:
		return nil, fmt.Errorf("unknown push notifier type: %q", opts.PushNotifierType)
	}
}
