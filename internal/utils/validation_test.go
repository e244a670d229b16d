package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_IsRoomCode(t *testing.T) {
	for _, code := range []string{"a", "room-1", "TEAM-ALPHA", "0123456789"} {
		assert.Truef(t, IsRoomCode(code), "code %q should be valid", code)
	}
	for _, code := range []string{"", "has space", "room/1", "room_1", "🎉"} {
		assert.Falsef(t, IsRoomCode(code), "code %q should be invalid", code)
	}
}

func Test_ValidateTelegramWebhookURL(t *testing.T) {
	testCases := []struct {
		name       string
		webhookURL string
		wantErr    string
	}{
		{
			name:       "🎉 successfully validates a bot API URL",
			webhookURL: "https://api.telegram.org/bot123456:ABC-DEF/sendMessage?chat_id=42",
			wantErr:    "",
		},
		{
			name:       "🎉 plain http is allowed",
			webhookURL: "http://api.telegram.org/bot123/sendMessage",
			wantErr:    "",
		},
		{
			name:       "returns an error for an empty URL",
			webhookURL: "",
			wantErr:    "webhook URL cannot be empty",
		},
		{
			name:       "returns an error for a non-URL string",
			webhookURL: "not a url",
			wantErr:    "invalid webhook URL provided",
		},
		{
			name:       "returns an error for a foreign host",
			webhookURL: "https://hooks.slack.com/services/T00/B00/XXX",
			wantErr:    "webhook URL host must be api.telegram.org",
		},
		{
			name:       "returns an error for a non-http scheme",
			webhookURL: "ftp://api.telegram.org/bot123",
			wantErr:    "webhook URL must use the http or https scheme",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTelegramWebhookURL(tc.webhookURL)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tc.wantErr)
			}
		})
	}
}
