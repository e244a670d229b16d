package message

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/swapwatch/swapwatch-backend/internal/serve/httpclient"
)

// telegramClient POSTs notifications to the Telegram Bot API webhook each
// room configures. The webhook URL already carries the bot token and method,
// so the client only supplies the message payload.
type telegramClient struct {
	httpClient httpclient.HttpClientInterface
}

type telegramSendMessageRequest struct {
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *telegramClient) SendPush(ctx context.Context, push Push) error {
	if err := push.Validate(); err != nil {
		return err
	}

	reqBody, err := json.Marshal(telegramSendMessageRequest{
		Text:      push.Text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshalling telegram request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, push.WebhookURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := t.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("making request to telegram: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("telegram returned status %d: %s", response.StatusCode, string(body))
	}

	return nil
}

func (t *telegramClient) PushNotifierType() PushNotifierType {
	return PushNotifierTypeTelegram
}

func NewTelegramClient(httpClient httpclient.HttpClientInterface) (PushNotifierClient, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}
	return &telegramClient{httpClient: httpClient}, nil
}
