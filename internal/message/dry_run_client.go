package message

import (
	"context"
	"fmt"
	"strings"
)

type dryRunClient struct{}

func (c *dryRunClient) SendPush(_ context.Context, push Push) error {
	fmt.Println(strings.Repeat("-", 79))
	fmt.Println("Webhook:", push.WebhookURL)
	fmt.Println("Text:", push.Text)
	fmt.Println(strings.Repeat("-", 79))

	return nil
}

func (c *dryRunClient) PushNotifierType() PushNotifierType {
	return PushNotifierTypeDryRun
}

func NewDryRunClient() (PushNotifierClient, error) {
	return &dryRunClient{}, nil
}
