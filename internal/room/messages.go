package room

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types exchanged over a room's WebSocket, discriminated by the
// envelope's "type" field.
const (
	MessageTypeSwap          = "swap"
	MessageTypePresence      = "presence"
	MessageTypeWalletAdded   = "wallet_added"
	MessageTypeWalletRemoved = "wallet_removed"
	MessageTypeConfigUpdated = "config_updated"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeGetRoomData   = "get_room_data"
	MessageTypeRoomData      = "room_data"
)

// redactedWebhook replaces the telegram webhook in broadcasts so the bot
// token never reaches subscribers.
const redactedWebhook = "***"

// Envelope is the wire format of every WebSocket message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func marshalEnvelope(msgType string, data any) ([]byte, error) {
	rawData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s data: %w", msgType, err)
	}
	raw, err := json.Marshal(Envelope{Type: msgType, Data: rawData})
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", msgType, err)
	}
	return raw, nil
}

// PresenceData is the payload of a presence message.
type PresenceData struct {
	Count int `json:"count"`
}

func NewPresenceMessage(count int) ([]byte, error) {
	return marshalEnvelope(MessageTypePresence, PresenceData{Count: count})
}

// WalletAddedData is the payload of a wallet_added message.
type WalletAddedData struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

func NewWalletAddedMessage(address, label string) ([]byte, error) {
	return marshalEnvelope(MessageTypeWalletAdded, WalletAddedData{Address: address, Label: label})
}

// WalletRemovedData is the payload of a wallet_removed message.
type WalletRemovedData struct {
	Address string `json:"address"`
}

func NewWalletRemovedMessage(address string) ([]byte, error) {
	return marshalEnvelope(MessageTypeWalletRemoved, WalletRemovedData{Address: address})
}

// ConfigUpdatedData is the payload of a config_updated message. The webhook
// is redacted before broadcast.
type ConfigUpdatedData struct {
	Threshold       *float64 `json:"threshold,omitempty"`
	TelegramWebhook string   `json:"telegramWebhook,omitempty"`
}

func NewConfigUpdatedMessage(threshold *float64, hasWebhook bool) ([]byte, error) {
	data := ConfigUpdatedData{Threshold: threshold}
	if hasWebhook {
		data.TelegramWebhook = redactedWebhook
	}
	return marshalEnvelope(MessageTypeConfigUpdated, data)
}

func NewSwapMessage(event json.RawMessage) ([]byte, error) {
	raw, err := json.Marshal(Envelope{Type: MessageTypeSwap, Data: event})
	if err != nil {
		return nil, fmt.Errorf("marshalling swap envelope: %w", err)
	}
	return raw, nil
}

// timestampData is the payload of ping and pong messages.
type timestampData struct {
	Timestamp int64 `json:"timestamp"`
}

func NewPongMessage(now time.Time) ([]byte, error) {
	return marshalEnvelope(MessageTypePong, timestampData{Timestamp: now.UnixMilli()})
}

// RoomData is the point-in-time snapshot returned for a get_room_data
// request. It carries no authority over the incremental messages around it.
type RoomData struct {
	Wallets  []string          `json:"wallets"`
	Labels   map[string]string `json:"labels"`
	Presence PresenceData      `json:"presence"`
}

func NewRoomDataMessage(data RoomData) ([]byte, error) {
	return marshalEnvelope(MessageTypeRoomData, data)
}
