package room

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/message"
)

const (
	testWallet  = "0x71c7656ec7ab88b098defb751b7401b5f6d8976f"
	testWebhook = "https://api.telegram.org/bot123:abc/sendMessage"
)

func openTestModels(t *testing.T) *data.Models {
	t.Helper()

	kv, err := data.OpenKV(filepath.Join(t.TempDir(), "swapwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, kv.Close())
	})

	models, err := data.NewModels(kv)
	require.NoError(t, err)
	return models
}

func newTestRegistry(t *testing.T, pushClient message.PushNotifierClient) *Registry {
	t.Helper()

	registry := NewRegistry(openTestModels(t), pushClient, nil, nil)
	t.Cleanup(registry.Shutdown)
	return registry
}

// dialTestSession upgrades a real WebSocket against the actor and returns
// the client side, with the initial presence message already consumed.
func dialTestSession(t *testing.T, actor *Actor) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		actor.HandleSession(conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	var presence Envelope
	require.NoError(t, client.ReadJSON(&presence))
	require.Equal(t, MessageTypePresence, presence.Type)

	return client
}

func readEnvelope(t *testing.T, client *websocket.Conn) Envelope {
	t.Helper()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope Envelope
	require.NoError(t, client.ReadJSON(&envelope))
	return envelope
}

func Test_Actor_CreateRoom(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, nil)
	actor := registry.Room("abc123")

	threshold := 500.0
	cfg, err := actor.CreateRoom(ctx, CreateRoomAttributes{
		Threshold:       &threshold,
		TelegramWebhook: testWebhook,
		CreatedBy:       "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", cfg.Code)
	assert.Equal(t, &threshold, cfg.Threshold)
	assert.Equal(t, testWebhook, cfg.TelegramWebhook)
	assert.Equal(t, "tester", cfg.CreatedBy)
	assert.Equal(t, cfg.CreatedAt.Add(24*time.Hour), cfg.ExpiresAt)

	t.Run("creating the same room again conflicts", func(t *testing.T) {
		_, err = actor.CreateRoom(ctx, CreateRoomAttributes{})
		assert.ErrorIs(t, err, data.ErrRecordAlreadyExists)
	})
}

func Test_Actor_ExtendRoom(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, nil)

	t.Run("extending a missing room returns not found", func(t *testing.T) {
		actor := registry.Room("ghost")
		_, err := actor.ExtendRoom(ctx, 24)
		assert.ErrorIs(t, err, data.ErrRecordNotFound)
	})

	t.Run("moves expiresAt to now + hours", func(t *testing.T) {
		actor := registry.Room("extend-me")
		_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
		require.NoError(t, err)

		cfg, err := actor.ExtendRoom(ctx, 48)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC().Add(48*time.Hour), cfg.ExpiresAt, 5*time.Second)
	})
}

func Test_Actor_Wallets(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, nil)
	actor := registry.Room("wallets")

	entry, err := actor.AddWallet(ctx, testWallet, "treasury")
	require.NoError(t, err)
	assert.Equal(t, WalletEntry{Address: testWallet, Label: "treasury"}, entry)

	t.Run("lists entries with their labels", func(t *testing.T) {
		entries, lErr := actor.GetWallets(ctx)
		require.NoError(t, lErr)
		assert.Equal(t, []WalletEntry{{Address: testWallet, Label: "treasury"}}, entries)
	})

	t.Run("reports membership", func(t *testing.T) {
		tracked, hErr := actor.HasWallet(ctx, testWallet)
		require.NoError(t, hErr)
		assert.True(t, tracked)

		tracked, hErr = actor.HasWallet(ctx, "0xd8da6bf26964af9d7eed9e03e53415d37aa96045")
		require.NoError(t, hErr)
		assert.False(t, tracked)
	})

	t.Run("duplicate add conflicts", func(t *testing.T) {
		_, aErr := actor.AddWallet(ctx, testWallet, "")
		assert.ErrorIs(t, aErr, data.ErrRecordAlreadyExists)
	})

	t.Run("updates the label", func(t *testing.T) {
		_, uErr := actor.UpdateWallet(ctx, testWallet, "cold storage")
		require.NoError(t, uErr)

		entries, lErr := actor.GetWallets(ctx)
		require.NoError(t, lErr)
		assert.Equal(t, "cold storage", entries[0].Label)
	})

	t.Run("add then remove leaves the room unchanged", func(t *testing.T) {
		other := "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"
		_, aErr := actor.AddWallet(ctx, other, "tmp")
		require.NoError(t, aErr)
		require.NoError(t, actor.RemoveWallet(ctx, other))

		entries, lErr := actor.GetWallets(ctx)
		require.NoError(t, lErr)
		assert.Equal(t, []WalletEntry{{Address: testWallet, Label: "cold storage"}}, entries)
	})

	t.Run("removing an untracked wallet is not found", func(t *testing.T) {
		rErr := actor.RemoveWallet(ctx, "0x0000000000000000000000000000000000000001")
		assert.ErrorIs(t, rErr, data.ErrRecordNotFound)
	})
}

func Test_Actor_Broadcasts(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, nil)
	actor := registry.Room("broadcasts")
	_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
	require.NoError(t, err)

	client := dialTestSession(t, actor)

	t.Run("wallet_added reaches subscribers", func(t *testing.T) {
		_, aErr := actor.AddWallet(ctx, testWallet, "fund")
		require.NoError(t, aErr)

		envelope := readEnvelope(t, client)
		assert.Equal(t, MessageTypeWalletAdded, envelope.Type)
		assert.JSONEq(t, `{"address":"`+testWallet+`","label":"fund"}`, string(envelope.Data))
	})

	t.Run("wallet_removed reaches subscribers", func(t *testing.T) {
		require.NoError(t, actor.RemoveWallet(ctx, testWallet))

		envelope := readEnvelope(t, client)
		assert.Equal(t, MessageTypeWalletRemoved, envelope.Type)
		assert.JSONEq(t, `{"address":"`+testWallet+`"}`, string(envelope.Data))
	})

	t.Run("config_updated is redacted", func(t *testing.T) {
		threshold := 250.0
		webhook := testWebhook
		_, uErr := actor.UpdateConfig(ctx, data.ConfigPatch{Threshold: &threshold, TelegramWebhook: &webhook})
		require.NoError(t, uErr)

		envelope := readEnvelope(t, client)
		assert.Equal(t, MessageTypeConfigUpdated, envelope.Type)
		assert.JSONEq(t, `{"threshold":250,"telegramWebhook":"***"}`, string(envelope.Data))
	})

	t.Run("ping answers pong", func(t *testing.T) {
		require.NoError(t, client.WriteJSON(Envelope{Type: MessageTypePing}))

		envelope := readEnvelope(t, client)
		assert.Equal(t, MessageTypePong, envelope.Type)
		assert.Contains(t, string(envelope.Data), "timestamp")
	})

	t.Run("get_room_data returns a snapshot", func(t *testing.T) {
		require.NoError(t, client.WriteJSON(Envelope{Type: MessageTypeGetRoomData}))

		envelope := readEnvelope(t, client)
		assert.Equal(t, MessageTypeRoomData, envelope.Type)
		assert.JSONEq(t, `{"wallets":[],"labels":{},"presence":{"count":1}}`, string(envelope.Data))
	})

	t.Run("presence counts the session", func(t *testing.T) {
		assert.Equal(t, 1, actor.GetPresence())
	})
}

func Test_Actor_NotifySwap(t *testing.T) {
	ctx := context.Background()

	newSwap := func(amount float64) *data.SwapEvent {
		return &data.SwapEvent{
			TxHash:        "0xdeadbeef",
			WalletAddress: testWallet,
			TokenIn:       "USDC",
			TokenOut:      "WETH",
			AmountInUsd:   amount,
		}
	}

	t.Run("broadcasts to subscribers and reports delivery", func(t *testing.T) {
		registry := newTestRegistry(t, nil)
		actor := registry.Room("swap-bcast")
		_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
		require.NoError(t, err)

		client := dialTestSession(t, actor)

		result, err := actor.NotifySwap(ctx, newSwap(999))
		require.NoError(t, err)
		assert.True(t, result.Delivered)
		assert.False(t, result.TelegramSent)

		envelope := readEnvelope(t, client)
		assert.Equal(t, MessageTypeSwap, envelope.Type)
		assert.Contains(t, string(envelope.Data), testWallet)
	})

	t.Run("no subscribers means not delivered", func(t *testing.T) {
		registry := newTestRegistry(t, nil)
		actor := registry.Room("swap-empty")
		_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
		require.NoError(t, err)

		result, err := actor.NotifySwap(ctx, newSwap(999))
		require.NoError(t, err)
		assert.False(t, result.Delivered)
	})

	t.Run("pushes when the swap clears the threshold", func(t *testing.T) {
		pushClientMock := &message.PushNotifierClientMock{}
		pushed := make(chan message.Push, 1)
		pushClientMock.
			On("SendPush", mock.Anything, mock.AnythingOfType("message.Push")).
			Run(func(args mock.Arguments) { pushed <- args.Get(1).(message.Push) }).
			Return(nil).
			Once()

		registry := newTestRegistry(t, pushClientMock)
		actor := registry.Room("swap-push")
		threshold := 1000.0
		_, err := actor.CreateRoom(ctx, CreateRoomAttributes{Threshold: &threshold, TelegramWebhook: testWebhook})
		require.NoError(t, err)

		result, err := actor.NotifySwap(ctx, newSwap(1000))
		require.NoError(t, err)
		assert.True(t, result.TelegramSent)

		select {
		case push := <-pushed:
			assert.Equal(t, testWebhook, push.WebhookURL)
			assert.Contains(t, push.Text, "$1000.00")
			assert.Contains(t, push.Text, "USDC → WETH")
		case <-time.After(2 * time.Second):
			t.Fatal("expected a push to be dispatched")
		}
		pushClientMock.AssertExpectations(t)
	})

	t.Run("below the threshold no push goes out", func(t *testing.T) {
		pushClientMock := &message.PushNotifierClientMock{}

		registry := newTestRegistry(t, pushClientMock)
		actor := registry.Room("swap-below")
		threshold := 1000.0
		_, err := actor.CreateRoom(ctx, CreateRoomAttributes{Threshold: &threshold, TelegramWebhook: testWebhook})
		require.NoError(t, err)

		result, err := actor.NotifySwap(ctx, newSwap(999))
		require.NoError(t, err)
		assert.False(t, result.TelegramSent)
		pushClientMock.AssertNotCalled(t, "SendPush")
	})

	t.Run("absent threshold means no push even with a webhook", func(t *testing.T) {
		pushClientMock := &message.PushNotifierClientMock{}

		registry := newTestRegistry(t, pushClientMock)
		actor := registry.Room("swap-nothreshold")
		_, err := actor.CreateRoom(ctx, CreateRoomAttributes{TelegramWebhook: testWebhook})
		require.NoError(t, err)

		result, err := actor.NotifySwap(ctx, newSwap(1_000_000))
		require.NoError(t, err)
		assert.False(t, result.TelegramSent)
		pushClientMock.AssertNotCalled(t, "SendPush")
	})
}

func Test_Actor_Cleanup(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, nil)
	actor := registry.Room("cleanup")
	_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
	require.NoError(t, err)
	_, err = actor.AddWallet(ctx, testWallet, "fund")
	require.NoError(t, err)

	client := dialTestSession(t, actor)

	require.NoError(t, actor.Cleanup(ctx, "explicit", "Room closed"))

	t.Run("sessions are closed with 1000", func(t *testing.T) {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
		for {
			_, _, rErr := client.ReadMessage()
			if rErr != nil {
				var closeErr *websocket.CloseError
				require.ErrorAs(t, rErr, &closeErr)
				assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
				assert.Equal(t, "Room closed", closeErr.Text)
				return
			}
		}
	})

	t.Run("storage is wiped", func(t *testing.T) {
		_, gErr := actor.GetConfig(ctx)
		assert.ErrorIs(t, gErr, data.ErrRecordNotFound)

		entries, gErr := actor.GetWallets(ctx)
		require.NoError(t, gErr)
		assert.Empty(t, entries)
	})
}
