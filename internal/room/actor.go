package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/message"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
)

// ErrActorStopped is returned by operations issued against an actor that has
// already been shut down.
var ErrActorStopped = errors.New("room actor is stopped")

// pushTimeout bounds the external push attempt a swap notification may
// trigger. Pushes run detached from the notifying request.
const pushTimeout = 15 * time.Second

// alarmScheduler is the slice of the registry an actor uses to keep the
// room's scheduled self-destruct aligned with its expiresAt.
type alarmScheduler interface {
	Arm(code string, at time.Time)
	Disarm(code string)
}

// WalletEntry pairs a tracked address with its optional label.
type WalletEntry struct {
	Address string `json:"address"`
	Label   string `json:"label,omitempty"`
}

// CreateRoomAttributes is the validated input of CreateRoom.
type CreateRoomAttributes struct {
	Threshold       *float64
	TelegramWebhook string
	CreatedBy       string
}

// NotifySwapResult reports what a swap notification achieved. TelegramSent
// means a push was dispatched, not that the external endpoint accepted it.
type NotifySwapResult struct {
	Delivered    bool `json:"delivered"`
	TelegramSent bool `json:"telegramSent"`
}

// Actor is the single writer for one room. All operations are funneled
// through its mailbox and processed one at a time, so room state needs no
// further locking and every subscriber observes broadcasts in the same
// order the actor applied them.
type Actor struct {
	code     string
	models   *data.Models
	sessions *SessionManager

	pushClient     message.PushNotifierClient
	monitorService monitor.MonitorServiceInterface
	alarms         alarmScheduler

	mailbox chan func()
	quit    chan struct{}
}

func newActor(code string, models *data.Models, pushClient message.PushNotifierClient, monitorService monitor.MonitorServiceInterface, alarms alarmScheduler) *Actor {
	a := &Actor{
		code:           code,
		models:         models,
		sessions:       NewSessionManager(),
		pushClient:     pushClient,
		monitorService: monitorService,
		alarms:         alarms,
		mailbox:        make(chan func(), 64),
		quit:           make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Actor) run() {
	for {
		select {
		case task := <-a.mailbox:
			task()
		case <-a.quit:
			return
		}
	}
}

// stop terminates the mailbox loop. Pending tasks are abandoned.
func (a *Actor) stop() {
	select {
	case <-a.quit:
	default:
		close(a.quit)
	}
}

// perform enqueues fn and waits for it to finish. fn always runs to
// completion once started; a canceled context only stops the caller from
// waiting.
func (a *Actor) perform(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() { done <- fn() }

	select {
	case a.mailbox <- task:
	case <-a.quit:
		return ErrActorStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueueing room task: %w", ctx.Err())
	}

	select {
	case err := <-done:
		return err
	case <-a.quit:
		return ErrActorStopped
	case <-ctx.Done():
		return fmt.Errorf("awaiting room task: %w", ctx.Err())
	}
}

// Code returns the room code the actor serves.
func (a *Actor) Code() string {
	return a.code
}

// CreateRoom persists the room's initial config with the default lifetime
// and arms the expiry alarm. Creating a room that already exists returns
// data.ErrRecordAlreadyExists.
func (a *Actor) CreateRoom(ctx context.Context, attrs CreateRoomAttributes) (*data.RoomConfig, error) {
	var cfg *data.RoomConfig
	err := a.perform(ctx, func() error {
		var createErr error
		cfg, createErr = a.models.Rooms.Create(ctx, a.code, &data.RoomConfig{
			CreatedBy:       attrs.CreatedBy,
			Threshold:       attrs.Threshold,
			TelegramWebhook: attrs.TelegramWebhook,
		})
		if createErr != nil {
			return createErr
		}

		a.alarms.Arm(a.code, cfg.ExpiresAt)
		a.monitorCounter(monitor.RoomActivationsCounterTag, monitor.RoomLifecycleLabels{Trigger: "create"})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExtendRoom moves expiresAt to now + hours and re-arms the alarm. The room
// must exist.
func (a *Actor) ExtendRoom(ctx context.Context, hours int) (*data.RoomConfig, error) {
	var cfg *data.RoomConfig
	err := a.perform(ctx, func() error {
		if _, getErr := a.models.Rooms.GetConfig(ctx, a.code); getErr != nil {
			return getErr
		}

		expiresAt := time.Now().UTC().Add(time.Duration(hours) * time.Hour)
		var updateErr error
		cfg, updateErr = a.models.Rooms.UpdateConfig(ctx, a.code, data.ConfigPatch{ExpiresAt: &expiresAt})
		if updateErr != nil {
			return updateErr
		}

		a.alarms.Arm(a.code, cfg.ExpiresAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetWallets returns the tracked addresses with their labels, in insertion
// order.
func (a *Actor) GetWallets(ctx context.Context) ([]WalletEntry, error) {
	var entries []WalletEntry
	err := a.perform(ctx, func() error {
		var fnErr error
		entries, fnErr = a.walletEntries(ctx)
		return fnErr
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// AddWallet appends the canonical address, stores its label, and broadcasts
// wallet_added. Duplicates and a full list surface as data sentinel errors.
func (a *Actor) AddWallet(ctx context.Context, address, label string) (WalletEntry, error) {
	entry := WalletEntry{Address: address, Label: label}
	err := a.perform(ctx, func() error {
		if addErr := a.models.Rooms.AddWallet(ctx, a.code, address, label); addErr != nil {
			return addErr
		}

		a.broadcast(func() ([]byte, error) { return NewWalletAddedMessage(address, label) })
		return nil
	})
	if err != nil {
		return WalletEntry{}, err
	}
	return entry, nil
}

// RemoveWallet drops the address and its label and broadcasts
// wallet_removed. A missing address returns data.ErrRecordNotFound.
func (a *Actor) RemoveWallet(ctx context.Context, address string) error {
	return a.perform(ctx, func() error {
		if remErr := a.models.Rooms.RemoveWallet(ctx, a.code, address); remErr != nil {
			return remErr
		}

		a.broadcast(func() ([]byte, error) { return NewWalletRemovedMessage(address) })
		return nil
	})
}

// UpdateWallet replaces the label of a tracked address; an empty label
// unsets it.
func (a *Actor) UpdateWallet(ctx context.Context, address, label string) (WalletEntry, error) {
	entry := WalletEntry{Address: address, Label: label}
	err := a.perform(ctx, func() error {
		return a.models.Rooms.SetLabel(ctx, a.code, address, label)
	})
	if err != nil {
		return WalletEntry{}, err
	}
	return entry, nil
}

// GetConfig returns the stored config, or data.ErrRecordNotFound when the
// room was never created.
func (a *Actor) GetConfig(ctx context.Context) (*data.RoomConfig, error) {
	var cfg *data.RoomConfig
	err := a.perform(ctx, func() error {
		var getErr error
		cfg, getErr = a.models.Rooms.GetConfig(ctx, a.code)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// UpdateConfig merges the patch into the stored config and broadcasts
// config_updated with the webhook redacted.
func (a *Actor) UpdateConfig(ctx context.Context, patch data.ConfigPatch) (*data.RoomConfig, error) {
	var cfg *data.RoomConfig
	err := a.perform(ctx, func() error {
		var updateErr error
		cfg, updateErr = a.models.Rooms.UpdateConfig(ctx, a.code, patch)
		if updateErr != nil {
			return updateErr
		}

		a.broadcast(func() ([]byte, error) {
			return NewConfigUpdatedMessage(cfg.Threshold, cfg.TelegramWebhook != "")
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetPresence returns the current WebSocket session count.
func (a *Actor) GetPresence() int {
	return a.sessions.Count()
}

// HasWallet reports whether the room tracks the canonical address.
func (a *Actor) HasWallet(ctx context.Context, address string) (bool, error) {
	var tracked bool
	err := a.perform(ctx, func() error {
		var fnErr error
		tracked, fnErr = a.models.Rooms.HasWallet(ctx, a.code, address)
		return fnErr
	})
	if err != nil {
		return false, err
	}
	return tracked, nil
}

// NotifySwap broadcasts the swap to every subscriber and, when the room has
// both an explicit threshold and a telegram webhook and the swap clears the
// threshold, dispatches an external push. Push failures never fail the
// notification.
func (a *Actor) NotifySwap(ctx context.Context, event *data.SwapEvent) (NotifySwapResult, error) {
	var result NotifySwapResult
	err := a.perform(ctx, func() error {
		rawEvent, mErr := json.Marshal(event)
		if mErr != nil {
			return fmt.Errorf("marshalling swap event: %w", mErr)
		}

		raw, mErr := NewSwapMessage(rawEvent)
		if mErr != nil {
			return mErr
		}
		result.Delivered = a.sessions.Broadcast(raw) > 0

		cfg, cfgErr := a.models.Rooms.GetConfig(ctx, a.code)
		if cfgErr != nil {
			if errors.Is(cfgErr, data.ErrRecordNotFound) {
				return nil
			}
			return cfgErr
		}

		if a.shouldPush(cfg, event) {
			a.dispatchPush(cfg.TelegramWebhook, event)
			result.TelegramSent = true
		}
		return nil
	})
	if err != nil {
		return NotifySwapResult{}, err
	}
	return result, nil
}

// Snapshot returns a point-in-time view of the room used by the composite
// read and the get_room_data WebSocket request.
func (a *Actor) Snapshot(ctx context.Context) (RoomData, *data.RoomConfig, error) {
	var snapshot RoomData
	var cfg *data.RoomConfig
	err := a.perform(ctx, func() error {
		wallets, fnErr := a.models.Rooms.GetWallets(ctx, a.code)
		if fnErr != nil {
			return fnErr
		}
		labels, fnErr := a.models.Rooms.GetLabels(ctx, a.code)
		if fnErr != nil {
			return fnErr
		}

		cfg, fnErr = a.models.Rooms.GetConfig(ctx, a.code)
		if fnErr != nil && !errors.Is(fnErr, data.ErrRecordNotFound) {
			return fnErr
		}

		snapshot = RoomData{
			Wallets:  wallets,
			Labels:   labels,
			Presence: PresenceData{Count: a.sessions.Count()},
		}
		return nil
	})
	if err != nil {
		return RoomData{}, nil, err
	}
	return snapshot, cfg, nil
}

// Cleanup mass-closes the room's sessions, wipes its storage and disarms
// the alarm. It is invoked by the expiry alarm and by explicit deletion.
func (a *Actor) Cleanup(ctx context.Context, trigger, reason string) error {
	return a.perform(ctx, func() error {
		closed := a.sessions.CloseAll(websocket.CloseNormalClosure, reason)
		log.Ctx(ctx).Infof("room %s: closed %d sessions on cleanup (%s)", a.code, closed, trigger)

		if delErr := a.models.Rooms.DeleteAll(ctx, a.code); delErr != nil {
			return delErr
		}

		a.alarms.Disarm(a.code)
		a.monitorCounter(monitor.RoomDestructionsCounterTag, monitor.RoomLifecycleLabels{Trigger: trigger})
		return nil
	})
}

// broadcast serializes and fans out a message from inside the actor loop,
// preserving the room's total order.
func (a *Actor) broadcast(build func() ([]byte, error)) {
	raw, err := build()
	if err != nil {
		log.Errorf("room %s: building broadcast: %s", a.code, err.Error())
		return
	}
	a.sessions.Broadcast(raw)
}

/// shouldPush applies the threshold gate: pushes go out only when the room
// explicitly configured both a webhook and a threshold.
func (a *Actor) shouldPush(cfg *data.RoomConfig, event *data.SwapEvent) bool {
	if a.pushClient == nil || cfg.TelegramWebhook == "" || cfg.Threshold == nil {
		return false
	}
	return event.AmountInUsd >= *cfg.Threshold
}

// dispatchPush fires the external push without blocking the actor on the
// outbound request.
func (a *Actor) dispatchPush(webhookURL string, event *data.SwapEvent) {
	push := message.Push{
		WebhookURL: webhookURL,
		Text:       message.SwapPushText(event.WalletAddress, event.AmountInUsd, event.TokenIn, event.TokenOut, event.TxHash),
	}

	go func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		status := "success"
		if err := a.pushClient.SendPush(pushCtx, push); err != nil {
			status = "error"
			log.Errorf("room %s: sending push: %s", a.code, err.Error())
		}
		a.monitorCounterMap(monitor.PushNotificationsCounterTag, monitor.WebhookDeliveryLabels{Status: status}.ToMap())
	}()
}

func (a *Actor) walletEntries(ctx context.Context) ([]WalletEntry, error) {
	wallets, err := a.models.Rooms.GetWallets(ctx, a.code)
	if err != nil {
		return nil, err
	}
	labels, err := a.models.Rooms.GetLabels(ctx, a.code)
	if err != nil {
		return nil, err
	}

	entries := make([]WalletEntry, 0, len(wallets))
	for _, address := range wallets {
		entries = append(entries, WalletEntry{Address: address, Label: labels[address]})
	}
	return entries, nil
}

func (a *Actor) monitorCounter(tag monitor.MetricTag, labels monitor.RoomLifecycleLabels) {
	a.monitorCounterMap(tag, labels.ToMap())
}

func (a *Actor) monitorCounterMap(tag monitor.MetricTag, labels map[string]string) {
	if a.monitorService == nil {
		return
	}
	if err := a.monitorService.MonitorCounters(tag, labels); err != nil {
		log.Errorf("monitoring %s: %s", tag, err.Error())
	}
}
