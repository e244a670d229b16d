// Package ingest implements the webhook ingress pipeline: signature
// verification, wallet extraction, replay suppression and the per-room
// fan-out of swap events.
package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
	"github.com/swapwatch/swapwatch-backend/internal/room"
	"github.com/swapwatch/swapwatch-backend/internal/utils"
)

var (
	// ErrMissingSignature is returned when the delivery carries no
	// X-Webhook-Signature header.
	ErrMissingSignature = errors.New("missing signature")
	// ErrInvalidSignature is returned when the signature does not match the
	// body HMAC.
	ErrInvalidSignature = errors.New("invalid signature")
)

// replayCacheSize caps the replay guard. Entries also expire on their TTL,
// so the cap only matters under sustained duplicate floods.
const replayCacheSize = 4096

// walletProbeOrder is the ordered list of top-level fields checked for the
// affected wallet address.
var walletProbeOrder = []string{"from", "to", "walletAddress"}

// RoomNotifier dispatches a swap notification to a single room.
type RoomNotifier interface {
	NotifySwap(ctx context.Context, code string, event *data.SwapEvent) (room.NotifySwapResult, error)
}

var _ RoomNotifier = (*room.Registry)(nil)

// RoomDispatchResult is the per-room outcome of a fan-out.
type RoomDispatchResult struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// FanOutSummary aggregates one delivery's fan-out.
type FanOutSummary struct {
	RoomsNotified int
	TotalRooms    int
	Details       []RoomDispatchResult
}

type ServiceOptions struct {
	WebhookSecret  string
	ReplayTTL      time.Duration
	Models         *data.Models
	Notifier       RoomNotifier
	MonitorService monitor.MonitorServiceInterface
}

// Service is the stateless ingress pipeline. The replay guard is its only
// in-memory state and losing it merely re-admits a duplicate.
type Service struct {
	webhookSecret  string
	models         *data.Models
	notifier       RoomNotifier
	monitorService monitor.MonitorServiceInterface
	replayGuard    *expirable.LRU[string, struct{}]
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret cannot be empty")
	}
	if opts.Models == nil {
		return nil, fmt.Errorf("models cannot be nil")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}

	s := &Service{
		webhookSecret:  opts.WebhookSecret,
		models:         opts.Models,
		notifier:       opts.Notifier,
		monitorService: opts.MonitorService,
	}
	if opts.ReplayTTL > 0 {
		s.replayGuard = expirable.NewLRU[string, struct{}](replayCacheSize, nil, opts.ReplayTTL)
	}
	return s, nil
}

// VerifySignature checks the hex-encoded HMAC-SHA-256 of body against the
// provided header value in constant time. The provided value is compared
// case-insensitively.
func (s *Service) VerifySignature(signature string, body []byte) error {
	if signature == "" {
		return ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

// IsReplay reports whether this signature was already accepted inside the
// replay TTL, recording it either way. With the guard disabled it always
// reports false.
func (s *Service) IsReplay(signature string) bool {
	if s.replayGuard == nil {
		return false
	}

	key := strings.ToLower(signature)
	if _, seen := s.replayGuard.Get(key); seen {
		s.monitorCounter(monitor.ReplayBlockedCounterTag, nil)
		return true
	}
	s.replayGuard.Add(key, struct{}{})
	return false
}

// ExtractWalletAddress probes the decoded body for the affected wallet, in
// the order from, to, walletAddress, addresses[0], and returns its canonical
// lowercase form. Fields that exist but hold something other than a
// well-formed address are skipped.
func ExtractWalletAddress(payload map[string]any) (string, bool) {
	for _, field := range walletProbeOrder {
		if address, ok := probeAddress(payload[field]); ok {
			return address, true
		}
	}

	if addresses, ok := payload["addresses"].([]any); ok && len(addresses) > 0 {
		if address, ok := probeAddress(addresses[0]); ok {
			return address, true
		}
	}

	return "", false
}

func probeAddress(value any) (string, bool) {
	str, ok := value.(string)
	if !ok || !utils.IsWalletAddress(str) {
		return "", false
	}
	canonical, err := utils.CanonicalizeWalletAddress(str)
	if err != nil {
		return "", false
	}
	return canonical, true
}

// DecodeSwapEvent turns the raw delivery into the event rooms receive, with
// the already-extracted wallet address stamped in canonical form.
func DecodeSwapEvent(body []byte, walletAddress string) (*data.SwapEvent, error) {
	event := &data.SwapEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, fmt.Errorf("unmarshalling swap event: %w", err)
	}
	event.WalletAddress = walletAddress

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validating swap event: %w", err)
	}
	return event, nil
}

// FanOut looks up every room tracking the wallet and dispatches the event
// to each in parallel, collecting per-room outcomes without ever failing
// the delivery.
func (s *Service) FanOut(ctx context.Context, walletAddress string, event *data.SwapEvent) (FanOutSummary, error) {
	codes, err := s.models.WalletIndex.GetRoomsForWallet(ctx, walletAddress)
	if err != nil {
		return FanOutSummary{}, fmt.Errorf("looking up rooms for wallet: %w", err)
	}

	summary := FanOutSummary{
		TotalRooms: len(codes),
		Details:    make([]RoomDispatchResult, len(codes)),
	}
	if len(codes) == 0 {
		return summary, nil
	}

	started := time.Now()
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			summary.Details[i] = s.dispatch(ctx, code, event)
		}(i, code)
	}
	wg.Wait()

	for _, detail := range summary.Details {
		if detail.Status == "notified" {
			summary.RoomsNotified++
		}
	}

	s.monitorDuration(time.Since(started), monitor.SwapFanoutDurationTag, monitor.WebhookDeliveryLabels{Status: "processed"}.ToMap())
	s.monitorHistogram(float64(summary.TotalRooms), monitor.RoomsNotifiedHistogramTag)
	return summary, nil
}

func (s *Service) dispatch(ctx context.Context, code string, event *data.SwapEvent) RoomDispatchResult {
	if _, err := s.notifier.NotifySwap(ctx, code, event); err != nil {
		log.Ctx(ctx).Errorf("notifying room %s: %s", code, err.Error())
		return RoomDispatchResult{Code: code, Status: "error", Error: err.Error()}
	}
	return RoomDispatchResult{Code: code, Status: "notified"}
}

// MonitorDelivery records the final outcome of a webhook delivery.
func (s *Service) MonitorDelivery(status string) {
	s.monitorCounter(monitor.WebhookDeliveriesCounterTag, monitor.WebhookDeliveryLabels{Status: status}.ToMap())
}

func (s *Service) monitorCounter(tag monitor.MetricTag, labels map[string]string) {
	if s.monitorService == nil {
		return
	}
	if err := s.monitorService.MonitorCounters(tag, labels); err != nil {
		log.Errorf("monitoring %s: %s", tag, err.Error())
	}
}

func (s *Service) monitorDuration(duration time.Duration, tag monitor.MetricTag, labels map[string]string) {
	if s.monitorService == nil {
		return
	}
	if err := s.monitorService.MonitorDuration(duration, tag, labels); err != nil {
		log.Errorf("monitoring %s: %s", tag, err.Error())
	}
}

func (s *Service) monitorHistogram(value float64, tag monitor.MetricTag) {
	if s.monitorService == nil {
		return
	}
	if err := s.monitorService.MonitorHistogram(value, tag, map[string]string{}); err != nil {
		log.Errorf("monitoring %s: %s", tag, err.Error())
	}
}
