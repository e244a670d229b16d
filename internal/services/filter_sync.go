package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httpclient"
)

const (
	// syncTimeout bounds one reconciliation pass, retries included.
	syncTimeout = 30 * time.Second
	// syncAttempts is how many times one pass retries the upstream PATCH.
	syncAttempts = 3
	// syncRetryDelay is the pause between consecutive PATCH attempts.
	syncRetryDelay = 500 * time.Millisecond
)

// FilterSyncOptions configures the upstream webhook-filter reconciliation.
// The three upstream fields come from the provider's API credentials; when
// any of them is empty the service stays in no-op mode.
type FilterSyncOptions struct {
	Models         *data.Models
	HTTPClient     httpclient.HttpClientInterface
	MonitorService monitor.MonitorServiceInterface

	UpstreamAPIBaseURL string
	UpstreamWebhookID  string
	UpstreamKeyName    string
	UpstreamPrivateKey string
}

// FilterSyncService keeps the upstream provider's address filter equal to
// the union of all tracked wallets. Every pass is best-effort: failures are
// logged and the next index write converges again.
type FilterSyncService struct {
	models         *data.Models
	httpClient     httpclient.HttpClientInterface
	monitorService monitor.MonitorServiceInterface

	endpoint   string
	keyName    string
	privateKey string
}

// filterPatchRequest is the upstream PATCH body.
type filterPatchRequest struct {
	Filters struct {
		Addresses []string `json:"addresses"`
	} `json:"filters"`
}

func NewFilterSyncService(opts FilterSyncOptions) (*FilterSyncService, error) {
	if opts.Models == nil {
		return nil, fmt.Errorf("models cannot be nil")
	}
	if opts.HTTPClient == nil {
		return nil, fmt.Errorf("http client cannot be nil")
	}

	s := &FilterSyncService{
		models:         opts.Models,
		httpClient:     opts.HTTPClient,
		monitorService: opts.MonitorService,
		keyName:        opts.UpstreamKeyName,
		privateKey:     opts.UpstreamPrivateKey,
	}

	if opts.UpstreamWebhookID != "" && opts.UpstreamKeyName != "" && opts.UpstreamPrivateKey != "" {
		endpoint, err := url.JoinPath(opts.UpstreamAPIBaseURL, "webhooks", opts.UpstreamWebhookID)
		if err != nil {
			return nil, fmt.Errorf("building upstream webhook url: %w", err)
		}
		s.endpoint = endpoint
	}

	return s, nil
}

// IsConfigured reports whether upstream credentials were provided.
func (s *FilterSyncService) IsConfigured() bool {
	return s.endpoint != ""
}

// TriggerSync starts a reconciliation pass in the background. It never
// blocks the caller and never surfaces errors; unconfigured services skip
// silently.
func (s *FilterSyncService) TriggerSync(ctx context.Context) {
	if !s.IsConfigured() {
		return
	}

	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		status := "success"
		if err := s.SyncOnce(syncCtx); err != nil {
			status = "error"
			log.Ctx(ctx).Errorf("syncing upstream webhook filter: %s", err.Error())
		}
		s.monitorCounter(status)
	}()
}

// SyncOnce performs one reconciliation pass synchronously: it computes the
// union of tracked wallets and PATCHes the upstream filter. An empty union
// skips the call.
func (s *FilterSyncService) SyncOnce(ctx context.Context) error {
	if !s.IsConfigured() {
		return nil
	}

	addresses, err := s.models.WalletIndex.AllTrackedWallets(ctx)
	if err != nil {
		return fmt.Errorf("listing tracked wallets: %w", err)
	}
	if len(addresses) == 0 {
		return nil
	}

	var patch filterPatchRequest
	patch.Filters.Addresses = addresses
	reqBody, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshalling filter patch: %w", err)
	}

	return retry.Do(
		func() error {
			return s.patchUpstream(ctx, reqBody)
		},
		retry.Context(ctx),
		retry.Attempts(syncAttempts),
		retry.Delay(syncRetryDelay),
		retry.LastErrorOnly(true),
	)
}

func (s *FilterSyncService) patchUpstream(ctx context.Context, reqBody []byte) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("creating upstream request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Api-Key-Name", s.keyName)
	request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.privateKey))

	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("making request to upstream: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode/100 != 2 {
		return fmt.Errorf("upstream returned status %d", response.StatusCode)
	}
	return nil
}

func (s *FilterSyncService) monitorCounter(status string) {
	if s.monitorService == nil {
		return
	}
	err := s.monitorService.MonitorCounters(monitor.FilterSyncsCounterTag, monitor.WebhookDeliveryLabels{Status: status}.ToMap())
	if err != nil {
		log.Errorf("monitoring %s: %s", monitor.FilterSyncsCounterTag, err.Error())
	}
}
