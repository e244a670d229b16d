package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/swapwatch/swapwatch-backend/internal/ingest"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httperror"
)

// maxWebhookBodyBytes caps a webhook delivery body.
const maxWebhookBodyBytes = 1 << 20 // 1 MiB

// WebhookHandler serves POST /webhook/coinbase. The signature is the only
// authentication; everything after it degrades to an "ignored" 200 so the
// provider never retries deliveries we simply have no use for.
type WebhookHandler struct {
	IngestService *ingest.Service
}

// WebhookIgnoredResponse is returned for accepted deliveries that produced
// no fan-out.
type WebhookIgnoredResponse struct {
	Status        string `json:"status"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Message       string `json:"message"`
}

// WebhookProcessedResponse is returned after a fan-out, with the per-room
// outcomes.
type WebhookProcessedResponse struct {
	Status        string                      `json:"status"`
	WalletAddress string                      `json:"walletAddress"`
	RoomsNotified int                         `json:"roomsNotified"`
	TotalRooms    int                         `json:"totalRooms"`
	Details       []ingest.RoomDispatchResult `json:"details"`
}

// ServeHTTP implements the http.Handler interface.
func (h WebhookHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodyBytes))
	if err != nil {
		httperror.BadRequest("Could not read request body.", err, nil).Render(rw)
		return
	}

	signature := req.Header.Get("X-Webhook-Signature")
	if err = h.IngestService.VerifySignature(signature, body); err != nil {
		h.IngestService.MonitorDelivery("unauthorized")
		if errors.Is(err, ingest.ErrMissingSignature) {
			httperror.Unauthorized("Missing signature", err, nil).Render(rw)
		} else {
			httperror.Unauthorized("Invalid signature", err, nil).Render(rw)
		}
		return
	}

	if h.IngestService.IsReplay(signature) {
		h.IngestService.MonitorDelivery("ignored")
		httpjson.RenderStatus(rw, http.StatusOK, WebhookIgnoredResponse{
			Status:  "ignored",
			Message: "Duplicate delivery",
		}, httpjson.JSON)
		return
	}

	var payload map[string]any
	if err = json.Unmarshal(body, &payload); err != nil {
		httperror.BadRequest("Invalid JSON body.", err, nil).Render(rw)
		return
	}

	walletAddress, found := ingest.ExtractWalletAddress(payload)
	if !found {
		h.IngestService.MonitorDelivery("ignored")
		httpjson.RenderStatus(rw, http.StatusOK, WebhookIgnoredResponse{
			Status:  "ignored",
			Message: "No wallet address found",
		}, httpjson.JSON)
		return
	}

	event, err := ingest.DecodeSwapEvent(body, walletAddress)
	if err != nil {
		httperror.BadRequest("Invalid swap event.", err, nil).Render(rw)
		return
	}

	summary, err := h.IngestService.FanOut(ctx, walletAddress, event)
	if err != nil {
		h.IngestService.MonitorDelivery("error")
		httperror.InternalError(ctx, "", err, nil).Render(rw)
		return
	}

	if summary.TotalRooms == 0 {
		h.IngestService.MonitorDelivery("ignored")
		httpjson.RenderStatus(rw, http.StatusOK, WebhookIgnoredResponse{
			Status:        "ignored",
			WalletAddress: walletAddress,
			Message:       "No rooms tracking this wallet",
		}, httpjson.JSON)
		return
	}

	h.IngestService.MonitorDelivery("processed")
	httpjson.RenderStatus(rw, http.StatusOK, WebhookProcessedResponse{
		Status:        "processed",
		WalletAddress: walletAddress,
		RoomsNotified: summary.RoomsNotified,
		TotalRooms:    summary.TotalRooms,
		Details:       summary.Details,
	}, httpjson.JSON)
}
