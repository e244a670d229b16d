package httphandler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/room"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httperror"
	"github.com/swapwatch/swapwatch-backend/internal/serve/validators"
)

// RoomHandler serves the room lifecycle and config endpoints. All room
// mutations are routed through the registry's per-room actor.
type RoomHandler struct {
	Registry *room.Registry
}

// RoomDetailsResponse is the composite read of GET /rooms/{code}. CreatedAt
// is omitted when the room has no persisted config, which keeps reads on an
// expired room from failing.
type RoomDetailsResponse struct {
	Code      string            `json:"code"`
	Wallets   []string          `json:"wallets"`
	Labels    map[string]string `json:"labels"`
	CreatedAt *time.Time        `json:"createdAt,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
	Presence  room.PresenceData `json:"presence"`
}

// CreateRoom handles POST /rooms. Creating a code that already exists is a
// conflict, never a silent reuse.
func (h RoomHandler) CreateRoom(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody validators.CreateRoomRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(rw)
		return
	}

	validator := validators.NewRoomValidator()
	validated := validator.ValidateCreateRoomRequest(&reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(rw)
		return
	}

	cfg, err := h.Registry.Room(validated.Code).CreateRoom(ctx, room.CreateRoomAttributes{
		Threshold:       validated.Threshold,
		TelegramWebhook: validated.TelegramWebhook,
		CreatedBy:       validated.CreatedBy,
	})
	if err != nil {
		renderRoomError(ctx, rw, err, "Room already exists.", "Room not found.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusCreated, cfg, httpjson.JSON)
}

/// GetRoom handles GET /rooms/{code}: the composite snapshot of wallets,
// labels, config timestamps and live presence.
func (h RoomHandler) GetRoom(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	snapshot, cfg, err := h.Registry.Room(code).Snapshot(ctx)
	if err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	resp := RoomDetailsResponse{
		Code:     h.Registry.Room(code).Code(),
		Wallets:  snapshot.Wallets,
		Labels:   snapshot.Labels,
		Presence: snapshot.Presence,
	}
	if cfg != nil {
		resp.CreatedAt = &cfg.CreatedAt
		resp.ExpiresAt = &cfg.ExpiresAt
	}

	httpjson.RenderStatus(rw, http.StatusOK, resp, httpjson.JSON)
}

// DeleteRoom handles DELETE /rooms/{code}: the explicit cleanup path. It
// runs the same destruction as the expiry alarm.
func (h RoomHandler) DeleteRoom(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	if _, err := h.Registry.Room(code).GetConfig(ctx); err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	if err := h.Registry.Destroy(ctx, code, "api", "Room closed"); err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusOK, map[string]string{"message": "Room deleted"}, httpjson.JSON)
}

// ExtendRoom handles POST /rooms/{code}/extend. An empty body extends by the
// default number of hours.
func (h RoomHandler) ExtendRoom(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	var reqBody *validators.ExtendRoomRequest
	err := httpdecode.DecodeJSON(req, &reqBody)
	if err != nil && !errors.Is(err, io.EOF) {
		httperror.BadRequest("", err, nil).Render(rw)
		return
	}

	validator := validators.NewRoomValidator()
	hours := validator.ValidateExtendRoomRequest(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(rw)
		return
	}

	cfg, err := h.Registry.Room(code).ExtendRoom(ctx, hours)
	if err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusOK, cfg, httpjson.JSON)
}

// GetConfig handles GET /rooms/{code}/config.
func (h RoomHandler) GetConfig(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	cfg, err := h.Registry.Room(code).GetConfig(ctx)
	if err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusOK, cfg, httpjson.JSON)
}

// UpdateConfig handles PUT /rooms/{code}/config as a merge-update: absent
// fields are left untouched.
func (h RoomHandler) UpdateConfig(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	var reqBody validators.UpdateConfigRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(rw)
		return
	}

	validator := validators.NewRoomValidator()
	validated := validator.ValidateUpdateConfigRequest(&reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(rw)
		return
	}

	cfg, err := h.Registry.Room(code).UpdateConfig(ctx, data.ConfigPatch{
		Threshold:       validated.Threshold,
		TelegramWebhook: validated.TelegramWebhook,
	})
	if err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusOK, cfg, httpjson.JSON)
}

// GetPresence handles GET /rooms/{code}/presence.
func (h RoomHandler) GetPresence(rw http.ResponseWriter, req *http.Request) {
	code := chi.URLParam(req, "code")
	presence := room.PresenceData{Count: h.Registry.Room(code).GetPresence()}
	httpjson.RenderStatus(rw, http.StatusOK, presence, httpjson.JSON)
}

// renderRoomError maps the data layer's sentinel errors to HTTP status
// codes. Everything unrecognized is an internal error.
func renderRoomError(ctx context.Context, rw http.ResponseWriter, err error, conflictMsg, notFoundMsg string) {
	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		httperror.NotFound(notFoundMsg, err, nil).Render(rw)
	case errors.Is(err, data.ErrRecordAlreadyExists):
		httperror.Conflict(conflictMsg, err, nil).Render(rw)
	case errors.Is(err, data.ErrWalletListFull):
		httperror.Conflict("The wallet list is full.", err, nil).Render(rw)
	case errors.Is(err, data.ErrMissingInput):
		httperror.BadRequest("", err, nil).Render(rw)
	default:
		httperror.InternalError(ctx, "", err, nil).Render(rw)
	}
}
