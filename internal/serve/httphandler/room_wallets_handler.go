package httphandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/room"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httperror"
	"github.com/swapwatch/swapwatch-backend/internal/serve/validators"
)

// RoomWalletsHandler serves the per-room wallet list. Room mutations go
// through the actor; the shared wallet index is updated only after the
// per-room write succeeded, and a failed index write is logged rather than
// rolled back since the set semantics self-heal on the next operation.
type RoomWalletsHandler struct {
	Registry    *room.Registry
	Models      *data.Models
	IndexSyncer room.IndexSyncer
}

// GetWallets handles GET /rooms/{code}/wallets.
func (h RoomWalletsHandler) GetWallets(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	entries, err := h.Registry.Room(code).GetWallets(ctx)
	if err != nil {
		renderRoomError(ctx, rw, err, "", "Room not found.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusOK, entries, httpjson.JSON)
}

// AddWallet handles POST /rooms/{code}/wallets. A duplicate address or a
// full list renders 409.
func (h RoomWalletsHandler) AddWallet(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	var reqBody validators.AddWalletRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(rw)
		return
	}

	validator := validators.NewWalletValidator()
	validated := validator.ValidateAddWalletRequest(&reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(rw)
		return
	}

	actor := h.Registry.Room(code)
	entry, err := actor.AddWallet(ctx, validated.Address, validated.Label)
	if err != nil {
		renderRoomError(ctx, rw, err, "Wallet is already tracked by this room.", "Room not found.")
		return
	}

	h.updateIndex(ctx, func() error {
		return h.Models.WalletIndex.AddWalletToRoom(ctx, validated.Address, actor.Code())
	})

	httpjson.RenderStatus(rw, http.StatusCreated, entry, httpjson.JSON)
}

// UpdateWallet handles PATCH /rooms/{code}/wallets/{address}: replaces the
// label of a tracked address. The index is label-agnostic, so no sync runs.
func (h RoomWalletsHandler) UpdateWallet(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	var reqBody validators.UpdateWalletRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(rw)
		return
	}

	validator := validators.NewWalletValidator()
	address := validator.ValidateAddress(chi.URLParam(req, "address"))
	validated := validator.ValidateUpdateWalletRequest(&reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(rw)
		return
	}

	entry, err := h.Registry.Room(code).UpdateWallet(ctx, address, validated.Label)
	if err != nil {
		renderRoomError(ctx, rw, err, "", "Wallet not tracked by this room.")
		return
	}

	httpjson.RenderStatus(rw, http.StatusOK, entry, httpjson.JSON)
}

// RemoveWallet handles DELETE /rooms/{code}/wallets/{address}. Removing an
// address the room never tracked renders 404.
func (h RoomWalletsHandler) RemoveWallet(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	code := chi.URLParam(req, "code")

	validator := validators.NewWalletValidator()
	address := validator.ValidateAddress(chi.URLParam(req, "address"))
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(rw)
		return
	}

	actor := h.Registry.Room(code)
	if err := actor.RemoveWallet(ctx, address); err != nil {
		renderRoomError(ctx, rw, err, "", "Wallet not tracked by this room.")
		return
	}

	h.updateIndex(ctx, func() error {
		return h.Models.WalletIndex.RemoveWalletFromRoom(ctx, address, actor.Code())
	})

	httpjson.RenderStatus(rw, http.StatusOK, map[string]string{}, httpjson.JSON)
}

func (h RoomWalletsHandler) updateIndex(ctx context.Context, fn func() error) {
	if err := fn(); err != nil {
		log.Ctx(ctx).Errorf("updating wallet index: %s", err.Error())
	}
	if h.IndexSyncer != nil {
		h.IndexSyncer.TriggerSync(ctx)
	}
}
