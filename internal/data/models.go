package data

import (
	"errors"
)

var (
	// ErrRecordNotFound is returned when the requested key is absent.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordAlreadyExists is returned when a create or add collides with
	// an existing record.
	ErrRecordAlreadyExists = errors.New("record already exists")
	// ErrWalletListFull is returned when a room already tracks the maximum
	// number of wallets.
	ErrWalletListFull = errors.New("wallet list is full")
	// ErrMissingInput is returned when a required argument is empty.
	ErrMissingInput = errors.New("missing input")
)

// MaxWalletsPerRoom caps how many wallets a single room may track.
const MaxWalletsPerRoom = 50

// Models aggregates every data access object on top of a shared KV store.
type Models struct {
	Rooms       *RoomModel
	WalletIndex *WalletIndexModel
	KV          *KV
}

// NewModels builds the model set bound to kv.
func NewModels(kv *KV) (*Models, error) {
	if kv == nil {
		return nil, errors.New("kv store cannot be nil")
	}

	return &Models{
		Rooms:       &RoomModel{kv: kv},
		WalletIndex: &WalletIndexModel{kv: kv},
		KV:          kv,
	}, nil
}
