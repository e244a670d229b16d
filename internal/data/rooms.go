package data

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultRoomLifetime is the lifetime applied when a room is created, and
// when a config merge finds no existing record.
const DefaultRoomLifetime = 24 * time.Hour

// Keys inside each room's nested bucket.
var (
	keyWallets = []byte("wallets")
	keyLabels  = []byte("labels")
	keyConfig  = []byte("config")
)

// RoomConfig is the persisted configuration of a room.
type RoomConfig struct {
	Code            string    `json:"code"`
	CreatedAt       time.Time `json:"createdAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	CreatedBy       string    `json:"createdBy,omitempty"`
	Threshold       *float64  `json:"threshold,omitempty"`
	TelegramWebhook string    `json:"telegramWebhook,omitempty"`
}

// ConfigPatch is a partial update of RoomConfig. Nil fields are left
// untouched; a pointer to the zero value clears the field.
type ConfigPatch struct {
	Threshold       *float64
	TelegramWebhook *string
	ExpiresAt       *time.Time
}

// RoomModel reads and writes the per-room state stored under the room's
// nested bucket. Callers serialize access per room; each method is a single
// bolt transaction.
type RoomModel struct {
	kv *KV
}

// GetWallets returns the room's tracked addresses in insertion order. A
// missing room yields an empty slice.
func (m *RoomModel) GetWallets(ctx context.Context, code string) ([]string, error) {
	var wallets []string
	err := m.kv.View(func(tx *bolt.Tx) error {
		b := roomBucket(tx, code)
		if b == nil {
			return nil
		}
		var rErr error
		wallets, rErr = readWallets(b)
		return rErr
	})
	if err != nil {
		return nil, fmt.Errorf("getting wallets for room %s: %w", code, err)
	}
	if wallets == nil {
		wallets = []string{}
	}
	return wallets, nil
}

// HasWallet reports whether address is tracked by the room.
func (m *RoomModel) HasWallet(ctx context.Context, code, address string) (bool, error) {
	wallets, err := m.GetWallets(ctx, code)
	if err != nil {
		return false, err
	}
	return slices.Contains(wallets, address), nil
}

// AddWallet appends address to the room's wallet list and, when label is not
// empty, records it at the same time. It returns ErrRecordAlreadyExists for a
// duplicate address and ErrWalletListFull when the room already tracks
// MaxWalletsPerRoom wallets.
func (m *RoomModel) AddWallet(ctx context.Context, code, address, label string) error {
	if address == "" {
		return ErrMissingInput
	}

	err := m.kv.Update(func(tx *bolt.Tx) error {
		b, bErr := ensureRoomBucket(tx, code)
		if bErr != nil {
			return bErr
		}

		wallets, rErr := readWallets(b)
		if rErr != nil {
			return rErr
		}
		if slices.Contains(wallets, address) {
			return ErrRecordAlreadyExists
		}
		if len(wallets) >= MaxWalletsPerRoom {
			return ErrWalletListFull
		}

		if wErr := writeWallets(b, append(wallets, address)); wErr != nil {
			return wErr
		}

		if label == "" {
			return nil
		}
		labels, lErr := readLabels(b)
		if lErr != nil {
			return lErr
		}
		labels[address] = label
		return writeLabels(b, labels)
	})
	if err != nil {
		return fmt.Errorf("adding wallet to room %s: %w", code, err)
	}
	return nil
}

// RemoveWallet drops address from the room's wallet list together with its
// label. It returns ErrRecordNotFound when the address is not tracked.
func (m *RoomModel) RemoveWallet(ctx context.Context, code, address string) error {
	err := m.kv.Update(func(tx *bolt.Tx) error {
		b := roomBucket(tx, code)
		if b == nil {
			return ErrRecordNotFound
		}

		wallets, rErr := readWallets(b)
		if rErr != nil {
			return rErr
		}
		idx := slices.Index(wallets, address)
		if idx < 0 {
			return ErrRecordNotFound
		}

		if wErr := writeWallets(b, slices.Delete(wallets, idx, idx+1)); wErr != nil {
			return wErr
		}

		labels, lErr := readLabels(b)
		if lErr != nil {
			return lErr
		}
		if _, ok := labels[address]; !ok {
			return nil
		}
		delete(labels, address)
		return writeLabels(b, labels)
	})
	if err != nil {
		return fmt.Errorf("removing wallet from room %s: %w", code, err)
	}
	return nil
}

// GetLabels returns the address→label map of the room. A missing room yields
// an empty map.
func (m *RoomModel) GetLabels(ctx context.Context, code string) (map[string]string, error) {
	labels := map[string]string{}
	err := m.kv.View(func(tx *bolt.Tx) error {
		b := roomBucket(tx, code)
		if b == nil {
			return nil
		}
		var lErr error
		labels, lErr = readLabels(b)
		return lErr
	})
	if err != nil {
		return nil, fmt.Errorf("getting labels for room %s: %w", code, err)
	}
	return labels, nil
}

// SetLabel records label for a tracked address, or unsets it when label is
// empty. It returns ErrRecordNotFound when the address is not tracked, which
// keeps label keys a subset of the wallet list.
func (m *RoomModel) SetLabel(ctx context.Context, code, address, label string) error {
	err := m.kv.Update(func(tx *bolt.Tx) error {
		b := roomBucket(tx, code)
		if b == nil {
			return ErrRecordNotFound
		}

		wallets, rErr := readWallets(b)
		if rErr != nil {
			return rErr
		}
		if !slices.Contains(wallets, address) {
			return ErrRecordNotFound
		}

		labels, lErr := readLabels(b)
		if lErr != nil {
			return lErr
		}
		if label == "" {
			delete(labels, address)
		} else {
			labels[address] = label
		}
		return writeLabels(b, labels)
	})
	if err != nil {
		return fmt.Errorf("setting label in room %s: %w", code, err)
	}
	return nil
}

// GetConfig returns the room's stored config, or ErrRecordNotFound when the
// room was never created.
func (m *RoomModel) GetConfig(ctx context.Context, code string) (*RoomConfig, error) {
	var cfg *RoomConfig
	err := m.kv.View(func(tx *bolt.Tx) error {
		b := roomBucket(tx, code)
		if b == nil {
			return ErrRecordNotFound
		}
		raw := b.Get(keyConfig)
		if raw == nil {
			return ErrRecordNotFound
		}
		cfg = &RoomConfig{}
		if uErr := json.Unmarshal(raw, cfg); uErr != nil {
			return fmt.Errorf("unmarshalling config: %w", uErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting config for room %s: %w", code, err)
	}
	return cfg, nil
}

// SetConfig stores cfg as the room's config, creating the room bucket when
// needed.
func (m *RoomModel) SetConfig(ctx context.Context, code string, cfg *RoomConfig) error {
	if cfg == nil {
		return ErrMissingInput
	}

	err := m.kv.Update(func(tx *bolt.Tx) error {
		b, bErr := ensureRoomBucket(tx, code)
		if bErr != nil {
			return bErr
		}
		return writeConfig(b, cfg)
	})
	if err != nil {
		return fmt.Errorf("setting config for room %s: %w", code, err)
	}
	return nil
}

// Create stores a fresh config with the default lifetime. It returns
// ErrRecordAlreadyExists when the room already has one.
func (m *RoomModel) Create(ctx context.Context, code string, cfg *RoomConfig) (*RoomConfig, error) {
	if cfg == nil {
		cfg = &RoomConfig{}
	}
	now := time.Now().UTC()
	cfg.Code = code
	cfg.CreatedAt = now
	cfg.ExpiresAt = now.Add(DefaultRoomLifetime)

	err := m.kv.Update(func(tx *bolt.Tx) error {
		b, bErr := ensureRoomBucket(tx, code)
		if bErr != nil {
			return bErr
		}
		if b.Get(keyConfig) != nil {
			return ErrRecordAlreadyExists
		}
		return writeConfig(b, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("creating room %s: %w", code, err)
	}
	return cfg, nil
}

// UpdateConfig merges patch into the stored config and returns the result.
// When the room has no config yet it starts from a default one with the
// standard lifetime.
func (m *RoomModel) UpdateConfig(ctx context.Context, code string, patch ConfigPatch) (*RoomConfig, error) {
	var cfg *RoomConfig
	err := m.kv.Update(func(tx *bolt.Tx) error {
		b, bErr := ensureRoomBucket(tx, code)
		if bErr != nil {
			return bErr
		}

		cfg = &RoomConfig{}
		if raw := b.Get(keyConfig); raw != nil {
			if uErr := json.Unmarshal(raw, cfg); uErr != nil {
				return fmt.Errorf("unmarshalling config: %w", uErr)
			}
		} else {
			now := time.Now().UTC()
			cfg.Code = code
			cfg.CreatedAt = now
			cfg.ExpiresAt = now.Add(DefaultRoomLifetime)
		}

		if patch.Threshold != nil {
			cfg.Threshold = patch.Threshold
		}
		if patch.TelegramWebhook != nil {
			cfg.TelegramWebhook = *patch.TelegramWebhook
		}
		if patch.ExpiresAt != nil {
			cfg.ExpiresAt = patch.ExpiresAt.UTC()
		}

		return writeConfig(b, cfg)
	})
	if err != nil {
		return nil, fmt.Errorf("updating config for room %s: %w", code, err)
	}
	return cfg, nil
}

// DeleteAll removes every key of the room. Deleting a room that does not
// exist is a no-op.
func (m *RoomModel) DeleteAll(ctx context.Context, code string) error {
	err := m.kv.Update(func(tx *bolt.Tx) error {
		dErr := tx.Bucket([]byte(BucketRooms)).DeleteBucket([]byte(code))
		if dErr != nil && dErr != bolt.ErrBucketNotFound {
			return dErr
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", code, err)
	}
	return nil
}

// ListConfigs returns the stored config of every room that has one. It is
// used at startup to re-arm expiry timers.
func (m *RoomModel) ListConfigs(ctx context.Context) ([]*RoomConfig, error) {
	var configs []*RoomConfig
	err := m.kv.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketRooms)).ForEachBucket(func(code []byte) error {
			b := tx.Bucket([]byte(BucketRooms)).Bucket(code)
			raw := b.Get(keyConfig)
			if raw == nil {
				return nil
			}
			cfg := &RoomConfig{}
			if uErr := json.Unmarshal(raw, cfg); uErr != nil {
				return fmt.Errorf("unmarshalling config for room %s: %w", code, uErr)
			}
			configs = append(configs, cfg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing room configs: %w", err)
	}
	return configs, nil
}

func roomBucket(tx *bolt.Tx, code string) *bolt.Bucket {
	return tx.Bucket([]byte(BucketRooms)).Bucket([]byte(code))
}

func ensureRoomBucket(tx *bolt.Tx, code string) (*bolt.Bucket, error) {
	b, err := tx.Bucket([]byte(BucketRooms)).CreateBucketIfNotExists([]byte(code))
	if err != nil {
		return nil, fmt.Errorf("creating room bucket: %w", err)
	}
	return b, nil
}

func readWallets(b *bolt.Bucket) ([]string, error) {
	raw := b.Get(keyWallets)
	if raw == nil {
		return nil, nil
	}
	var wallets []string
	if err := json.Unmarshal(raw, &wallets); err != nil {
		return nil, fmt.Errorf("unmarshalling wallets: %w", err)
	}
	return wallets, nil
}

func writeWallets(b *bolt.Bucket, wallets []string) error {
	raw, err := json.Marshal(wallets)
	if err != nil {
		return fmt.Errorf("marshalling wallets: %w", err)
	}
	if err = b.Put(keyWallets, raw); err != nil {
		return fmt.Errorf("writing wallets: %w", err)
	}
	return nil
}

func readLabels(b *bolt.Bucket) (map[string]string, error) {
	labels := map[string]string{}
	raw := b.Get(keyLabels)
	if raw == nil {
		return labels, nil
	}
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("unmarshalling labels: %w", err)
	}
	return labels, nil
}

func writeLabels(b *bolt.Bucket, labels map[string]string) error {
	raw, err := json.Marshal(labels)
	if err != nil {
		return fmt.Errorf("marshalling labels: %w", err)
	}
	if err = b.Put(keyLabels, raw); err != nil {
		return fmt.Errorf("writing labels: %w", err)
	}
	return nil
}

func writeConfig(b *bolt.Bucket, cfg *RoomConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = b.Put(keyConfig, raw); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
