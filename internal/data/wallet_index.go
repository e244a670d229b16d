package data

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// walletIndexEntry is the value stored under "wallet:<address>".
type walletIndexEntry struct {
	Rooms       []string  `json:"rooms"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// roomIndexEntry is the value stored under "room:<code>:wallets".
type roomIndexEntry struct {
	Wallets     []string  `json:"wallets"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// WalletIndexModel maintains the bi-directional wallet↔room lookup. Every
// write updates both directions inside a single transaction, and all writes
// are set-like, so repeating one changes nothing.
type WalletIndexModel struct {
	kv *KV
}

// AddWalletToRoom records that code tracks address, in both directions.
func (m *WalletIndexModel) AddWalletToRoom(ctx context.Context, address, code string) error {
	if address == "" || code == "" {
		return ErrMissingInput
	}
	address = strings.ToLower(address)
	code = strings.ToLower(code)

	err := m.kv.Update(func(tx *bolt.Tx) error {
		now := time.Now().UTC()

		wEntry, wErr := readWalletEntry(tx, address)
		if wErr != nil {
			return wErr
		}
		if !slices.Contains(wEntry.Rooms, code) {
			wEntry.Rooms = append(wEntry.Rooms, code)
			wEntry.LastUpdated = now
			if pErr := putWalletEntry(tx, address, wEntry); pErr != nil {
				return pErr
			}
		}

		rEntry, rErr := readRoomEntry(tx, code)
		if rErr != nil {
			return rErr
		}
		if !slices.Contains(rEntry.Wallets, address) {
			rEntry.Wallets = append(rEntry.Wallets, address)
			rEntry.LastUpdated = now
			if pErr := putRoomEntry(tx, code, rEntry); pErr != nil {
				return pErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("indexing wallet %s for room %s: %w", address, code, err)
	}
	return nil
}

// RemoveWalletFromRoom removes the pairing in both directions, deleting
// entries that become empty. Removing an absent pairing is a no-op.
func (m *WalletIndexModel) RemoveWalletFromRoom(ctx context.Context, address, code string) error {
	if address == "" || code == "" {
		return ErrMissingInput
	}
	address = strings.ToLower(address)
	code = strings.ToLower(code)

	err := m.kv.Update(func(tx *bolt.Tx) error {
		return removeWalletFromRoomTx(tx, address, code)
	})
	if err != nil {
		return fmt.Errorf("unindexing wallet %s for room %s: %w", address, code, err)
	}
	return nil
}

// GetRoomsForWallet returns the codes of every room tracking address. A
// missing entry yields an empty slice.
func (m *WalletIndexModel) GetRoomsForWallet(ctx context.Context, address string) ([]string, error) {
	address = strings.ToLower(address)

	rooms := []string{}
	err := m.kv.View(func(tx *bolt.Tx) error {
		entry, rErr := readWalletEntry(tx, address)
		if rErr != nil {
			return rErr
		}
		rooms = append(rooms, entry.Rooms...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting rooms for wallet %s: %w", address, err)
	}
	return rooms, nil
}

// GetWalletsForRoom returns the addresses the room's index entry lists. A
// missing entry yields an empty slice.
func (m *WalletIndexModel) GetWalletsForRoom(ctx context.Context, code string) ([]string, error) {
	code = strings.ToLower(code)

	wallets := []string{}
	err := m.kv.View(func(tx *bolt.Tx) error {
		entry, rErr := readRoomEntry(tx, code)
		if rErr != nil {
			return rErr
		}
		wallets = append(wallets, entry.Wallets...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting wallets for room %s: %w", code, err)
	}
	return wallets, nil
}

// CleanupRoomIndex removes the room from every member wallet's entry and
// deletes the room's own entry. Cleaning an unknown room is a no-op.
func (m *WalletIndexModel) CleanupRoomIndex(ctx context.Context, code string) error {
	code = strings.ToLower(code)

	err := m.kv.Update(func(tx *bolt.Tx) error {
		entry, rErr := readRoomEntry(tx, code)
		if rErr != nil {
			return rErr
		}
		for _, address := range entry.Wallets {
			if remErr := removeWalletFromRoomTx(tx, address, code); remErr != nil {
				return remErr
			}
		}
		return tx.Bucket([]byte(BucketRoomIndex)).Delete(roomIndexKey(code))
	})
	if err != nil {
		return fmt.Errorf("cleaning up index for room %s: %w", code, err)
	}
	return nil
}

// AllTrackedWallets returns every address present in the wallet index, sorted
// and deduplicated. It backs the upstream filter sync.
func (m *WalletIndexModel) AllTrackedWallets(ctx context.Context) ([]string, error) {
	wallets := []string{}
	err := m.kv.View(func(tx *bolt.Tx) error {
		prefix := []byte(walletKeyPrefix)
		c := tx.Bucket([]byte(BucketWalletIndex)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), walletKeyPrefix); k, _ = c.Next() {
			wallets = append(wallets, strings.TrimPrefix(string(k), walletKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing tracked wallets: %w", err)
	}

	slices.Sort(wallets)
	return slices.Compact(wallets), nil
}

const walletKeyPrefix = "wallet:"

func walletIndexKey(address string) []byte {
	return []byte(walletKeyPrefix + address)
}

func roomIndexKey(code string) []byte {
	return []byte("room:" + code + ":wallets")
}

func removeWalletFromRoomTx(tx *bolt.Tx, address, code string) error {
	now := time.Now().UTC()

	wEntry, err := readWalletEntry(tx, address)
	if err != nil {
		return err
	}
	if idx := slices.Index(wEntry.Rooms, code); idx >= 0 {
		wEntry.Rooms = slices.Delete(wEntry.Rooms, idx, idx+1)
		wEntry.LastUpdated = now
		if len(wEntry.Rooms) == 0 {
			err = tx.Bucket([]byte(BucketWalletIndex)).Delete(walletIndexKey(address))
		} else {
			err = putWalletEntry(tx, address, wEntry)
		}
		if err != nil {
			return err
		}
	}

	rEntry, err := readRoomEntry(tx, code)
	if err != nil {
		return err
	}
	if idx := slices.Index(rEntry.Wallets, address); idx >= 0 {
		rEntry.Wallets = slices.Delete(rEntry.Wallets, idx, idx+1)
		rEntry.LastUpdated = now
		if len(rEntry.Wallets) == 0 {
			err = tx.Bucket([]byte(BucketRoomIndex)).Delete(roomIndexKey(code))
		} else {
			err = putRoomEntry(tx, code, rEntry)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func readWalletEntry(tx *bolt.Tx, address string) (*walletIndexEntry, error) {
	entry := &walletIndexEntry{}
	raw := tx.Bucket([]byte(BucketWalletIndex)).Get(walletIndexKey(address))
	if raw == nil {
		return entry, nil
	}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, fmt.Errorf("unmarshalling wallet index entry: %w", err)
	}
	return entry, nil
}

func putWalletEntry(tx *bolt.Tx, address string, entry *walletIndexEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling wallet index entry: %w", err)
	}
	if err = tx.Bucket([]byte(BucketWalletIndex)).Put(walletIndexKey(address), raw); err != nil {
		return fmt.Errorf("writing wallet index entry: %w", err)
	}
	return nil
}

func readRoomEntry(tx *bolt.Tx, code string) (*roomIndexEntry, error) {
	entry := &roomIndexEntry{}
	raw := tx.Bucket([]byte(BucketRoomIndex)).Get(roomIndexKey(code))
	if raw == nil {
		return entry, nil
	}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, fmt.Errorf("unmarshalling room index entry: %w", err)
	}
	return entry, nil
}

func putRoomEntry(tx *bolt.Tx, code string, entry *roomIndexEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshalling room index entry: %w", err)
	}
	if err = tx.Bucket([]byte(BucketRoomIndex)).Put(roomIndexKey(code), raw); err != nil {
		return fmt.Errorf("writing room index entry: %w", err)
	}
	return nil
}
