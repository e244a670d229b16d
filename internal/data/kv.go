package data

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// BucketRooms holds one nested bucket per room code with the keys
	// "wallets", "labels" and "config".
	BucketRooms = "rooms"
	// BucketWalletIndex holds one "wallet:<address>" key per tracked wallet,
	// mapping it to the rooms that track it.
	BucketWalletIndex = "wallet_index"
	// BucketRoomIndex holds one "room:<code>:wallets" key per room, mirroring
	// the room's wallet list for reverse lookups.
	BucketRoomIndex = "room_index"
)

// openTimeout bounds how long we wait on the file lock held by another
// process before giving up.
const openTimeout = 3 * time.Second

// KV wraps the bolt database that backs all room state. A single KV is
// shared by every model and is safe for concurrent use.
type KV struct {
	db *bolt.DB
}

// OpenKV opens (or creates) the database file at path and makes sure the
// top-level buckets exist.
func OpenKV(path string) (*KV, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening kv store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketRooms, BucketWalletIndex, BucketRoomIndex} {
			if _, bErr := tx.CreateBucketIfNotExists([]byte(name)); bErr != nil {
				return fmt.Errorf("creating bucket %s: %w", name, bErr)
			}
		}
		return nil
	})
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("initializing kv store: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("initializing kv store: %w", err)
	}

	return &KV{db: db}, nil
}

// Close releases the database file lock. Pending transactions finish first.
func (kv *KV) Close() error {
	if err := kv.db.Close(); err != nil {
		return fmt.Errorf("closing kv store: %w", err)
	}
	return nil
}

// Path returns the location of the database file.
func (kv *KV) Path() string {
	return kv.db.Path()
}

// Ping verifies the store is readable. It is used by the health endpoint.
func (kv *KV) Ping() error {
	err := kv.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketRooms)) == nil {
			return fmt.Errorf("bucket %s is missing", BucketRooms)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pinging kv store: %w", err)
	}
	return nil
}

// View runs fn inside a read-only transaction.
func (kv *KV) View(fn func(tx *bolt.Tx) error) error {
	return kv.db.View(fn)
}

// Update runs fn inside a read-write transaction. Writes are only visible
// to readers after fn returns without error.
func (kv *KV) Update(fn func(tx *bolt.Tx) error) error {
	return kv.db.Update(fn)
}
