package bbolt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/lib/store"
	"go.etcd.io/bbolt"
)

// Sentinel error values used for testing and in admin-visible error messages.
var (
	ErrBucketDoesNotExist = errors.New("bbolt: bucket does not exist")
	ErrNotExists          = errors.New("bbolt: value does not exist in store")
)

// Store implements store.Interface backed by bbolt[1].
//
// Every value is given its own bucket with two keys:
//
// 1. data - The raw data, usually in JSON
// 2. expiry - The expiry time formatted as a time.RFC3339Nano timestamp string
//
// Sweep iterates over every bucket and only reads the expiry key, so records
// never need to be decoded to be evicted.
//
// bbolt takes an exclusive file lock. Multiple wall instances that need to
// share challenges should use the valkey backend instead.
//
// [1]: https://github.com/etcd-io/bbolt
type Store struct {
	bdb *bbolt.DB
}

// Delete a key from the datastore. If the key does not exist or has already
// expired, return an error wrapping store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	now := time.Now()

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		itemBucket := tx.Bucket([]byte(key))
		if itemBucket == nil {
			return fmt.Errorf("%w: %w: %q", store.ErrNotFound, ErrNotExists, key)
		}

		expired := false
		if expiry, err := readExpiry(itemBucket); err == nil && now.After(expiry) {
			expired = true
		}

		if err := tx.DeleteBucket([]byte(key)); err != nil {
			return err
		}

		if expired {
			return fmt.Errorf("%w: %q (expired)", store.ErrNotFound, key)
		}

		return nil
	})
}

// Get a value from the datastore.
//
// Expired values are reported as missing. Sweep deletes them later.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		itemBucket := tx.Bucket([]byte(key))
		if itemBucket == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		expiry, err := readExpiry(itemBucket)
		if err != nil {
			return fmt.Errorf("[unexpected] %w: %q", err, key)
		}

		if time.Now().After(expiry) {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		dataStr := itemBucket.Get([]byte("data"))
		if dataStr == nil {
			return fmt.Errorf("[unexpected] %w: %q (data is nil)", store.ErrNotFound, key)
		}

		result = make([]byte, len(dataStr))
		copy(result, dataStr)

		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// Set a value into the store with a given expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	expires := time.Now().Add(expiry)

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		valueBkt, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("%w: %w: %q (create bucket)", store.ErrCantEncode, err, key)
		}

		if err := valueBkt.Put([]byte("expiry"), []byte(expires.Format(time.RFC3339Nano))); err != nil {
			return fmt.Errorf("%w: %q (expiry)", store.ErrCantEncode, key)
		}

		if err := valueBkt.Put([]byte("data"), value); err != nil {
			return fmt.Errorf("%w: %q (data)", store.ErrCantEncode, key)
		}

		return nil
	})
}

// Sweep deletes every bucket whose expiry is before now.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	var removed int

	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		var doomed [][]byte

		if err := tx.ForEach(func(key []byte, valueBkt *bbolt.Bucket) error {
			expiry, err := readExpiry(valueBkt)
			if errors.Is(err, store.ErrNotFound) {
				slog.Warn("while running sweep, expiry is not set somehow, file a bug?", "key", string(key))
				return nil
			}
			if err != nil {
				return fmt.Errorf("[unexpected] in bucket %q: %w", string(key), err)
			}

			if now.After(expiry) {
				doomed = append(doomed, append([]byte(nil), key...))
			}

			return nil
		}); err != nil {
			return err
		}

		// Buckets can't be deleted while ForEach walks them.
		for _, key := range doomed {
			if err := tx.DeleteBucket(key); err != nil {
				return fmt.Errorf("%w: %q", ErrBucketDoesNotExist, string(key))
			}
			removed++
		}

		return nil
	})

	return removed, err
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(wall.SweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.bdb.Close(); err != nil {
				slog.Error("error closing bbolt database", "err", err)
			}
			return
		case now := <-t.C:
			if _, err := s.Sweep(ctx, now); err != nil {
				slog.Error("error during bbolt sweep", "err", err)
			}
		}
	}
}

func readExpiry(bkt *bbolt.Bucket) (time.Time, error) {
	expiryStr := bkt.Get([]byte("expiry"))
	if expiryStr == nil {
		return time.Time{}, fmt.Errorf("%w: expiry is nil", store.ErrNotFound)
	}

	expiry, err := time.Parse(time.RFC3339Nano, string(expiryStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", store.ErrCantDecode, err)
	}

	return expiry, nil
}
