// Package bbolt keeps the wall in a single bbolt[1] file.
//
// Messages live in the "messages" bucket keyed by their big-endian creation
// time in nanoseconds followed by the id, so a cursor walks them in creation
// order. The "ids" bucket maps each id to its key for Get.
//
// [1]: https://github.com/etcd-io/bbolt
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/wall/lib/message"
	storebbolt "github.com/TecharoHQ/wall/lib/store/bbolt"
	"go.etcd.io/bbolt"
)

var (
	bucketMessages = []byte("messages")
	bucketIDs      = []byte("ids")
)

var ErrDuplicateID = errors.New("bbolt: duplicate message id")

func init() {
	message.Register("bbolt", Factory{})
}

// Factory builds bbolt message backends. It takes the same parameters as
// the bbolt KV store.
type Factory struct{}

func (Factory) Build(ctx context.Context, data json.RawMessage) (message.Backend, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	bdb, err := storebbolt.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt database %s: %w", config.Path, err)
	}

	if err := bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMessages, bucketIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("can't create buckets in %s: %w", config.Path, err)
	}

	go func() {
		<-ctx.Done()
		bdb.Close()
	}()

	return &Backend{bdb: bdb}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

func parseConfig(data json.RawMessage) (storebbolt.Config, error) {
	var config storebbolt.Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return config, fmt.Errorf("%w: %w", message.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", message.ErrBadConfig, err)
	}

	return config, nil
}

// Backend implements message.Backend.
type Backend struct {
	bdb *bbolt.DB
}

func messageKey(msg message.Message) []byte {
	key := make([]byte, 8, 8+len(msg.ID))
	binary.BigEndian.PutUint64(key, uint64(msg.CreatedAt.UnixNano()))
	return append(key, msg.ID...)
}

func (b *Backend) Insert(_ context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("can't encode message: %w", err)
	}

	key := messageKey(msg)

	return b.bdb.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketIDs)
		if ids.Get([]byte(msg.ID)) != nil {
			return fmt.Errorf("%w: %q", ErrDuplicateID, msg.ID)
		}

		if err := tx.Bucket(bucketMessages).Put(key, data); err != nil {
			return err
		}

		return ids.Put([]byte(msg.ID), key)
	})
}

func (b *Backend) List(_ context.Context, limit int, order message.Order) ([]message.Message, error) {
	result := make([]message.Message, 0, limit)

	err := b.bdb.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()

		first, next := c.Last, c.Prev
		if order == message.OrderOldestFirst {
			first, next = c.First, c.Next
		}

		for k, v := first(); k != nil && len(result) < limit; k, v = next() {
			var msg message.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("can't decode message at key %x: %w", k, err)
			}
			result = append(result, msg)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (b *Backend) Get(_ context.Context, id string) (message.Message, error) {
	var msg message.Message

	err := b.bdb.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get([]byte(id))
		if key == nil {
			return fmt.Errorf("%w: %q", message.ErrNotFound, id)
		}

		data := tx.Bucket(bucketMessages).Get(key)
		if data == nil {
			return fmt.Errorf("[unexpected] %w: %q is indexed but missing", message.ErrNotFound, id)
		}

		return json.Unmarshal(data, &msg)
	})

	return msg, err
}
