package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the store implementation cannot find the value
	// for a given key.
	ErrNotFound = errors.New("store: key not found")

	// ErrCantDecode is returned when a store adaptor cannot decode the store format
	// to a value used by the code.
	ErrCantDecode = errors.New("store: can't decode value")

	// ErrCantEncode is returned when a store adaptor cannot encode the value into
	// the format that the store uses.
	ErrCantEncode = errors.New("store: can't encode value")

	// ErrBadConfig is returned when a store adaptor's configuration is invalid.
	ErrBadConfig = errors.New("store: configuration is invalid")
)

// Interface defines the calls that the wall uses for short-lived state such as
// outstanding challenges. This can be implemented with an in-memory, on-disk,
// or in-database storage backend.
type Interface interface {
	// Delete removes a value from the store by key. Deleting a key that does
	// not exist (or has expired) returns an error wrapping ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key assuming that value exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set puts a value into the store that expires according to its expiry.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error
}

// Sweeper is implemented by backends that do not evict expired values on
// their own. Sweep removes every value that expired before now and reports
// how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Sweep runs the backend's Sweeper if it has one. Backends with native expiry
// report zero removals.
func Sweep(ctx context.Context, s Interface, now time.Time) (int, error) {
	sw, ok := s.(Sweeper)
	if !ok {
		return 0, nil
	}

	return sw.Sweep(ctx, now)
}

func z[T any]() T { return *new(T) }

// JSON wraps an Interface and stores values of type T encoded as JSON under
// Prefix+key.
type JSON[T any] struct {
	Underlying Interface
	Prefix     string
}

func (j *JSON[T]) key(key string) string {
	if j.Prefix != "" {
		return j.Prefix + key
	}

	return key
}

func (j *JSON[T]) Delete(ctx context.Context, key string) error {
	return j.Underlying.Delete(ctx, j.key(key))
}

func (j *JSON[T]) Get(ctx context.Context, key string) (T, error) {
	data, err := j.Underlying.Get(ctx, j.key(key))
	if err != nil {
		return z[T](), err
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return z[T](), fmt.Errorf("%w: %w", ErrCantDecode, err)
	}

	return result, nil
}

func (j *JSON[T]) Set(ctx context.Context, key string, value T, expiry time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCantEncode, err)
	}

	if err := j.Underlying.Set(ctx, j.key(key), data, expiry); err != nil {
		return err
	}

	return nil
}
