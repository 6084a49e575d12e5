package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/wall/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

var (
	ErrNoURL      = errors.New("valkey.Config: no URL defined")
	ErrBadURL     = errors.New("valkey.Config: URL is invalid")
	ErrBadTimeout = errors.New("valkey.Config: dial_timeout must not be negative")
)

func init() {
	store.Register("valkey", Factory{})
}

// Factory builds valkey-backed stores.
type Factory struct{}

func (Factory) Build(ctx context.Context, data json.RawMessage) (store.Interface, error) {
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	rdb, err := Dial(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		rdb: rdb,
	}, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := ParseConfig(data)
	return err
}

// Config is shared by every valkey-backed component of the wall.
type Config struct {
	URL string `json:"url"`

	// DialTimeout overrides the client's connect timeout, e.g. "5s".
	DialTimeout string `json:"dial_timeout,omitempty"`
}

// ParseConfig decodes and validates a valkey Config from backend parameters.
func ParseConfig(data json.RawMessage) (Config, error) {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return Config{}, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	return config, nil
}

func (c Config) Valid() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, ErrNoURL)
	} else if _, err := valkey.ParseURL(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBadURL, err))
	}

	if c.DialTimeout != "" {
		if d, err := time.ParseDuration(c.DialTimeout); err != nil || d < 0 {
			errs = append(errs, ErrBadTimeout)
		}
	}

	if len(errs) != 0 {
		return fmt.Errorf("valkey.Config: invalid config: %w", errors.Join(errs...))
	}

	return nil
}

// Dial connects to valkey and pings it once.
func Dial(ctx context.Context, c Config) (*valkey.Client, error) {
	opts, err := valkey.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrBadConfig, err)
	}

	if c.DialTimeout != "" {
		d, _ := time.ParseDuration(c.DialTimeout)
		opts.DialTimeout = d
	}

	rdb := valkey.NewClient(opts)

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("can't ping valkey instance: %w", err)
	}

	return rdb, nil
}
