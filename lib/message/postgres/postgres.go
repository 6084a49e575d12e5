// Package postgres keeps the wall in a PostgreSQL table so that several wall
// instances can share it.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/wall/lib/message"
	"github.com/lib/pq"
)

var (
	ErrNoURL  = errors.New("postgres.Config: no url defined")
	ErrBadURL = errors.New("postgres.Config: url is invalid")
)

const queryTimeout = 5 * time.Second

func init() {
	message.Register("postgres", Factory{})
}

// Config is the postgres message backend configuration.
type Config struct {
	// URL is a libpq connection URL, e.g.
	// postgres://wall:hunter2@db:5432/wall?sslmode=disable
	URL string `json:"url"`

	MaxOpenConns int `json:"max_open_conns,omitempty"`
	MaxIdleConns int `json:"max_idle_conns,omitempty"`
}

func (c Config) Valid() error {
	var errs []error

	if c.URL == "" {
		errs = append(errs, ErrNoURL)
	} else if _, err := pq.ParseURL(c.URL); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBadURL, err))
	}

	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		errs = append(errs, errors.New("postgres.Config: connection limits must not be negative"))
	}

	if len(errs) != 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Factory builds postgres message backends.
type Factory struct{}

func (Factory) Build(ctx context.Context, data json.RawMessage) (message.Backend, error) {
	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	b, err := Open(ctx, config)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		b.Close()
	}()

	return b, nil
}

func (Factory) Valid(data json.RawMessage) error {
	_, err := parseConfig(data)
	return err
}

func parseConfig(data json.RawMessage) (Config, error) {
	var config Config
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return config, fmt.Errorf("%w: %w", message.ErrBadConfig, err)
	}

	if err := config.Valid(); err != nil {
		return config, fmt.Errorf("%w: %w", message.ErrBadConfig, err)
	}

	return config, nil
}

// Backend implements message.Backend on a messages table. Rows are ordered
// by a sequence so reads follow insert completion order.
type Backend struct {
	db *sql.DB
}

// Open connects, pings and migrates the schema.
func Open(ctx context.Context, config Config) (*Backend, error) {
	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(orDefault(config.MaxOpenConns, 25))
	db.SetMaxIdleConns(orDefault(config.MaxIdleConns, 5))
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	b := &Backend{db: db}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return b, nil
}

func orDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func (b *Backend) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		id UUID NOT NULL UNIQUE,
		text TEXT NOT NULL,
		x DOUBLE PRECISION NOT NULL,
		y DOUBLE PRECISION NOT NULL,
		color VARCHAR(7) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);
	`

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := b.db.ExecContext(ctx, schema)
	return err
}

func (b *Backend) Insert(ctx context.Context, msg message.Message) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := b.db.ExecContext(ctx, `
	INSERT INTO messages (id, text, x, y, color, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`,
		msg.ID,
		msg.Text,
		msg.Position.X,
		msg.Position.Y,
		msg.Color,
		msg.CreatedAt,
	)
	return err
}

func (b *Backend) List(ctx context.Context, limit int, order message.Order) ([]message.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT id, text, x, y, color, created_at FROM messages ORDER BY seq DESC LIMIT $1`
	if order == message.OrderOldestFirst {
		query = `SELECT id, text, x, y, color, created_at FROM messages ORDER BY seq ASC LIMIT $1`
	}

	rows, err := b.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]message.Message, 0, limit)
	for rows.Next() {
		msg, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, msg)
	}

	return result, rows.Err()
}

func (b *Backend) Get(ctx context.Context, id string) (message.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := b.db.QueryRowContext(ctx, `SELECT id, text, x, y, color, created_at FROM messages WHERE id = $1`, id)

	msg, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, fmt.Errorf("%w: %q", message.ErrNotFound, id)
	}

	return msg, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (message.Message, error) {
	var msg message.Message

	if err := row.Scan(&msg.ID, &msg.Text, &msg.Position.X, &msg.Position.Y, &msg.Color, &msg.CreatedAt); err != nil {
		return message.Message{}, fmt.Errorf("scanning row: %w", err)
	}

	msg.CreatedAt = msg.CreatedAt.UTC()

	return msg, nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}
