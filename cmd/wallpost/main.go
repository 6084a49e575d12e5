// Command wallpost fetches a challenge from a wall, solves it and posts a
// message.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/internal"
	"github.com/TecharoHQ/wall/lib/challenge/proofofwork"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
)

var (
	server    = flag.String("server", "http://localhost:8923", "base URL of the wall, including any base prefix")
	slogLevel = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	timeout   = flag.Duration("timeout", 5*time.Minute, "give up solving and posting after this long")
	read      = flag.Bool("read", false, "print the wall as text instead of posting")
	limit     = flag.Int("limit", wall.DefaultListLimit, "number of messages to print with -read")
)

var ErrServer = errors.New("wallpost: server rejected the request")

type challengeResponse struct {
	Nonce      string `json:"nonce"`
	Difficulty int    `json:"difficulty"`
}

type apiError struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

func main() {
	flagenv.Parse()
	flag.Parse()

	internal.InitSlog(*slogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	base := strings.TrimSuffix(*server, "/")

	if *read {
		if err := readWall(ctx, base, *limit, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		log.Fatal("usage: wallpost [flags] message...")
	}

	if err := post(ctx, base, text, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func readWall(ctx context.Context, base string, limit int, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/wall?format=text&limit=%d", base, limit), nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("can't read wall: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	_, err = io.Copy(out, resp.Body)
	return err
}

func post(ctx context.Context, base, text string, out io.Writer) error {
	chall, err := getChallenge(ctx, base)
	if err != nil {
		return err
	}

	slog.Debug("solving", "nonce", chall.Nonce, "difficulty", chall.Difficulty)
	t0 := time.Now()

	solution, err := proofofwork.Solve(ctx, chall.Nonce, chall.Difficulty)
	if err != nil {
		return fmt.Errorf("can't solve challenge: %w", err)
	}

	slog.Debug("solved", "solution", solution, "took", time.Since(t0).String())

	body, err := json.Marshal(map[string]string{
		"message":  text,
		"nonce":    chall.Nonce,
		"solution": solution,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/wall", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("can't post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	_, err = io.Copy(out, resp.Body)
	return err
}

func getChallenge(ctx context.Context, base string) (*challengeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/challenge", nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't fetch challenge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var chall challengeResponse
	if err := json.NewDecoder(resp.Body).Decode(&chall); err != nil {
		return nil, fmt.Errorf("can't decode challenge: %w", err)
	}

	return &chall, nil
}

func decodeError(resp *http.Response) error {
	var body apiError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		return fmt.Errorf("%w: status %d", ErrServer, resp.StatusCode)
	}

	if body.RetryAfterSeconds != 0 {
		return fmt.Errorf("%w: %s (retry in %ds)", ErrServer, body.Error, body.RetryAfterSeconds)
	}

	return fmt.Errorf("%w: %s", ErrServer, body.Error)
}
