package lib

import (
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_challenges_served_total",
		Help: "The number of challenges handed out over HTTP",
	})

	postsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wall_posts_accepted_total",
		Help: "The number of posts that passed every gate",
	})

	postsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_posts_rejected_total",
		Help: "The number of posts rejected, by the kind of failure",
	}, []string{"kind"})

	wallReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_reads_total",
		Help: "The number of wall reads, by format",
	}, []string{"format"})
)

// ErrIncompleteOptions is returned by New when a required dependency is missing.
var ErrIncompleteOptions = errors.New("lib: incomplete server options")

// Server is the admission gateway in front of the wall.
type Server struct {
	mux  *http.ServeMux
	opts Options

	// appendLock makes the live feed deliver messages in the order their
	// appends completed.
	appendLock sync.Mutex
}

func New(opts Options) (*Server, error) {
	var errs []error
	if opts.Issuer == nil {
		errs = append(errs, errors.New("lib: no challenge issuer"))
	}
	if opts.Limiter == nil {
		errs = append(errs, errors.New("lib: no rate limiter"))
	}
	if opts.Messages == nil {
		errs = append(errs, errors.New("lib: no message store"))
	}
	if opts.Hub == nil {
		errs = append(errs, errors.New("lib: no realtime hub"))
	}
	if opts.ClientKeys == nil {
		errs = append(errs, errors.New("lib: no client keyer"))
	}
	if err := opts.Limits.Valid(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) != 0 {
		return nil, errors.Join(append([]error{ErrIncompleteOptions}, errs...)...)
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BasePrefix == "" {
		opts.BasePrefix = wall.BasePrefix
	}
	opts.BasePrefix = strings.TrimSuffix(opts.BasePrefix, "/")

	result := &Server{
		opts: opts,
	}

	mux := http.NewServeMux()

	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(method+opts.BasePrefix+pattern, handler)
	}

	registerWithPrefix("/challenge", http.HandlerFunc(result.GetChallenge), "GET")
	registerWithPrefix("/wall", internal.GzipMiddleware(gzip.BestSpeed, http.HandlerFunc(result.ListWall)), "GET")
	registerWithPrefix("/wall", http.HandlerFunc(result.PostWall), "POST")
	registerWithPrefix("/wall/live", opts.Hub, "GET")
	registerWithPrefix("/wall/{id}", http.HandlerFunc(result.GetMessage), "GET")
	registerWithPrefix("/healthz", http.HandlerFunc(result.Healthz), "GET")

	result.mux = mux

	return result, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Sweep evicts expired challenges and idle rate limit records once.
func (s *Server) Sweep(ctx context.Context, now time.Time) {
	challenges, err := s.opts.Issuer.SweepExpired(ctx, now)
	if err != nil {
		slog.Error("can't sweep challenges", "err", err)
	}

	records, err := s.opts.Limiter.Sweep(ctx, now)
	if err != nil {
		slog.Error("can't sweep rate limit records", "err", err)
	}

	if challenges != 0 || records != 0 {
		slog.Debug("swept", "challenges", challenges, "rate_limit_records", records)
	}
}

// Maintain runs Sweep every interval until ctx is done.
func (s *Server) Maintain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = wall.SweepInterval
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(ctx, s.opts.Now())
		}
	}
}

// Close disconnects every live reader.
func (s *Server) Close() {
	s.opts.Hub.Close()
}
