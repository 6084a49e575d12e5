package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/wall"
	"github.com/TecharoHQ/wall/data"
	"github.com/TecharoHQ/wall/internal"
	libwall "github.com/TecharoHQ/wall/lib"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/yaml"
)

var (
	basePrefix         = flag.String("base-prefix", "", "base prefix (root URL) the wall is served under e.g. /wall-api")
	bind               = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork        = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	difficulty         = flag.Int("difficulty", 0, "if set, overrides the proof-of-work difficulty from the config file")
	configFname        = flag.String("config-fname", "", "full path to the wall config document (defaults to a sensible built-in config)")
	extractConfig      = flag.String("extract-config", "", "if set, extract the built-in config to the specified folder")
	healthcheck        = flag.Bool("healthcheck", false, "run a health check against the wall")
	metricsBind        = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	printConfig        = flag.Bool("print-config", false, "print the effective config as YAML and exit")
	slogLevel          = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode         = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	sweepInterval      = flag.Duration("sweep-interval", wall.SweepInterval, "how often expired challenges and idle rate limit records are evicted")
	useRemoteAddress   = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running the wall on bare metal")
	versionFlag        = flag.Bool("version", false, "print the wall version")
	xffStripPrivate    = flag.Bool("xff-strip-private", true, "if set, strip private addresses from X-Forwarded-For")
)

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + wall.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// parseBindNetFromAddr determine bind network and address based on the given network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			if err := listener.Close(); err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("wall", wall.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *healthcheck {
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *extractConfig != "" {
		if err := extractEmbedFS(data.Config, ".", *extractConfig); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Extracted the built-in config to %s\n", *extractConfig)
		return
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}
	wall.BasePrefix = *basePrefix

	cfg, err := libwall.LoadConfigOrDefault(*configFname, *difficulty)
	if err != nil {
		log.Fatalf("can't parse config file: %v", err)
	}

	if *printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("can't render config: %v", err)
		}
		os.Stdout.Write(out)
		return
	}

	wg := new(sync.WaitGroup)
	// install signal handler
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := libwall.BuildOptions(ctx, cfg)
	if err != nil {
		log.Fatalf("can't connect backends: %v", err)
	}
	opts.BasePrefix = *basePrefix

	s, err := libwall.New(opts)
	if err != nil {
		log.Fatalf("can't construct libwall.Server: %v", err)
	}

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Maintain(ctx, *sweepInterval)
	}()

	var h http.Handler
	h = s
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)
	h = internal.XForwardedForUpdate(*xffStripPrivate, h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"difficulty", cfg.Challenge.Difficulty,
		"require-issued", cfg.Challenge.RequireIssued,
		"store", cfg.Store.Backend,
		"rate-limit", cfg.RateLimit.Backend,
		"wall", cfg.Wall.Backend,
		"version", wall.Version,
		"use-remote-address", *useRemoteAddress,
		"base-prefix", *basePrefix,
	)

	go func() {
		<-ctx.Done()
		s.Close()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(wall.BasePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func extractEmbedFS(fsys embed.FS, root string, destDir string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		destPath := filepath.Join(destDir, root, relPath)

		if d.IsDir() {
			return os.MkdirAll(destPath, 0o700)
		}

		embeddedData, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}

		return os.WriteFile(destPath, embeddedData, 0o644)
	})
}
