package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
	"github.com/wbrown/janus-pathstore/pathstore/protocol"
	"github.com/wbrown/janus-pathstore/pathstore/storage"
	"github.com/wbrown/janus-pathstore/pathstore/wsrpc"
)

// Config drives the daemon. Every field has a default, so an absent
// config file runs a badger-backed server on the default port.
type Config struct {
	Listen string      `yaml:"listen"`
	Store  StoreConfig `yaml:"store"`
	Cache  CacheConfig `yaml:"cache"`
	Log    LogConfig   `yaml:"log"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	Codec  string `yaml:"codec"`
	Keys   string `yaml:"keys"`
}

// CacheConfig sizes the cache placed in front of the store in pull
// mode
type CacheConfig struct {
	MaxCount int `yaml:"max_count"`
	Keep     int `yaml:"keep"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaultConfig() Config {
	return Config{
		Listen: ":8844",
		Store: StoreConfig{
			Driver: "badger",
			Path:   "pathstore-sync.db",
			Codec:  "json",
			Keys:   "binary",
		},
		Cache: CacheConfig{MaxCount: 4096, Keep: 1024},
		Log:   LogConfig{Level: "info"},
	}
}

// loadConfig reads a YAML file over the defaults. Unknown fields are
// rejected, which catches misspelled keys.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Cache.MaxCount <= 0 || cfg.Cache.Keep < 0 || cfg.Cache.Keep > cfg.Cache.MaxCount {
		return cfg, fmt.Errorf("bad cache sizing: max_count %d, keep %d", cfg.Cache.MaxCount, cfg.Cache.Keep)
	}
	return cfg, nil
}

func parseLogLevel(name string) (slog.Level, error) {
	switch name {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level: %s", name)
}

// openStore opens the configured store. All drivers satisfy
// protocol.ProducerStore, which serve mode needs for enumeration.
func openStore(cfg StoreConfig, logger *slog.Logger) (protocol.ProducerStore, func() error, error) {
	var c codec.Codec
	switch cfg.Codec {
	case "json":
		c = codec.JSON{}
	case "binary":
		c = codec.Binary{}
	default:
		return nil, nil, fmt.Errorf("unknown codec: %s", cfg.Codec)
	}
	switch cfg.Driver {
	case "badger":
		var strategy storage.KeyEncodingStrategy
		switch cfg.Keys {
		case "binary":
			strategy = storage.BinaryStrategy
		case "l85":
			strategy = storage.L85Strategy
		default:
			return nil, nil, fmt.Errorf("unknown key encoding: %s", cfg.Keys)
		}
		s, err := storage.NewBadgerStore(cfg.Path, c, storage.NewKeyEncoder(strategy), logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := storage.OpenSQLStore(cfg.Path, c)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return pathstore.NewHistoryStore(c), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
}

type options struct {
	serve    bool
	model    pathstore.ModelKey
	remote   string
	interval time.Duration
	limit    int
}

func main() {
	var configPath string
	var serve bool
	var pullSpec string
	var remote string
	var interval time.Duration
	var limit int
	var help bool

	flag.StringVar(&configPath, "config", "", "YAML config file (built-in defaults when omitted)")
	flag.BoolVar(&serve, "serve", false, "serve the store to sync peers")
	flag.StringVar(&pullSpec, "pull", "", "model id to mirror from the remote peer")
	flag.StringVar(&remote, "remote", "ws://localhost:8844/sync", "remote peer URL for pull mode")
	flag.DurationVar(&interval, "interval", 0, "repeat pulls at this interval (0 pulls once)")
	flag.IntVar(&limit, "limit", 64, "instances per bulk diff page")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Synchronizes path-addressed model stores over websockets.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -serve                                 # Serve the default store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -serve -config sync.yaml               # Serve with a config file\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pull 7 -remote ws://peer:8844/sync    # Mirror model 7 once\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pull 7 -interval 30s                  # Keep model 7 in sync\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}
	if serve == (pullSpec != "") {
		flag.Usage()
		os.Exit(2)
	}

	opts := options{serve: serve, remote: remote, interval: interval, limit: limit}
	if pullSpec != "" {
		model, err := strconv.ParseInt(pullSpec, 10, 64)
		if err != nil {
			log.Fatalf("Bad model id %q: expected an integer", pullSpec)
		}
		opts.model = pathstore.ModelKey(model)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Bad config: %v", err)
	}
	level, err := parseLogLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Bad config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, opts); err != nil {
		slog.Error("exiting on error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, opts options) error {
	store, closeStore, err := openStore(cfg.Store, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			slog.Error("store close failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.serve {
		return runServe(ctx, cfg, store)
	}
	return runPull(ctx, cfg, store, opts)
}

// runServe exposes the store to sync peers at /sync until the context
// is cancelled
func runServe(ctx context.Context, cfg Config, store protocol.ProducerStore) error {
	producer := protocol.NewProducer(store, nil, store.Codec())
	mux := http.NewServeMux()
	mux.Handle("/sync", wsrpc.NewServer(producer, nil, slog.Default()))
	srv := &http.Server{Addr: cfg.Listen, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("serving", "listen", cfg.Listen, "driver", cfg.Store.Driver, "path", cfg.Store.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// runPull mirrors one model from the remote peer into the local store.
// Each round pulls statuses first so deletions arrive, then the bulk
// property diff. The cursor is captured before asking, so a write
// landing remotely mid-round repeats next round; re-applying is
// harmless under last-writer-wins.
func runPull(ctx context.Context, cfg Config, store pathstore.Store, opts options) error {
	cache := pathstore.NewCache(cfg.Cache.MaxCount, cfg.Cache.Keep)
	cached := pathstore.NewCachedStore(cache, store)

	var client *wsrpc.Client
	defer func() {
		if client != nil {
			client.Close()
		}
	}()

	// A failed round trip retires the connection, so each round makes
	// sure it has a live client before asking.
	round := func(after pathstore.Timestamp) (int, int, error) {
		if client == nil {
			c, err := wsrpc.Dial(ctx, opts.remote, nil)
			if err != nil {
				return 0, 0, fmt.Errorf("dial %s: %w", opts.remote, err)
			}
			client = c
		}
		consumer := protocol.NewConsumer(cached, nil, store.Codec(), client)
		statuses, err := consumer.PullInstanceStatuses(ctx, opts.model, after)
		if err != nil {
			client.Close()
			client = nil
			return 0, 0, fmt.Errorf("pull statuses: %w", err)
		}
		applied, err := consumer.PullModelUpdates(ctx, opts.model, after, opts.limit)
		if err != nil {
			client.Close()
			client = nil
			return len(statuses), applied, fmt.Errorf("pull updates: %w", err)
		}
		return len(statuses), applied, nil
	}

	slog.Info("mirroring", "model", int64(opts.model), "remote", opts.remote)
	var after pathstore.Timestamp
	for {
		cursor := pathstore.Now()
		statuses, applied, err := round(after)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("mirror stopped")
				return nil
			}
			if opts.interval == 0 {
				return err
			}
			slog.Warn("round failed, will retry", "error", err)
		} else {
			slog.Info("round complete", "statuses", statuses, "instances", applied)
			after = cursor
		}

		if opts.interval == 0 {
			slog.Info("mirror complete")
			return nil
		}
		select {
		case <-ctx.Done():
			slog.Info("mirror stopped")
			return nil
		case <-time.After(opts.interval):
		}
	}
}
