package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alimasry/go-collab-list/ot"
	"github.com/alimasry/go-collab-list/relay"
	"github.com/alimasry/go-collab-list/server"
	"github.com/alimasry/go-collab-list/store"
)

func main() {
	app := &cli.App{
		Name:  "collab-list",
		Usage: "serve replicated lists over WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address", EnvVars: []string{"ADDR"}},
			&cli.IntFlag{Name: "history-capacity", Value: ot.DefaultHistoryCapacity, Usage: "operations kept per collection for rebasing", EnvVars: []string{"HISTORY_CAPACITY"}},
			&cli.StringFlag{Name: "store", Value: "memory", Usage: "storage backend: memory or firestore", EnvVars: []string{"STORE"}},
			&cli.StringFlag{Name: "firestore-project", Usage: "Google Cloud project for the firestore backend", EnvVars: []string{"FIRESTORE_PROJECT"}},
			&cli.DurationFlag{Name: "flush-interval", Value: 5 * time.Second, Usage: "write-back interval for the firestore backend, 0 writes through", EnvVars: []string{"FLUSH_INTERVAL"}},
			&cli.StringFlag{Name: "mqtt-broker", Usage: "publish accepted changes to this MQTT broker URL", EnvVars: []string{"MQTT_BROKER"}},
			&cli.StringFlag{Name: "mqtt-topic-prefix", Value: "collections", Usage: "MQTT topic prefix", EnvVars: []string{"MQTT_TOPIC_PREFIX"}},
			&cli.StringFlag{Name: "mqtt-client-id", Usage: "MQTT client id, generated when empty", EnvVars: []string{"MQTT_CLIENT_ID"}},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "static-dir", Value: "static", Usage: "directory served at /", EnvVars: []string{"STATIC_DIR"}},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, c, logger)
	if err != nil {
		return err
	}

	var pub relay.Publisher = relay.Nop{}
	if broker := c.String("mqtt-broker"); broker != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pub, err = relay.NewMQTTPublisher(connectCtx, relay.MQTTConfig{
			BrokerURL:   broker,
			TopicPrefix: c.String("mqtt-topic-prefix"),
			ClientID:    c.String("mqtt-client-id"),
		}, logger)
		cancel()
		if err != nil {
			return multierr.Append(err, closeStore.Close())
		}
	}

	hub := server.NewHub(st, server.Config{
		HistoryCapacity: c.Int("history-capacity"),
		Relay:           pub,
		StaticDir:       c.String("static-dir"),
	}, logger)
	go hub.Run()

	srv := &http.Server{Addr: c.String("addr"), Handler: server.NewHandler(hub)}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("store", c.String("store")))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	hub.Shutdown()
	err = multierr.Combine(err, pub.Close(shutdownCtx), closeStore.Close())
	if err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	return err
}

// openStore builds the configured store. The returned closer releases
// whatever the store holds, flushing cached writes first.
func openStore(ctx context.Context, c *cli.Context, logger *zap.Logger) (store.CollectionStore, io.Closer, error) {
	switch c.String("store") {
	case "memory":
		return store.NewMemoryStore(), nopCloser{}, nil
	case "firestore":
		project := c.String("firestore-project")
		if project == "" {
			return nil, nil, errors.New("--firestore-project is required for the firestore store")
		}
		client, err := firestore.NewClient(ctx, project)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		fs := store.NewFirestoreStore(client)
		interval := c.Duration("flush-interval")
		if interval <= 0 {
			return fs, client, nil
		}
		cached := store.NewCachedStore(fs, interval, logger)
		return cached, closerFunc(func() error {
			cached.Close()
			return client.Close()
		}), nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", c.String("store"))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
