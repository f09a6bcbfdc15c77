// Package main implements the entry point for the bookshelf server, a
// GraphQL API for a catalog of books and authors with JWT-authenticated
// mutations and a book-added subscription feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/c360/bookshelf/config"
	"github.com/c360/bookshelf/events"
	"github.com/c360/bookshelf/gateway/graphql"
	"github.com/c360/bookshelf/metric"
	"github.com/c360/bookshelf/natsclient"
	"github.com/c360/bookshelf/store"
	"github.com/c360/bookshelf/token"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "bookshelf"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "json", "log format (json, text)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(*logLevel, *logFormat)
	slog.SetDefault(logger)

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("Starting bookshelf",
		"version", Version,
		"address", cfg.Server.BindAddress,
		"path", cfg.Server.Path)

	ctx := context.Background()

	// A server that cannot reach its database is useless, so fail fast
	// rather than serve errors
	mongoStore, mongoClient, err := connectMongo(ctx, cfg.Mongo, logger)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if derr := mongoClient.Disconnect(disconnectCtx); derr != nil {
			slog.Warn("MongoDB disconnect failed", "error", derr)
		}
	}()

	metricsRegistry := metric.NewRegistry()

	natsClient, err := connectNATS(cfg.NATS, metricsRegistry.Metrics, logger)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer natsClient.Close()

	broker := events.NewNATSBroker(natsClient, cfg.NATS.Subject, logger)

	tokens, err := token.NewService(cfg.Auth.Secret, cfg.Auth.TokenTTL())
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	if err := seedBootstrapUser(ctx, cfg.Auth, mongoStore.Users(), logger); err != nil {
		return fmt.Errorf("seed bootstrap user: %w", err)
	}

	resolver := graphql.NewResolver(graphql.ResolverDeps{
		Books:         mongoStore.Books(),
		Authors:       mongoStore.Authors(),
		Users:         mongoStore.Users(),
		Tokens:        tokens,
		Broker:        broker,
		LoginPassword: cfg.Auth.LoginPassword,
		Logger:        logger,
		Metrics:       metricsRegistry.Metrics,
	})

	schema, err := graphql.ParseSchema(resolver, cfg.Server.MaxQueryDepth)
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}

	auth := graphql.NewAuthenticator(tokens, mongoStore.Users(), logger)

	server, err := graphql.NewServer(cfg.Server, schema, auth, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := server.Setup(); err != nil {
		return fmt.Errorf("setup server: %w", err)
	}

	return runWithSignalHandling(ctx, server)
}

// connectMongo connects to MongoDB, verifies the connection with a ping
// and prepares the collections and their indexes.
func connectMongo(ctx context.Context, cfg config.MongoConfig,
	logger *slog.Logger) (*store.Mongo, *mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	mongoStore := store.NewMongo(client.Database(cfg.Database))
	if err := mongoStore.EnsureIndexes(connectCtx); err != nil {
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", cfg.Database)
	return mongoStore, client, nil
}

// connectNATS connects the event broker client and keeps the connection
// gauge in sync with the connection state.
func connectNATS(cfg config.NATSConfig, metrics *metric.Metrics,
	logger *slog.Logger) (*natsclient.Client, error) {
	client, err := natsclient.NewClient(cfg.URL,
		natsclient.WithClientName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithDisconnectCallback(func(err error) {
			metrics.NATSConnected.Set(0)
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		natsclient.WithReconnectCallback(func() {
			metrics.NATSConnected.Set(1)
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(); err != nil {
		return nil, err
	}
	metrics.NATSConnected.Set(1)

	logger.Info("Connected to NATS", "url", cfg.URL, "subject", cfg.Subject)
	return client, nil
}

// seedBootstrapUser inserts the configured bootstrap user into an empty
// users collection so a fresh deployment has someone who can log in.
func seedBootstrapUser(ctx context.Context, cfg config.AuthConfig,
	users store.UserStore, logger *slog.Logger) error {
	if cfg.BootstrapUser == "" {
		return nil
	}

	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	user, err := store.NewUser(cfg.BootstrapUser, cfg.BootstrapFavoriteGenre)
	if err != nil {
		return err
	}
	if _, err := users.Insert(ctx, user); err != nil {
		return err
	}

	logger.Info("Seeded bootstrap user", "username", cfg.BootstrapUser)
	return nil
}

// runWithSignalHandling starts the server and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func runWithSignalHandling(ctx context.Context, server *graphql.Server) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	ready := make(chan struct{})
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(signalCtx, ready)
	}()

	select {
	case <-ready:
		slog.Info("Bookshelf started successfully")
	case err := <-errChan:
		return err
	}

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errChan:
		return err
	}

	if err := server.Stop(30 * time.Second); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Bookshelf shutdown complete")
	return nil
}
