package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dmitrijs2005/legalassist/internal/buildinfo"
	"github.com/dmitrijs2005/legalassist/internal/client/cli"
	"github.com/dmitrijs2005/legalassist/internal/client/client"
	"github.com/dmitrijs2005/legalassist/internal/client/config"
	"github.com/dmitrijs2005/legalassist/internal/client/repositories/sessionstate"
	"github.com/dmitrijs2005/legalassist/internal/client/services"
	"github.com/dmitrijs2005/legalassist/internal/logging"
	"github.com/redis/go-redis/v9"
	"golang.org/x/term"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		log.Fatalf("%v", err)
	}
}

func newSessionState(ctx context.Context, cfg *config.Config) (sessionstate.Store, error) {
	storeType := sessionstate.StoreType(cfg.SessionStore)
	if storeType != sessionstate.StoreTypeRedis {
		return sessionstate.NewStore(storeType)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}

	// Keys are namespaced by the local database and then by chat session
	// id, so neither another profile nor a later run sees this conversation.
	ns := cfg.StoragePath
	if abs, err := filepath.Abs(ns); err == nil {
		ns = abs
	}
	return sessionstate.NewStore(storeType,
		sessionstate.WithRedisClient(rdb),
		sessionstate.WithNamespace("legalassist:"+ns),
		sessionstate.WithTTL(cfg.SessionTTL),
	)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogLevel)

	db, err := client.InitDatabase(ctx, cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	defer db.Close()

	state, err := newSessionState(ctx, cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	api, err := client.New(cfg.APIBaseURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	session := services.NewSessionStore(api, db, logger)
	api.SetTokenSource(session.TokenSource())

	view := cli.NewTerminalView(term.IsTerminal(int(os.Stdout.Fd())))
	stores := cli.Stores{
		Session:     session,
		Chat:        services.NewChatStore(api, state, logger),
		Documents:   services.NewDocumentStore(api, logger),
		Preferences: services.NewPreferencesStore(db, view, logger),
	}

	app := cli.NewApp(cfg, stores, view, os.Stdin, os.Stdout, logger)
	return app.Run(ctx)
}
