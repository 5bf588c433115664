package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jaxxstorm/atlastodo/internal/api"
	"github.com/jaxxstorm/atlastodo/internal/todo"
	"github.com/jaxxstorm/atlastodo/internal/todo/memstore"
	"github.com/jaxxstorm/atlastodo/internal/todo/mongostore"
	"github.com/jaxxstorm/atlastodo/internal/todo/redisstore"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type CLI struct {
	Store           string        `enum:"mongo,redis,memory" default:"mongo" env:"STORE" help:"Backend holding the todos."`
	MongoURI        string        `name:"mongodb-uri" env:"MONGODB_URI" help:"MongoDB connection string (store=mongo)."`
	MongoDatabase   string        `name:"mongodb-db" env:"MONGODB_DB" help:"Database name; defaults to the one in the URI."`
	RedisURL        string        `name:"redis-url" env:"REDIS_URL" default:"redis://localhost:6379/0" help:"Redis URL (store=redis)."`
	Port            int           `env:"PORT" default:"3000" help:"HTTP listen port."`
	ConnectTimeout  time.Duration `default:"10s" help:"Time allowed to reach the store at startup."`
	ShutdownTimeout time.Duration `default:"10s" help:"Grace period for in-flight requests on shutdown."`
	Verbose         bool          `help:"Enable verbose logging."`
	Debug           bool          `help:"Enable debug logging."`
}

func main() {
	_ = godotenv.Load(".env.local")

	cli := CLI{}
	kong.Parse(&cli,
		kong.Name("todo-api"),
		kong.Description("Serve the todo REST API."),
	)

	logger, err := newLogger(cli.Verbose, cli.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(cli, logger)
	if err != nil {
		logger.Error("failed to open store", zap.String("store", cli.Store), zap.Error(err))
		os.Exit(1)
	}
	defer closeStore()

	e := api.NewServer(store, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := net.JoinHostPort("", strconv.Itoa(cli.Port))
		logger.Info("starting http server", zap.String("addr", addr), zap.String("store", cli.Store))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStore(cli CLI, logger *zap.Logger) (todo.Store, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), cli.ConnectTimeout)
	defer cancel()

	switch cli.Store {
	case "memory":
		return memstore.New(), func() {}, nil
	case "redis":
		client, err := redisstore.NewClient(cli.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store := redisstore.New(client, "", logger)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cli.MongoURI,
			Database: cli.MongoDatabase,
			Timeout:  cli.ConnectTimeout,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Disconnect(context.Background()) }, nil
	}
}

func newLogger(verbose bool, debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
