package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"geotasks/api/internal/config"
	"geotasks/api/internal/migrations"
	"geotasks/api/internal/server"
	"geotasks/api/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("[API] Starting GeoTasks API Server...")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		log.Println("[API] Database migrated")
	}

	// Connect to database
	db, err := store.Open(cfg.DatabaseURL, store.ParseLogLevel(cfg.DBLogLevel))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	log.Println("[API] Connected to database")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		log.Println("[API] Connected to Redis")
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name("geotasks-api"), nats.MaxReconnects(-1))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		log.Println("[API] Connected to NATS")
		defer natsConn.Drain()
	}

	srv := server.NewServer(cfg, store.NewGormStore(db), redisClient, natsConn)
	srv.Setup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(cfg.Addr())
	}()
	log.Printf("[API] Server ready on %s", cfg.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
	}
	log.Println("[API] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("[API] Server stopped")
	return nil
}
