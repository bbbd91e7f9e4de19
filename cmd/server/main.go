package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lauraabreulima/ecochat/internal/api/routes"
	"github.com/lauraabreulima/ecochat/internal/config"
	"github.com/lauraabreulima/ecochat/internal/database"
	"github.com/lauraabreulima/ecochat/internal/relay"
	"github.com/lauraabreulima/ecochat/internal/services"
	"github.com/lauraabreulima/ecochat/internal/sink"
)

func main() {
	// Load .env if present; real environments set variables directly
	godotenv.Load()

	cfg := config.Load()

	slog.Info("Starting EcoChat relay")

	// Optional Redis presence mirror + rate limiting
	var redisService *services.RedisService
	if cfg.Redis.Enabled {
		redisClient, err := database.NewRedisConnection(cfg.Redis.URI)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		redisService = services.NewRedisService(redisClient)
	}

	// Durable hand-off sink for message history
	archiveSink, err := newArchiveSink(cfg)
	if err != nil {
		slog.Error("Failed to initialize archive sink", "driver", cfg.Archive.Driver, "error", err)
		os.Exit(1)
	}

	var mirror relay.PresenceMirror
	if redisService != nil {
		mirror = redisService
	}

	var archiver *sink.Archiver
	var hubArchiver relay.MessageArchiver
	archiveCtx, stopArchiver := context.WithCancel(context.Background())
	defer stopArchiver()
	if archiveSink != nil {
		archiver = sink.NewArchiver(archiveSink, cfg.Archive.QueueDepth)
		go archiver.Run(archiveCtx)
		hubArchiver = archiver
	}

	hub := relay.NewHub(mirror, hubArchiver, relay.Options{
		SendBuffer: cfg.Relay.SendBuffer,
		PongWait:   cfg.Relay.PongWait,
	})
	go hub.Run()

	router := routes.NewRouter(hub, redisService, cfg.JWT.Secret)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hub.Stop()

	if archiver != nil {
		stopArchiver()
		archiver.Wait()
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}

func newArchiveSink(cfg *config.Config) (sink.Sink, error) {
	switch cfg.Archive.Driver {
	case "postgres":
		db, err := database.NewPostgresConnection(cfg.Archive.PostgresURI)
		if err != nil {
			return nil, err
		}
		return sink.NewPostgresSink(db)
	case "kafka":
		return sink.NewKafkaSink(cfg.Archive.KafkaBrokers, cfg.Archive.KafkaTopic), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Archive.Driver)
	}
}
