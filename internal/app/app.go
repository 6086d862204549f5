package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/watchtogether/server/internal/controller"
	connInmemory "github.com/watchtogether/server/internal/repository/connection/inmemory"
	participantInmemory "github.com/watchtogether/server/internal/repository/participant/inmemory"
	participantPostgres "github.com/watchtogether/server/internal/repository/participant/postgres"
	roomRedis "github.com/watchtogether/server/internal/repository/room/redis"
	"github.com/watchtogether/server/internal/service/room"
	"github.com/watchtogether/server/pkg/ctxlogger"
	"github.com/watchtogether/server/pkg/redisclient"
)

type AppConfig struct {
	Secret        string `json:"-"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	LogLevel      string `json:"log_level"`
	RoomTTL       int    `json:"room_ttl_seconds"`
	PresenceTTL   int    `json:"presence_ttl_seconds"`
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"-"`
	// PostgresDSN selects the durable participant registry; empty keeps
	// participants in process memory.
	PostgresDSN string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Secret == "" {
		return fmt.Errorf("secret must be set")
	}
	if cfg.RoomTTL < 1 {
		return fmt.Errorf("room ttl must be greater than 0")
	}
	if cfg.PresenceTTL < 1 {
		return fmt.Errorf("presence ttl must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := roomRedis.NewRepo(rc, logger,
		time.Duration(cfg.RoomTTL)*time.Second,
		time.Duration(cfg.PresenceTTL)*time.Second,
	)

	connRepo := connInmemory.NewRepo(logger)

	var mux http.Handler
	if cfg.PostgresDSN != "" {
		db, err := sqlx.ConnectContext(ctx, "pgx", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer db.Close()

		service := room.NewService(roomRepo, participantPostgres.NewRepo(db, logger), connRepo,
			&room.Config{Secret: cfg.Secret}, logger)
		mux = controller.NewController(service, logger).GetMux()
	} else {
		logger.Warn("no postgres dsn configured, participant registry is in-memory")
		service := room.NewService(roomRepo, participantInmemory.NewRepo(), connRepo,
			&room.Config{Secret: cfg.Secret}, logger)
		mux = controller.NewController(service, logger).GetMux()
	}

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: mux}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
