package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chxlky/kanban-api/api"
	"github.com/chxlky/kanban-api/database"
	"github.com/chxlky/kanban-api/internal/auth"
	"github.com/chxlky/kanban-api/internal/board"
	"github.com/chxlky/kanban-api/internal/config"
	"github.com/chxlky/kanban-api/internal/lock"
)

// backend is what both database implementations provide.
type backend interface {
	board.Store
	auth.UserStore
	Ping(ctx context.Context) error
	Close() error
}

func openBackend(cfg config.DatabaseConfig) (backend, error) {
	if cfg.Driver == "mongo" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.Name)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := database.OpenSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func main() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))
	if levelStr == "" {
		levelStr = "debug"
	}
	level, err := zapcore.ParseLevel(levelStr)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      true,
		Encoding:         "console",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := logConfig.Build()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.Load(".")
	if err != nil {
		zap.L().Fatal("Error loading configuration", zap.Error(err))
	}

	store, err := openBackend(cfg.Database)
	if err != nil {
		zap.L().Fatal("Failed to open database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	deps := []api.Pinger{store}
	var locker lock.Locker = lock.NewLocal()
	var redisLocker *lock.Redis
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisLocker, err = lock.NewRedisFromURL(ctx, cfg.Redis.URL, cfg.Lock.TTL)
		cancel()
		if err != nil {
			zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
		}
		locker = redisLocker
		deps = append(deps, redisLocker)
		zap.L().Info("Using Redis scope locks")
	}

	boards := board.NewService(store, locker, cfg.Lock.Wait, logger.Named("board"))
	authService := auth.NewService(store, boards, cfg.Auth.Secret, cfg.Auth.TokenTTL, logger.Named("auth"))

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	apiHandler := &api.Handler{
		Boards: boards,
		Auth:   authService,
		Deps:   deps,
	}
	apiHandler.Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	zap.L().Info("Starting server", zap.String("port", cfg.Server.Port))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("Server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	cleanup := func(reason string) {
		zap.L().Info("Shutdown initiated", zap.String("reason", reason))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		zap.L().Info("Shutting down HTTP server...")
		if err := srv.Shutdown(ctx); err != nil {
			zap.L().Error("Error shutting down server", zap.Error(err))
		} else {
			zap.L().Info("HTTP server shut down gracefully.")
		}

		if redisLocker != nil {
			if err := redisLocker.Close(); err != nil {
				zap.L().Error("Error closing Redis client", zap.Error(err))
			}
		}

		if err := store.Close(); err != nil {
			zap.L().Error("Error closing database", zap.Error(err))
		} else {
			zap.L().Info("Database connection closed.")
		}
		close(done)
	}

	go func() {
		sig := <-sigCh
		once.Do(func() {
			cleanup(sig.String())
		})

		// if a second signal is caught, exit immediately
		go func() {
			<-sigCh
			zap.L().Info("Second interrupt signal received. Exiting immediately.")
			os.Exit(1)
		}()
	}()

	<-done
	zap.L().Info("Exiting...")
}
