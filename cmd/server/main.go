package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"webreplay/internal/api/handlers"
	"webreplay/internal/api/routes"
	"webreplay/internal/config"
	"webreplay/internal/services"
	"webreplay/internal/store"
	"webreplay/pkg/auth"
	"webreplay/pkg/logger"
)

func main() {
	flags := config.NewFlagSet("server")
	flags.String("port", "8080", "HTTP port")
	flags.String("store", "file", "recording store backend: file or mysql")
	flags.String("store-dir", "./recordings", "directory of the file store")
	issueToken := flags.String("issue-token", "", "print an API token for this subject and exit")
	tokenTTL := flags.Duration("token-ttl", 30*24*time.Hour, "lifetime of an issued token")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Level(cfg.LogLevel), cfg.Server.Mode == gin.DebugMode)

	if *issueToken != "" {
		if cfg.JWT.Secret == "" {
			log.Fatal().Msg("JWT_SECRET is not set")
		}
		token, err := auth.GenerateToken(cfg.JWT.Secret, *issueToken, *tokenTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to issue token")
		}
		fmt.Println(token)
		return
	}

	st, err := store.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize recording store")
	}

	runs := services.NewRunManager(st,
		services.ChromeCapture(cfg, log),
		services.ChromeReplay(cfg, log),
		cfg.Chrome.MaxInstances,
		log.With().Str("component", "runs").Logger(),
	)
	scheduler := services.NewSchedulerService(runs, st, log.With().Str("component", "scheduler").Logger())
	// Replays hold the browser for the linger on top of their own length.
	grace := cfg.Replay.Linger + 30*time.Minute
	statusSync := services.NewStatusSyncService(runs, 30*time.Second, grace, time.Hour, log)

	gin.SetMode(cfg.Server.Mode)
	h := handlers.New(st, runs, scheduler, cfg.Capture.Duration, log)
	router := routes.SetupRoutes(cfg, h, log)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return scheduler.Run(gCtx)
	})
	group.Go(func() error {
		return statusSync.Run(gCtx)
	})
	group.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("error while shutting down the server")
		}
		if err := runs.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("runs did not stop in time")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Server crashed")
	}
	log.Info().Msg("Server shutdown complete")
}
