package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/reelview/internal/backend"
	"github.com/Clark-Hu/reelview/internal/config"
	httpserver "github.com/Clark-Hu/reelview/internal/http"
	"github.com/Clark-Hu/reelview/internal/logging"
	"github.com/Clark-Hu/reelview/internal/repository"
	"github.com/Clark-Hu/reelview/internal/search"
	"github.com/Clark-Hu/reelview/internal/session"
	"github.com/Clark-Hu/reelview/internal/store"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{})
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	client, err := backend.NewHTTPClient(cfg.BackendURL, backend.Options{
		Timeout:   time.Duration(cfg.BackendTimeoutSecs) * time.Second,
		RateLimit: cfg.BackendRateLimit,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("init backend client")
	}

	sessions, health, cleanup := openSessions(ctx, cfg, logger)
	defer cleanup()

	searches := search.NewRegistry(client, search.Options{
		PerPage:  cfg.SearchPerPage,
		Debounce: time.Duration(cfg.SearchDebounceMillis) * time.Millisecond,
		Logger:   logger,
	}, cfg.SearchMaxSessions, time.Duration(cfg.SearchSessionTTLSecs)*time.Second)
	defer searches.Close()

	server, err := httpserver.New(cfg, client, sessions, searches, health, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init http server")
	}

	logger.Info().
		Str("port", cfg.Port).
		Str("backend", cfg.BackendURL).
		Str("session_store", cfg.SessionStore).
		Msg("starting web server")

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}

// openSessions builds the configured session store. The health checker is nil
// unless a database is in use.
func openSessions(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*session.Manager, httpserver.HealthChecker, func()) {
	maxAge := time.Duration(cfg.SessionMaxAgeSecs) * time.Second
	opts := session.Options{MaxAge: maxAge, Secure: cfg.SecureCookies, Logger: logger}

	if cfg.SessionStore != config.SessionStorePostgres {
		cookies, err := session.NewCookieStore(cfg.SessionSecret, maxAge, cfg.SecureCookies)
		if err != nil {
			logger.Fatal().Err(err).Msg("init cookie sessions")
		}
		return session.NewManager(cookies, nil, opts), nil, func() {}
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}

	repo := repository.New(st)
	pgStore := session.NewPostgresStore(repo.Sessions, maxAge, cfg.SecureCookies, logger)
	go pgStore.Sweep(ctx, sessionSweepInterval)

	themes := session.PreferenceThemes{Repo: repo.Preferences}
	return session.NewManager(pgStore, themes, opts), st, st.Close
}
