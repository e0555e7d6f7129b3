package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"security-guard/internal/apperr"
	"security-guard/internal/audit"
	"security-guard/internal/auth"
	"security-guard/internal/config"
	"security-guard/internal/httpapi"
	"security-guard/internal/identity"
	"security-guard/internal/migrations"
	"security-guard/internal/rbac"
	"security-guard/internal/revocation"
	"security-guard/internal/session"
	"security-guard/internal/store"
	"security-guard/internal/tokens"
	"security-guard/pkg/logger"
	"security-guard/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so deferred closes run on all exit paths.
func run() error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	signer, err := auth.NewSigner(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth init: %w", err)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(rootCtx, db); err != nil {
		return err
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	defer rdb.Close()

	hasher, err := identity.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hasher init: %w", err)
	}

	timeout := cfg.Store.Timeout
	st := store.NewPostgres(db)
	users := identity.NewService(identity.NewPostgresRepo(db), st.Users(), hasher, timeout)
	revocations := revocation.NewStore(revocation.NewPostgresRepo(db), revocation.NewRedisCache(rdb), timeout)
	validator := tokens.NewValidator(signer, revocations, users)

	issuer, err := tokens.NewIssuer(signer, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("issuer init: %w", err)
	}

	sessions, err := session.NewService(session.Deps{
		Store:        st,
		Users:        users,
		Issuer:       issuer,
		Validator:    validator,
		Revocations:  revocations,
		Audit:        audit.NewService(audit.NewPostgresRepo(db), timeout),
		StoreTimeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("session init: %w", err)
	}

	bootstrapAdmin(rootCtx, log, users, cfg.App.AdminBootstrapEmail)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, deps{
		sessions:  sessions,
		validator: validator,
		probes: map[string]httpapi.Probe{
			"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, time.Second) },
			"redis":    func(ctx context.Context) error { return utils.PingRedis(ctx, rdb, time.Second) },
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
	}
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
	return nil
}

// bootstrapAdmin grants ROLE_ADMIN to the configured account, if it exists.
func bootstrapAdmin(ctx context.Context, log *slog.Logger, users *identity.Service, email string) {
	if email == "" {
		return
	}
	u, err := users.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			log.Warn("admin bootstrap skipped: no such user", "email", email)
			return
		}
		log.Error("admin bootstrap failed", "err", err)
		return
	}
	if u.HasRole(rbac.RoleAdmin) {
		return
	}
	if _, err := users.GrantRole(ctx, u.ID, rbac.RoleAdmin); err != nil {
		log.Error("admin bootstrap failed", "user_id", u.ID, "err", err)
		return
	}
	log.Info("admin role granted", "user_id", u.ID)
}
