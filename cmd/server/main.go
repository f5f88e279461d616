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

	api "github.com/campusworks/examportal/internal/api/http"
	"github.com/campusworks/examportal/internal/audit"
	auth "github.com/campusworks/examportal/internal/auth/middleware"
	"github.com/campusworks/examportal/internal/config"
	"github.com/campusworks/examportal/internal/db"
	"github.com/campusworks/examportal/internal/exam"
	"github.com/campusworks/examportal/internal/grades"
	"github.com/campusworks/examportal/internal/roster"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbh, err := db.Open(ctx, db.Driver(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("open database")
	}
	defer dbh.Close()
	dbh.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbh.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbh.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	rosterStore := roster.NewSQLStore(dbh)
	examStore := exam.NewSQLStore(dbh)

	rosterSvc := roster.NewService(rosterStore, time.Now)
	examSvc := exam.NewService(examStore, rosterStore,
		time.Duration(cfg.Exam.GraceSeconds)*time.Second, time.Now)
	aggregator := grades.New(examStore, grades.NewRosterSource(rosterStore))
	authSvc := auth.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	trail := audit.NewLog(dbh)

	created, err := rosterSvc.BootstrapAdmin(ctx, cfg.Auth.AdminUser, cfg.Auth.AdminPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("bootstrap admin")
	}
	if created {
		logger.Info().Str("username", cfg.Auth.AdminUser).Msg("created bootstrap admin account")
	}

	handler := api.NewHandler(rosterSvc, examSvc, aggregator, authSvc, trail, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handler.Router(cfg.CORS),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := os.Stdout
	logger := zerolog.New(out)
	if cfg.Pretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
