package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	httpadp "loanflow/internal/adapter/http"
	mw "loanflow/internal/adapter/middleware"
	"loanflow/internal/adapter/repository/mysql"
	"loanflow/internal/config"
	"loanflow/internal/infrastructure/cache"
	"loanflow/internal/infrastructure/db"
	"loanflow/internal/infrastructure/lock"
	"loanflow/internal/infrastructure/logger"
	"loanflow/internal/scheduler"
	"loanflow/internal/security"
	ucApproval "loanflow/internal/usecase/approval"
	ucLoan "loanflow/internal/usecase/loan"
	"loanflow/internal/usecase/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), zl)
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.DBAutoMigrate {
		if err := db.AutoMigrate(gdb); err != nil {
			return err
		}
		zl.Info("database migrated", zap.String("driver", cfg.DBDriver))
	}

	rdb, err := cache.OpenRedis(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	loans := mysql.NewLoanRepository(gdb)
	approvals := mysql.NewApprovalRepository(gdb)
	repayments := mysql.NewRepaymentRepository(gdb)
	tx := mysql.NewGormUoW(gdb)

	loanUC := ucLoan.NewUsecase(loans, repayments, tx, zl)
	approvalUC := ucApproval.NewUsecase(loans, approvals, tx,
		ucApproval.WithLocker(lock.New(rdb, cfg.LoanLockTTL())),
		ucApproval.WithRetries(cfg.ConflictRetries),
		ucApproval.WithLogger(zl),
	)
	scheduleSvc := schedule.NewService(loans, tx, zl)

	sched := scheduler.New(zl)
	if cfg.BackfillCron != "" {
		if err := sched.RegisterBackfill(cfg.BackfillCron, scheduleSvc, cfg.BackfillBatch); err != nil {
			return err
		}
	}
	sched.Start()

	e := newServer(zl, gdb, rdb, security.NewTokenManager(cfg.JWTSecret, 0), cfg.IdempotencyTTL(),
		httpadp.NewLoanHandler(loanUC), httpadp.NewApprovalHandler(approvalUC))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.AppPort
		zl.Info("listening", zap.String("addr", addr))
		errCh <- e.Start(addr)
	}()

	select {
	case <-ctx.Done():
		zl.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	return nil
}

func newServer(zl *zap.Logger, gdb *gorm.DB, rdb *redis.Client, tokens *security.TokenManager, idempTTL time.Duration,
	loanH *httpadp.LoanHandler, approvalH *httpadp.ApprovalHandler) *echo.Echo {
	h := httpadp.NewHandler(map[string]httpadp.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()

	access := zl.Named("http")
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			access.Info("request", fields...)
			return nil
		},
	}))

	// routes
	e.GET("/health", h.Health)
	e.POST("/loans/quote", loanH.Quote)

	g := e.Group("/loans", mw.Auth(tokens), mw.NewIdempotency(rdb, idempTTL, zl.Named("idempotency")).Middleware())
	g.POST("", loanH.CreateLoan)
	g.GET("/:loan_id", loanH.GetLoan)
	g.GET("/:loan_id/repayments", loanH.ListRepayments)
	g.POST("/:loan_id/decisions", approvalH.SubmitDecision)
	g.GET("/:loan_id/approvals", approvalH.ListApprovals)

	return e
}
