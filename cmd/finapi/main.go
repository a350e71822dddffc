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

	"github.com/govalues/money"

	"github.com/tinoosan/finapi/internal/config"
	"github.com/tinoosan/finapi/internal/httpapi"
	"github.com/tinoosan/finapi/internal/idempotency"
	"github.com/tinoosan/finapi/internal/ledger"
	"github.com/tinoosan/finapi/internal/service/account"
	"github.com/tinoosan/finapi/internal/service/statement"
	"github.com/tinoosan/finapi/internal/storage/memory"
	redisstore "github.com/tinoosan/finapi/internal/storage/redis"
)

// devSeedCPF is a well-formed CPF reserved for local demos.
const devSeedCPF = "52998224725"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	store := memory.New()
	accounts := account.New(store, store)
	ledgerSvc := statement.New(store, store, cfg.Ledger.Currency, statement.WithLocation(cfg.Ledger.Location))

	var idem idempotency.Store = memory.NewIdempotencyStore(nil)
	var closeFn func()
	if cfg.Redis.Addr != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rs, err := redisstore.Open(dialCtx, cfg.Redis.Addr, cfg.Redis.Password)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", "err", err)
			os.Exit(1)
		}
		idem = rs
		closeFn = func() { _ = rs.Close() }
		logger.Info("idempotency backend: redis", "addr", cfg.Redis.Addr)
	} else {
		logger.Info("idempotency backend: memory")
	}

	if cfg.DevSeed {
		if err := seedDev(ctx, logger, accounts, ledgerSvc); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	api := httpapi.New(accounts, ledgerSvc, idem, logger,
		httpapi.WithIdempotencyTTL(cfg.Idempotency.TTL),
		httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins...),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("finapi listening", "addr", srv.Addr, "currency", cfg.Ledger.Currency, "timezone", cfg.Ledger.Location.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

// seedDev registers a demo customer with an opening deposit.
func seedDev(ctx context.Context, l *slog.Logger, accounts account.Service, ledgerSvc statement.Service) error {
	c, err := accounts.Register(ctx, "Dev Customer", devSeedCPF)
	if err != nil {
		return err
	}
	amount, err := money.ParseAmount(ledgerSvc.Currency(), "1000")
	if err != nil {
		return err
	}
	op, err := ledgerSvc.Deposit(ctx, c.TaxID, "opening deposit", amount)
	if err != nil {
		return err
	}
	l.Info("DEV seed (memory)", "account_id", c.ID.String(), "cpf", c.TaxID, "operation_id", op.ID.String())
	printDevSeedBanner(c, op)
	return nil
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste.
func printDevSeedBanner(c ledger.Customer, op ledger.Operation) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("cpf:        %s\n", c.TaxID)
	fmt.Printf("account_id: %s\n", c.ID.String())
	fmt.Printf("balance:    %s\n", op.Amount.String())
	fmt.Println("==================================================")
}
