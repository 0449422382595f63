/**
 * @description
 * billingctl is the operator CLI for the billing service. It runs billing
 * operations directly against Postgres, without going through HTTP.
 */
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/clublibertad/billing-service/internal/app"
	"github.com/clublibertad/billing-service/internal/config"
	"github.com/clublibertad/billing-service/internal/store"
	"github.com/clublibertad/billing-service/pkg/rabbitmq"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(openService)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openService connects to the database named by the environment and builds
// the billing service. Events are logged, not published.
func openService(ctx context.Context, verbose bool) (billingService, func(), error) {
	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	} else {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, 4)
	if err != nil {
		return nil, nil, err
	}

	service := app.NewService(
		store.NewRepository(pool),
		&rabbitmq.EventProducerFallback{Logger: logger},
		cfg.BusinessTimezone,
		app.WithDueDay(cfg.BillingDueDay),
		app.WithLogger(logger),
	)
	return &cliService{Service: service, pool: pool, logger: logger}, pool.Close, nil
}
