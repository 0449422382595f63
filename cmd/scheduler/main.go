/**
 * @description
 * Entry point for the billing scheduler. This is a non-HTTP, long-running
 * process that triggers the billing service's internal endpoints on a cron
 * schedule.
 */
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/clublibertad/billing-service/internal/config"
	"github.com/clublibertad/billing-service/internal/scheduler"
	"github.com/clublibertad/billing-service/pkg/billingclient"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	client := billingclient.NewClient(cfg.BillingServiceURL, cfg.InternalAPIKey)
	jobs := scheduler.NewJobs(client, logger)
	s := scheduler.NewScheduler(jobs, logger, *cfg)

	if s.Start() == 0 {
		logger.Error("no jobs could be scheduled, check the job schedules")
		<-s.Stop().Done()
		os.Exit(1)
	}
	logger.Info("scheduler started", "billing_service_url", cfg.BillingServiceURL)

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	<-s.Stop().Done()
	logger.Info("scheduler stopped gracefully")
}
