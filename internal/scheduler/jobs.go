/**
 * @description
 * Scheduled billing jobs. Each job calls the billing service's internal
 * endpoints; the billing logic itself stays in the service.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// BillingClient defines the billing service operations the jobs trigger.
type BillingClient interface {
	RefreshBilling(ctx context.Context) error
	GenerateFees(ctx context.Context) error
	RunOverdue(ctx context.Context) error
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	client  BillingClient
	logger  *slog.Logger
	timeout time.Duration
}

// NewJobs creates a new Jobs runner.
func NewJobs(client BillingClient, logger *slog.Logger) *Jobs {
	return &Jobs{
		client:  client,
		logger:  logger,
		timeout: 2 * time.Minute,
	}
}

// RefreshBilling promotes overdue fees and then generates the current period.
func (j *Jobs) RefreshBilling() {
	j.logger.Info("starting billing refresh job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.client.RefreshBilling(ctx); err != nil {
		j.logger.Error("failed to refresh billing", "error", err)
		return
	}

	j.logger.Info("billing refresh job finished")
}

// GenerateFees generates the fees of the period that just started. Overdue
// promotion runs first so the period boundary is handled in one pass.
func (j *Jobs) GenerateFees() {
	j.logger.Info("starting monthly fee generation job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.client.RunOverdue(ctx); err != nil {
		j.logger.Error("failed to promote overdue fees before generation", "error", err)
	}

	if err := j.client.GenerateFees(ctx); err != nil {
		j.logger.Error("failed to generate fees", "error", err)
		return
	}

	j.logger.Info("monthly fee generation job finished")
}
