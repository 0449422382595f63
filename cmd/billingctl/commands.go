package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/clublibertad/billing-service/internal/app"
	"github.com/clublibertad/billing-service/internal/billing"
	"github.com/clublibertad/billing-service/internal/domain"
	"github.com/clublibertad/billing-service/internal/store"
)

type billingService interface {
	Migrate(ctx context.Context) error
	RefreshBilling(ctx context.Context) (*app.RefreshResult, error)
	GenerateCurrentPeriodFees(ctx context.Context) (*app.FeeGenerationResult, error)
	PromoteOverdueFees(ctx context.Context) (*app.OverdueResult, error)
	Summary(ctx context.Context) (*billing.Summary, error)
	ListFeeViews(ctx context.Context, q billing.FeeQuery) (*app.FeeListing, error)
}

type serviceOpener func(ctx context.Context, verbose bool) (billingService, func(), error)

type cliService struct {
	app.Service
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func (s *cliService) Migrate(ctx context.Context) error {
	return store.Migrate(ctx, s.pool, s.logger)
}

func newRootCommand(open serviceOpener) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operate club membership billing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log service activity to stderr")

	// run opens the service for one command and prints its result as JSON.
	run := func(fn func(ctx context.Context, svc billingService) (any, error)) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := open(ctx, verbose)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := fn(ctx, svc)
			if err != nil {
				return err
			}
			if result == nil {
				return nil
			}
			return printJSON(cmd.OutOrStdout(), result)
		}
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, svc billingService) (any, error) {
			return nil, svc.Migrate(ctx)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Promote overdue fees, then generate the current period",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, svc billingService) (any, error) {
			return svc.RefreshBilling(ctx)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Generate the current period's fees",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, svc billingService) (any, error) {
			return svc.GenerateCurrentPeriodFees(ctx)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "overdue",
		Short: "Mark fees past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, svc billingService) (any, error) {
			return svc.PromoteOverdueFees(ctx)
		}),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Print billing totals",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, svc billingService) (any, error) {
			return svc.Summary(ctx)
		}),
	})

	rootCmd.AddCommand(newFeesCommand(run))

	return rootCmd
}

func newFeesCommand(run func(func(ctx context.Context, svc billingService) (any, error)) func(*cobra.Command, []string) error) *cobra.Command {
	var (
		memberID string
		sportID  string
		period   string
		states   []string
		text     string
	)

	cmd := &cobra.Command{
		Use:   "fees",
		Short: "List fees with their member and sport",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&memberID, "member", "", "Only fees of this member ID")
	cmd.Flags().StringVar(&sportID, "sport", "", "Only fees of this sport ID")
	cmd.Flags().StringVar(&period, "period", "", "Only fees of this period (YYYY-MM)")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only fees in these states (GENERATED, OVERDUE, PAID)")
	cmd.Flags().StringVarP(&text, "query", "q", "", "Match member name, document or sport")

	cmd.RunE = func(c *cobra.Command, args []string) error {
		q := billing.FeeQuery{MemberID: memberID, SportID: sportID, Text: text}
		if period != "" {
			p, err := domain.ParsePeriod(period)
			if err != nil {
				return fmt.Errorf("--period: %w", err)
			}
			q.Period = p
		}
		for _, raw := range states {
			state, err := domain.ParseFeeState(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			q.States = append(q.States, state)
		}

		return run(func(ctx context.Context, svc billingService) (any, error) {
			return svc.ListFeeViews(ctx, q)
		})(c, args)
	}
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
