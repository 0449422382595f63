package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clublibertad/billing-service/internal/app"
	"github.com/clublibertad/billing-service/internal/billing"
	"github.com/clublibertad/billing-service/internal/domain"
)

type cliServiceStub struct {
	billingService

	calls     []string
	lastQuery billing.FeeQuery
}

func (s *cliServiceStub) RefreshBilling(ctx context.Context) (*app.RefreshResult, error) {
	s.calls = append(s.calls, "refresh")
	return &app.RefreshResult{Period: domain.Period{Year: 2026, Month: time.October}, Generated: 4}, nil
}

func (s *cliServiceStub) Migrate(ctx context.Context) error {
	s.calls = append(s.calls, "migrate")
	return nil
}

func (s *cliServiceStub) ListFeeViews(ctx context.Context, q billing.FeeQuery) (*app.FeeListing, error) {
	s.calls = append(s.calls, "fees")
	s.lastQuery = q
	return &app.FeeListing{Fees: []billing.FeeView{}}, nil
}

func execute(t *testing.T, svc billingService, openErr error, args ...string) (string, int, error) {
	t.Helper()
	closed := 0
	open := func(ctx context.Context, verbose bool) (billingService, func(), error) {
		if openErr != nil {
			return nil, nil, openErr
		}
		return svc, func() { closed++ }, nil
	}

	var out bytes.Buffer
	root := newRootCommand(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), closed, err
}

func TestRefreshCommandPrintsResult(t *testing.T) {
	svc := &cliServiceStub{}
	out, closed, err := execute(t, svc, nil, "refresh")
	if err != nil {
		t.Fatalf("refresh returned error: %v", err)
	}
	if !strings.Contains(out, `"period": "2026-10"`) || !strings.Contains(out, `"generated": 4`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if closed != 1 {
		t.Fatalf("expected the service to be closed once, got %d", closed)
	}
}

func TestMigrateCommandPrintsNothing(t *testing.T) {
	svc := &cliServiceStub{}
	out, _, err := execute(t, svc, nil, "migrate")
	if err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	if out != "" || len(svc.calls) != 1 || svc.calls[0] != "migrate" {
		t.Fatalf("unexpected migrate run: out=%q calls=%v", out, svc.calls)
	}
}

func TestFeesCommandBuildsQuery(t *testing.T) {
	svc := &cliServiceStub{}
	_, _, err := execute(t, svc, nil, "fees", "--member", "m1", "--period", "2026-09", "--state", "generated,overdue", "-q", "gomez")
	if err != nil {
		t.Fatalf("fees returned error: %v", err)
	}
	q := svc.lastQuery
	if q.MemberID != "m1" || q.Text != "gomez" || q.Period != (domain.Period{Year: 2026, Month: time.September}) {
		t.Fatalf("unexpected query %+v", q)
	}
	if len(q.States) != 2 || q.States[0] != domain.FeeStateGenerated || q.States[1] != domain.FeeStateOverdue {
		t.Fatalf("unexpected states %v", q.States)
	}
}

func TestFeesCommandRejectsBadFlagsBeforeConnecting(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "period", args: []string{"fees", "--period", "2026/09"}},
		{name: "state", args: []string{"fees", "--state", "LOST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &cliServiceStub{}
			_, closed, err := execute(t, svc, nil, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if closed != 0 || len(svc.calls) != 0 {
				t.Fatalf("service should not be opened, closed=%d calls=%v", closed, svc.calls)
			}
		})
	}
}

func TestOpenFailureIsReturned(t *testing.T) {
	openErr := errors.New("DATABASE_URL is required")
	_, _, err := execute(t, &cliServiceStub{}, openErr, "summary")
	if !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
}
