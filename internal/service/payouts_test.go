package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"junket-admin/internal/api"
	"junket-admin/internal/domain"
	"junket-admin/internal/service"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakePayoutAPI struct {
	rewards     []domain.JunketReward
	withdrawals []domain.Withdrawal

	rewardQueries     []api.RewardQuery
	withdrawalQueries []api.WithdrawalQuery
	rejected          map[int64]string
	err               error
}

func (f *fakePayoutAPI) JunketRewards(ctx context.Context, q api.RewardQuery) (*api.RewardsPage, error) {
	f.rewardQueries = append(f.rewardQueries, q)
	if f.err != nil {
		return nil, f.err
	}
	return &api.RewardsPage{Rewards: f.rewards}, nil
}

func (f *fakePayoutAPI) Withdrawals(ctx context.Context, q api.WithdrawalQuery) (*api.WithdrawalsPage, error) {
	f.withdrawalQueries = append(f.withdrawalQueries, q)
	if f.err != nil {
		return nil, f.err
	}
	return &api.WithdrawalsPage{Withdrawals: append([]domain.Withdrawal(nil), f.withdrawals...)}, nil
}

func (f *fakePayoutAPI) ApproveWithdrawal(ctx context.Context, id int64) error { return f.err }

func (f *fakePayoutAPI) RejectWithdrawal(ctx context.Context, id int64, reason string) error {
	if f.rejected == nil {
		f.rejected = map[int64]string{}
	}
	f.rejected[id] = reason
	return f.err
}

func (f *fakePayoutAPI) CompleteWithdrawal(ctx context.Context, id int64, notes string) error {
	return f.err
}

func TestListRewardsNormalizesFilter(t *testing.T) {
	t.Parallel()

	fake := &fakePayoutAPI{}
	svc := service.NewPayoutService(fake, zerolog.Nop())

	if _, err := svc.ListRewards(context.Background(), service.RewardFilter{Status: "all", Month: "202503", Search: "  tanaka ", Limit: 5000}); err != nil {
		t.Fatalf("ListRewards: %v", err)
	}
	want := api.RewardQuery{Month: "202503", Search: "tanaka", Page: 1, Limit: 200}
	if diff := cmp.Diff(want, fake.rewardQueries[0]); diff != "" {
		t.Fatalf("query mismatch (-want +got):\n%s", diff)
	}
}

func TestRewardFilterValidation(t *testing.T) {
	t.Parallel()

	cases := []service.RewardFilter{
		{Status: "PAID"},
		{Month: "2025-03"},
		{Month: "20253"},
	}
	for _, f := range cases {
		svc := service.NewPayoutService(&fakePayoutAPI{}, zerolog.Nop())
		_, err := svc.ListRewards(context.Background(), f)
		var verr *service.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("filter %+v: expected validation error, got %v", f, err)
		}
	}
}

func TestExportRewardsFetchesEverything(t *testing.T) {
	t.Parallel()

	fake := &fakePayoutAPI{rewards: []domain.JunketReward{
		{Amount: decimal.NewFromInt(100), Status: domain.RewardPending, Month: "202503"},
	}}
	svc := service.NewPayoutService(fake, zerolog.Nop())

	out, err := svc.ExportRewards(context.Background(), service.RewardFilter{Status: "PENDING", Page: 4, Limit: 20})
	if err != nil {
		t.Fatalf("ExportRewards: %v", err)
	}
	if q := fake.rewardQueries[0]; q.Page != 1 || q.Limit != 10000 || q.Status != "PENDING" {
		t.Fatalf("unexpected query %+v", q)
	}
	if len(out.Table.Rows) != 1 || out.Table.Rows[0][0] != "2025-03" {
		t.Fatalf("unexpected table %+v", out.Table)
	}
	if len(out.Name) != len("junket_rewards_2006-01-02") {
		t.Fatalf("unexpected export name %q", out.Name)
	}
}

func TestListWithdrawalsFiltersDatesInclusively(t *testing.T) {
	t.Parallel()

	day := func(d, h int) time.Time { return time.Date(2025, 4, d, h, 0, 0, 0, time.UTC) }
	fake := &fakePayoutAPI{withdrawals: []domain.Withdrawal{
		{ID: 1, CreatedAt: day(9, 23)},
		{ID: 2, CreatedAt: day(10, 0)},
		{ID: 3, CreatedAt: day(20, 23)},
		{ID: 4, CreatedAt: day(21, 0)},
	}}
	svc := service.NewPayoutService(fake, zerolog.Nop())

	page, err := svc.ListWithdrawals(context.Background(), service.WithdrawalFilter{StartDate: "2025-04-10", EndDate: "2025-04-20"})
	if err != nil {
		t.Fatalf("ListWithdrawals: %v", err)
	}
	var ids []int64
	for _, w := range page.Withdrawals {
		ids = append(ids, w.ID)
	}
	if diff := cmp.Diff([]int64{2, 3}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if q := fake.withdrawalQueries[0]; q.Type != domain.WithdrawalTypeJunket || q.Page != 1 {
		t.Fatalf("unexpected query %+v", q)
	}
}

func TestWithdrawalFilterValidation(t *testing.T) {
	t.Parallel()

	cases := []service.WithdrawalFilter{
		{StartDate: "04/10/2025"},
		{Status: "LOST"},
		{StartDate: "2025-04-20", EndDate: "2025-04-10"},
	}
	for _, f := range cases {
		fake := &fakePayoutAPI{}
		svc := service.NewPayoutService(fake, zerolog.Nop())
		_, err := svc.ListWithdrawals(context.Background(), f)
		var verr *service.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("filter %+v: expected validation error, got %v", f, err)
		}
		if len(fake.withdrawalQueries) != 0 {
			t.Errorf("filter %+v: request sent despite invalid filter", f)
		}
	}
}

func TestExportWithdrawalsScopedToUser(t *testing.T) {
	t.Parallel()

	fake := &fakePayoutAPI{withdrawals: []domain.Withdrawal{
		{ID: 1, Currency: "JPY", Amount: decimal.NewFromInt(1000), User: &domain.UserRef{ID: 5, Nickname: "tk"}},
	}}
	svc := service.NewPayoutService(fake, zerolog.Nop())

	scoped, err := svc.ExportWithdrawals(context.Background(), service.WithdrawalFilter{UserID: 5})
	if err != nil {
		t.Fatalf("ExportWithdrawals: %v", err)
	}
	if scoped.Name != "jk-withdrawals-tk" || len(scoped.Table.Headers) != 6 {
		t.Fatalf("unexpected scoped export %q %v", scoped.Name, scoped.Table.Headers)
	}

	all, err := svc.ExportWithdrawals(context.Background(), service.WithdrawalFilter{})
	if err != nil {
		t.Fatalf("ExportWithdrawals: %v", err)
	}
	if all.Name != "jk-withdrawals-all" || len(all.Table.Headers) != 8 {
		t.Fatalf("unexpected export %q %v", all.Name, all.Table.Headers)
	}
}

func TestWithdrawalActions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := &fakePayoutAPI{}
	svc := service.NewPayoutService(fake, zerolog.Nop())

	var verr *service.ValidationError
	if _, err := svc.RejectWithdrawal(ctx, 3, "   "); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}
	if _, err := svc.RejectWithdrawal(ctx, 3, " wrong address "); err != nil {
		t.Fatalf("RejectWithdrawal: %v", err)
	}
	if fake.rejected[3] != "wrong address" {
		t.Fatalf("unexpected reason %q", fake.rejected[3])
	}

	fake.err = &api.Error{StatusCode: 400, Message: "withdrawal already processed"}
	_, err := svc.ApproveWithdrawal(ctx, 3)
	if got := service.Describe(err); got != "withdrawal already processed" {
		t.Fatalf("unexpected message %q", got)
	}

	fake.err = api.ErrTransport
	_, err = svc.CompleteWithdrawal(ctx, 3, "")
	if got := service.Describe(err); got != "Failed to complete withdrawal" {
		t.Fatalf("unexpected message %q", got)
	}
}
