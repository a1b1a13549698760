package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"junket-admin/internal/api"
	"junket-admin/internal/constants"
	"junket-admin/internal/domain"
	"junket-admin/internal/export"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type PayoutAPI interface {
	JunketRewards(ctx context.Context, q api.RewardQuery) (*api.RewardsPage, error)
	Withdrawals(ctx context.Context, q api.WithdrawalQuery) (*api.WithdrawalsPage, error)
	ApproveWithdrawal(ctx context.Context, id int64) error
	RejectWithdrawal(ctx context.Context, id int64, reason string) error
	CompleteWithdrawal(ctx context.Context, id int64, notes string) error
}

// PayoutService backs the junket rewards and junket withdrawals pages.
type PayoutService struct {
	api      PayoutAPI
	validate *validator.Validate
	now      func() time.Time
	logger   zerolog.Logger
}

func NewPayoutService(client PayoutAPI, logger zerolog.Logger) *PayoutService {
	return &PayoutService{api: client, validate: validator.New(), now: time.Now, logger: logger}
}

type RewardFilter struct {
	Status string `validate:"omitempty,oneof=PENDING APPROVED"`
	Month  string `validate:"omitempty,len=6,numeric"`
	Search string
	Page   int `validate:"gte=0"`
	Limit  int `validate:"gte=0"`
}

type WithdrawalFilter struct {
	Status    string `validate:"omitempty,oneof=PENDING APPROVED REJECTED COMPLETED CANCELLED"`
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
	UserID    int64  `validate:"gte=0"`
	Page      int    `validate:"gte=0"`
	Limit     int    `validate:"gte=0"`
}

// Export is a rendered table plus the download name, without extension.
type Export struct {
	Name  string
	Table export.Table
}

func (s *PayoutService) ListRewards(ctx context.Context, f RewardFilter) (*api.RewardsPage, error) {
	q, err := s.rewardQuery(f)
	if err != nil {
		return nil, err
	}
	q.Page, q.Limit = normalizePage(f.Page, f.Limit)

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	page, err := s.api.JunketRewards(apiCtx, q)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load junket rewards")
		return nil, fail("Failed to load rewards", err)
	}
	return page, nil
}

// ExportRewards renders every reward matching f, not just one page.
func (s *PayoutService) ExportRewards(ctx context.Context, f RewardFilter) (*Export, error) {
	q, err := s.rewardQuery(f)
	if err != nil {
		return nil, err
	}
	q.Page, q.Limit = 1, constants.ExportPageSize

	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	page, err := s.api.JunketRewards(apiCtx, q)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load junket rewards for export")
		return nil, fail("Failed to export CSV", err)
	}

	s.logger.Info().Int("rows", len(page.Rewards)).Msg("exporting junket rewards")
	return &Export{
		Name:  "junket_rewards_" + s.now().UTC().Format("2006-01-02"),
		Table: export.RewardsTable(page.Rewards),
	}, nil
}

func (s *PayoutService) ListWithdrawals(ctx context.Context, f WithdrawalFilter) (*api.WithdrawalsPage, error) {
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	return s.withdrawals(ctx, f, page, limit)
}

// ExportWithdrawals renders the withdrawals matching f. Exports scoped to
// one user leave out the user columns.
func (s *PayoutService) ExportWithdrawals(ctx context.Context, f WithdrawalFilter) (*Export, error) {
	page, err := s.withdrawals(ctx, f, 1, constants.ExportPageSize)
	if err != nil {
		return nil, err
	}

	name := "jk-withdrawals-all"
	if f.UserID != 0 {
		name = "jk-withdrawals-" + strconv.FormatInt(f.UserID, 10)
		for _, w := range page.Withdrawals {
			if w.User != nil && w.User.Nickname != "" {
				name = "jk-withdrawals-" + w.User.Nickname
				break
			}
		}
	}

	s.logger.Info().Int("rows", len(page.Withdrawals)).Int64("user_id", f.UserID).Msg("exporting junket withdrawals")
	return &Export{Name: name, Table: export.WithdrawalsTable(page.Withdrawals, f.UserID != 0)}, nil
}

func (s *PayoutService) ApproveWithdrawal(ctx context.Context, id int64) (Notice, error) {
	if id <= 0 {
		return Notice{}, &ValidationError{Field: "id", Message: "is required"}
	}
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if err := s.api.ApproveWithdrawal(apiCtx, id); err != nil {
		s.logger.Error().Err(err).Int64("withdrawal_id", id).Msg("failed to approve withdrawal")
		return Notice{}, fail("Failed to approve withdrawal", err)
	}
	s.logger.Info().Int64("withdrawal_id", id).Msg("withdrawal approved")
	return success("Withdrawal approved"), nil
}

func (s *PayoutService) RejectWithdrawal(ctx context.Context, id int64, reason string) (Notice, error) {
	if id <= 0 {
		return Notice{}, &ValidationError{Field: "id", Message: "is required"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Notice{}, &ValidationError{Field: "reason", Message: "is required"}
	}
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if err := s.api.RejectWithdrawal(apiCtx, id, reason); err != nil {
		s.logger.Error().Err(err).Int64("withdrawal_id", id).Msg("failed to reject withdrawal")
		return Notice{}, fail("Failed to reject withdrawal", err)
	}
	s.logger.Info().Int64("withdrawal_id", id).Msg("withdrawal rejected")
	return success("Withdrawal rejected"), nil
}

func (s *PayoutService) CompleteWithdrawal(ctx context.Context, id int64, notes string) (Notice, error) {
	if id <= 0 {
		return Notice{}, &ValidationError{Field: "id", Message: "is required"}
	}
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if err := s.api.CompleteWithdrawal(apiCtx, id, strings.TrimSpace(notes)); err != nil {
		s.logger.Error().Err(err).Int64("withdrawal_id", id).Msg("failed to complete withdrawal")
		return Notice{}, fail("Failed to complete withdrawal", err)
	}
	s.logger.Info().Int64("withdrawal_id", id).Msg("withdrawal completed")
	return success("Withdrawal completed"), nil
}

func (s *PayoutService) rewardQuery(f RewardFilter) (api.RewardQuery, error) {
	f.Status = allToEmpty(f.Status)
	f.Month = allToEmpty(f.Month)
	if err := s.validate.Struct(f); err != nil {
		return api.RewardQuery{}, validationError(err)
	}
	return api.RewardQuery{Status: f.Status, Month: f.Month, Search: strings.TrimSpace(f.Search)}, nil
}

// withdrawals lists junket withdrawals. The date range is applied locally as
// well, with the end date covering its whole day.
func (s *PayoutService) withdrawals(ctx context.Context, f WithdrawalFilter, page, limit int) (*api.WithdrawalsPage, error) {
	f.Status = allToEmpty(f.Status)
	if err := s.validate.Struct(f); err != nil {
		return nil, validationError(err)
	}
	start, _ := parseDay(f.StartDate)
	end, _ := parseDay(f.EndDate)
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return nil, &ValidationError{Field: "EndDate", Message: "must not be before the start date"}
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	res, err := s.api.Withdrawals(apiCtx, api.WithdrawalQuery{
		Type:      domain.WithdrawalTypeJunket,
		Status:    f.Status,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
		UserID:    f.UserID,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load junket withdrawals")
		return nil, fail("Failed to load withdrawals", err)
	}
	res.Withdrawals = export.FilterByDate(res.Withdrawals, start, end)
	return res, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func allToEmpty(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}
