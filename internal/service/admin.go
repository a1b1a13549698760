package service

import (
	"context"
	"strings"

	"junket-admin/internal/api"
	"junket-admin/internal/constants"
	"junket-admin/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AdminAPI interface {
	Users(ctx context.Context, q api.ListQuery) (*api.Page[domain.User], error)
	SuspendUser(ctx context.Context, id int64) error
	UnsuspendUser(ctx context.Context, id int64) error
	Rewards(ctx context.Context, q api.ListQuery) (*api.Page[domain.Reward], error)
	ConfirmReward(ctx context.Context, id int64) error
	ApproveAllRewards(ctx context.Context) (int, error)
	Memberships(ctx context.Context, q api.ListQuery) (*api.Page[domain.Membership], error)
	ApproveMembership(ctx context.Context, id int64) error
	RejectMembership(ctx context.Context, id int64) error
	Settings(ctx context.Context) ([]domain.Setting, error)
	FetchRate(ctx context.Context, currency string) (*domain.ExchangeRate, error)
	Inquiries(ctx context.Context, q api.ListQuery) (*api.Page[domain.Inquiry], error)
	UpdateInquiryStatus(ctx context.Context, id int64, status string) error
	Administrators(ctx context.Context, q api.ListQuery) (*api.Page[domain.Administrator], error)
}

// AdminService backs the user, MLM reward, membership, settings, inquiry and
// administrator pages.
type AdminService struct {
	api      AdminAPI
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAdminService(client AdminAPI, logger zerolog.Logger) *AdminService {
	return &AdminService{api: client, validate: validator.New(), logger: logger}
}

type ListFilter struct {
	Search string `validate:"max=100"`
	Status string `validate:"omitempty,max=32"`
	Page   int    `validate:"gte=0"`
	Limit  int    `validate:"gte=0"`
}

type rateRequest struct {
	Currency string `validate:"required,alphanum,min=3,max=10"`
}

type inquiryStatusRequest struct {
	Status string `validate:"required,max=32"`
}

func (s *AdminService) ListUsers(ctx context.Context, f ListFilter) (*api.Page[domain.User], error) {
	return list(ctx, s, f, "users", s.api.Users)
}

func (s *AdminService) ListRewards(ctx context.Context, f ListFilter) (*api.Page[domain.Reward], error) {
	return list(ctx, s, f, "rewards", s.api.Rewards)
}

func (s *AdminService) ListMemberships(ctx context.Context, f ListFilter) (*api.Page[domain.Membership], error) {
	return list(ctx, s, f, "memberships", s.api.Memberships)
}

func (s *AdminService) ListInquiries(ctx context.Context, f ListFilter) (*api.Page[domain.Inquiry], error) {
	return list(ctx, s, f, "inquiries", s.api.Inquiries)
}

func (s *AdminService) ListAdministrators(ctx context.Context, f ListFilter) (*api.Page[domain.Administrator], error) {
	return list(ctx, s, f, "administrators", s.api.Administrators)
}

func (s *AdminService) SuspendUser(ctx context.Context, id int64) (Notice, error) {
	return s.act(ctx, "user_id", id, s.api.SuspendUser, "Failed to suspend user", "User suspended")
}

func (s *AdminService) UnsuspendUser(ctx context.Context, id int64) (Notice, error) {
	return s.act(ctx, "user_id", id, s.api.UnsuspendUser, "Failed to unsuspend user", "User unsuspended")
}

func (s *AdminService) ConfirmReward(ctx context.Context, id int64) (Notice, error) {
	return s.act(ctx, "reward_id", id, s.api.ConfirmReward, "Failed to confirm reward", "Reward confirmed")
}

func (s *AdminService) ApproveMembership(ctx context.Context, id int64) (Notice, error) {
	return s.act(ctx, "membership_id", id, s.api.ApproveMembership, "Failed to approve membership", "Membership approved")
}

func (s *AdminService) RejectMembership(ctx context.Context, id int64) (Notice, error) {
	return s.act(ctx, "membership_id", id, s.api.RejectMembership, "Failed to reject membership", "Membership rejected")
}

func (s *AdminService) ApproveAllRewards(ctx context.Context) (Notice, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	n, err := s.api.ApproveAllRewards(apiCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to approve all rewards")
		return Notice{}, fail("Failed to approve rewards", err)
	}
	s.logger.Info().Int("count", n).Msg("pending rewards approved")
	if n == 0 {
		return success("All pending rewards approved"), nil
	}
	return success("Approved %d reward(s)", n), nil
}

func (s *AdminService) Settings(ctx context.Context) ([]domain.Setting, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	settings, err := s.api.Settings(apiCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load settings")
		return nil, fail("Failed to load settings", err)
	}
	return settings, nil
}

// FetchRate refreshes the stored rate of currency. Codes are upper-cased
// before they are sent.
func (s *AdminService) FetchRate(ctx context.Context, currency string) (*domain.ExchangeRate, Notice, error) {
	req := rateRequest{Currency: strings.ToUpper(strings.TrimSpace(currency))}
	if err := s.validate.Struct(req); err != nil {
		return nil, Notice{}, validationError(err)
	}
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	rate, err := s.api.FetchRate(apiCtx, req.Currency)
	if err != nil {
		s.logger.Error().Err(err).Str("currency", req.Currency).Msg("failed to fetch exchange rate")
		return nil, Notice{}, fail("Failed to fetch exchange rate", err)
	}
	s.logger.Info().Str("currency", rate.Currency).Str("rate", rate.Rate.String()).Msg("exchange rate updated")
	return rate, success("Exchange rate for %s updated", rate.Currency), nil
}

func (s *AdminService) UpdateInquiryStatus(ctx context.Context, id int64, status string) (Notice, error) {
	if id <= 0 {
		return Notice{}, &ValidationError{Field: "id", Message: "is required"}
	}
	req := inquiryStatusRequest{Status: strings.TrimSpace(status)}
	if err := s.validate.Struct(req); err != nil {
		return Notice{}, validationError(err)
	}
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if err := s.api.UpdateInquiryStatus(apiCtx, id, req.Status); err != nil {
		s.logger.Error().Err(err).Int64("inquiry_id", id).Msg("failed to update inquiry status")
		return Notice{}, fail("Failed to update inquiry status", err)
	}
	s.logger.Info().Int64("inquiry_id", id).Str("status", req.Status).Msg("inquiry status updated")
	return success("Inquiry status updated"), nil
}

func (s *AdminService) act(ctx context.Context, field string, id int64, call func(context.Context, int64) error, fallback, done string) (Notice, error) {
	if id <= 0 {
		return Notice{}, &ValidationError{Field: "id", Message: "is required"}
	}
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if err := call(apiCtx, id); err != nil {
		s.logger.Error().Err(err).Int64(field, id).Msg(strings.ToLower(fallback))
		return Notice{}, fail(fallback, err)
	}
	s.logger.Info().Int64(field, id).Msg(strings.ToLower(done))
	return success(done), nil
}

func list[T any](ctx context.Context, s *AdminService, f ListFilter, what string, call func(context.Context, api.ListQuery) (*api.Page[T], error)) (*api.Page[T], error) {
	f.Status = allToEmpty(f.Status)
	f.Search = strings.TrimSpace(f.Search)
	if err := s.validate.Struct(f); err != nil {
		return nil, validationError(err)
	}
	q := api.ListQuery{Search: f.Search, Status: f.Status}
	q.Page, q.Limit = normalizePage(f.Page, f.Limit)

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	page, err := call(apiCtx, q)
	if err != nil {
		s.logger.Error().Err(err).Str("resource", what).Msg("failed to load admin listing")
		return nil, fail("Failed to load "+what, err)
	}
	return page, nil
}
