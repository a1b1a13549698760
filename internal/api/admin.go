package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"junket-admin/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

// ListQuery filters the paginated admin resource listings.
type ListQuery struct {
	Search string
	Status string
	Page   int
	Limit  int
}

func (q ListQuery) params() url.Values {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setIf(params, "search", q.Search)
	setIf(params, "status", q.Status)
	return params
}

type Page[T any] struct {
	Items      []T
	Pagination domain.Pagination
}

func newPage[D any, T any](items []D, p *domain.Pagination, convert func(D) T) *Page[T] {
	page := &Page[T]{Items: make([]T, 0, len(items))}
	if p != nil {
		page.Pagination = *p
	}
	for _, it := range items {
		page.Items = append(page.Items, convert(it))
	}
	return page
}

type adminUserDTO struct {
	ID            flexID    `json:"id" validate:"required"`
	Name          string    `json:"name"`
	Nickname      string    `json:"nickname"`
	Email         string    `json:"email"`
	Status        string    `json:"status"`
	IsSuspended   bool      `json:"isSuspended"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (u adminUserDTO) toDomain() domain.User {
	return domain.User{
		ID:        int64(u.ID),
		Name:      u.Name,
		Nickname:  u.Nickname,
		Email:     u.Email,
		Status:    u.Status,
		Suspended: u.IsSuspended || strings.EqualFold(u.Status, domain.UserStatusSuspended),
		Verified:  u.EmailVerified,
		CreatedAt: u.CreatedAt,
	}
}

type usersResponse struct {
	Users      []adminUserDTO     `json:"users" validate:"dive"`
	Pagination *domain.Pagination `json:"pagination"`
}

func (c *AdminClient) Users(ctx context.Context, q ListQuery) (*Page[domain.User], error) {
	resp, err := doRequest[usersResponse](ctx, c, fasthttp.MethodGet, "/users", q.params(), nil)
	if err != nil {
		return nil, err
	}
	return newPage(resp.Users, resp.Pagination, adminUserDTO.toDomain), nil
}

func (c *AdminClient) SuspendUser(ctx context.Context, id int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/users/%d/suspend", id), nil, nil)
	return err
}

func (c *AdminClient) UnsuspendUser(ctx context.Context, id int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/users/%d/unsuspend", id), nil, nil)
	return err
}

type mlmRewardDTO struct {
	ID          flexID          `json:"id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Level       int             `json:"level"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	User        *userDTO        `json:"user"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (r mlmRewardDTO) toDomain() domain.Reward {
	return domain.Reward{
		ID:          int64(r.ID),
		Amount:      r.Amount,
		Type:        r.Type,
		Level:       r.Level,
		Status:      domain.RewardStatus(r.Status),
		Description: r.Description,
		User:        r.User.toDomain(),
		CreatedAt:   r.CreatedAt,
	}
}

type mlmRewardsResponse struct {
	Rewards    []mlmRewardDTO     `json:"rewards" validate:"dive"`
	Pagination *domain.Pagination `json:"pagination"`
}

func (c *AdminClient) Rewards(ctx context.Context, q ListQuery) (*Page[domain.Reward], error) {
	resp, err := doRequest[mlmRewardsResponse](ctx, c, fasthttp.MethodGet, "/rewards", q.params(), nil)
	if err != nil {
		return nil, err
	}
	return newPage(resp.Rewards, resp.Pagination, mlmRewardDTO.toDomain), nil
}

func (c *AdminClient) ConfirmReward(ctx context.Context, id int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/rewards/%d/confirm", id), nil, nil)
	return err
}

type approveAllResponse struct {
	Data struct {
		Count *int `json:"count"`
	} `json:"data"`
}

// ApproveAllRewards approves every pending reward. The count is 0 when the
// backend does not report one.
func (c *AdminClient) ApproveAllRewards(ctx context.Context) (int, error) {
	resp, err := doRequest[approveAllResponse](ctx, c, fasthttp.MethodPost, "/rewards/approveAll", nil, nil)
	if err != nil {
		return 0, err
	}
	if resp.Data.Count != nil {
		return *resp.Data.Count, nil
	}
	return 0, nil
}

type membershipDTO struct {
	ID        flexID          `json:"id" validate:"required"`
	Plan      string          `json:"plan"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	User      *userDTO        `json:"user"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (m membershipDTO) toDomain() domain.Membership {
	return domain.Membership{
		ID:        int64(m.ID),
		Plan:      m.Plan,
		Amount:    m.Amount,
		Status:    m.Status,
		User:      m.User.toDomain(),
		CreatedAt: m.CreatedAt,
	}
}

type membershipsResponse struct {
	Memberships []membershipDTO    `json:"memberships" validate:"dive"`
	Pagination  *domain.Pagination `json:"pagination"`
}

func (c *AdminClient) Memberships(ctx context.Context, q ListQuery) (*Page[domain.Membership], error) {
	resp, err := doRequest[membershipsResponse](ctx, c, fasthttp.MethodGet, "/membership", q.params(), nil)
	if err != nil {
		return nil, err
	}
	return newPage(resp.Memberships, resp.Pagination, membershipDTO.toDomain), nil
}

func (c *AdminClient) ApproveMembership(ctx context.Context, id int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPut, fmt.Sprintf("/membership/%d/approve", id), nil, nil)
	return err
}

func (c *AdminClient) RejectMembership(ctx context.Context, id int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPut, fmt.Sprintf("/membership/%d/reject", id), nil, nil)
	return err
}

type settingDTO struct {
	ID          flexID    `json:"id" validate:"required"`
	Key         string    `json:"key" validate:"required"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type settingsResponse struct {
	Settings []settingDTO `json:"settings" validate:"dive"`
}

func (c *AdminClient) Settings(ctx context.Context) ([]domain.Setting, error) {
	resp, err := doRequest[settingsResponse](ctx, c, fasthttp.MethodGet, "/settings", nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Setting, 0, len(resp.Settings))
	for _, s := range resp.Settings {
		out = append(out, domain.Setting{
			ID:          int64(s.ID),
			Key:         s.Key,
			Value:       s.Value,
			Description: s.Description,
			UpdatedAt:   s.UpdatedAt,
		})
	}
	return out, nil
}

type fetchRateResponse struct {
	Data *struct {
		Currency  string          `json:"currency"`
		Rate      decimal.Decimal `json:"rate"`
		UpdatedAt *time.Time      `json:"updatedAt"`
	} `json:"data"`
}

// FetchRate makes the backend refresh the JPY rate of currency from its
// upstream source.
func (c *AdminClient) FetchRate(ctx context.Context, currency string) (*domain.ExchangeRate, error) {
	resp, err := doRequest[fetchRateResponse](ctx, c, fasthttp.MethodPost, "/settings/fetch-rate/"+url.PathEscape(currency), nil, nil)
	if err != nil {
		return nil, err
	}
	rate := &domain.ExchangeRate{Currency: currency}
	if resp.Data != nil {
		rate.Rate = resp.Data.Rate
		rate.UpdatedAt = resp.Data.UpdatedAt
		if resp.Data.Currency != "" {
			rate.Currency = resp.Data.Currency
		}
	}
	return rate, nil
}

type inquiryDTO struct {
	ID        flexID    `json:"id" validate:"required"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	User      *userDTO  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (i inquiryDTO) toDomain() domain.Inquiry {
	return domain.Inquiry{
		ID:        int64(i.ID),
		Subject:   i.Subject,
		Status:    i.Status,
		User:      i.User.toDomain(),
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

type inquiriesResponse struct {
	Inquiries  []inquiryDTO       `json:"inquiries" validate:"dive"`
	Pagination *domain.Pagination `json:"pagination"`
}

func (c *AdminClient) Inquiries(ctx context.Context, q ListQuery) (*Page[domain.Inquiry], error) {
	resp, err := doRequest[inquiriesResponse](ctx, c, fasthttp.MethodGet, "/inquiries", q.params(), nil)
	if err != nil {
		return nil, err
	}
	return newPage(resp.Inquiries, resp.Pagination, inquiryDTO.toDomain), nil
}

func (c *AdminClient) UpdateInquiryStatus(ctx context.Context, id int64, status string) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPut, fmt.Sprintf("/inquiries/%d/status", id), nil, map[string]string{"status": status})
	return err
}

type administratorDTO struct {
	ID        flexID    `json:"id" validate:"required"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a administratorDTO) toDomain() domain.Administrator {
	return domain.Administrator{
		ID:        int64(a.ID),
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

type administratorsResponse struct {
	Administrators []administratorDTO `json:"administrators" validate:"dive"`
	Pagination     *domain.Pagination `json:"pagination"`
}

func (c *AdminClient) Administrators(ctx context.Context, q ListQuery) (*Page[domain.Administrator], error) {
	resp, err := doRequest[administratorsResponse](ctx, c, fasthttp.MethodGet, "/administrators", q.params(), nil)
	if err != nil {
		return nil, err
	}
	return newPage(resp.Administrators, resp.Pagination, administratorDTO.toDomain), nil
}
