package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strconv"
	"time"

	"junket-admin/internal/config"
	"junket-admin/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// AdminClient talks to the remote admin REST API. Every response is decoded
// into an explicit schema and validated before it reaches callers.
type AdminClient struct {
	baseURL  string
	token    string
	client   *fasthttp.Client
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewAdminClient(cfg *config.Config, logger zerolog.Logger) *AdminClient {
	return &AdminClient{
		baseURL: cfg.AdminAPIURL,
		token:   cfg.AdminAPIToken,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        30 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		validate: validator.New(),
		logger:   logger,
	}
}

func (c *AdminClient) ImportHistory(ctx context.Context) ([]domain.ImportBatch, error) {
	resp, err := doRequest[historyResponse](ctx, c, fasthttp.MethodGet, "/junket-import/history", nil, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ImportBatch, 0, len(resp.Data))
	for _, b := range resp.Data {
		batch, err := b.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: GET /junket-import/history: %v", ErrInvalidResponse, err)
		}
		out = append(out, batch)
	}
	return out, nil
}

type RecordQuery struct {
	ImportID int64
	Page     int
	Limit    int
	Keyword  string
}

type RecordsPage struct {
	Records    []domain.ImportRecord
	Pagination domain.Pagination
}

func (c *AdminClient) ImportRecords(ctx context.Context, q RecordQuery) (*RecordsPage, error) {
	params := url.Values{}
	params.Set("importId", strconv.FormatInt(q.ImportID, 10))
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Keyword != "" {
		params.Set("keyword", q.Keyword)
	}

	resp, err := doRequest[recordsResponse](ctx, c, fasthttp.MethodGet, "/junket-import", params, nil)
	if err != nil {
		return nil, err
	}
	page := &RecordsPage{
		Records:    make([]domain.ImportRecord, 0, len(resp.Data.Records)),
		Pagination: resp.Data.Pagination,
	}
	for _, r := range resp.Data.Records {
		page.Records = append(page.Records, r.toDomain())
	}
	return page, nil
}

// UploadImport posts a junket data file as multipart form data.
func (c *AdminClient) UploadImport(ctx context.Context, fileName string, content []byte) (*domain.ImportResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload form: %w", err)
	}

	resp, err := doRequest[importResponse](ctx, c, fasthttp.MethodPost, "/junket-import/import", nil,
		rawBody{contentType: w.FormDataContentType(), body: buf.Bytes()})
	if err != nil {
		return nil, err
	}
	return resp.Data.toDomain(), nil
}

// BulkUpdateRecords applies record updates in one call and returns how many
// records the backend reports as updated.
func (c *AdminClient) BulkUpdateRecords(ctx context.Context, updates []domain.RecordUpdate) (int, error) {
	req := bulkUpdateRequest{Updates: make([]recordUpdateDTO, 0, len(updates))}
	for _, u := range updates {
		req.Updates = append(req.Updates, newRecordUpdateDTO(u))
	}
	if err := c.validate.Struct(req); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	resp, err := doRequest[bulkUpdateResponse](ctx, c, fasthttp.MethodPut, "/junket-import/records/bulk-update", nil, req)
	if err != nil {
		return 0, err
	}
	if resp.Data.Updated != nil {
		return *resp.Data.Updated, nil
	}
	return len(updates), nil
}

func (c *AdminClient) ConfirmImport(ctx context.Context, importID int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/junket-import/%d/confirm", importID), nil, nil)
	return err
}

func (c *AdminClient) CalculateRewards(ctx context.Context, importID int64) (*domain.CalculationResult, error) {
	resp, err := doRequest[calculationResponse](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/junket-import/%d/calculate-rewards", importID), nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data.toDomain(), nil
}

func (c *AdminClient) CancelImport(ctx context.Context, importID int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodDelete, fmt.Sprintf("/junket-import/%d", importID), nil, nil)
	return err
}

func (c *AdminClient) ApproveImportRewards(ctx context.Context, importID int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/junket-rewards/approveImportRewards/%d", importID), nil, nil)
	return err
}

// MKUsers lists users eligible to be matched to junket records.
func (c *AdminClient) MKUsers(ctx context.Context, search string, limit int) ([]domain.UserRef, error) {
	params := url.Values{}
	params.Set("search", search)
	params.Set("limit", strconv.Itoa(limit))

	resp, err := doRequest[mkUsersResponse](ctx, c, fasthttp.MethodGet, "/junket-import/mk-users", params, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserRef, 0, len(resp.Data.Users))
	for _, u := range resp.Data.Users {
		out = append(out, *u.toDomain())
	}
	return out, nil
}

type RewardQuery struct {
	Status string
	Month  string
	Search string
	Page   int
	Limit  int
}

type RewardsPage struct {
	Rewards    []domain.JunketReward
	Pagination domain.Pagination
}

func (c *AdminClient) JunketRewards(ctx context.Context, q RewardQuery) (*RewardsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	setIf(params, "status", q.Status)
	setIf(params, "month", q.Month)
	setIf(params, "search", q.Search)

	resp, err := doRequest[rewardsResponse](ctx, c, fasthttp.MethodGet, "/junket-rewards", params, nil)
	if err != nil {
		return nil, err
	}
	page := &RewardsPage{Rewards: make([]domain.JunketReward, 0, len(resp.Rewards))}
	if resp.Pagination != nil {
		page.Pagination = *resp.Pagination
	}
	for _, r := range resp.Rewards {
		page.Rewards = append(page.Rewards, r.toDomain())
	}
	return page, nil
}

type WithdrawalQuery struct {
	Type      string
	Status    string
	StartDate string
	EndDate   string
	UserID    int64
	Page      int
	Limit     int
}

type WithdrawalsPage struct {
	Withdrawals []domain.Withdrawal
	Pagination  domain.Pagination
}

func (c *AdminClient) Withdrawals(ctx context.Context, q WithdrawalQuery) (*WithdrawalsPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	setIf(params, "withdrawalType", q.Type)
	setIf(params, "status", q.Status)
	setIf(params, "startDate", q.StartDate)
	setIf(params, "endDate", q.EndDate)
	if q.UserID != 0 {
		params.Set("userId", strconv.FormatInt(q.UserID, 10))
	}

	resp, err := doRequest[withdrawalsResponse](ctx, c, fasthttp.MethodGet, "/withdrawals", params, nil)
	if err != nil {
		return nil, err
	}
	page := &WithdrawalsPage{Withdrawals: make([]domain.Withdrawal, 0, len(resp.Withdrawals))}
	if resp.Pagination != nil {
		page.Pagination = *resp.Pagination
	}
	for _, w := range resp.Withdrawals {
		page.Withdrawals = append(page.Withdrawals, w.toDomain())
	}
	return page, nil
}

func (c *AdminClient) ApproveWithdrawal(ctx context.Context, id int64) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/withdrawals/%d/approve", id), nil, nil)
	return err
}

func (c *AdminClient) RejectWithdrawal(ctx context.Context, id int64, reason string) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/withdrawals/%d/reject", id), nil, map[string]string{"reason": reason})
	return err
}

func (c *AdminClient) CompleteWithdrawal(ctx context.Context, id int64, notes string) error {
	_, err := doRequest[envelope](ctx, c, fasthttp.MethodPost, fmt.Sprintf("/withdrawals/%d/complete", id), nil, map[string]string{"notes": notes})
	return err
}

type rawBody struct {
	contentType string
	body        []byte
}

func doRequest[T any](ctx context.Context, client *AdminClient, method, path string, query url.Values, body any) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := client.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if client.token != "" {
		req.Header.Set("Authorization", "Bearer "+client.token)
	}

	switch b := body.(type) {
	case nil:
	case rawBody:
		req.Header.SetContentType(b.contentType)
		req.SetBody(b.body)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = client.client.DoDeadline(req, resp, deadline)
	} else {
		err = client.client.Do(req, resp)
	}
	if err != nil {
		client.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("admin api request failed")
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	status := resp.StatusCode()
	raw := resp.Body()
	client.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("admin api request completed")

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if status < 200 || status >= 300 {
		return nil, newError(status, env)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, decodeErr)
	}
	if !env.Success {
		return nil, newError(status, env)
	}

	var result T
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, err)
	}
	if err := client.validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, err)
	}
	return &result, nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
