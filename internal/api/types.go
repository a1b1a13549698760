package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"junket-admin/internal/domain"

	"github.com/shopspring/decimal"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// flexID accepts ids encoded either as JSON numbers or numeric strings.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("id %q is not numeric", s)
		}
		*f = flexID(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

type userDTO struct {
	ID       flexID `json:"id" validate:"required"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Status   string `json:"status"`
}

func (u *userDTO) toDomain() *domain.UserRef {
	if u == nil {
		return nil
	}
	return &domain.UserRef{ID: int64(u.ID), Name: u.Name, Nickname: u.Nickname, Email: u.Email}
}

type importBatchDTO struct {
	ID             flexID    `json:"id" validate:"required"`
	FileName       string    `json:"fileName"`
	Month          string    `json:"month" validate:"omitempty,len=6,numeric"`
	TotalRecords   int       `json:"totalRecords" validate:"gte=0"`
	SuccessRecords int       `json:"successRecords" validate:"gte=0"`
	FailedRecords  int       `json:"failedRecords" validate:"gte=0"`
	Status         string    `json:"status" validate:"required"`
	CreatedAt      time.Time `json:"createdAt"`
	JunketRewards  []struct {
		ID     flexID `json:"id"`
		Status string `json:"status"`
	} `json:"junketRewards"`
	Count struct {
		JunketRewards int `json:"junketRewards"`
	} `json:"_count"`
}

func (b importBatchDTO) toDomain() (domain.ImportBatch, error) {
	status, err := domain.ParseImportStatus(b.Status)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("import %d: %w", int64(b.ID), err)
	}

	pending := 0
	for _, r := range b.JunketRewards {
		// the history endpoint only embeds pending rewards; older payloads omit the status
		if r.Status == "" || r.Status == string(domain.RewardPending) {
			pending++
		}
	}
	return domain.ImportBatch{
		ID:             int64(b.ID),
		FileName:       b.FileName,
		Month:          b.Month,
		TotalRecords:   b.TotalRecords,
		SuccessRecords: b.SuccessRecords,
		FailedRecords:  b.FailedRecords,
		Status:         status,
		PendingRewards: pending,
		RewardCount:    b.Count.JunketRewards,
		CreatedAt:      b.CreatedAt,
	}, nil
}

type historyResponse struct {
	Data []importBatchDTO `json:"data" validate:"dive"`
}

type importRecordDTO struct {
	ID                  flexID          `json:"id" validate:"required"`
	ImportID            flexID          `json:"importId"`
	CustomerNumber      string          `json:"customerNumber"`
	CustomerEnglishName string          `json:"customerEnglishName"`
	WinLoss             decimal.Decimal `json:"winLoss"`
	User                *userDTO        `json:"user"`
	CreatedAt           time.Time       `json:"createdAt"`
}

func (r importRecordDTO) toDomain() domain.ImportRecord {
	return domain.ImportRecord{
		ID:                  int64(r.ID),
		ImportID:            int64(r.ImportID),
		CustomerNumber:      r.CustomerNumber,
		CustomerEnglishName: r.CustomerEnglishName,
		WinLoss:             r.WinLoss,
		User:                r.User.toDomain(),
		CreatedAt:           r.CreatedAt,
	}
}

type recordsResponse struct {
	Data struct {
		Records    []importRecordDTO `json:"records" validate:"dive"`
		Pagination domain.Pagination `json:"pagination"`
	} `json:"data"`
}

type calculationDTO struct {
	Success           *bool           `json:"success"`
	TotalCalculations int             `json:"totalCalculations"`
	TotalRewardAmount decimal.Decimal `json:"totalRewardAmount"`
	Error             string          `json:"error"`
}

func (c *calculationDTO) toDomain() *domain.CalculationResult {
	if c == nil {
		return &domain.CalculationResult{Success: true}
	}
	return &domain.CalculationResult{
		Success:           c.Success == nil || *c.Success,
		TotalCalculations: c.TotalCalculations,
		TotalRewardAmount: c.TotalRewardAmount,
		Error:             c.Error,
	}
}

type calculationResponse struct {
	Data *calculationDTO `json:"data"`
}

type importResultDTO struct {
	ID             flexID          `json:"id"`
	ImportID       flexID          `json:"importId"`
	Month          string          `json:"month"`
	TotalRecords   int             `json:"totalRecords"`
	SuccessRecords int             `json:"successRecords"`
	FailedRecords  int             `json:"failedRecords"`
	Calculation    *calculationDTO `json:"calculation"`
}

func (r importResultDTO) toDomain() *domain.ImportResult {
	id := int64(r.ImportID)
	if id == 0 {
		id = int64(r.ID)
	}
	out := &domain.ImportResult{
		ImportID:       id,
		Month:          r.Month,
		TotalRecords:   r.TotalRecords,
		SuccessRecords: r.SuccessRecords,
		FailedRecords:  r.FailedRecords,
	}
	if r.Calculation != nil {
		out.Calculation = r.Calculation.toDomain()
	}
	return out
}

type importResponse struct {
	Data importResultDTO `json:"data"`
}

type recordUpdateDTO struct {
	ID      string `validate:"required,numeric"`
	SetUser bool
	UserID  *int64
	WinLoss *string
}

func newRecordUpdateDTO(u domain.RecordUpdate) recordUpdateDTO {
	dto := recordUpdateDTO{ID: strconv.FormatInt(u.RecordID, 10), SetUser: u.SetUser, UserID: u.UserID}
	if u.WinLoss != nil {
		s := u.WinLoss.String()
		dto.WinLoss = &s
	}
	return dto
}

// MarshalJSON writes userId only when the update touches the matched user,
// as null when the record becomes unmatched.
func (u recordUpdateDTO) MarshalJSON() ([]byte, error) {
	m := map[string]any{"id": u.ID}
	if u.SetUser {
		if u.UserID != nil {
			m["userId"] = *u.UserID
		} else {
			m["userId"] = nil
		}
	}
	if u.WinLoss != nil {
		m["winLoss"] = *u.WinLoss
	}
	return json.Marshal(m)
}

type bulkUpdateRequest struct {
	Updates []recordUpdateDTO `json:"updates" validate:"required,min=1,dive"`
}

type bulkUpdateResponse struct {
	Data struct {
		Updated *int `json:"updated"`
	} `json:"data"`
}

type mkUsersResponse struct {
	Data struct {
		Users []userDTO `json:"users" validate:"dive"`
	} `json:"data"`
}

type rewardDTO struct {
	ID          flexID          `json:"id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
	Month       string          `json:"month"`
	ImportID    flexID          `json:"importId"`
	Import      *struct {
		Month string `json:"month"`
	} `json:"import"`
	User       *userDTO   `json:"user"`
	CreatedAt  time.Time  `json:"createdAt"`
	ApprovedAt *time.Time `json:"approvedAt"`
}

func (r rewardDTO) toDomain() domain.JunketReward {
	month := r.Month
	if r.Import != nil && r.Import.Month != "" {
		month = r.Import.Month
	}
	return domain.JunketReward{
		ID:          int64(r.ID),
		Amount:      r.Amount,
		Status:      domain.RewardStatus(r.Status),
		Description: r.Description,
		Month:       month,
		ImportID:    int64(r.ImportID),
		User:        r.User.toDomain(),
		CreatedAt:   r.CreatedAt,
		ApprovedAt:  r.ApprovedAt,
	}
}

type rewardsResponse struct {
	Rewards    []rewardDTO        `json:"rewards" validate:"dive"`
	Pagination *domain.Pagination `json:"pagination"`
}

type withdrawalDTO struct {
	ID             flexID          `json:"id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	CurrencyAmount decimal.Decimal `json:"currencyAmount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status" validate:"omitempty,oneof=PENDING APPROVED REJECTED COMPLETED CANCELLED"`
	Address        string          `json:"address"`
	Network        string          `json:"network"`
	BankAccount    *struct {
		BankName      string `json:"bankName"`
		AccountNumber string `json:"accountNumber"`
	} `json:"bankAccount"`
	Notes     string    `json:"notes"`
	User      *userDTO  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w withdrawalDTO) toDomain() domain.Withdrawal {
	out := domain.Withdrawal{
		ID:             int64(w.ID),
		Amount:         w.Amount,
		CurrencyAmount: w.CurrencyAmount,
		Currency:       w.Currency,
		Status:         domain.WithdrawalStatus(w.Status),
		Address:        w.Address,
		Network:        w.Network,
		Notes:          w.Notes,
		User:           w.User.toDomain(),
		CreatedAt:      w.CreatedAt,
	}
	if w.BankAccount != nil {
		out.BankAccount = &domain.BankAccount{BankName: w.BankAccount.BankName, AccountNumber: w.BankAccount.AccountNumber}
	}
	return out
}

type withdrawalsResponse struct {
	Withdrawals []withdrawalDTO    `json:"withdrawals" validate:"dive"`
	Pagination  *domain.Pagination `json:"pagination"`
}
