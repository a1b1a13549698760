package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Label is what the records table shows for a matched user.
func (u UserRef) Label() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type ImportBatch struct {
	ID             int64
	FileName       string
	Month          string // YYYYMM
	TotalRecords   int
	SuccessRecords int
	FailedRecords  int
	Status         ImportStatus
	PendingRewards int
	RewardCount    int
	CreatedAt      time.Time
}

type ImportRecord struct {
	ID                  int64
	ImportID            int64
	CustomerNumber      string
	CustomerEnglishName string
	WinLoss             decimal.Decimal
	User                *UserRef
	CreatedAt           time.Time
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type RewardStatus string

const (
	RewardPending  RewardStatus = "PENDING"
	RewardApproved RewardStatus = "APPROVED"
)

type JunketReward struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      RewardStatus    `json:"status"`
	Description string          `json:"description"`
	Month       string          `json:"month"`
	ImportID    int64           `json:"importId"`
	User        *UserRef        `json:"user"`
	CreatedAt   time.Time       `json:"createdAt"`
	ApprovedAt  *time.Time      `json:"approvedAt"`
}

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalApproved  WithdrawalStatus = "APPROVED"
	WithdrawalRejected  WithdrawalStatus = "REJECTED"
	WithdrawalCompleted WithdrawalStatus = "COMPLETED"
	WithdrawalCancelled WithdrawalStatus = "CANCELLED"
)

const (
	WithdrawalTypeNormal = "normal"
	WithdrawalTypeJunket = "junket"
)

type BankAccount struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
}

type Withdrawal struct {
	ID             int64            `json:"id"`
	Amount         decimal.Decimal  `json:"amount"`
	CurrencyAmount decimal.Decimal  `json:"currencyAmount"`
	Currency       string           `json:"currency"`
	Status         WithdrawalStatus `json:"status"`
	Address        string           `json:"address,omitempty"`
	Network        string           `json:"network,omitempty"`
	BankAccount    *BankAccount     `json:"bankAccount,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	User           *UserRef         `json:"user"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// RecordUpdate is one entry of a bulk record update. SetUser distinguishes
// "assign UserID (possibly none)" from "leave the matched user alone".
type RecordUpdate struct {
	RecordID int64
	SetUser  bool
	UserID   *int64
	WinLoss  *decimal.Decimal
}

// CalculationResult is the aggregate the backend reports after computing rewards.
type CalculationResult struct {
	Success           bool
	TotalCalculations int
	TotalRewardAmount decimal.Decimal
	Error             string
}

type ImportResult struct {
	ImportID       int64
	Month          string
	TotalRecords   int
	SuccessRecords int
	FailedRecords  int
	Calculation    *CalculationResult
}
