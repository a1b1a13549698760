package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const UserStatusSuspended = "SUSPENDED"

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname,omitempty"`
	Email     string    `json:"email"`
	Status    string    `json:"status,omitempty"`
	Suspended bool      `json:"suspended"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reward is a multi-level-marketing reward, as opposed to a JunketReward.
type Reward struct {
	ID          int64           `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type,omitempty"`
	Level       int             `json:"level,omitempty"`
	Status      RewardStatus    `json:"status"`
	Description string          `json:"description,omitempty"`
	User        *UserRef        `json:"user"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Membership struct {
	ID        int64           `json:"id"`
	Plan      string          `json:"plan"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	User      *UserRef        `json:"user"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Setting struct {
	ID          int64     `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type ExchangeRate struct {
	Currency  string          `json:"currency"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

type Inquiry struct {
	ID        int64     `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	User      *UserRef  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Administrator struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
