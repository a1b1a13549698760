package server

import (
	"time"

	"junket-admin/internal/domain"
	"junket-admin/internal/draft"
	"junket-admin/internal/service"
)

type Batch struct {
	ID             int64     `json:"id"`
	FileName       string    `json:"fileName"`
	Month          string    `json:"month"`
	DisplayMonth   string    `json:"displayMonth"`
	Status         string    `json:"status"`
	TotalRecords   int       `json:"totalRecords"`
	SuccessRecords int       `json:"successRecords"`
	FailedRecords  int       `json:"failedRecords"`
	PendingRewards int       `json:"pendingRewards"`
	RewardCount    int       `json:"rewardCount"`
	ChangeCount    int       `json:"changeCount"`
	Actions        []string  `json:"actions"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Record struct {
	ID                  int64           `json:"id"`
	CustomerNumber      string          `json:"customerNumber"`
	CustomerEnglishName string          `json:"customerEnglishName"`
	WinLoss             string          `json:"winLoss"`
	User                *domain.UserRef `json:"user"`
	EffectiveUser       *domain.UserRef `json:"effectiveUser"`
	EffectiveWinLoss    string          `json:"effectiveWinLoss"`
	UserEdited          bool            `json:"userEdited"`
	WinLossEdited       bool            `json:"winLossEdited"`
}

type Calculation struct {
	Success           bool   `json:"success"`
	TotalCalculations int    `json:"totalCalculations"`
	TotalRewardAmount string `json:"totalRewardAmount"`
	Error             string `json:"error,omitempty"`
}

type ListHistoryRequest struct{}

type ListHistoryResponse struct {
	Batches []Batch `json:"batches"`
}

type ListRecordsRequest struct {
	ImportID int64  `json:"importId"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
	Keyword  string `json:"keyword"`
}

type ListRecordsResponse struct {
	Records     []Record          `json:"records"`
	Pagination  domain.Pagination `json:"pagination"`
	ChangeCount int               `json:"changeCount"`
}

// SetMatchedUserRequest stages a user for a record. A null userId stages
// the record as unmatched.
type SetMatchedUserRequest struct {
	ImportID int64  `json:"importId"`
	RecordID int64  `json:"recordId"`
	UserID   *int64 `json:"userId"`
}

type SetMatchedUserResponse struct {
	Changed bool `json:"changed"`
}

type SetWinLossRequest struct {
	ImportID int64  `json:"importId"`
	RecordID int64  `json:"recordId"`
	WinLoss  string `json:"winLoss"`
}

type SetWinLossResponse struct{}

type SearchCandidatesRequest struct {
	ImportID       int64  `json:"importId"`
	RecordID       int64  `json:"recordId"`
	Query          string `json:"query"`
	SelectedUserID *int64 `json:"selectedUserId"`
	// Debounced searches return the current candidates at once and announce
	// fresh results on the event stream.
	Debounced bool `json:"debounced"`
}

type SearchCandidatesResponse struct {
	Candidates []domain.UserRef `json:"candidates"`
	Superseded bool             `json:"superseded"`
}

type BatchRequest struct {
	ImportID int64 `json:"importId"`
}

type NoticeResponse struct {
	Notice service.Notice `json:"notice"`
}

type ConfirmResponse struct {
	Applied     int            `json:"applied"`
	Confirmed   bool           `json:"confirmed"`
	Calculation *Calculation   `json:"calculation,omitempty"`
	Notice      service.Notice `json:"notice"`
}

type CalculateResponse struct {
	Calculation *Calculation   `json:"calculation"`
	Notice      service.Notice `json:"notice"`
}

func toBatch(v service.BatchView) Batch {
	actions := make([]string, len(v.Actions))
	for i, a := range v.Actions {
		actions[i] = string(a)
	}
	return Batch{
		ID:             v.ID,
		FileName:       v.FileName,
		Month:          v.Month,
		DisplayMonth:   domain.DisplayMonth(v.Month),
		Status:         string(v.Status),
		TotalRecords:   v.TotalRecords,
		SuccessRecords: v.SuccessRecords,
		FailedRecords:  v.FailedRecords,
		PendingRewards: v.PendingRewards,
		RewardCount:    v.RewardCount,
		ChangeCount:    v.ChangeCount,
		Actions:        actions,
		CreatedAt:      v.CreatedAt,
	}
}

func toRecord(r draft.EffectiveRecord) Record {
	return Record{
		ID:                  r.ID,
		CustomerNumber:      r.CustomerNumber,
		CustomerEnglishName: r.CustomerEnglishName,
		WinLoss:             r.WinLoss.String(),
		User:                r.User,
		EffectiveUser:       r.EffectiveUser,
		EffectiveWinLoss:    r.EffectiveWinLoss,
		UserEdited:          r.UserEdited,
		WinLossEdited:       r.WinLossEdited,
	}
}

func toCalculation(c *domain.CalculationResult) *Calculation {
	if c == nil {
		return nil
	}
	return &Calculation{
		Success:           c.Success,
		TotalCalculations: c.TotalCalculations,
		TotalRewardAmount: c.TotalRewardAmount.String(),
		Error:             c.Error,
	}
}

func toConfirmResponse(r *service.ConfirmResult) *ConfirmResponse {
	return &ConfirmResponse{
		Applied:     r.Applied,
		Confirmed:   r.Confirmed,
		Calculation: toCalculation(r.Calculation),
		Notice:      r.Notice,
	}
}
