// Package export renders reward and withdrawal listings as downloadable
// spreadsheets.
package export

import (
	"strings"
	"time"

	"junket-admin/internal/domain"
)

// Table is a header row plus data rows, all as display strings.
type Table struct {
	Headers []string
	Rows    [][]string
}

var rewardHeaders = []string{
	"Month",
	"User Name",
	"User Nickname",
	"Amount",
	"Status",
	"Description",
	"Created At",
	"Approved At",
}

func RewardsTable(rewards []domain.JunketReward) Table {
	t := Table{Headers: rewardHeaders, Rows: make([][]string, 0, len(rewards))}
	for _, r := range rewards {
		var name, nickname string
		if r.User != nil {
			name, nickname = r.User.Name, r.User.Nickname
		}
		approved := ""
		if r.ApprovedAt != nil {
			approved = timestamp(*r.ApprovedAt)
		}
		t.Rows = append(t.Rows, []string{
			domain.DisplayMonth(r.Month),
			name,
			nickname,
			r.Amount.String(),
			string(r.Status),
			r.Description,
			timestamp(r.CreatedAt),
			approved,
		})
	}
	return t
}

// WithdrawalsTable renders withdrawals. The user columns are left out when
// the listing is already scoped to a single user.
func WithdrawalsTable(withdrawals []domain.Withdrawal, singleUser bool) Table {
	headers := []string{"Date", "Amount", "Currency"}
	if !singleUser {
		headers = append(headers, "User Name", "User Email")
	}
	headers = append(headers, "Destination", "Status", "Notes")

	t := Table{Headers: headers, Rows: make([][]string, 0, len(withdrawals))}
	for _, w := range withdrawals {
		row := []string{timestamp(w.CreatedAt), AmountDisplay(w), w.Currency}
		if !singleUser {
			var name, email string
			if w.User != nil {
				name, email = w.User.Name, w.User.Email
			}
			row = append(row, name, email)
		}
		row = append(row, Destination(w), string(w.Status), w.Notes)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Destination is "bank - account" for yen payouts and "address (network)"
// for crypto.
func Destination(w domain.Withdrawal) string {
	if isYen(w) {
		if w.BankAccount == nil {
			return ""
		}
		return w.BankAccount.BankName + " - " + w.BankAccount.AccountNumber
	}
	return w.Address + " (" + w.Network + ")"
}

// AmountDisplay shows crypto withdrawals in both currencies.
func AmountDisplay(w domain.Withdrawal) string {
	if isYen(w) {
		return w.Amount.String() + " " + w.Currency
	}
	return w.CurrencyAmount.String() + " " + w.Currency + " (" + w.Amount.String() + " JPY)"
}

// FilterByDate keeps withdrawals created within [start, end], where end
// covers its whole day. Zero bounds are open.
func FilterByDate(withdrawals []domain.Withdrawal, start, end time.Time) []domain.Withdrawal {
	if start.IsZero() && end.IsZero() {
		return withdrawals
	}
	var last time.Time
	if !end.IsZero() {
		last = end.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	out := make([]domain.Withdrawal, 0, len(withdrawals))
	for _, w := range withdrawals {
		if !start.IsZero() && w.CreatedAt.Before(start) {
			continue
		}
		if !last.IsZero() && w.CreatedAt.After(last) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isYen(w domain.Withdrawal) bool {
	return strings.EqualFold(w.Currency, "JPY")
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
