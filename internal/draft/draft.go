// Package draft stages an operator's unsaved record edits per import batch
// until the batch is confirmed.
package draft

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"junket-admin/internal/constants"
	"junket-admin/internal/domain"

	"github.com/shopspring/decimal"
)

// Draft holds the staged edits of one import batch. A MatchedUsers entry with
// a nil value means the record was explicitly set to unmatched.
type Draft struct {
	BatchID      int64
	MatchedUsers map[int64]*domain.UserRef
	WinLoss      map[int64]string
}

func empty(batchID int64) Draft {
	return Draft{
		BatchID:      batchID,
		MatchedUsers: make(map[int64]*domain.UserRef),
		WinLoss:      make(map[int64]string),
	}
}

func (d Draft) ChangeCount() int {
	return len(d.MatchedUsers) + len(d.WinLoss)
}

func (d Draft) IsEmpty() bool {
	return d.ChangeCount() == 0
}

type InvalidWinLossError struct {
	RecordID int64
	Value    string
}

func (e *InvalidWinLossError) Error() string {
	return fmt.Sprintf("record %d: win/loss %q is not a number", e.RecordID, e.Value)
}

// Updates folds both maps into one update per record, ordered by record id.
func (d Draft) Updates() ([]domain.RecordUpdate, error) {
	ids := make(map[int64]struct{}, d.ChangeCount())
	for id := range d.MatchedUsers {
		ids[id] = struct{}{}
	}
	for id := range d.WinLoss {
		ids[id] = struct{}{}
	}

	ordered := make([]int64, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	updates := make([]domain.RecordUpdate, 0, len(ordered))
	for _, id := range ordered {
		u := domain.RecordUpdate{RecordID: id}
		if user, ok := d.MatchedUsers[id]; ok {
			u.SetUser = true
			if user != nil {
				uid := user.ID
				u.UserID = &uid
			}
		}
		if raw, ok := d.WinLoss[id]; ok {
			v, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return nil, &InvalidWinLossError{RecordID: id, Value: raw}
			}
			u.WinLoss = &v
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// EffectiveRecord is a fetched record with staged edits applied on top.
type EffectiveRecord struct {
	domain.ImportRecord
	EffectiveUser    *domain.UserRef
	EffectiveWinLoss string
	UserEdited       bool
	WinLossEdited    bool
}

// Merge applies d to a page of fetched records. Draft values win over server
// values, including an explicit unmatched entry.
func Merge(records []domain.ImportRecord, d Draft) []EffectiveRecord {
	out := make([]EffectiveRecord, len(records))
	for i, r := range records {
		e := EffectiveRecord{
			ImportRecord:     r,
			EffectiveUser:    r.User,
			EffectiveWinLoss: r.WinLoss.String(),
		}
		if user, ok := d.MatchedUsers[r.ID]; ok {
			e.EffectiveUser = user
			e.UserEdited = true
		}
		if raw, ok := d.WinLoss[r.ID]; ok {
			e.EffectiveWinLoss = raw
			e.WinLossEdited = true
		}
		out[i] = e
	}
	return out
}

func MatchedUsersKey(batchID int64) string {
	return constants.MatchedUsersKeyPrefix + strconv.FormatInt(batchID, 10)
}

func WinLossKey(batchID int64) string {
	return constants.WinLossKeyPrefix + strconv.FormatInt(batchID, 10)
}

func ChangeCountKey(batchID int64) string {
	return constants.ChangeCountKeyPrefix + strconv.FormatInt(batchID, 10)
}

func keys(batchID int64) []string {
	return []string{MatchedUsersKey(batchID), WinLossKey(batchID), ChangeCountKey(batchID)}
}
