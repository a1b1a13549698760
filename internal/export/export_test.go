package export_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"junket-admin/internal/domain"
	"junket-admin/internal/export"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestEscape(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"", ""},
		{" leading space", " leading space"},
		{"a,b", `"a,b"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{"carriage\rreturn", "\"carriage\rreturn\""},
		{"田中 太郎", "田中 太郎"},
	}
	for _, tc := range cases {
		if got := export.Escape(tc.in); got != tc.want {
			t.Errorf("Escape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	table := export.Table{
		Headers: []string{"Name", "Note"},
		Rows: [][]string{
			{"Tanaka", "vip, monthly"},
			{"Sato", `the "big" one`},
			{"Suzuki", ""},
		},
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, table); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Fatal("missing byte order mark")
	}
	lines := strings.Split(strings.TrimPrefix(out, "\ufeff"), "\r\n")
	want := []string{
		"Name,Note",
		`Tanaka,"vip, monthly"`,
		`Sato,"the ""big"" one"`,
		"Suzuki,",
	}
	if diff := cmp.Diff(want, lines); diff != "" {
		t.Fatalf("csv lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSVRowCount(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 25} {
		table := export.Table{Headers: []string{"A"}}
		for i := 0; i < n; i++ {
			table.Rows = append(table.Rows, []string{"x"})
		}
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, table); err != nil {
			t.Fatalf("WriteCSV: %v", err)
		}
		if got := strings.Count(buf.String(), "\r\n") + 1; got != n+1 {
			t.Errorf("%d rows: got %d lines, want %d", n, got, n+1)
		}
	}
}

func TestRewardsTable(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	approved := created.Add(48 * time.Hour)
	table := export.RewardsTable([]domain.JunketReward{
		{
			Amount:      decimal.RequireFromString("1500.50"),
			Status:      domain.RewardApproved,
			Description: "March rebate",
			Month:       "202503",
			User:        &domain.UserRef{ID: 42, Name: "Tanaka", Nickname: "tk"},
			CreatedAt:   created,
			ApprovedAt:  &approved,
		},
		{
			Amount:    decimal.NewFromInt(200),
			Status:    domain.RewardPending,
			Month:     "202503",
			CreatedAt: created,
		},
	})

	want := [][]string{
		{"2025-03", "Tanaka", "tk", "1500.5", "APPROVED", "March rebate", "2025-03-02T09:30:00.000Z", "2025-03-04T09:30:00.000Z"},
		{"2025-03", "", "", "200", "PENDING", "", "2025-03-02T09:30:00.000Z", ""},
	}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if len(table.Headers) != 8 || table.Headers[0] != "Month" || table.Headers[7] != "Approved At" {
		t.Fatalf("unexpected headers %v", table.Headers)
	}
}

func TestWithdrawalsTable(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	withdrawals := []domain.Withdrawal{
		{
			Amount:      decimal.NewFromInt(50000),
			Currency:    "JPY",
			Status:      domain.WithdrawalPending,
			BankAccount: &domain.BankAccount{BankName: "MUFG", AccountNumber: "1234567"},
			User:        &domain.UserRef{ID: 1, Name: "Tanaka", Email: "t@example.com"},
			CreatedAt:   created,
		},
		{
			Amount:         decimal.NewFromInt(15000),
			CurrencyAmount: decimal.RequireFromString("100.25"),
			Currency:       "USDT",
			Status:         domain.WithdrawalCompleted,
			Address:        "TXabc",
			Network:        "TRC20",
			Notes:          "sent",
			CreatedAt:      created,
		},
	}

	all := export.WithdrawalsTable(withdrawals, false)
	wantAll := [][]string{
		{"2025-04-01T00:00:00.000Z", "50000 JPY", "JPY", "Tanaka", "t@example.com", "MUFG - 1234567", "PENDING", ""},
		{"2025-04-01T00:00:00.000Z", "100.25 USDT (15000 JPY)", "USDT", "", "", "TXabc (TRC20)", "COMPLETED", "sent"},
	}
	if diff := cmp.Diff(wantAll, all.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	scoped := export.WithdrawalsTable(withdrawals, true)
	wantHeaders := []string{"Date", "Amount", "Currency", "Destination", "Status", "Notes"}
	if diff := cmp.Diff(wantHeaders, scoped.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
	if len(scoped.Rows[0]) != len(wantHeaders) {
		t.Fatalf("scoped row has %d cells", len(scoped.Rows[0]))
	}
}

func TestDestinationWithoutBankAccount(t *testing.T) {
	t.Parallel()

	if got := export.Destination(domain.Withdrawal{Currency: "JPY"}); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestFilterByDate(t *testing.T) {
	t.Parallel()

	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatal(err)
		}
		return ts
	}
	ws := []domain.Withdrawal{
		{ID: 1, CreatedAt: at("2025-03-31T23:59:59Z")},
		{ID: 2, CreatedAt: at("2025-04-01T00:00:00Z")},
		{ID: 3, CreatedAt: at("2025-04-30T23:59:59Z")},
		{ID: 4, CreatedAt: at("2025-05-01T00:00:00Z")},
	}
	start := at("2025-04-01T00:00:00Z")
	end := at("2025-04-30T00:00:00Z")

	cases := []struct {
		name       string
		start, end time.Time
		want       []int64
	}{
		{"open", time.Time{}, time.Time{}, []int64{1, 2, 3, 4}},
		{"range", start, end, []int64{2, 3}},
		{"from", start, time.Time{}, []int64{2, 3, 4}},
		{"until", time.Time{}, end, []int64{1, 2, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []int64
			for _, w := range export.FilterByDate(ws, tc.start, tc.end) {
				got = append(got, w.ID)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	table := export.Table{
		Headers: []string{"Month", "Amount"},
		Rows:    [][]string{{"2025-03", "1500.5"}, {"2025-04", "200"}},
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, table); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := [][]string{{"Month", "Amount"}, {"2025-03", "1500.5"}, {"2025-04", "200"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("workbook mismatch (-want +got):\n%s", diff)
	}
}
