package service_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"junket-admin/internal/api"
	"junket-admin/internal/config"
	"junket-admin/internal/draft"
	"junket-admin/internal/picker"
	"junket-admin/internal/service"
	"junket-admin/internal/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

// junketBackend serves only the routes the dashboard calls during confirm:
// history, bulk-update and calculate-rewards. Anything else is a 404.
type junketBackend struct {
	mu     sync.Mutex
	status string
	hits   []string
	bulk   []map[string]any
}

func (b *junketBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits = append(b.hits, r.Method+" "+r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /junket-import/history":
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":5,"month":"202503","status":"`+b.status+`","createdAt":"2025-04-01T00:00:00Z"}]}`)
	case "PUT /junket-import/records/bulk-update":
		var body struct {
			Updates []map[string]any `json:"updates"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.bulk = append(b.bulk, body.Updates...)
		_, _ = io.WriteString(w, `{"success":true,"data":{"updated":1}}`)
	case "POST /junket-import/5/calculate-rewards":
		b.status = "calculated"
		_, _ = io.WriteString(w, `{"success":true,"data":{"totalCalculations":2,"totalRewardAmount":1500}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"message":"Route not found"}`)
	}
}

func TestConfirmAgainstDashboardBackend(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		opts     service.ImportOptions
		wantHits []string
	}{
		{
			name: "calculate-rewards confirms",
			wantHits: []string{
				"GET /junket-import/history",
				"PUT /junket-import/records/bulk-update",
				"POST /junket-import/5/calculate-rewards",
			},
		},
		{
			name: "missing confirm route falls back",
			opts: service.ImportOptions{ConfirmTransition: true},
			wantHits: []string{
				"GET /junket-import/history",
				"PUT /junket-import/records/bulk-update",
				"POST /junket-import/5/confirm",
				"POST /junket-import/5/calculate-rewards",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			backend := &junketBackend{status: "imported"}
			srv := httptest.NewServer(backend)
			t.Cleanup(srv.Close)

			client := api.NewAdminClient(&config.Config{AdminAPIURL: srv.URL, AdminAPIToken: "tok"}, zerolog.Nop())
			drafts := draft.NewStore(storage.NewMemory(), nil, time.Hour, zerolog.Nop())
			p := picker.New(client, nil, time.Hour, zerolog.Nop())
			t.Cleanup(func() {
				drafts.Close()
				p.Close()
			})
			svc := service.NewImportService(client, drafts, p, nil, tc.opts, zerolog.Nop())

			ctx := context.Background()
			if _, err := svc.SetMatchedUser(ctx, 5, 7, ptr(int64(42))); err != nil {
				t.Fatalf("SetMatchedUser: %v", err)
			}

			res, err := svc.ConfirmAndCalculate(ctx, 5)
			if err != nil {
				t.Fatalf("ConfirmAndCalculate: %v", err)
			}
			if res.Confirmed {
				t.Fatal("backend has no confirm route, batch cannot be reported as confirmed by it")
			}
			if res.Notice.Message != "Import confirmed! Calculated 2 rewards totaling 1,500 JPY" {
				t.Fatalf("unexpected notice %q", res.Notice.Message)
			}

			backend.mu.Lock()
			defer backend.mu.Unlock()
			if diff := cmp.Diff(tc.wantHits, backend.hits); diff != "" {
				t.Fatalf("requests mismatch (-want +got):\n%s", diff)
			}
			want := []map[string]any{{"id": "7", "userId": float64(42)}}
			if diff := cmp.Diff(want, backend.bulk); diff != "" {
				t.Fatalf("bulk body mismatch (-want +got):\n%s", diff)
			}
			if drafts.ChangeCount(ctx, 5) != 0 {
				t.Fatal("draft should be cleared once rewards are calculated")
			}
		})
	}
}
