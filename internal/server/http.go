package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"junket-admin/internal/events"
	"junket-admin/internal/export"
	"junket-admin/internal/service"

	"github.com/rs/zerolog"
)

const (
	maxUploadSize     = 32 << 20
	eventBuffer       = 64
	keepAliveInterval = 15 * time.Second
)

// HTTPHandlers serves the routes that do not fit a unary RPC: file upload,
// downloads, the event stream, the payout pages and the admin pages.
type HTTPHandlers struct {
	imports *service.ImportService
	payouts *service.PayoutService
	admin   *service.AdminService
	bus     *events.Bus
	logger  zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func NewHTTPHandlers(imports *service.ImportService, payouts *service.PayoutService, admin *service.AdminService, bus *events.Bus, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{imports: imports, payouts: payouts, admin: admin, bus: bus, logger: logger, done: make(chan struct{})}
}

// Close ends every open event stream.
func (h *HTTPHandlers) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("POST /imports/upload", h.upload)
	mux.HandleFunc("GET /imports/events", h.events)
	mux.HandleFunc("GET /rewards", h.listRewards)
	mux.HandleFunc("GET /withdrawals", h.listWithdrawals)
	mux.HandleFunc("POST /withdrawals/{id}/{action}", h.withdrawalAction)
	mux.HandleFunc("GET /exports/{file}", h.export)
	h.registerAdmin(mux)
}

func (h *HTTPHandlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandlers) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Field: "file", Message: "no file selected"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Field: "file", Message: "file could not be read"})
		return
	}

	res, err := h.imports.Upload(r.Context(), header.Filename, content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"importId":       res.Result.ImportID,
			"month":          res.Result.Month,
			"totalRecords":   res.Result.TotalRecords,
			"successRecords": res.Result.SuccessRecords,
			"failedRecords":  res.Result.FailedRecords,
			"calculation":    toCalculation(res.Result.Calculation),
		},
		"notice": res.Notice,
	})
}

// events streams bus events as server-sent events. An optional importId
// query parameter limits the stream to one batch.
func (h *HTTPHandlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var batchID int64
	if v := r.URL.Query().Get("importId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.writeError(w, r, &service.ValidationError{Field: "importId", Message: "must be a number"})
			return
		}
		batchID = id
	}

	ch := make(chan events.Event, eventBuffer)
	unsubscribe := h.bus.Subscribe(func(e events.Event) {
		if batchID != 0 && e.BatchID != batchID && e.BatchID != 0 {
			return
		}
		select {
		case ch <- e:
		default:
			h.logger.Warn().Str("event_id", e.ID).Msg("event stream lagging, dropping event")
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Error().Err(err).Msg("failed to encode event")
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Kind, data)
			flusher.Flush()
		}
	}
}

func (h *HTTPHandlers) listRewards(w http.ResponseWriter, r *http.Request) {
	page, err := h.payouts.ListRewards(r.Context(), rewardFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"rewards":    page.Rewards,
		"pagination": page.Pagination,
	})
}

func (h *HTTPHandlers) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	f, err := withdrawalFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.payouts.ListWithdrawals(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"withdrawals": page.Withdrawals,
		"pagination":  page.Pagination,
	})
}

func (h *HTTPHandlers) withdrawalAction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Field: "id", Message: "must be a number"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, r, &service.ValidationError{Message: "request body must be JSON"})
			return
		}
	}

	var notice service.Notice
	switch r.PathValue("action") {
	case "approve":
		notice, err = h.payouts.ApproveWithdrawal(r.Context(), id)
	case "reject":
		notice, err = h.payouts.RejectWithdrawal(r.Context(), id, body.Reason)
	case "complete":
		notice, err = h.payouts.CompleteWithdrawal(r.Context(), id, body.Notes)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notice": notice})
}

// export serves rewards and withdrawals as .csv or .xlsx downloads.
func (h *HTTPHandlers) export(w http.ResponseWriter, r *http.Request) {
	name, format, ok := strings.Cut(r.PathValue("file"), ".")
	if !ok || (format != "csv" && format != "xlsx") {
		http.NotFound(w, r)
		return
	}

	var (
		out *service.Export
		err error
	)
	switch name {
	case "rewards":
		out, err = h.payouts.ExportRewards(r.Context(), rewardFilter(r))
	case "withdrawals":
		var f service.WithdrawalFilter
		if f, err = withdrawalFilter(r); err == nil {
			out, err = h.payouts.ExportWithdrawals(r.Context(), f)
		}
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Name+"."+format))
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, out.Table)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteXLSX(w, out.Table)
	}
	if err != nil {
		h.log(r.Context()).Error().Err(err).Str("file", out.Name).Msg("failed to write export")
	}
}

func rewardFilter(r *http.Request) service.RewardFilter {
	q := r.URL.Query()
	return service.RewardFilter{
		Status: q.Get("status"),
		Month:  q.Get("month"),
		Search: q.Get("search"),
		Page:   atoi(q.Get("page")),
		Limit:  atoi(q.Get("limit")),
	}
}

func withdrawalFilter(r *http.Request) (service.WithdrawalFilter, error) {
	q := r.URL.Query()
	f := service.WithdrawalFilter{
		Status:    q.Get("status"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Page:      atoi(q.Get("page")),
		Limit:     atoi(q.Get("limit")),
	}
	if v := q.Get("userId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, &service.ValidationError{Field: "userId", Message: "must be a number"}
		}
		f.UserID = id
	}
	return f, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (h *HTTPHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	h.log(r.Context()).Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request failed")
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   errorCode(err).String(),
		"message": service.Describe(err),
	})
}

func (h *HTTPHandlers) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &h.logger
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
