package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"junket-admin/internal/service"
)

func (h *HTTPHandlers) registerAdmin(mux *http.ServeMux) {
	mux.HandleFunc("GET /users", h.listUsers)
	mux.HandleFunc("POST /users/{id}/{action}", h.userAction)
	mux.HandleFunc("GET /mlm-rewards", h.listMLMRewards)
	mux.HandleFunc("POST /mlm-rewards/approve-all", h.approveAllRewards)
	mux.HandleFunc("POST /mlm-rewards/{id}/confirm", h.confirmReward)
	mux.HandleFunc("GET /memberships", h.listMemberships)
	mux.HandleFunc("POST /memberships/{id}/{action}", h.membershipAction)
	mux.HandleFunc("GET /settings", h.settings)
	mux.HandleFunc("POST /settings/rates/{currency}", h.fetchRate)
	mux.HandleFunc("GET /inquiries", h.listInquiries)
	mux.HandleFunc("POST /inquiries/{id}/status", h.inquiryStatus)
	mux.HandleFunc("GET /administrators", h.listAdministrators)
}

func (h *HTTPHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.admin.ListUsers(r.Context(), listFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": page.Items, "pagination": page.Pagination})
}

func (h *HTTPHandlers) userAction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var (
		notice service.Notice
		err    error
	)
	switch r.PathValue("action") {
	case "suspend":
		notice, err = h.admin.SuspendUser(r.Context(), id)
	case "unsuspend":
		notice, err = h.admin.UnsuspendUser(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	h.writeNotice(w, r, notice, err)
}

func (h *HTTPHandlers) listMLMRewards(w http.ResponseWriter, r *http.Request) {
	page, err := h.admin.ListRewards(r.Context(), listFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rewards": page.Items, "pagination": page.Pagination})
}

func (h *HTTPHandlers) approveAllRewards(w http.ResponseWriter, r *http.Request) {
	notice, err := h.admin.ApproveAllRewards(r.Context())
	h.writeNotice(w, r, notice, err)
}

func (h *HTTPHandlers) confirmReward(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	notice, err := h.admin.ConfirmReward(r.Context(), id)
	h.writeNotice(w, r, notice, err)
}

func (h *HTTPHandlers) listMemberships(w http.ResponseWriter, r *http.Request) {
	page, err := h.admin.ListMemberships(r.Context(), listFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "memberships": page.Items, "pagination": page.Pagination})
}

func (h *HTTPHandlers) membershipAction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var (
		notice service.Notice
		err    error
	)
	switch r.PathValue("action") {
	case "approve":
		notice, err = h.admin.ApproveMembership(r.Context(), id)
	case "reject":
		notice, err = h.admin.RejectMembership(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	h.writeNotice(w, r, notice, err)
}

func (h *HTTPHandlers) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.admin.Settings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

func (h *HTTPHandlers) fetchRate(w http.ResponseWriter, r *http.Request) {
	rate, notice, err := h.admin.FetchRate(r.Context(), r.PathValue("currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rate": rate, "notice": notice})
}

func (h *HTTPHandlers) listInquiries(w http.ResponseWriter, r *http.Request) {
	page, err := h.admin.ListInquiries(r.Context(), listFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "inquiries": page.Items, "pagination": page.Pagination})
}

func (h *HTTPHandlers) inquiryStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, &service.ValidationError{Message: "request body must be JSON"})
		return
	}
	notice, err := h.admin.UpdateInquiryStatus(r.Context(), id, body.Status)
	h.writeNotice(w, r, notice, err)
}

func (h *HTTPHandlers) listAdministrators(w http.ResponseWriter, r *http.Request) {
	page, err := h.admin.ListAdministrators(r.Context(), listFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "administrators": page.Items, "pagination": page.Pagination})
}

func (h *HTTPHandlers) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Field: "id", Message: "must be a number"})
		return 0, false
	}
	return id, true
}

func (h *HTTPHandlers) writeNotice(w http.ResponseWriter, r *http.Request, notice service.Notice, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notice": notice})
}

func listFilter(r *http.Request) service.ListFilter {
	q := r.URL.Query()
	return service.ListFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Page:   atoi(q.Get("page")),
		Limit:  atoi(q.Get("limit")),
	}
}
