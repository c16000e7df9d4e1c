package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"loan-widget/service"
)

func (h *Handler) form(w http.ResponseWriter, r *http.Request) (string, *service.PaymentForm, bool) {
	id := chi.URLParam(r, "id")
	f, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "form not found")
		return "", nil, false
	}
	return id, f, true
}

func (h *Handler) OpenForm(w http.ResponseWriter, r *http.Request) {
	id, f := h.sessions.Open()
	writeJSON(w, http.StatusCreated, FormResp{ID: id, State: f.State()})
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.form(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, FormResp{ID: id, State: f.State()})
}

func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.form(w, r)
	if !ok {
		return
	}

	var req FormInputReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.LoanID != nil && !f.OnLoanIDChange(*req.LoanID) {
		writeError(w, http.StatusConflict, "payment in progress")
		return
	}
	if req.Amount != nil && !f.OnAmountChange(*req.Amount) {
		writeError(w, http.StatusConflict, "payment in progress")
		return
	}

	writeJSON(w, http.StatusOK, FormResp{ID: id, State: f.State()})
}

// SubmitForm starts a submission unless one is already running. The
// response carries the state right after validation, so a rejected input
// shows its status while an accepted one shows the form as busy.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	id, f, ok := h.form(w, r)
	if !ok {
		return
	}

	if f.State().IsBusy {
		writeError(w, http.StatusConflict, "payment in progress")
		return
	}

	f.Submit(r.Context())
	writeJSON(w, http.StatusAccepted, FormResp{ID: id, State: f.State()})
}

func (h *Handler) CloseForm(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "form not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
