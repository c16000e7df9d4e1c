package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"loan-widget/apperr"
	"loan-widget/push"
)

// PushMessage accepts a push message over HTTP. Once the payload decodes
// the request is accepted; what the handler does with it is not reported.
func (h *Handler) PushMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body error")
		return
	}

	msg, err := push.DecodeMessage(body)
	if err != nil {
		h.logger.Warn("rejected push message", "error", err, "kind", apperr.Kind(err))
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	h.push.HandleMessage(r.Context(), msg)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PushToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRefreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.push.HandleNewToken(r.Context(), req.Token)
	w.WriteHeader(http.StatusAccepted)
}
