package http

import (
	"net/http"
	"time"

	"github.com/sqlobserver/sqlobserver/internal/notify"
)

// DefaultChangeWait bounds how long a change request is held open.
const DefaultChangeWait = 25 * time.Second

// ChangeResponse carries the dataset event a change request waited for.
type ChangeResponse struct {
	Change    notify.Notification `json:"change"`
	RequestID string              `json:"request_id,omitempty"`
}

// ChangesHandler long-polls for the next dataset event.
// It answers 204 when none arrives within the wait.
type ChangesHandler struct {
	notifier *notify.Notifier
	maxWait  time.Duration
	stop     <-chan struct{}
}

// NewChangesHandler creates a changes handler. Pending requests return early
// when stop is closed; stop may be nil.
func NewChangesHandler(n *notify.Notifier, maxWait time.Duration, stop <-chan struct{}) *ChangesHandler {
	if maxWait <= 0 {
		maxWait = DefaultChangeWait
	}
	return &ChangesHandler{notifier: n, maxWait: maxWait, stop: stop}
}

// ServeHTTP waits for one notification. The optional wait parameter is a
// duration capped at the handler's maximum.
func (h *ChangesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	wait := h.maxWait
	if raw := r.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid wait duration", requestID)
			return
		}
		if d < wait {
			wait = d
		}
	}

	sub := h.notifier.Subscribe(r.URL.Query()["table"]...)
	defer h.notifier.Unsubscribe(sub.ID)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case notif := <-sub.Ch:
		writeJSON(w, http.StatusOK, ChangeResponse{Change: notif, RequestID: requestID})
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-h.stop:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}
