package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves runtime status for dashboards: which mode the process
// runs in, how long it has been up, and live feed counters when the feed is
// part of this process.
type StatusHandler struct {
	mode      string
	startedAt time.Time

	// Optional probes; nil when the feed does not run in this process.
	feedState      func() string
	tradesReceived func() int64
}

// NewStatusHandler creates a StatusHandler. feedState and tradesReceived may
// be nil.
func NewStatusHandler(mode string, startedAt time.Time, feedState func() string, tradesReceived func() int64) *StatusHandler {
	return &StatusHandler{
		mode:           mode,
		startedAt:      startedAt,
		feedState:      feedState,
		tradesReceived: tradesReceived,
	}
}

// GetStatus responds with the current process mode, uptime, and feed counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.feedState != nil {
		resp["feed_state"] = h.feedState()
	}
	if h.tradesReceived != nil {
		resp["trades_received"] = h.tradesReceived()
	}
	writeJSON(w, http.StatusOK, resp)
}
