package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tesoretto/internal/notify"
)

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request, userID string) {
	statuses, err := s.achievements.Statuses(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleNotifications drains the user's pending unlock toasts.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	ns := s.achievements.Notifications(userID)
	if ns == nil {
		ns = []notify.Notification{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request, userID string) {
	year, month, err := parseYearMonth(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	statuses, err := s.budgets.Status(r.Context(), userID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// parseYearMonth reads year and month query parameters, defaulting to the
// month containing now.
func parseYearMonth(r *http.Request, now time.Time) (year, month int, err error) {
	year, month = now.Year(), int(now.Month())
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, errBadRequestf("invalid year %q", v)
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			return 0, 0, errBadRequestf("invalid month %q", v)
		}
	}
	return year, month, nil
}
