package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-app/lumen/internal/app/progression"
	"github.com/lumen-app/lumen/internal/domain"
)

// ─── Stats & XP ─────────────────────────────────────────────────────────────

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := s.svc.Ledger.Stats(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type awardRequest struct {
	Key      string            `json:"key"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req awardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Key == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "key and positive amount required")
		return
	}

	result, err := s.svc.Ledger.AwardXPOnce(userID, req.Key, req.Amount, req.Metadata)
	if err != nil {
		if errors.Is(err, domain.ErrTxConflict) {
			writeError(w, http.StatusConflict, "write conflict, retry")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleXPHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := queryInt(r, "limit", 50)

	events, err := s.svc.Ledger.History(userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	update, err := s.svc.ReconcileAll(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, update)
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// badgeView joins a catalog definition with the user's stored state.
type badgeView struct {
	domain.BadgeDef
	Earned          bool      `json:"earned"`
	EarnedAt        time.Time `json:"earned_at,omitzero"`
	ProgressCurrent int       `json:"progress_current"`
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	states, err := s.svc.Badges.States(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byID := make(map[string]domain.BadgeState, len(states))
	for _, st := range states {
		byID[st.BadgeID] = st
	}

	var views []badgeView
	for _, def := range s.svc.Badges.Definitions() {
		v := badgeView{BadgeDef: def}
		if st, ok := byID[def.ID]; ok {
			v.Earned = st.Earned
			v.EarnedAt = st.EarnedAt
			v.ProgressCurrent = st.ProgressCurrent
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": views})
}

func (s *Server) handleSetActiveBadge(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		BadgeID string `json:"badge_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BadgeID == "" {
		writeError(w, http.StatusBadRequest, "badge_id required")
		return
	}

	if err := s.svc.Badges.SetActive(userID, req.BadgeID); err != nil {
		if errors.Is(err, domain.ErrUnknownBadge) {
			writeError(w, http.StatusNotFound, "unknown badge")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active_badge_id": req.BadgeID})
}

// ─── Daily Quests ───────────────────────────────────────────────────────────

func (s *Server) handleQuestStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = progression.DateKey(time.Now())
	}

	momentDone, reflectionDone, err := s.svc.Quests.DailyStatus(userID, dateKey)
	if err != nil {
		if errors.Is(err, domain.ErrBadDateKey) {
			writeError(w, http.StatusBadRequest, "invalid date key")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":            dateKey,
		"moment_done":     momentDone,
		"reflection_done": reflectionDone,
	})
}

func (s *Server) handleRunQuests(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Date string `json:"date"`
	}
	// Body is optional; an empty body means today.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Date == "" {
		req.Date = progression.DateKey(time.Now())
	}

	granted, err := s.svc.Quests.ReconcileDailyQuests(userID, req.Date)
	if err != nil {
		if errors.Is(err, domain.ErrBadDateKey) {
			writeError(w, http.StatusBadRequest, "invalid date key")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if granted == nil {
		granted = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"granted": granted})
}

// ─── Activity ───────────────────────────────────────────────────────────────

type momentRequest struct {
	Emotion string   `json:"emotion"`
	Tags    []string `json:"tags,omitempty"`
	Note    string   `json:"note,omitempty"`
}

func (s *Server) handleLogMoment(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req momentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Emotion == "" {
		writeError(w, http.StatusBadRequest, "emotion required")
		return
	}

	m, err := s.svc.Recorder.LogMoment(userID, req.Emotion, req.Tags, req.Note)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMoments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	moments, err := s.svc.Recorder.Moments(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if moments == nil {
		moments = []domain.Moment{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"moments": moments})
}

func (s *Server) handleGetReflection(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	dateKey := chi.URLParam(r, "date")

	entry, err := s.svc.Recorder.Reflection(userID, dateKey)
	if err != nil {
		if errors.Is(err, domain.ErrBadDateKey) {
			writeError(w, http.StatusBadRequest, "invalid date key")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "reflection not started")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type reflectionRequest struct {
	Slot domain.ReflectionSlot `json:"slot"`
	Text string                `json:"text"`
}

func (s *Server) handleSaveReflection(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	dateKey := chi.URLParam(r, "date")

	var req reflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entry, err := s.svc.Recorder.SaveReflectionAnswer(userID, dateKey, req.Slot, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBadDateKey):
			writeError(w, http.StatusBadRequest, "invalid date key")
		case errors.Is(err, domain.ErrUnknownSlot):
			writeError(w, http.StatusBadRequest, "unknown reflection slot")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePatternsViewed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := s.svc.Recorder.MarkPatternsViewed(userID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Notifications ──────────────────────────────────────────────────────────

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	limit := queryInt(r, "limit", 20)

	notifs, err := s.svc.Notifier.Pending(userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notifs == nil {
		notifs = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifs})
}

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := s.svc.Notifier.MarkShown(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt reads an integer query parameter with a default.
func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
