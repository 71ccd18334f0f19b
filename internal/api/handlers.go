package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lockin-app/lockin/internal/app/engagement"
	"github.com/lockin-app/lockin/internal/domain"
)

// ─── Progression API (/api/v1/users/{userID}/*) ──────────────────────────────

// --- users ---

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	u, created, err := s.engine.CreateUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, u)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Profile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.DeleteAccount(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var patch domain.SettingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	settings, err := s.engine.UpdateSettings(r.Context(), chi.URLParam(r, "userID"), patch)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// --- sessions ---

type recordSessionRequest struct {
	Duration int `json:"duration"`
}

func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	var req recordSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.RecordSession(r.Context(), chi.URLParam(r, "userID"), req.Duration)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type sessionMoodRequest struct {
	Mood domain.Mood `json:"mood"`
}

func (s *Server) handleSessionMood(w http.ResponseWriter, r *http.Request) {
	var req sessionMoodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.engine.UpdateSession(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "sessionID"), req.Mood)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTodaySessions(w http.ResponseWriter, r *http.Request) {
	sessions, agg, err := s.engine.TodaySessions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"today":    agg,
	})
}

// --- xp & streak ---

type awardXPRequest struct {
	Amount   int64             `json:"amount"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardXPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.AwardXP(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Source, req.Metadata)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type streakRequest struct {
	Increment bool `json:"increment"`
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	var req streakRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.engine.UpdateStreak(r.Context(), chi.URLParam(r, "userID"), req.Increment)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- quests ---

func (s *Server) handleDailyQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := s.engine.GenerateDailyQuests(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": quests})
}

func (s *Server) handleCheckDailyQuest(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.CheckDailyQuestCompletion(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "questID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := s.engine.Quests(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if quests == nil {
		quests = []domain.Quest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quests": quests})
}

func (s *Server) handleAssignQuest(w http.ResponseWriter, r *http.Request) {
	var q domain.Quest
	if !decodeJSON(w, r, &q) {
		return
	}
	q, err := s.engine.AssignQuest(r.Context(), chi.URLParam(r, "userID"), q)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleCompleteQuest(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.CompleteQuest(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "questID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- badges & activities ---

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.engine.BadgeProgress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"badges": badges})
}

func (s *Server) handleCheckBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.engine.CheckBadgeProgress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"badgesEarned": badges})
}

type activityRequest struct {
	Kind  engagement.ActivityKind `json:"kind"`
	Count int64                   `json:"count"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	req := activityRequest{Count: 1}
	if !decodeJSON(w, r, &req) {
		return
	}
	badges, err := s.engine.LogActivity(r.Context(), chi.URLParam(r, "userID"), req.Kind, req.Count)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"badgesEarned": badges})
}

// ─── Static Tables (/api/v1/*) ───────────────────────────────────────────────

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.ParseInt(chi.URLParam(r, "xp"), 10, 64)
	if err != nil || xp < 0 || xp > engagement.MaxTotalXP {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("xp must be an integer in 0..%d", engagement.MaxTotalXP))
		return
	}
	info := engagement.LevelFromXP(xp)
	rewards := engagement.LevelRewards(info.Level)
	if rewards == nil {
		rewards = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"level":   info,
		"rewards": rewards,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"badges":     s.engine.Catalog(),
		"activities": engagement.ActivityKinds(),
	})
}
