package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/arena"
	"github.com/mcdev12/ctfsession/go/internal/container"
	"github.com/mcdev12/ctfsession/go/internal/models"
	"github.com/mcdev12/ctfsession/go/internal/scoreboard"
	"github.com/rs/zerolog/log"
)

// Arena defines what the handler needs from the live session
type Arena interface {
	View() arena.View
	Feed() []models.Notice
	Scoreboard() scoreboard.View
	OpenChallenge(ctx context.Context, challengeID int) error
	RequestLaunch(ctx context.Context) error
	RequestExtend(ctx context.Context) error
	RequestDestroy(ctx context.Context) error
	RequestSubmit(ctx context.Context, flag string) (models.SubmissionResult, error)
	OpenScoreboard(ctx context.Context) error
	CloseScoreboard()
	ChangeScoreboardPage(ctx context.Context, page int) error
	ChangeScoreboardPageSize(ctx context.Context, size int) error
	ChangeScoreboardGroup(ctx context.Context, group *string) error
	ResyncNotices(ctx context.Context) error
}

// SubmitRequest is the body of POST /api/submit
type SubmitRequest struct {
	Flag string `json:"flag"`
}

// SubmitResponse is returned by POST /api/submit
type SubmitResponse struct {
	Result models.SubmissionResult `json:"result"`
}

// PageRequest is the body of POST /api/scoreboard/page
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size,omitempty"`
}

// GroupRequest is the body of POST /api/scoreboard/group; a null group selects all teams.
type GroupRequest struct {
	Group *string `json:"group"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves the arena view to an external shell and accepts its intents
type Handler struct {
	arena Arena
}

// NewHandler creates a new view-state handler
func NewHandler(a Arena) *Handler {
	return &Handler{arena: a}
}

// RegisterRoutes registers the view-state routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/view", h.HandleGetView)
	mux.HandleFunc("/api/feed", h.HandleGetFeed)
	mux.HandleFunc("/api/feed/resync", h.HandleResyncFeed)
	mux.HandleFunc("/api/challenges/{id}/open", h.HandleOpenChallenge)
	mux.HandleFunc("/api/instance/launch", h.intent(h.arena.RequestLaunch))
	mux.HandleFunc("/api/instance/extend", h.intent(h.arena.RequestExtend))
	mux.HandleFunc("/api/instance/destroy", h.intent(h.arena.RequestDestroy))
	mux.HandleFunc("/api/submit", h.HandleSubmit)
	mux.HandleFunc("/api/scoreboard", h.HandleGetScoreboard)
	mux.HandleFunc("/api/scoreboard/open", h.intent(h.arena.OpenScoreboard))
	mux.HandleFunc("/api/scoreboard/close", h.intent(func(context.Context) error {
		h.arena.CloseScoreboard()
		return nil
	}))
	mux.HandleFunc("/api/scoreboard/page", h.HandleScoreboardPage)
	mux.HandleFunc("/api/scoreboard/group", h.HandleScoreboardGroup)
}

// HandleHealth handles GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetView handles GET /api/view
func (h *Handler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.View())
}

// HandleGetFeed handles GET /api/feed
func (h *Handler) HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.Feed())
}

// HandleResyncFeed handles POST /api/feed/resync
func (h *Handler) HandleResyncFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.arena.ResyncNotices(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.Feed())
}

// HandleGetScoreboard handles GET /api/scoreboard
func (h *Handler) HandleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.Scoreboard())
}

// HandleOpenChallenge handles POST /api/challenges/{id}/open
func (h *Handler) HandleOpenChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	challengeID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || challengeID <= 0 {
		writeError(w, apierr.NewValidationError("id", "invalid challenge id"))
		return
	}
	if err := h.arena.OpenChallenge(r.Context(), challengeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.View())
}

// HandleSubmit handles POST /api/submit
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.arena.RequestSubmit(r.Context(), req.Flag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubmitResponse{Result: result})
}

// HandleScoreboardPage handles POST /api/scoreboard/page
func (h *Handler) HandleScoreboardPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req PageRequest
	if !decode(w, r, &req) {
		return
	}

	var err error
	if req.PageSize > 0 {
		// A page size change always starts again from page 1.
		err = h.arena.ChangeScoreboardPageSize(r.Context(), req.PageSize)
	} else {
		err = h.arena.ChangeScoreboardPage(r.Context(), req.Page)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.Scoreboard())
}

// HandleScoreboardGroup handles POST /api/scoreboard/group
func (h *Handler) HandleScoreboardGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req GroupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.arena.ChangeScoreboardGroup(r.Context(), req.Group); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.arena.Scoreboard())
}

// intent wraps a body-less POST intent that answers with the updated view.
func (h *Handler) intent(fn func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := fn(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.arena.View())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apierr.NewValidationError("", "invalid request body"))
		return false
	}
	return true
}

// StatusFor maps an arena error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case apierr.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, container.ErrLaunchInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := apierr.Message(err)
	if errors.Is(err, container.ErrLaunchInProgress) {
		msg = "instance is already starting"
	}
	if status == http.StatusBadGateway {
		log.Warn().Err(err).Msg("view-state request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode view-state response")
	}
}
