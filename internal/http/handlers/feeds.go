package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/leaderboard"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/models/dto"
	"github.com/hongminglow/vault-be/internal/storage"
)

const defaultAnnouncementLimit = 20

// FeedHandler serves the leaderboard, announcements and the interest form.
type FeedHandler struct {
	store            storage.FeedStore
	leaderboardLimit int
}

// NewFeedHandler builds the handler. leaderboardLimit caps the ranking size.
func NewFeedHandler(store storage.FeedStore, leaderboardLimit int) *FeedHandler {
	return &FeedHandler{store: store, leaderboardLimit: leaderboardLimit}
}

// Register attaches the public feed routes and the interest form.
func (h *FeedHandler) Register(r *mux.Router) {
	r.HandleFunc("/leaderboard", h.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/announcements", h.handleAnnouncements).Methods(http.MethodGet)
	r.HandleFunc("/interest", h.handleInterest).Methods(http.MethodPost)
}

func (h *FeedHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, h.leaderboardLimit, h.leaderboardLimit)
	if !ok {
		return
	}
	entries, err := h.store.TopScores(r.Context(), limit)
	if err != nil {
		respondError(w, err, "failed to load leaderboard")
		return
	}
	respond.JSON(w, http.StatusOK, "leaderboard", leaderboard.Rank(entries))
}

func (h *FeedHandler) handleAnnouncements(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r, defaultAnnouncementLimit, 100)
	if !ok {
		return
	}
	items, err := h.store.ListAnnouncements(r.Context(), limit)
	if err != nil {
		respondError(w, err, "failed to load announcements")
		return
	}
	respond.JSON(w, http.StatusOK, "announcements", items)
}

func (h *FeedHandler) handleInterest(w http.ResponseWriter, r *http.Request) {
	var req dto.InterestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		respond.Error(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	sub, err := h.store.SubmitInterest(r.Context(), models.InterestSubmission{
		Email:         strings.ToLower(email),
		WalletAddress: strings.TrimSpace(req.WalletAddress),
	})
	if err != nil {
		respondError(w, err, "failed to record interest")
		return
	}
	respond.JSON(w, http.StatusCreated, "thanks for your interest", sub)
}
