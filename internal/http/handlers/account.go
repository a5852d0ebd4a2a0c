package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/models/dto"
	"github.com/hongminglow/vault-be/internal/storage"
)

// AccountHandler serves the signed-in user's profile.
type AccountHandler struct {
	store storage.UserStore
}

func NewAccountHandler(store storage.UserStore) *AccountHandler {
	return &AccountHandler{store: store}
}

// Register attaches profile routes to a router that already enforces identity.
func (h *AccountHandler) Register(r *mux.Router) {
	r.HandleFunc("", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("", h.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/preferences", h.handlePreferences).Methods(http.MethodPatch)
}

func (h *AccountHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	user, err := h.store.FindByID(r.Context(), id.UserID)
	if err != nil {
		respondError(w, err, "failed to load profile")
		return
	}
	respond.JSON(w, http.StatusOK, "profile", user)
}

func (h *AccountHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Version <= 0 {
		respond.Error(w, http.StatusBadRequest, "version is required")
		return
	}
	current, err := h.store.FindByID(r.Context(), id.UserID)
	if err != nil {
		respondError(w, err, "failed to load profile")
		return
	}

	current.DisplayName = strings.TrimSpace(req.DisplayName)
	current.WalletAddress = strings.TrimSpace(req.WalletAddress)
	current.Preferences = req.Preferences
	current.Version = req.Version

	updated, err := h.store.UpdateProfile(r.Context(), current)
	if err != nil {
		respondError(w, err, "failed to update profile")
		return
	}
	respond.JSON(w, http.StatusOK, "profile updated", updated)
}

func (h *AccountHandler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req dto.UpdatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	current, err := h.store.FindByID(r.Context(), id.UserID)
	if err != nil {
		respondError(w, err, "failed to load profile")
		return
	}
	prefs := current.Preferences
	if req.Notifications != nil {
		prefs.Notifications = *req.Notifications
	}
	if req.AutoCompound != nil {
		prefs.AutoCompound = *req.AutoCompound
	}
	updated, err := h.store.UpdatePreferences(r.Context(), id.UserID, prefs)
	if err != nil {
		respondError(w, err, "failed to update preferences")
		return
	}
	respond.JSON(w, http.StatusOK, "preferences updated", updated)
}
