package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/middleware"
	"github.com/hongminglow/vault-be/internal/models/dto"
)

// AuthHandler owns sign-up, sign-in and sign-out.
type AuthHandler struct {
	provider *auth.Provider
	cookies  *auth.CookieSessions
}

// NewAuthHandler constructs the handler. cookies may be nil to disable the
// cookie mirror.
func NewAuthHandler(provider *auth.Provider, cookies *auth.CookieSessions) *AuthHandler {
	return &AuthHandler{provider: provider, cookies: cookies}
}

// Register attaches auth routes.
func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.handleSignIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/signout", h.handleSignOut).Methods(http.MethodPost)
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.provider.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		var vErr *auth.ValidationError
		switch {
		case errors.As(err, &vErr):
			respond.Error(w, http.StatusBadRequest, vErr.Reason)
		case errors.Is(err, auth.ErrEmailTaken):
			respond.Error(w, http.StatusConflict, err.Error())
		default:
			slog.Error("sign up failed", "error", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create account")
		}
		return
	}
	h.saveCookie(w, r, session)
	respond.JSON(w, http.StatusCreated, "account created", dto.SessionResponse{Token: session.Token, User: session.User})
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, err.Error())
			return
		}
		slog.Error("sign in failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	h.saveCookie(w, r, session)
	respond.JSON(w, http.StatusOK, "signed in", dto.SessionResponse{Token: session.Token, User: session.User})
}

func (h *AuthHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var token string
	if h.cookies != nil {
		token = middleware.RequestToken(r, h.cookies)
		if err := h.cookies.Clear(w, r); err != nil {
			slog.Warn("clear session cookie failed", "error", err)
		}
	} else {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		respond.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	if err := h.provider.SignOut(r.Context(), token); err != nil {
		respond.Error(w, http.StatusUnauthorized, "session is invalid or expired")
		return
	}
	respond.JSON(w, http.StatusOK, "signed out", nil)
}

func (h *AuthHandler) saveCookie(w http.ResponseWriter, r *http.Request, s auth.Session) {
	if h.cookies == nil {
		return
	}
	if err := h.cookies.Save(w, r, s); err != nil {
		slog.Warn("save session cookie failed", "error", err)
	}
}
