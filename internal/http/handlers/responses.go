package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/currency"
	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/lending"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/vaults"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "sign in required")
	}
	return id, ok
}

// respondError maps service and store errors to statuses. Anything
// unrecognised is logged and reported as a 500 with the fallback message.
func respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownStrategy),
		errors.Is(err, ledger.ErrUnsupportedTerm),
		errors.Is(err, lending.ErrUnknownAction),
		errors.Is(err, currency.ErrUnknownCurrency),
		errors.Is(err, vaults.ErrUnknownField),
		errors.Is(err, vaults.ErrUnknownDirection):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrUnknownVault),
		errors.Is(err, lending.ErrUnknownMarket),
		errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInsufficientBalance),
		errors.Is(err, storage.ErrInsufficientCollateral),
		errors.Is(err, storage.ErrInsufficientLiquidity):
		respond.Error(w, http.StatusUnprocessableEntity, rootMessage(err))
	case errors.Is(err, storage.ErrVersionConflict):
		respond.Error(w, http.StatusConflict, "profile was changed elsewhere; reload and try again")
	default:
		slog.Error(fallback, "error", err)
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}

func rootMessage(err error) string {
	for _, sentinel := range []error{storage.ErrInsufficientBalance, storage.ErrInsufficientCollateral, storage.ErrInsufficientLiquidity} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
