package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/models/dto"
)

// AdminHandler exposes operator-only ledger operations. The router it is
// registered on must already enforce the admin key.
type AdminHandler struct {
	ledger *ledger.Service
}

func NewAdminHandler(svc *ledger.Service) *AdminHandler {
	return &AdminHandler{ledger: svc}
}

// Register attaches operator routes to a router that already checks the admin key.
func (h *AdminHandler) Register(r *mux.Router) {
	r.HandleFunc("/users/{id}/portfolio/{strategy}/credit", h.handleCredit).Methods(http.MethodPost)
}

func (h *AdminHandler) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req dto.CreditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	receipt, err := h.ledger.Credit(r.Context(), ledger.CreditRequest{
		UserID:   vars["id"],
		Strategy: vars["strategy"],
		Amount:   req.Amount,
	})
	if err != nil {
		respondError(w, err, "failed to credit balance")
		return
	}
	respond.JSON(w, http.StatusOK, "balance credited", receipt)
}
