package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/models/dto"
	"github.com/hongminglow/vault-be/internal/storage"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500
)

// PortfolioHandler exposes strategy balances and the deposit/withdraw flow.
type PortfolioHandler struct {
	store  storage.PortfolioStore
	ledger *ledger.Service
}

func NewPortfolioHandler(store storage.PortfolioStore, svc *ledger.Service) *PortfolioHandler {
	return &PortfolioHandler{store: store, ledger: svc}
}

// Register attaches routes under the signed-in /me router.
func (h *PortfolioHandler) Register(r *mux.Router) {
	r.HandleFunc("/portfolio", h.handlePortfolio).Methods(http.MethodGet)
	r.HandleFunc("/portfolio/{strategy}", h.handleStrategy).Methods(http.MethodGet)
	r.HandleFunc("/portfolio/{strategy}/deposit", h.handleDeposit).Methods(http.MethodPost)
	r.HandleFunc("/portfolio/{strategy}/withdraw", h.handleWithdraw).Methods(http.MethodPost)
	r.HandleFunc("/transactions", h.handleTransactions).Methods(http.MethodGet)
}

func (h *PortfolioHandler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	p, err := h.store.Portfolio(r.Context(), id.UserID)
	if err != nil {
		respondError(w, err, "failed to load portfolio")
		return
	}
	respond.JSON(w, http.StatusOK, "portfolio", p)
}

func (h *PortfolioHandler) handleStrategy(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	strategy := mux.Vars(r)["strategy"]
	p, err := h.store.Portfolio(r.Context(), id.UserID)
	if err != nil {
		respondError(w, err, "failed to load portfolio")
		return
	}
	balance, found := p.Balance(strategy)
	if !found {
		respond.Error(w, http.StatusNotFound, ledger.ErrUnknownStrategy.Error())
		return
	}
	respond.JSON(w, http.StatusOK, "balance", models.StrategyBalance{
		UserID:   id.UserID,
		Strategy: strategy,
		Balance:  balance,
	})
}

func (h *PortfolioHandler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.ledger.Deposit(r.Context(), ledger.DepositRequest{
		UserID:   id.UserID,
		Strategy: mux.Vars(r)["strategy"],
		Amount:   req.Amount,
		Term:     req.Term,
		VaultID:  req.VaultID,
	})
	if err != nil {
		respondError(w, err, "failed to record deposit")
		return
	}
	respond.JSON(w, http.StatusOK, "deposit recorded", receipt)
}

func (h *PortfolioHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req dto.WithdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.ledger.Withdraw(r.Context(), ledger.WithdrawRequest{
		UserID:   id.UserID,
		Strategy: mux.Vars(r)["strategy"],
		Amount:   req.Amount,
		VaultID:  req.VaultID,
	})
	if err != nil {
		respondError(w, err, "failed to record withdrawal")
		return
	}
	respond.JSON(w, http.StatusOK, "withdrawal recorded", receipt)
}

func (h *PortfolioHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r, defaultTransactionLimit, maxTransactionLimit)
	if !ok {
		return
	}
	txs, err := h.store.ListTransactions(r.Context(), id.UserID, limit)
	if err != nil {
		respondError(w, err, "failed to load transactions")
		return
	}
	respond.JSON(w, http.StatusOK, "transactions", txs)
}

// queryLimit reads ?limit=, falling back to def and capping at ceiling.
func queryLimit(w http.ResponseWriter, r *http.Request, def, ceiling int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		respond.Error(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, ceiling), true
}
