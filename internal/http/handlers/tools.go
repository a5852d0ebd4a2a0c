package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/currency"
	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/models/dto"
	"github.com/hongminglow/vault-be/internal/reward"
)

// ToolsHandler exposes the stateless calculators used by the dashboard.
type ToolsHandler struct{}

func NewToolsHandler() *ToolsHandler { return &ToolsHandler{} }

// Register attaches the calculator routes.
func (h *ToolsHandler) Register(r *mux.Router) {
	r.HandleFunc("/tools/convert", h.handleConvert).Methods(http.MethodGet)
	r.HandleFunc("/tools/currencies", h.handleCurrencies).Methods(http.MethodGet)
	r.HandleFunc("/tools/reward", h.handleReward).Methods(http.MethodGet)
}

func (h *ToolsHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount")))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "amount must be a number")
		return
	}
	from := strings.ToUpper(q.Get("from"))
	to := strings.ToUpper(q.Get("to"))

	converted, err := currency.Convert(amount, from, to)
	if err != nil {
		respondError(w, err, "conversion failed")
		return
	}
	display, err := currency.Format(converted, to)
	if err != nil {
		respondError(w, err, "conversion failed")
		return
	}
	respond.JSON(w, http.StatusOK, "converted", dto.ConversionResponse{
		Amount:    amount.String(),
		From:      from,
		To:        to,
		Converted: converted.StringFixed(2),
		Display:   display,
	})
}

func (h *ToolsHandler) handleCurrencies(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, "currencies", currency.Codes())
}

func (h *ToolsHandler) handleReward(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term, err := reward.ParseTerm(q.Get("term"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "term must be one of 3m, 12m")
		return
	}
	amount := q.Get("amount")
	respond.JSON(w, http.StatusOK, "estimated reward", dto.RewardResponse{
		Amount:          amount,
		Term:            string(term),
		EstimatedReward: reward.EstimateString(amount, term).StringFixed(2),
	})
}
