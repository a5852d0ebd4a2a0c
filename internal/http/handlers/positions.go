package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/lending"
	"github.com/hongminglow/vault-be/internal/models/dto"
	"github.com/hongminglow/vault-be/internal/storage"
)

// MarketHandler lists lending markets and applies position changes.
type MarketHandler struct {
	store   storage.MarketStore
	lending *lending.Service
}

func NewMarketHandler(store storage.MarketStore, svc *lending.Service) *MarketHandler {
	return &MarketHandler{store: store, lending: svc}
}

// Register attaches the public market listing.
func (h *MarketHandler) Register(r *mux.Router) {
	r.HandleFunc("/markets", h.handleMarkets).Methods(http.MethodGet)
}

// RegisterPositions attaches position routes under the signed-in /me router.
func (h *MarketHandler) RegisterPositions(r *mux.Router) {
	r.HandleFunc("/positions", h.handlePositions).Methods(http.MethodGet)
	r.HandleFunc("/positions/{asset}/{action}", h.handleChange).Methods(http.MethodPost)
}

func (h *MarketHandler) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.store.ListMarkets(r.Context())
	if err != nil {
		respondError(w, err, "failed to load markets")
		return
	}
	respond.JSON(w, http.StatusOK, "markets", markets)
}

func (h *MarketHandler) handlePositions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	positions, err := h.store.Positions(r.Context(), id.UserID)
	if err != nil {
		respondError(w, err, "failed to load positions")
		return
	}
	respond.JSON(w, http.StatusOK, "positions", positions)
}

func (h *MarketHandler) handleChange(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req dto.PositionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	pos, err := h.lending.Apply(r.Context(), id.UserID, vars["asset"], vars["action"], req.Amount)
	if err != nil {
		respondError(w, err, "failed to update position")
		return
	}
	respond.JSON(w, http.StatusOK, "position updated", pos)
}
