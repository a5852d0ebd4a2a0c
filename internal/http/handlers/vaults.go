package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/vault-be/internal/http/respond"
	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/vaults"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// VaultHandler serves the vault list and per-vault views.
type VaultHandler struct {
	store storage.VaultStore
}

func NewVaultHandler(store storage.VaultStore) *VaultHandler {
	return &VaultHandler{store: store}
}

// Register attaches vault routes.
func (h *VaultHandler) Register(r *mux.Router) {
	r.HandleFunc("/vaults", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/vaults/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/vaults/{id}/activity", h.handleActivity).Methods(http.MethodGet)
	r.HandleFunc("/vaults/{id}/history", h.handleHistory).Methods(http.MethodGet)
}

func (h *VaultHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field, err := vaults.ParseField(q.Get("sort"))
	if err != nil {
		respondError(w, err, "invalid sort")
		return
	}
	dir, err := vaults.ParseDirection(q.Get("dir"))
	if err != nil {
		respondError(w, err, "invalid direction")
		return
	}
	list, err := h.store.ListVaults(r.Context())
	if err != nil {
		respondError(w, err, "failed to load vaults")
		return
	}
	respond.JSON(w, http.StatusOK, "vaults", vaults.Apply(list, vaults.Query{
		Search:    q.Get("q"),
		Field:     field,
		Direction: dir,
	}))
}

func (h *VaultHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.FindVault(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err, "failed to load vault")
		return
	}
	respond.JSON(w, http.StatusOK, "vault", v)
}

func (h *VaultHandler) handleActivity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit, ok := queryLimit(w, r, defaultActivityLimit, maxActivityLimit)
	if !ok {
		return
	}
	if _, err := h.store.FindVault(r.Context(), id); err != nil {
		respondError(w, err, "failed to load vault")
		return
	}
	rows, err := h.store.VaultActivity(r.Context(), id, limit)
	if err != nil {
		respondError(w, err, "failed to load vault activity")
		return
	}
	respond.JSON(w, http.StatusOK, "vault activity", rows)
}

func (h *VaultHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()

	series := models.SeriesLegacy
	if raw := q.Get("series"); raw != "" {
		series = models.HistorySeries(raw)
	}
	switch series {
	case models.SeriesLegacy, models.SeriesAPR, models.SeriesTVL:
	default:
		respond.Error(w, http.StatusBadRequest, "series must be one of legacy, apr, tvl")
		return
	}

	var width time.Duration
	if raw := q.Get("bucket"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respond.Error(w, http.StatusBadRequest, "bucket must be a positive duration such as 1h")
			return
		}
		width = d
	}

	if _, err := h.store.FindVault(r.Context(), id); err != nil {
		respondError(w, err, "failed to load vault")
		return
	}
	points, err := h.store.VaultHistory(r.Context(), id, series)
	if err != nil {
		respondError(w, err, "failed to load vault history")
		return
	}
	if width > 0 {
		points = vaults.Bucket(points, width)
	}
	respond.JSON(w, http.StatusOK, "vault history", points)
}
