package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vault is a yield pool record maintained outside this service.
type Vault struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	APR     decimal.Decimal `json:"apr"`
	TVL     decimal.Decimal `json:"tvl"`
	Balance decimal.Decimal `json:"balance"`
	Points  decimal.Decimal `json:"points"`
	Leader  string          `json:"leader,omitempty"`
	AgeDays int             `json:"ageDays"`
}

// HistorySeries selects one of the stored vault time series.
type HistorySeries string

const (
	SeriesLegacy HistorySeries = "legacy"
	SeriesAPR    HistorySeries = "apr"
	SeriesTVL    HistorySeries = "tvl"
)

// HistoryPoint is one sample of a vault series.
type HistoryPoint struct {
	At    time.Time       `json:"timestamp"`
	Value decimal.Decimal `json:"value"`
}

// VaultHistoryPoint is a sample addressed to a vault and series, used when recording.
type VaultHistoryPoint struct {
	VaultID string
	Series  HistorySeries
	HistoryPoint
}

// VaultActivity is an entry under allVaults/{vaultId}/depositsAndWithdrawals.
type VaultActivity struct {
	ID      string          `json:"id"`
	VaultID string          `json:"vaultId"`
	UserID  string          `json:"userId"`
	Action  Action          `json:"action"`
	Amount  decimal.Decimal `json:"amount"`
	At      time.Time       `json:"timestamp"`
}
