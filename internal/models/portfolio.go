package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default strategy keys seeded into every new portfolio.
const (
	StrategyXSGD      = "xsgd"
	StrategyAnnuity   = "annuity"
	StrategyEndowment = "endowment"
	StrategyLP        = "lp"
)

// DefaultStrategies is the strategy set used when configuration does not override it.
var DefaultStrategies = []string{StrategyXSGD, StrategyAnnuity, StrategyEndowment, StrategyLP}

// Portfolio maps each strategy sub-ledger of a user to its balance.
type Portfolio struct {
	UserID    string                     `json:"userId"`
	Balances  map[string]decimal.Decimal `json:"balances"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

// Balance returns the balance for strategy and whether the strategy exists.
func (p Portfolio) Balance(strategy string) (decimal.Decimal, bool) {
	b, ok := p.Balances[strategy]
	return b, ok
}

// StrategyBalance is the value stored at users/{id}/portfolio/{strategy}.
type StrategyBalance struct {
	UserID   string          `json:"userId"`
	Strategy string          `json:"strategy"`
	Balance  decimal.Decimal `json:"balance"`
}
