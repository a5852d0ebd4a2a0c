package models

import (
	"github.com/shopspring/decimal"
)

// MarketKind distinguishes fungible markets from NFT collateral markets.
type MarketKind string

const (
	MarketToken MarketKind = "token"
	MarketNFT   MarketKind = "nft"
)

// Market is a lending market listed on the lending page.
type Market struct {
	Asset            string          `json:"asset"`
	Kind             MarketKind      `json:"kind"`
	SupplyAPY        decimal.Decimal `json:"supplyApy"`
	BorrowAPY        decimal.Decimal `json:"borrowApy"`
	TotalSupply      decimal.Decimal `json:"totalSupply"`
	TotalBorrow      decimal.Decimal `json:"totalBorrow"`
	Liquidity        decimal.Decimal `json:"liquidity"`
	CollateralFactor decimal.Decimal `json:"collateralFactor"`
}

// Position is a user's supplied and borrowed amounts in one market.
type Position struct {
	UserID   string          `json:"userId"`
	Asset    string          `json:"asset"`
	Supplied decimal.Decimal `json:"supplied"`
	Borrowed decimal.Decimal `json:"borrowed"`
}

// PositionChange is an atomic update to a position, the market totals and the
// transaction log. NFT is set when the supply must also be recorded as an NFT.
type PositionChange struct {
	Transaction   Transaction
	SuppliedDelta decimal.Decimal
	BorrowedDelta decimal.Decimal
	NFT           *NFTRecord
}

// AddsRisk reports whether the change borrows more or pulls collateral out.
// Only such changes need the collateral check; repaying and supplying are
// always allowed so an under-collateralised position can be unwound.
func (c PositionChange) AddsRisk() bool {
	return c.BorrowedDelta.IsPositive() || c.SuppliedDelta.IsNegative()
}

// Collateralized reports whether the borrowed amount is covered by the supplied
// amount at the given collateral factor.
func (p Position) Collateralized(collateralFactor decimal.Decimal) bool {
	return p.Borrowed.LessThanOrEqual(p.Supplied.Mul(collateralFactor))
}
