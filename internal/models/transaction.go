package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action names a ledger operation recorded in the transaction log.
type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionCredit   Action = "credit"
	ActionSupply   Action = "supply"
	ActionBorrow   Action = "borrow"
	ActionRepay    Action = "repay"
)

// TransactionStatus is always completed for entries written with their balance change.
const TransactionStatusCompleted = "completed"

// Transaction is an append-only audit record under transactions/{userId}.
type Transaction struct {
	ID      string          `json:"id"`
	UserID  string          `json:"userId"`
	Asset   string          `json:"asset"`
	Action  Action          `json:"action"`
	Amount  decimal.Decimal `json:"amount"`
	Term    string          `json:"term,omitempty"`
	VaultID string          `json:"vaultId,omitempty"`
	Status  string          `json:"status"`
	At      time.Time       `json:"timestamp"`
}

// LedgerEntry is a balance change on one strategy, applied together with its
// transaction record. Delta is negative for outflows.
type LedgerEntry struct {
	Transaction Transaction
	Delta       decimal.Decimal
}

// NFTRecord is appended under nfts/{userId} when an NFT-type asset is supplied.
type NFTRecord struct {
	ID     string          `json:"id"`
	UserID string          `json:"userId"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"timestamp"`
}
