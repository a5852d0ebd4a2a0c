// Package ledger applies deposits, withdrawals and credits to a user's
// per-strategy balances. Each strategy is an independent sub-ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/reward"
	"github.com/hongminglow/vault-be/internal/storage"
)

var (
	// ErrInvalidAmount is returned when an amount is not a positive decimal.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrUnknownStrategy is returned for a strategy outside the configured set.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrUnsupportedTerm is returned when a deposit names a term that is not offered.
	ErrUnsupportedTerm = reward.ErrUnsupportedTerm
	// ErrUnknownVault is returned when a deposit or withdrawal names a missing vault.
	ErrUnknownVault = errors.New("unknown vault")
)

// Store is the persistence the service needs.
type Store interface {
	Portfolio(ctx context.Context, userID string) (models.Portfolio, error)
	ApplyLedgerEntry(ctx context.Context, entry models.LedgerEntry) (decimal.Decimal, error)
}

// VaultFinder resolves the vault an operation is attributed to.
type VaultFinder interface {
	FindVault(ctx context.Context, id string) (models.Vault, error)
}

// DepositRequest moves Amount out of Strategy into a term product.
type DepositRequest struct {
	UserID   string
	Strategy string
	Amount   string
	Term     string
	VaultID  string
}

// WithdrawRequest moves Amount out of Strategy.
type WithdrawRequest struct {
	UserID   string
	Strategy string
	Amount   string
	VaultID  string
}

// CreditRequest tops up Strategy by Amount.
type CreditRequest struct {
	UserID   string
	Strategy string
	Amount   string
}

// Receipt describes a completed operation.
type Receipt struct {
	Type            models.Action    `json:"type"`
	Strategy        string           `json:"strategy"`
	Amount          decimal.Decimal  `json:"amount"`
	Balance         decimal.Decimal  `json:"balance"`
	Term            reward.Term      `json:"term,omitempty"`
	EstimatedReward *decimal.Decimal `json:"estimatedReward,omitempty"`
	VaultID         string           `json:"vaultId,omitempty"`
	TransactionID   string           `json:"transactionId"`
	At              time.Time        `json:"timestamp"`
}

// Service validates requests and hands balance changes to the store, which
// applies them atomically together with the transaction record.
type Service struct {
	store      Store
	vaults     VaultFinder
	strategies []string
	now        func() time.Time
	newID      func() string
}

// NewService builds a service over the given strategies. vaults may be nil,
// in which case vault ids are recorded without being checked.
func NewService(store Store, vaults VaultFinder, strategies []string) *Service {
	return &Service{
		store:      store,
		vaults:     vaults,
		strategies: lo.Uniq(strategies),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Strategies returns the strategy keys the service accepts.
func (s *Service) Strategies() []string {
	return append([]string(nil), s.strategies...)
}

// Deposit debits the strategy and attaches the term's estimated reward to the receipt.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (Receipt, error) {
	amount, err := s.validate(req.Strategy, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	term, err := reward.ParseTerm(req.Term)
	if err != nil {
		return Receipt{}, err
	}

	receipt, err := s.debit(ctx, models.ActionDeposit, req.UserID, req.Strategy, amount, string(term), req.VaultID)
	if err != nil {
		return Receipt{}, err
	}
	est := reward.Estimate(amount, term)
	receipt.Term = term
	receipt.EstimatedReward = &est
	return receipt, nil
}

// Withdraw debits the strategy.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (Receipt, error) {
	amount, err := s.validate(req.Strategy, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	return s.debit(ctx, models.ActionWithdraw, req.UserID, req.Strategy, amount, "", req.VaultID)
}

// Credit adds to the strategy balance. It backs the admin top-up.
func (s *Service) Credit(ctx context.Context, req CreditRequest) (Receipt, error) {
	amount, err := s.validate(req.Strategy, req.Amount)
	if err != nil {
		return Receipt{}, err
	}
	return s.apply(ctx, models.ActionCredit, req.UserID, req.Strategy, amount, amount, "", "")
}

func (s *Service) validate(strategy, raw string) (decimal.Decimal, error) {
	if !lo.Contains(s.strategies, strategy) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// ParseAmount accepts a positive decimal string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return amount, nil
}

func (s *Service) debit(ctx context.Context, action models.Action, userID, strategy string, amount decimal.Decimal, term, vaultID string) (Receipt, error) {
	if vaultID != "" && s.vaults != nil {
		if _, err := s.vaults.FindVault(ctx, vaultID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownVault, vaultID)
			}
			return Receipt{}, fmt.Errorf("find vault %s: %w", vaultID, err)
		}
	}

	// Reject against the last known balance before writing; the store repeats
	// the check atomically.
	portfolio, err := s.store.Portfolio(ctx, userID)
	if err != nil {
		return Receipt{}, fmt.Errorf("load portfolio: %w", err)
	}
	balance, ok := portfolio.Balance(strategy)
	if !ok || amount.GreaterThan(balance) {
		return Receipt{}, storage.ErrInsufficientBalance
	}

	return s.apply(ctx, action, userID, strategy, amount, amount.Neg(), term, vaultID)
}

func (s *Service) apply(ctx context.Context, action models.Action, userID, strategy string, amount, delta decimal.Decimal, term, vaultID string) (Receipt, error) {
	txn := models.Transaction{
		ID:      s.newID(),
		UserID:  userID,
		Asset:   strategy,
		Action:  action,
		Amount:  amount,
		Term:    term,
		VaultID: vaultID,
		Status:  models.TransactionStatusCompleted,
		At:      s.now(),
	}
	balance, err := s.store.ApplyLedgerEntry(ctx, models.LedgerEntry{Transaction: txn, Delta: delta})
	if err != nil {
		if !errors.Is(err, storage.ErrInsufficientBalance) && !errors.Is(err, storage.ErrNotFound) {
			slog.Error("ledger entry failed", "user", userID, "strategy", strategy, "action", action, "error", err)
		}
		return Receipt{}, fmt.Errorf("apply %s: %w", action, err)
	}

	slog.Info("ledger entry applied", "user", userID, "strategy", strategy, "action", action, "amount", amount.String())
	return Receipt{
		Type:          action,
		Strategy:      strategy,
		Amount:        amount,
		Balance:       balance,
		VaultID:       vaultID,
		TransactionID: txn.ID,
		At:            txn.At,
	}, nil
}
