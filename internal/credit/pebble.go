package credit

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "credit/"

func balanceKey(account string) []byte {
	return []byte(balanceKeyPrefix + account)
}

// PebbleLedger persists per-account balances in a pebble keyspace.
type PebbleLedger struct {
	db *pebble.DB
}

func OpenPebbleLedger(db *pebble.DB) *PebbleLedger {
	return &PebbleLedger{db: db}
}

// SetBalance seeds or overwrites an account's balance.
func (l *PebbleLedger) SetBalance(account string, balance decimal.Decimal) error {
	if err := l.db.Set(balanceKey(account), []byte(balance.String()), pebble.Sync); err != nil {
		return fmt.Errorf("unable to set balance for %s: %w", account, err)
	}
	return nil
}

// Balance reads an account's current balance.
func (l *PebbleLedger) Balance(account string) (decimal.Decimal, error) {
	value, closer, err := l.db.Get(balanceKey(account))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return decimal.Zero, ErrUnknownAccount
		}
		return decimal.Zero, fmt.Errorf("unable to read balance for %s: %w", account, err)
	}
	defer closer.Close()

	balance, err := decimal.NewFromString(string(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance for %s: %w", account, err)
	}
	return balance, nil
}

func (l *PebbleLedger) Session(account string) (Session, error) {
	return &pebbleSession{ledger: l, account: account}, nil
}

type pebbleSession struct {
	ledger  *PebbleLedger
	account string
	closed  bool
}

func (s *pebbleSession) HasSufficientCredit(notional decimal.Decimal) (bool, error) {
	if s.closed {
		return false, ErrSessionClosed
	}
	balance, err := s.ledger.Balance(s.account)
	if err != nil {
		return false, err
	}
	return balance.Cmp(notional) >= 0, nil
}

// Debit reads, subtracts and writes back. It does not re-verify the balance
// against the earlier check; see the package comment for the race this keeps.
func (s *pebbleSession) Debit(notional decimal.Decimal) error {
	if s.closed {
		return ErrSessionClosed
	}
	balance, err := s.ledger.Balance(s.account)
	if err != nil {
		return err
	}
	return s.ledger.SetBalance(s.account, balance.Sub(notional))
}

func (s *pebbleSession) Close() error {
	if s.closed {
		log.Warn().Str("account", s.account).Msg("credit session closed twice")
		return ErrSessionClosed
	}
	s.closed = true
	return nil
}
