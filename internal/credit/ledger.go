// Package credit exposes the credit ledger consulted by the matching engine.
// Each matching task opens its own scoped session and must close it on every
// exit path. The check-then-debit pair is deliberately not atomic: two
// sessions for the same account racing between HasSufficientCredit and Debit
// can over-allocate credit, matching the behavior of the system this ledger
// fronts.
package credit

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrSessionClosed  = errors.New("credit session already closed")
	ErrUnknownAccount = errors.New("unknown credit account")
)

// Session is a scoped connection to the ledger for one account.
type Session interface {
	// HasSufficientCredit reports whether the account's balance covers the
	// notional value.
	HasSufficientCredit(notional decimal.Decimal) (bool, error)
	// Debit reduces the balance by the notional value. No credit/undo
	// operation is exposed.
	Debit(notional decimal.Decimal) error
	Close() error
}

// Ledger hands out scoped sessions. One session per matching task; sessions
// are never shared across orders.
type Ledger interface {
	Session(account string) (Session, error)
}
