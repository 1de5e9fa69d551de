package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrMissingSymbol   = errors.New("order symbol is empty")
	ErrMissingLimit    = errors.New("limit order has no limit price")
	ErrMissingStop     = errors.New("stop order has no stop price")
	ErrTerminalOrder   = errors.New("order already in a terminal state")
)

// State is the single lifecycle tag of an order. Terminal tags are mutually
// exclusive by construction; there is no flag combination to keep consistent.
type State int

const (
	StatePending State = iota // sent, acceptance not yet seen
	StateAcknowledged
	StateFilled
	StateRejected
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	case StateFilled:
		return "FILLED"
	case StateRejected:
		return "REJECTED"
	case StateCanceled:
		return "CANCELED"
	}
	return "UNKNOWN"
}

func (s State) Terminal() bool {
	return s == StateFilled || s == StateRejected || s == StateCanceled
}

// RejectReason distinguishes a no-liquidity rejection from one caused by the
// credit check.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectNoLiquidity
	RejectCreditCheck
)

// Order is the mutable record tracked by the router. Quantity is the client's
// requested size; Open and Executed partition it while the order is live. A
// rejection resolves the whole remainder, so Open drops to zero.
type Order struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	Side        Side            `json:"side"`
	Type        OrderType       `json:"type"`
	TimeInForce TimeInForce     `json:"time_in_force"`
	LimitPrice  decimal.Decimal `json:"limit_price"`
	StopPrice   decimal.Decimal `json:"stop_price"`

	Open         int64           `json:"open"`
	Executed     int64           `json:"executed"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	State        State           `json:"state"`
	RejectReason RejectReason    `json:"reject_reason"`

	MarketDataID string    `json:"market_data_id,omitempty"`
	StatusText   string    `json:"status_text,omitempty"`
	SessionKey   string    `json:"session_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewOrder builds a pending order with the full quantity open.
func NewOrder(id, symbol string, quantity int64, side Side, typ OrderType, tif TimeInForce) Order {
	return Order{
		ID:          id,
		Symbol:      symbol,
		Quantity:    quantity,
		Side:        side,
		Type:        typ,
		TimeInForce: tif,
		Open:        quantity,
		State:       StatePending,
		CreatedAt:   time.Now(),
	}
}

func (o *Order) Validate() error {
	if o.Symbol == "" {
		return ErrMissingSymbol
	}
	if o.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if o.Type == LimitOrder && o.LimitPrice.IsZero() {
		return ErrMissingLimit
	}
	if o.Type == StopOrder && o.StopPrice.IsZero() {
		return ErrMissingStop
	}
	return nil
}

func (o *Order) IsNew() bool             { return o.State == StatePending }
func (o *Order) Filled() bool            { return o.State == StateFilled }
func (o *Order) Rejected() bool          { return o.State == StateRejected }
func (o *Order) Canceled() bool          { return o.State == StateCanceled }
func (o *Order) CreditCheckFailed() bool { return o.RejectReason == RejectCreditCheck }

// Acknowledge clears the pending tag once the venue's acceptance is seen.
func (o *Order) Acknowledge() {
	if o.State == StatePending {
		o.State = StateAcknowledged
	}
}

// Reject moves the order to its rejected terminal state. The open quantity
// drops to zero; whatever executed before the rejection is retained.
func (o *Order) Reject(reason RejectReason) error {
	if o.State.Terminal() {
		return ErrTerminalOrder
	}
	o.State = StateRejected
	o.RejectReason = reason
	o.Open = 0
	return nil
}

// Cancel moves the order to its canceled terminal state.
func (o *Order) Cancel() error {
	if o.State.Terminal() {
		return ErrTerminalOrder
	}
	o.State = StateCanceled
	o.Open = 0
	return nil
}

// ApplyFill folds an execution into the order. leaves is the venue-reported
// remaining quantity, cum the cumulative executed quantity. The order turns
// terminal only once no quantity is left open.
func (o *Order) ApplyFill(leaves, cum int64, avgPrice decimal.Decimal) error {
	if o.State.Terminal() {
		return ErrTerminalOrder
	}
	fillSize := o.Quantity - leaves
	if fillSize > 0 {
		o.Open = o.Quantity - fillSize
		o.Executed = cum
		o.AvgPrice = avgPrice
	}
	if leaves == 0 {
		o.State = StateFilled
	}
	return nil
}

func (o Order) String() string {
	return fmt.Sprintf(
		`ID:          %s
Symbol:      %s
Side:        %v
Type:        %v
TimeInForce: %v
Quantity:    %d (open: %d, executed: %d)
LimitPrice:  %s
StopPrice:   %s
AvgPrice:    %s
State:       %v
CreatedAt:   %v`,
		o.ID,
		o.Symbol,
		o.Side,
		o.Type,
		o.TimeInForce,
		o.Quantity, o.Open, o.Executed,
		o.LimitPrice.String(),
		o.StopPrice.String(),
		o.AvgPrice.String(),
		o.State,
		o.CreatedAt.Format(time.RFC3339),
	)
}
