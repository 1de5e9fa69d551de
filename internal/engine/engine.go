// Package engine resolves one order at a time against the market data
// repository and the credit ledger. Each accepted order runs as its own
// matching task; tasks share nothing but the repository and the ledger.
package engine

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"gungnir/internal/common"
	"gungnir/internal/credit"
	"gungnir/internal/marketdata"
	"gungnir/internal/wire"
)

const (
	// DefaultMaxAttempts and DefaultRetryInterval bound price discovery to
	// 100 polls 500ms apart, up to 50s per order.
	DefaultMaxAttempts   = 100
	DefaultRetryInterval = 500 * time.Millisecond

	acceptText = "new order"
	rejectText = "000000000000"
)

var orderIDSequence atomic.Int64

// Reporter delivers execution reports back to the order's session.
type Reporter interface {
	Send(m wire.Message) error
}

// Task matches exactly one order. It emits one acceptance report and exactly
// one terminal report, unless an unexpected failure aborts it mid-flight, in
// which case the order is left in its last reported state.
type Task struct {
	order    wire.NewOrderSingle
	account  string
	repo     *marketdata.Repository
	ledger   credit.Ledger
	reporter Reporter

	clock    Clock
	attempts int
	interval time.Duration
}

func NewTask(order wire.NewOrderSingle, account string, repo *marketdata.Repository, ledger credit.Ledger, reporter Reporter) *Task {
	return &Task{
		order:    order,
		account:  account,
		repo:     repo,
		ledger:   ledger,
		reporter: reporter,
		clock:    SystemClock,
		attempts: DefaultMaxAttempts,
		interval: DefaultRetryInterval,
	}
}

// WithClock overrides the pacing clock, attempt budget and retry interval.
func (t *Task) WithClock(clock Clock, attempts int, interval time.Duration) *Task {
	t.clock = clock
	t.attempts = attempts
	t.interval = interval
	return t
}

// Run executes the matching protocol:
// acceptance, price discovery, credit gate, terminal report.
func (t *Task) Run() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("order", t.order.ClOrdID).
				Msg("matching task aborted")
		}
	}()

	// The acceptance is a notification, not a credit-checked commitment.
	accept := wire.ExecutionReport{
		OrderID:   buildOrderID(),
		ExecID:    buildExecID(),
		ClOrdID:   t.order.ClOrdID,
		Symbol:    t.order.Symbol,
		ExecType:  wire.ExecTypeFill,
		OrdStatus: wire.OrdStatusNew,
		Side:      t.order.Side,
		LeavesQty: t.order.Quantity,
		CumQty:    0,
		Text:      acceptText,
	}
	if err := t.reporter.Send(accept); err != nil {
		log.Error().Err(err).Str("order", t.order.ClOrdID).Msg("unable to send acceptance")
		return
	}

	candidate := t.findPriceAndQuantity()
	if candidate == nil {
		t.sendReject(false)
		return
	}

	session, err := t.ledger.Session(t.account)
	if err != nil {
		log.Error().Err(err).Str("order", t.order.ClOrdID).Msg("unable to open credit session")
		return
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("unable to close credit session")
		}
	}()

	notional := candidate.Notional()
	enough, err := session.HasSufficientCredit(notional)
	if err != nil {
		log.Error().Err(err).Str("order", t.order.ClOrdID).Msg("credit check failed")
		return
	}
	if !enough {
		t.sendReject(true)
		return
	}

	if err := session.Debit(notional); err != nil {
		log.Error().Err(err).Str("order", t.order.ClOrdID).Msg("credit debit failed")
		return
	}

	fill := wire.ExecutionReport{
		OrderID:   buildOrderID(),
		ExecID:    buildExecID(),
		ClOrdID:   t.order.ClOrdID,
		Symbol:    t.order.Symbol,
		ExecType:  wire.ExecTypeFill,
		OrdStatus: wire.OrdStatusFilled,
		Side:      t.order.Side,
		LeavesQty: 0,
		CumQty:    candidate.Quantity,
		LastQty:   candidate.Quantity,
		AvgPx:     candidate.Price,
		LastPx:    candidate.Price,
		Text:      candidate.MarketDataID,
	}
	if err := t.reporter.Send(fill); err != nil {
		log.Error().Err(err).Str("order", t.order.ClOrdID).Msg("unable to send fill")
		return
	}
	log.Info().
		Str("order", t.order.ClOrdID).
		Str("price", candidate.Price.String()).
		Int64("quantity", candidate.Quantity).
		Str("notional", notional.String()).
		Msg("order filled")
}

func (t *Task) sendReject(creditCheckFailed bool) {
	report := wire.ExecutionReport{
		OrderID:           buildOrderID(),
		ExecID:            buildExecID(),
		ClOrdID:           t.order.ClOrdID,
		Symbol:            t.order.Symbol,
		ExecType:          wire.ExecTypeRejected,
		OrdStatus:         wire.OrdStatusRejected,
		Side:              t.order.Side,
		LeavesQty:         t.order.Quantity,
		CumQty:            0,
		Text:              rejectText,
		CreditCheckFailed: creditCheckFailed,
	}
	if err := t.reporter.Send(report); err != nil {
		log.Error().Err(err).Str("order", t.order.ClOrdID).Msg("unable to send reject")
		return
	}
	log.Info().
		Str("order", t.order.ClOrdID).
		Bool("credit_check_failed", creditCheckFailed).
		Msg("order rejected")
}

// findPriceAndQuantity polls the repository for a fillable candidate. It
// returns nil when the order cannot fill within the attempt budget, or
// immediately for fill-or-kill orders that miss on their first look.
func (t *Task) findPriceAndQuantity() *common.PriceQuantity {
	switch t.order.OrdType {
	case common.LimitOrder:
		return t.findLimit()
	case common.StopOrder:
		return t.findStop()
	default:
		return t.findMarket()
	}
}

// findMarket always fills at the current top of book, unless the order is
// fill-or-kill and the displayed size cannot cover it.
func (t *Task) findMarket() *common.PriceQuantity {
	top := t.topOfBook()
	if t.order.Quantity > top.Quantity && t.order.TimeInForce == common.FillOrKill {
		return nil
	}
	return &common.PriceQuantity{
		Price:        top.Price,
		Quantity:     t.order.Quantity,
		MarketDataID: top.MarketDataID,
	}
}

// findLimit loops until the top of book trades at or through the limit price
// with enough displayed size. Fill-or-kill orders give up on the first miss.
func (t *Task) findLimit() *common.PriceQuantity {
	limit := t.order.LimitPrice
	for counter := 0; counter < t.attempts; counter++ {
		top := t.topOfBook()
		marketable := (t.order.Side == common.Buy && top.Price.Cmp(limit) <= 0) ||
			(t.order.Side == common.Sell && top.Price.Cmp(limit) >= 0)
		if marketable && top.Quantity >= t.order.Quantity {
			log.Info().
				Str("order", t.order.ClOrdID).
				Str("market_price", top.Price.String()).
				Str("limit_price", limit.String()).
				Int64("quantity", t.order.Quantity).
				Msg("found filling price for limit order")
			return &common.PriceQuantity{
				Price:        top.Price,
				Quantity:     t.order.Quantity,
				MarketDataID: top.MarketDataID,
			}
		}
		if t.order.TimeInForce == common.FillOrKill {
			return nil
		}
		log.Debug().
			Str("order", t.order.ClOrdID).
			Str("market_price", top.Price.String()).
			Str("limit_price", limit.String()).
			Msg("looping to find filling price for limit order")
		t.clock.Sleep(t.interval)
	}
	return nil
}

// findStop loops until the market trades through the stop price with enough
// displayed size. Stop orders are not fill-or-kill sensitive.
func (t *Task) findStop() *common.PriceQuantity {
	stop := t.order.StopPrice
	for counter := 0; counter < t.attempts; counter++ {
		top := t.topOfBook()
		triggered := (t.order.Side == common.Buy && top.Price.Cmp(stop) >= 0) ||
			(t.order.Side == common.Sell && top.Price.Cmp(stop) <= 0)
		if triggered && top.Quantity >= t.order.Quantity {
			log.Info().
				Str("order", t.order.ClOrdID).
				Str("market_price", top.Price.String()).
				Str("stop_price", stop.String()).
				Msg("found filling price for stop order")
			return &common.PriceQuantity{
				Price:        top.Price,
				Quantity:     t.order.Quantity,
				MarketDataID: top.MarketDataID,
			}
		}
		log.Debug().
			Str("order", t.order.ClOrdID).
			Str("market_price", top.Price.String()).
			Str("stop_price", stop.String()).
			Msg("looping to find filling price for stop order")
		t.clock.Sleep(t.interval)
	}
	return nil
}

// topOfBook samples the side of the current snapshot the order executes
// against: the ask for buys, the bid for sells.
func (t *Task) topOfBook() common.PriceQuantity {
	md := t.repo.Get(t.order.Symbol)
	switch t.order.Side {
	case common.Buy:
		return common.PriceQuantity{Price: md.Ask, Quantity: md.AskSize, MarketDataID: md.ID}
	default:
		return common.PriceQuantity{Price: md.Bid, Quantity: md.BidSize, MarketDataID: md.ID}
	}
}

func buildOrderID() string {
	return strconv.FormatInt(orderIDSequence.Add(1), 10)
}

func buildExecID() string {
	return uuid.NewString()
}
