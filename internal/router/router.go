// Package router bridges the intake queue and the venue session: it forwards
// accepted orders over the wire protocol, folds asynchronous execution
// reports into the tracked order records, and republishes terminal outcomes
// downstream.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"gungnir/internal/common"
	"gungnir/internal/wire"
)

// Sender is the router's view of the venue session.
type Sender interface {
	LoggedOn() bool
	Send(m wire.NewOrderSingle) error
}

// Publisher pushes terminal order snapshots to the executed-orders topic.
type Publisher interface {
	PublishOrder(ctx context.Context, order common.Order, status string) error
}

// Archiver persists terminal orders for audit reads.
type Archiver interface {
	PutOrder(order common.Order) error
}

type Router struct {
	tracker   *Tracker
	sender    Sender
	publisher Publisher
	archive   Archiver
}

func New(tracker *Tracker, sender Sender, publisher Publisher, archive Archiver) *Router {
	return &Router{
		tracker:   tracker,
		sender:    sender,
		publisher: publisher,
		archive:   archive,
	}
}

// HandleIntake decodes one order submission off the intake queue, registers
// it and forwards it to the venue. Delivery is best-effort at-most-once: with
// no logged-on session the submission is skipped outright, never retried.
func (r *Router) HandleIntake(_, value []byte) error {
	var in common.Order
	if err := json.Unmarshal(value, &in); err != nil {
		return fmt.Errorf("unable to decode order submission: %w", err)
	}

	order := common.NewOrder(in.ID, in.Symbol, in.Quantity, in.Side, in.Type, in.TimeInForce)
	order.LimitPrice = in.LimitPrice
	order.StopPrice = in.StopPrice
	if err := order.Validate(); err != nil {
		return fmt.Errorf("rejecting submission %s: %w", in.ID, err)
	}

	if !r.sender.LoggedOn() {
		log.Warn().Str("order", order.ID).Msg("no logged-on session, skipping order")
		return nil
	}

	if err := r.tracker.Add(order); err != nil {
		return fmt.Errorf("unable to register order %s: %w", order.ID, err)
	}

	msg := wire.NewOrderSingle{
		ClOrdID:      order.ID,
		Symbol:       order.Symbol,
		Side:         order.Side,
		OrdType:      order.Type,
		TimeInForce:  order.TimeInForce,
		HandlInst:    '1',
		Quantity:     order.Quantity,
		TransactTime: time.Now(),
	}
	switch order.Type {
	case common.LimitOrder:
		msg.LimitPrice = order.LimitPrice
	case common.StopOrder:
		msg.StopPrice = order.StopPrice
	}

	if err := r.sender.Send(msg); err != nil {
		// The session dropped between the logon check and the write. The
		// order stays registered in its pending state; callers treat a
		// stuck order as a liveness concern.
		log.Warn().Err(err).Str("order", order.ID).Msg("unable to send order")
		return nil
	}

	log.Info().Str("order", order.ID).Str("symbol", order.Symbol).Msg("sent order")
	return nil
}

// HandleReport folds one execution report into the tracked order record and
// republishes terminal outcomes. Reports for unknown identifiers are dropped.
func (r *Router) HandleReport(report wire.ExecutionReport) {
	order, ok := r.tracker.Get(report.ClOrdID)
	if !ok {
		log.Warn().Str("order", report.ClOrdID).Msg("execution report for unknown order, dropping")
		return
	}

	if report.Text != "" {
		order.StatusText = report.Text
	}

	switch report.OrdStatus {
	case wire.OrdStatusNew:
		order.Acknowledge()

	case wire.OrdStatusRejected:
		reason := common.RejectNoLiquidity
		if report.CreditCheckFailed {
			reason = common.RejectCreditCheck
		}
		if err := order.Reject(reason); err != nil {
			log.Warn().Err(err).Str("order", order.ID).Msg("ignoring reject report")
			return
		}
		r.publishTerminal(order, "REJECTED")

	case wire.OrdStatusCanceled, wire.OrdStatusDoneForDay:
		if err := order.Cancel(); err != nil {
			log.Warn().Err(err).Str("order", order.ID).Msg("ignoring cancel report")
			return
		}
		// Canceled orders are not republished downstream.

	case wire.OrdStatusFilled:
		if err := order.ApplyFill(report.LeavesQty, report.CumQty, report.AvgPx); err != nil {
			log.Warn().Err(err).Str("order", order.ID).Msg("ignoring fill report")
			return
		}
		if order.Quantity-report.LeavesQty > 0 {
			order.MarketDataID = report.Text
		}
		if order.Filled() {
			r.publishTerminal(order, "FILLED")
		}

	default:
		log.Warn().
			Int("status", int(report.OrdStatus)).
			Str("order", order.ID).
			Msg("unhandled order status")
	}

	r.tracker.Update(order)
}

func (r *Router) publishTerminal(order common.Order, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.publisher.PublishOrder(ctx, order, status); err != nil {
		log.Error().Err(err).Str("order", order.ID).Str("status", status).Msg("unable to publish order")
	}
	if r.archive != nil {
		if err := r.archive.PutOrder(order); err != nil {
			log.Error().Err(err).Str("order", order.ID).Msg("unable to archive order")
		}
	}
}
