package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the latest top-of-book snapshot for a symbol.
type MarketData struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	BidSize   int64           `json:"bid_size"`
	AskSize   int64           `json:"ask_size"`
	QuoteTime time.Time       `json:"quote_time"`
}

func (md MarketData) String() string {
	return fmt.Sprintf("MarketData{ID: %s, Symbol: %s, Bid: %s/%d, Ask: %s/%d, QuoteTime: %v}",
		md.ID, md.Symbol,
		md.Bid.String(), md.BidSize,
		md.Ask.String(), md.AskSize,
		md.QuoteTime.Format(time.RFC3339))
}

// PriceQuantity is a transient matching candidate: the price and size taken
// from one side of a snapshot, tagged with the snapshot that produced it.
type PriceQuantity struct {
	Price        decimal.Decimal
	Quantity     int64
	MarketDataID string
}

// Notional is the candidate's total value, used to size the credit check.
func (pq PriceQuantity) Notional() decimal.Decimal {
	return pq.Price.Mul(decimal.NewFromInt(pq.Quantity))
}
