package store

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungnir/internal/common"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	archive, err := Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func filledOrder(id string, typ common.OrderType) common.Order {
	order := common.NewOrder(id, "ABC", 200, common.Buy, typ, common.Day)
	order.LimitPrice = decimal.RequireFromString("10.05")
	order.Acknowledge()
	_ = order.ApplyFill(0, 200, decimal.RequireFromString("10.05"))
	order.MarketDataID = "md-1"
	order.StatusText = "md-1"
	return order
}

func TestArchive_OrderRoundTrip(t *testing.T) {
	archive := openTestArchive(t)
	order := filledOrder("order-1", common.LimitOrder)

	require.NoError(t, archive.PutOrder(order))

	doc, err := archive.Order("order-1")
	require.NoError(t, err)
	got := doc.Order

	// Field-for-field equality; only the store date is new.
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.Symbol, got.Symbol)
	assert.Equal(t, order.Quantity, got.Quantity)
	assert.Equal(t, order.Side, got.Side)
	assert.Equal(t, order.Type, got.Type)
	assert.Equal(t, order.TimeInForce, got.TimeInForce)
	assert.True(t, order.LimitPrice.Equal(got.LimitPrice))
	assert.Equal(t, order.Open, got.Open)
	assert.Equal(t, order.Executed, got.Executed)
	assert.True(t, order.AvgPrice.Equal(got.AvgPrice))
	assert.Equal(t, order.State, got.State)
	assert.Equal(t, order.RejectReason, got.RejectReason)
	assert.Equal(t, order.MarketDataID, got.MarketDataID)
	assert.Equal(t, order.StatusText, got.StatusText)
	assert.True(t, order.CreatedAt.Equal(got.CreatedAt))
	assert.False(t, doc.StoreDate.IsZero())
}

func TestArchive_PutOrderIsUpsert(t *testing.T) {
	archive := openTestArchive(t)
	order := filledOrder("order-1", common.LimitOrder)

	require.NoError(t, archive.PutOrder(order))
	order.StatusText = "amended"
	require.NoError(t, archive.PutOrder(order))

	orders, err := archive.Orders(nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "amended", orders[0].StatusText)
}

func TestArchive_OrdersFilterByType(t *testing.T) {
	archive := openTestArchive(t)
	require.NoError(t, archive.PutOrder(filledOrder("order-1", common.LimitOrder)))
	require.NoError(t, archive.PutOrder(filledOrder("order-2", common.MarketOrder)))
	require.NoError(t, archive.PutOrder(filledOrder("order-3", common.LimitOrder)))

	limit := common.LimitOrder
	orders, err := archive.Orders(&limit)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, common.LimitOrder, o.Type)
	}

	all, err := archive.Orders(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestArchive_OrdersComeBackOldestFirst(t *testing.T) {
	archive := openTestArchive(t)
	for _, id := range []string{"order-b", "order-a", "order-c"} {
		require.NoError(t, archive.PutOrder(filledOrder(id, common.LimitOrder)))
		time.Sleep(time.Millisecond)
	}

	orders, err := archive.Orders(nil)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "order-b", orders[0].ID)
	assert.Equal(t, "order-a", orders[1].ID)
	assert.Equal(t, "order-c", orders[2].ID)
}

func TestArchive_MarketDataFilterBySymbol(t *testing.T) {
	archive := openTestArchive(t)
	batch := []common.MarketData{
		{ID: "md-1", Symbol: "ABC", Bid: decimal.RequireFromString("10.00"), Ask: decimal.RequireFromString("10.05"), BidSize: 500, AskSize: 500, QuoteTime: time.Now()},
		{ID: "md-2", Symbol: "DEF", Bid: decimal.RequireFromString("20.00"), Ask: decimal.RequireFromString("20.10"), BidSize: 300, AskSize: 300, QuoteTime: time.Now()},
		{ID: "md-3", Symbol: "ABC", Bid: decimal.RequireFromString("10.10"), Ask: decimal.RequireFromString("10.15"), BidSize: 400, AskSize: 400, QuoteTime: time.Now()},
	}
	require.NoError(t, archive.PutMarketData(batch))

	symbol := "ABC"
	snapshots, err := archive.MarketData(&symbol)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	for _, md := range snapshots {
		assert.Equal(t, "ABC", md.Symbol)
	}

	all, err := archive.MarketData(nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestArchive_IndexSurvivesReopen(t *testing.T) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)

	archive, err := Open(db)
	require.NoError(t, err)
	require.NoError(t, archive.PutOrder(filledOrder("order-1", common.LimitOrder)))

	// Rebuild the index from the same keyspace.
	reopened, err := Open(db)
	require.NoError(t, err)
	defer reopened.Close()

	orders, err := reopened.Orders(nil)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)
}
