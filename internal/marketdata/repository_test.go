package marketdata

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gungnir/internal/common"
)

func snapshot(id, symbol, bid, ask string, bidSize, askSize int64) common.MarketData {
	return common.MarketData{
		ID:        id,
		Symbol:    symbol,
		Bid:       decimal.RequireFromString(bid),
		Ask:       decimal.RequireFromString(ask),
		BidSize:   bidSize,
		AskSize:   askSize,
		QuoteTime: time.Now(),
	}
}

func TestRepository_UpsertReplacesPerSymbol(t *testing.T) {
	repo := NewRepository()

	repo.Upsert([]common.MarketData{
		snapshot("md-1", "ABC", "10.00", "10.05", 500, 500),
		snapshot("md-2", "DEF", "20.00", "20.10", 300, 300),
	})
	repo.Upsert([]common.MarketData{
		snapshot("md-3", "ABC", "10.10", "10.15", 400, 400),
	})

	abc := repo.Get("ABC")
	assert.Equal(t, "md-3", abc.ID)
	assert.True(t, decimal.RequireFromString("10.10").Equal(abc.Bid))

	// DEF keeps its last-known value.
	def := repo.Get("DEF")
	assert.Equal(t, "md-2", def.ID)
	assert.Equal(t, 2, repo.Len())
}

func TestRepository_GetUnknownSymbolReturnsPlaceholder(t *testing.T) {
	repo := NewRepository()

	md := repo.Get("XYZ")
	assert.Equal(t, "XYZ", md.Symbol)
	assert.True(t, md.Bid.IsPositive())
	assert.True(t, md.Ask.GreaterThan(md.Bid))
	assert.Positive(t, md.BidSize)
	assert.Positive(t, md.AskSize)

	// Deterministic: repeated lookups agree on prices.
	again := repo.Get("XYZ")
	assert.True(t, md.Bid.Equal(again.Bid))
	assert.True(t, md.Ask.Equal(again.Ask))
}

func TestRepository_ConcurrentReadersAndWriters(t *testing.T) {
	repo := NewRepository()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				repo.Upsert([]common.MarketData{
					snapshot(fmt.Sprintf("md-%d-%d", n, j), "ABC", "10.00", "10.05", 500, 500),
				})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				md := repo.Get("ABC")
				assert.Equal(t, "ABC", md.Symbol)
			}
		}()
	}
	wg.Wait()
}
