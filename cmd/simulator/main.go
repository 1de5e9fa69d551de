// The simulator feeds the pipeline for local runs: it publishes random order
// submissions to the intake queue and random top-of-book snapshots to the
// market data topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"gungnir/internal/bus"
	"gungnir/internal/common"
	"gungnir/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	symbolsArg := flag.String("symbols", "ABC,DEF,GHI", "Comma-separated symbols to quote and trade")
	orderEvery := flag.Duration("order-interval", 2*time.Second, "Delay between generated orders")
	quoteEvery := flag.Duration("quote-interval", time.Second, "Delay between market data batches")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load config")
	}

	symbols := strings.Split(*symbolsArg, ",")

	orders := bus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic)
	defer orders.Close()
	quotes := bus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.MarketDataTopic)
	defer quotes.Close()

	go publishQuotes(ctx, quotes, symbols, *quoteEvery)
	publishOrders(ctx, orders, symbols, *orderEvery)
}

func publishOrders(ctx context.Context, w *bus.Writer, symbols []string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		order := randomOrder(symbols)
		value, err := json.Marshal(order)
		if err != nil {
			log.Error().Err(err).Msg("unable to encode order")
			continue
		}
		if err := w.Publish(ctx, []byte(order.ID), value); err != nil {
			log.Error().Err(err).Msg("unable to publish order")
			continue
		}
		log.Info().
			Str("order", order.ID).
			Str("symbol", order.Symbol).
			Str("type", order.Type.String()).
			Msg("order submitted")
	}
}

func publishQuotes(ctx context.Context, w *bus.Writer, symbols []string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		batch := make([]common.MarketData, 0, len(symbols))
		for _, symbol := range symbols {
			batch = append(batch, randomSnapshot(symbol))
		}
		value, err := json.Marshal(batch)
		if err != nil {
			log.Error().Err(err).Msg("unable to encode market data batch")
			continue
		}
		if err := w.Publish(ctx, []byte("batch"), value); err != nil {
			log.Error().Err(err).Msg("unable to publish market data batch")
		}
	}
}

func randomOrder(symbols []string) common.Order {
	types := []common.OrderType{common.MarketOrder, common.LimitOrder, common.StopOrder}
	tifs := []common.TimeInForce{common.Day, common.GoodTillCancel, common.FillOrKill}

	order := common.NewOrder(
		uuid.NewString(),
		symbols[rand.Intn(len(symbols))],
		int64(rand.Intn(900)+100),
		common.Side(rand.Intn(2)),
		types[rand.Intn(len(types))],
		tifs[rand.Intn(len(tifs))],
	)
	price := decimal.New(int64(rand.Intn(9000)+1000), -2)
	switch order.Type {
	case common.LimitOrder:
		order.LimitPrice = price
	case common.StopOrder:
		order.StopPrice = price
	}
	return order
}

func randomSnapshot(symbol string) common.MarketData {
	bid := decimal.New(int64(rand.Intn(9000)+1000), -2)
	spread := decimal.New(int64(rand.Intn(10)+1), -2)
	return common.MarketData{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Bid:       bid,
		Ask:       bid.Add(spread),
		BidSize:   int64(rand.Intn(900) + 100),
		AskSize:   int64(rand.Intn(900) + 100),
		QuoteTime: time.Now(),
	}
}
