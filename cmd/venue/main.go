package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/bus"
	"gungnir/internal/config"
	"gungnir/internal/credit"
	"gungnir/internal/engine"
	"gungnir/internal/marketdata"
	"gungnir/internal/wire"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
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

	// Credit ledger.
	ledgerDB, err := pebble.Open(cfg.Store.LedgerPath, &pebble.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open ledger store")
	}
	defer ledgerDB.Close()

	ledger := credit.OpenPebbleLedger(ledgerDB)
	for _, account := range cfg.Venue.Accounts {
		balance, err := decimal.NewFromString(account.Balance)
		if err != nil {
			log.Fatal().Err(err).Str("account", account.Name).Msg("invalid account balance")
		}
		if err := ledger.SetBalance(account.Name, balance); err != nil {
			log.Fatal().Err(err).Str("account", account.Name).Msg("unable to seed account")
		}
	}

	// Market data repository, fed from the market data topic.
	repo := marketdata.NewRepository()
	feed := marketdata.NewFeed(
		bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.MarketDataTopic, cfg.Kafka.GroupID+"-marketdata"),
		repo,
	)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return feed.Run(t)
	})

	// One matching task per accepted order.
	handler := func(msg wire.NewOrderSingle, sess *wire.Session) {
		task := engine.NewTask(msg, cfg.Venue.Account, repo, ledger, sess).
			WithClock(engine.SystemClock, cfg.Matching.MaxAttempts, cfg.Matching.ParsedInterval)
		t.Go(func() error {
			task.Run()
			return nil
		})
	}

	acceptor := wire.NewAcceptor(
		cfg.Venue.ListenAddress,
		cfg.Venue.ListenPort,
		wire.Credentials{Username: cfg.Venue.Username, Password: cfg.Venue.Password},
		handler,
	)

	t.Go(func() error {
		return acceptor.Run(ctx)
	})

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("venue exited with error")
	}
}
