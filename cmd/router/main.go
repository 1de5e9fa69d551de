package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/bus"
	"gungnir/internal/config"
	"gungnir/internal/router"
	"gungnir/internal/store"
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

	// Archive for terminal orders.
	archiveDB, err := pebble.Open(cfg.Store.ArchivePath, &pebble.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open archive store")
	}
	archive, err := store.Open(archiveDB)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to open archive")
	}
	defer archive.Close()

	// Downstream feed of terminal order snapshots.
	executedWriter := bus.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.ExecutedOrdersTopic)
	defer executedWriter.Close()
	publisher := bus.NewOrderPublisher(executedWriter)

	tracker := router.NewTracker()

	var rtr *router.Router
	initiator := wire.NewInitiator(
		cfg.Router.VenueAddress,
		wire.Credentials{Username: cfg.Venue.Username, Password: cfg.Venue.Password},
		func(report wire.ExecutionReport) {
			rtr.HandleReport(report)
		},
	)
	rtr = router.New(tracker, initiator, publisher, archive)

	t, ctx := tomb.WithContext(ctx)
	t.Go(func() error {
		return initiator.Run(t)
	})

	intake := bus.NewReader(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.GroupID)
	t.Go(func() error {
		return intake.Run(t, rtr.HandleIntake)
	})

	log.Info().Str("venue", cfg.Router.VenueAddress).Msg("router running")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("router exited with error")
	}
}
