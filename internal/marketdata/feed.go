package marketdata

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"gungnir/internal/bus"
	"gungnir/internal/common"
)

// Feed subscribes to the market data topic and keeps the repository current.
// Each message is a JSON batch of snapshots.
type Feed struct {
	reader *bus.Reader
	repo   *Repository
}

func NewFeed(reader *bus.Reader, repo *Repository) *Feed {
	return &Feed{reader: reader, repo: repo}
}

func (f *Feed) Run(t *tomb.Tomb) error {
	return f.reader.Run(t, f.handle)
}

func (f *Feed) handle(_, value []byte) error {
	var batch []common.MarketData
	if err := json.Unmarshal(value, &batch); err != nil {
		return fmt.Errorf("unable to decode market data batch: %w", err)
	}

	f.repo.Upsert(batch)
	log.Debug().Int("snapshots", len(batch)).Msg("market data batch applied")
	return nil
}
