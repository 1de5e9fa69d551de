// Package store persists executed orders and market data batches. Writes are
// idempotent upserts keyed by identifier/symbol; reads support optional
// filtering. Durability beyond the store itself is not guaranteed here.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"gungnir/internal/common"
)

const (
	orderKeyPrefix      = "order/"
	marketDataKeyPrefix = "md/"
)

// OrderDocument is the stored form of an order; StoreDate is stamped on
// every write and is the only field that does not round-trip.
type OrderDocument struct {
	Order     common.Order `json:"order"`
	StoreDate time.Time    `json:"store_date"`
}

type indexEntry struct {
	storeDate time.Time
	id        string
}

// Archive is a pebble-backed document store with a creation-time-ordered
// index over orders, so scans come back oldest first.
type Archive struct {
	db *pebble.DB

	mu    sync.Mutex
	index *btree.BTreeG[indexEntry]
}

// Open wraps the pebble keyspace and rebuilds the time index from the
// existing order documents.
func Open(db *pebble.DB) (*Archive, error) {
	a := &Archive{
		db: db,
		index: btree.NewBTreeG(func(x, y indexEntry) bool {
			if !x.storeDate.Equal(y.storeDate) {
				return x.storeDate.Before(y.storeDate)
			}
			return x.id < y.id
		}),
	}

	iter, err := db.NewIter(prefixBounds(orderKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("unable to scan order documents: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var doc OrderDocument
		if err := json.Unmarshal(iter.Value(), &doc); err != nil {
			log.Warn().Str("key", string(iter.Key())).Err(err).Msg("skipping corrupt order document")
			continue
		}
		a.index.Set(indexEntry{storeDate: doc.StoreDate, id: doc.Order.ID})
	}
	return a, nil
}

// PutOrder upserts the order document keyed by its identifier.
func (a *Archive) PutOrder(order common.Order) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := []byte(orderKeyPrefix + order.ID)

	// Replacing a document has to retire the old index entry; the store
	// date changes on every write.
	if prev, closer, err := a.db.Get(key); err == nil {
		var doc OrderDocument
		if err := json.Unmarshal(prev, &doc); err == nil {
			a.index.Delete(indexEntry{storeDate: doc.StoreDate, id: doc.Order.ID})
		}
		closer.Close()
	}

	doc := OrderDocument{Order: order, StoreDate: time.Now()}
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("unable to encode order %s: %w", order.ID, err)
	}
	if err := a.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("unable to store order %s: %w", order.ID, err)
	}

	a.index.Set(indexEntry{storeDate: doc.StoreDate, id: order.ID})
	log.Debug().Str("order", order.ID).Msg("order archived")
	return nil
}

// Order reads one stored order document by identifier.
func (a *Archive) Order(id string) (OrderDocument, error) {
	value, closer, err := a.db.Get([]byte(orderKeyPrefix + id))
	if err != nil {
		return OrderDocument{}, fmt.Errorf("unable to read order %s: %w", id, err)
	}
	defer closer.Close()

	var doc OrderDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return OrderDocument{}, fmt.Errorf("corrupt order document %s: %w", id, err)
	}
	return doc, nil
}

// Orders returns stored orders in store-date order, optionally filtered by
// order type.
func (a *Archive) Orders(typ *common.OrderType) ([]common.Order, error) {
	a.mu.Lock()
	entries := make([]indexEntry, 0, a.index.Len())
	a.index.Scan(func(e indexEntry) bool {
		entries = append(entries, e)
		return true
	})
	a.mu.Unlock()

	started := time.Now()
	result := make([]common.Order, 0, len(entries))
	for _, e := range entries {
		doc, err := a.Order(e.id)
		if err != nil {
			return nil, err
		}
		if typ != nil && doc.Order.Type != *typ {
			continue
		}
		result = append(result, doc.Order)
	}
	log.Debug().Dur("elapsed", time.Since(started)).Int("orders", len(result)).Msg("orders retrieved")
	return result, nil
}

// PutMarketData upserts a batch of snapshots keyed by symbol and snapshot id.
func (a *Archive) PutMarketData(batch []common.MarketData) error {
	b := a.db.NewBatch()
	defer b.Close()

	for _, md := range batch {
		value, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("unable to encode market data %s: %w", md.ID, err)
		}
		key := marketDataKey(md.Symbol, md.ID)
		if err := b.Set([]byte(key), value, nil); err != nil {
			return fmt.Errorf("unable to batch market data %s: %w", md.ID, err)
		}
	}
	if err := a.db.Apply(b, pebble.Sync); err != nil {
		return fmt.Errorf("unable to store market data batch: %w", err)
	}
	log.Debug().Int("snapshots", len(batch)).Msg("market data batch archived")
	return nil
}

// MarketData returns stored snapshots, optionally restricted to one symbol.
func (a *Archive) MarketData(symbol *string) ([]common.MarketData, error) {
	prefix := marketDataKeyPrefix
	if symbol != nil {
		prefix = marketDataKeyPrefix + *symbol + "/"
	}

	iter, err := a.db.NewIter(prefixBounds(prefix))
	if err != nil {
		return nil, fmt.Errorf("unable to scan market data: %w", err)
	}
	defer iter.Close()

	var result []common.MarketData
	for iter.First(); iter.Valid(); iter.Next() {
		var md common.MarketData
		if err := json.Unmarshal(iter.Value(), &md); err != nil {
			return nil, fmt.Errorf("corrupt market data document %s: %w", string(iter.Key()), err)
		}
		result = append(result, md)
	}
	return result, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func marketDataKey(symbol, id string) string {
	var sb strings.Builder
	sb.WriteString(marketDataKeyPrefix)
	sb.WriteString(symbol)
	sb.WriteString("/")
	sb.WriteString(id)
	return sb.String()
}

// prefixBounds turns a key prefix into pebble iteration bounds.
func prefixBounds(prefix string) *pebble.IterOptions {
	upper := []byte(prefix)
	upper = append(upper[:len(upper):len(upper)], 0xff)
	return &pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upper,
	}
}
