package router

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungnir/internal/common"
)

func TestTracker_AddGetUpdate(t *testing.T) {
	tracker := NewTracker()
	order := common.NewOrder("order-1", "ABC", 200, common.Buy, common.MarketOrder, common.Day)

	require.NoError(t, tracker.Add(order))

	got, ok := tracker.Get("order-1")
	require.True(t, ok)
	assert.Equal(t, order.ID, got.ID)

	got.Acknowledge()
	tracker.Update(got)

	updated, ok := tracker.Get("order-1")
	require.True(t, ok)
	assert.Equal(t, common.StateAcknowledged, updated.State)
}

func TestTracker_DuplicateAddFails(t *testing.T) {
	tracker := NewTracker()
	order := common.NewOrder("order-1", "ABC", 200, common.Buy, common.MarketOrder, common.Day)

	require.NoError(t, tracker.Add(order))
	assert.ErrorIs(t, tracker.Add(order), ErrDuplicateOrder)
	assert.Equal(t, 1, tracker.Len())
}

func TestTracker_GetUnknown(t *testing.T) {
	tracker := NewTracker()
	_, ok := tracker.Get("nope")
	assert.False(t, ok)
}

func TestTracker_ConcurrentDistinctOrders(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("order-%d", n)
			order := common.NewOrder(id, "ABC", 100, common.Buy, common.MarketOrder, common.Day)
			assert.NoError(t, tracker.Add(order))
			got, ok := tracker.Get(id)
			assert.True(t, ok)
			got.Acknowledge()
			tracker.Update(got)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, tracker.Len())
}
