package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lv-paperbroker/internal/model"
)

func TestStoreLookup(t *testing.T) {
	t.Parallel()

	s := NewStore(NewBus())
	s.Set(model.Quote{Symbol: "IT", Name: "IT Corp", Price: 10_000, Currency: "KRW"})

	q, err := s.Lookup("IT")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), q.Price)

	_, err = s.Lookup("NOPE")
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestStoreRejectsStaleNonPositivePrice(t *testing.T) {
	t.Parallel()

	s := NewStore(NewBus())
	s.Set(model.Quote{Symbol: "IT", Price: 0, Currency: "KRW"})
	_, err := s.Lookup("IT")
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestStoreDeleteAndAll(t *testing.T) {
	t.Parallel()

	s := NewStore(NewBus())
	s.Set(model.Quote{Symbol: "IT", Price: 10_000, Currency: "KRW"})
	s.Set(model.Quote{Symbol: "EL", Price: 20_000, Currency: "KRW"})

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "EL", all[0].Symbol)
	assert.Equal(t, "IT", all[1].Symbol)

	s.Delete("IT")
	_, err := s.Lookup("IT")
	assert.ErrorIs(t, err, ErrNoQuote)
}

func TestSetPublishesQuoteEvent(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	s := NewStore(bus)
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	s.Set(model.Quote{Symbol: "IT", Price: 10_000, Currency: "KRW"})

	select {
	case evt := <-events:
		assert.Equal(t, "quote", evt.Type)
		q, ok := evt.Data.(model.Quote)
		require.True(t, ok)
		assert.Equal(t, "IT", q.Symbol)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestBusDropsSlowSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	events := bus.Subscribe()
	defer bus.Unsubscribe(events)

	// Publishing past the buffer must not block.
	for i := 0; i < 200; i++ {
		bus.Publish(Event{Type: "quote"})
	}
	assert.Len(t, events, 100)
}
