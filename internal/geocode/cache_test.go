package geocode

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	searchCalls  int
	reverseCalls int
	results      []Result
	err          error
}

func (m *countingGeocoder) Search(_ context.Context, query string) ([]Result, error) {
	m.searchCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *countingGeocoder) Reverse(_ context.Context, _, _ float64) (string, error) {
	m.reverseCalls++
	if m.err != nil {
		return "", m.err
	}
	return "Kumasi, Ashanti Region", nil
}

// --- Cache tests ---

func TestCache_SearchHitIgnoresCase(t *testing.T) {
	inner := &countingGeocoder{results: []Result{{PlaceName: "Tamale", Confidence: 0.8}}}
	cached := NewCache(inner, 10, time.Hour, clockwork.NewFakeClock())

	r1, err := cached.Search(context.Background(), "Tamale")
	require.NoError(t, err)
	r2, err := cached.Search(context.Background(), "  tamale ")
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.searchCalls, "should only call inner once")
}

func TestCache_ReverseHit(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCache(inner, 10, time.Hour, clockwork.NewFakeClock())

	_, err := cached.Reverse(context.Background(), 6.68851, -1.62441)
	require.NoError(t, err)
	name, err := cached.Reverse(context.Background(), 6.68849, -1.62439)
	require.NoError(t, err)

	assert.Equal(t, "Kumasi, Ashanti Region", name)
	assert.Equal(t, 1, inner.reverseCalls)
}

func TestCache_EntriesExpire(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &countingGeocoder{results: []Result{{PlaceName: "Ho"}}}
	cached := NewCache(inner, 10, time.Hour, clock)

	_, _ = cached.Search(context.Background(), "Ho")
	clock.Advance(59 * time.Minute)
	_, _ = cached.Search(context.Background(), "Ho")
	assert.Equal(t, 1, inner.searchCalls)

	clock.Advance(time.Minute)
	_, _ = cached.Search(context.Background(), "Ho")
	assert.Equal(t, 2, inner.searchCalls, "expired entry should be refetched")
}

func TestCache_ErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{err: ErrNotFound}
	cached := NewCache(inner, 10, time.Hour, clockwork.NewFakeClock())

	_, err := cached.Search(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cached.Search(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, inner.searchCalls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3, time.Hour, clockwork.NewFakeClock())

	c.put("a", "Accra")
	c.put("b", "Bolgatanga")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "Accra", v)

	_, ok = c.get("c")
	assert.False(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRUCache[string](2, time.Hour, clockwork.NewFakeClock())

	c.put("a", "Accra")
	c.put("b", "Bolgatanga")
	c.get("a")
	c.put("c", "Cape Coast")

	_, ok := c.get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_UpdateRefreshesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newLRUCache[string](2, time.Hour, clock)

	c.put("a", "Accra")
	clock.Advance(50 * time.Minute)
	c.put("a", "Accra Metro")
	clock.Advance(50 * time.Minute)

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "Accra Metro", v)
	assert.Equal(t, 1, c.size())
}
