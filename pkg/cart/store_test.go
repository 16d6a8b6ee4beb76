package cart

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pizza() Item  { return Item{ItemRef: "p1", Name: "Pizza", Price: 10} }
func burger() Item { return Item{ItemRef: "b1", Name: "Burger", Price: 7.5} }

func TestStore_AddItem_SameRefAccumulates(t *testing.T) {
	t.Parallel()

	s := NewStore()
	quantities := []int{2, 1, 4, 3}
	for _, q := range quantities {
		s.AddItem(pizza(), q)
	}

	require.Equal(t, 1, s.Len())
	item, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 10, item.Quantity)
	assert.Equal(t, 100.0, s.Total())
}

func TestStore_AddItem_DefaultsToOne(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddItem(burger(), 0)

	item, ok := s.Get("b1")
	require.True(t, ok)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, 7.5, s.Total())
}

func TestStore_RemoveItem_Idempotent(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddItem(pizza(), 2)
	s.AddItem(burger(), 1)

	s.RemoveItem("p1")
	s.RemoveItem("p1")
	s.RemoveItem("missing")

	require.Equal(t, 1, s.Len())
	assert.Equal(t, 7.5, s.Total())
}

func TestStore_UpdateQuantity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ref       string
		qty       int
		wantLen   int
		wantTotal float64
	}{
		{name: "absolute set", ref: "p1", qty: 5, wantLen: 2, wantTotal: 57.5},
		{name: "zero removes", ref: "p1", qty: 0, wantLen: 1, wantTotal: 7.5},
		{name: "negative removes", ref: "b1", qty: -3, wantLen: 1, wantTotal: 20},
		{name: "absent ref is no-op", ref: "zzz", qty: 9, wantLen: 2, wantTotal: 27.5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewStore()
			s.AddItem(pizza(), 2)
			s.AddItem(burger(), 1)

			s.UpdateQuantity(tt.ref, tt.qty)

			assert.Equal(t, tt.wantLen, s.Len())
			assert.Equal(t, tt.wantTotal, s.Total())
		})
	}
}

func TestStore_UpdateQuantityZeroEqualsRemove(t *testing.T) {
	t.Parallel()

	a := NewStore(Item{ItemRef: "p1", Price: 10, Quantity: 2}, Item{ItemRef: "b1", Price: 3, Quantity: 1})
	b := NewStore(a.Items()...)

	a.UpdateQuantity("p1", 0)
	b.RemoveItem("p1")

	assert.Equal(t, b.Items(), a.Items())
	assert.Equal(t, b.Total(), a.Total())
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()

	s := NewStore(pizza())
	s.Clear()

	assert.Zero(t, s.Len())
	assert.Zero(t, s.Total())
	assert.Empty(t, s.Items())
}

func TestStore_TotalRoundsToCents(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddItem(Item{ItemRef: "d1", Price: 0.1}, 3)

	assert.Equal(t, 0.3, s.Total())
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AddItem(pizza(), 1)

	items := s.Items()
	items[0].Quantity = 100

	item, _ := s.Get("p1")
	assert.Equal(t, 1, item.Quantity)
}

func TestStore_ConcurrentAdds(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddItem(pizza(), 1)
		}()
	}
	wg.Wait()

	item, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 50, item.Quantity)
	assert.Equal(t, 500.0, s.Total())
}
