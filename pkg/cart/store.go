// Package cart holds the in-memory cart used on both sides of the cart
// synchronization boundary: the API client keeps its pre-login selections in a
// Store, and the server merges those selections into the persisted cart.
package cart

import (
	"math"
	"sync"
)

// Item is one cart line. ItemRef is the external catalog identifier and the
// identity used for merging; Price is the unit price captured when the item was added.
type Item struct {
	ItemRef  string  `json:"itemRef"`
	Name     string  `json:"name"`
	Image    string  `json:"image,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type Store struct {
	mu    sync.Mutex
	items []Item
	total float64
}

func NewStore(items ...Item) *Store {
	s := &Store{}
	s.Replace(items)
	return s
}

// AddItem increments the quantity of an existing line or appends a new one.
// A qty below one adds a single unit.
func (s *Store) AddItem(item Item, qty int) {
	if qty < 1 {
		qty = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(item.ItemRef); i >= 0 {
		s.items[i].Quantity += qty
	} else {
		item.Quantity = qty
		s.items = append(s.items, item)
	}
	s.recompute()
}

func (s *Store) RemoveItem(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ref)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.recompute()
}

// UpdateQuantity sets the quantity of a line. Anything below one removes the line.
func (s *Store) UpdateQuantity(ref string, qty int) {
	if qty < 1 {
		s.RemoveItem(ref)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(ref); i >= 0 {
		s.items[i].Quantity = qty
		s.recompute()
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.total = 0
}

// Replace adopts items as the new cart content, collapsing duplicate refs.
func (s *Store) Replace(items []Item) {
	merged := Merge(nil, items)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = merged
	s.recompute()
}

func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Get(ref string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(ref); i >= 0 {
		return s.items[i], true
	}
	return Item{}, false
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Store) indexOf(ref string) int {
	for i := range s.items {
		if s.items[i].ItemRef == ref {
			return i
		}
	}
	return -1
}

func (s *Store) recompute() {
	s.total = Total(s.items)
}

// Total returns the sum of price*quantity rounded to cents.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}
	return RoundMoney(sum)
}

func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
