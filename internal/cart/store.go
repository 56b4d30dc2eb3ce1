// Package cart holds the cart line collection and its persisted mirror.
package cart

import (
	"sync"

	"github.com/utafrali/winestore/internal/domain"
)

// Outcome is the result kind of Store.Add.
type Outcome string

const (
	Added    Outcome = "added"
	Merged   Outcome = "merged"
	Rejected Outcome = "rejected"
)

// Reason explains a Rejected outcome.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMissingVariant   Reason = "missing_variant"
	ReasonQuantityBelowOne Reason = "quantity_below_one"
	ReasonInvalidQuantity  Reason = "invalid_quantity"
)

// Result reports what Add did. Item is the resulting line for Added and
// Merged, and the offered item for Rejected. PreviousVariantID is the
// variant the line carried before a merge.
type Result struct {
	Outcome           Outcome
	Reason            Reason
	Item              domain.CartItem
	PreviousVariantID int64
}

// Changed reports whether the collection was modified.
func (r Result) Changed() bool {
	return r.Outcome == Added || r.Outcome == Merged
}

// Listener receives a copy of the lines after every change.
type Listener func(items []domain.CartItem)

// Store owns the ordered cart lines. Lines are unique by product ID and
// never hold a quantity below one. A Store is safe for concurrent use;
// listeners run synchronously under the store lock and must not call back
// into it.
type Store struct {
	mu        sync.Mutex
	items     []domain.CartItem
	listeners map[int]Listener
	nextSub   int
}

// NewStore creates a store holding items in order.
func NewStore(items ...domain.CartItem) *Store {
	s := &Store{listeners: make(map[int]Listener)}
	s.items = append(s.items, items...)
	return s
}

// Add merges item into the line with the same ID, or appends it as a new
// line. item.Quantity is a signed delta when merging.
func (s *Store) Add(item domain.CartItem) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.VariantID == 0 {
		return Result{Outcome: Rejected, Reason: ReasonMissingVariant, Item: item}
	}

	if i := s.indexOf(item.ID); i >= 0 {
		line := s.items[i]
		qty := line.Quantity + item.Quantity
		if qty < 1 {
			return Result{Outcome: Rejected, Reason: ReasonQuantityBelowOne, Item: item}
		}

		prev := line.VariantID
		line.Quantity = qty
		line.VariantID = item.VariantID
		line.Price = item.Price
		s.items[i] = line
		s.notify()
		return Result{Outcome: Merged, Item: line, PreviousVariantID: prev}
	}

	if item.Quantity < 1 {
		return Result{Outcome: Rejected, Reason: ReasonInvalidQuantity, Item: item}
	}

	s.items = append(s.items, item)
	s.notify()
	return Result{Outcome: Added, Item: item}
}

// Remove deletes the line with id. It reports whether a line was removed.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	s.notify()
	return true
}

// Clear removes every line.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.notify()
}

// Items returns a copy of the lines in order.
func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Cart returns the lines with derived totals.
func (s *Store) Cart() domain.Cart {
	return domain.NewCart(s.Items())
}

// Get returns the line for id.
func (s *Store) Get(id int64) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return domain.CartItem{}, false
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subscribe registers fn and returns a function that unregisters it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []domain.CartItem {
	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) notify() {
	if len(s.listeners) == 0 {
		return
	}
	items := s.snapshot()
	for _, fn := range s.listeners {
		fn(items)
	}
}
