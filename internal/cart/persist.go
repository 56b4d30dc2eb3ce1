package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/winestore/internal/domain"
	apperrors "github.com/utafrali/winestore/pkg/errors"
)

// StorageKey is the fixed key the cart is stored under inside a session
// namespace.
const StorageKey = "cart"

// SchemaVersion is the current layout of a persisted line. Version 0 lines
// lack variant_id and/or quantity.
const SchemaVersion = 1

// KV is a session-scoped key-value namespace. Get returns an error wrapping
// apperrors.ErrNotFound when the key is absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// price renders as a bare JSON number and accepts both numbers and quoted
// strings on the way in.
type price decimal.Decimal

func (p price) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(p).String()), nil
}

func (p *price) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = price(d)
	return nil
}

type record struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Price     price  `json:"price"`
	Quantity  int    `json:"quantity"`
	Category  string `json:"category"`
	VariantID int64  `json:"variant_id"`
}

// storedRecord is a line as read back. Optional fields are pointers so that
// absence can be told apart from zero.
type storedRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Price     price  `json:"price"`
	Quantity  *int   `json:"quantity"`
	Category  string `json:"category"`
	VariantID *int64 `json:"variant_id"`
}

func (r storedRecord) version() int {
	if r.Quantity == nil || r.VariantID == nil {
		return 0
	}
	return SchemaVersion
}

// migrate upgrades a line to SchemaVersion.
func (r storedRecord) migrate() record {
	out := record{
		ID:       r.ID,
		Name:     r.Name,
		Image:    r.Image,
		Price:    r.Price,
		Quantity: 1,
		Category: r.Category,
	}
	if r.Quantity != nil {
		out.Quantity = *r.Quantity
	}
	if r.VariantID != nil {
		out.VariantID = *r.VariantID
	}
	return out
}

func (r record) item() domain.CartItem {
	return domain.CartItem{
		ID:        r.ID,
		VariantID: r.VariantID,
		Name:      r.Name,
		Image:     r.Image,
		Category:  r.Category,
		Price:     decimal.Decimal(r.Price),
		Quantity:  r.Quantity,
	}
}

// Encode serializes lines as the persisted JSON array.
func Encode(items []domain.CartItem) ([]byte, error) {
	recs := make([]record, 0, len(items))
	for _, it := range items {
		recs = append(recs, record{
			ID:        it.ID,
			Name:      it.Name,
			Image:     it.Image,
			Price:     price(it.Price),
			Quantity:  it.Quantity,
			Category:  it.Category,
			VariantID: it.VariantID,
		})
	}
	return json.Marshal(recs)
}

// DecodeStats describes what Decode did to a persisted array.
type DecodeStats struct {
	Migrated int
	Dropped  int
	Merged   int
}

// Decode parses a persisted array. Lines at schema version 0 are migrated.
// Entries that are not objects, fail to parse, or carry a non-positive id
// or quantity are dropped. Duplicate ids are folded into the first
// occurrence by summing quantities, saturating at math.MaxInt. An error is
// returned only when data is not a JSON array.
func Decode(data []byte) ([]domain.CartItem, DecodeStats, error) {
	var stats DecodeStats

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, stats, fmt.Errorf("decoding cart: %w", err)
	}

	items := make([]domain.CartItem, 0, len(raw))
	index := make(map[int64]int, len(raw))
	for _, entry := range raw {
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 || entry[0] != '{' {
			stats.Dropped++
			continue
		}

		var sr storedRecord
		if err := json.Unmarshal(entry, &sr); err != nil {
			stats.Dropped++
			continue
		}
		if sr.version() < SchemaVersion {
			stats.Migrated++
		}

		rec := sr.migrate()
		if rec.ID <= 0 || rec.Quantity <= 0 {
			stats.Dropped++
			continue
		}

		if i, ok := index[rec.ID]; ok {
			if items[i].Quantity > math.MaxInt-rec.Quantity {
				items[i].Quantity = math.MaxInt
			} else {
				items[i].Quantity += rec.Quantity
			}
			stats.Merged++
			continue
		}
		index[rec.ID] = len(items)
		items = append(items, rec.item())
	}

	return items, stats, nil
}

// Hydrate builds a Store from the persisted cart. A missing key, an
// unreachable KV or an unreadable value yields an empty store; the failure is
// only logged. Use it for reads that never write back.
func Hydrate(ctx context.Context, kv KV, logger *slog.Logger) *Store {
	store, err := Load(ctx, kv, logger)
	if err != nil {
		logger.WarnContext(ctx, "failed to read persisted cart", slog.String("error", err.Error()))
		return NewStore()
	}
	return store
}

// Load is Hydrate for callers that write the cart back. A missing key or an
// unreadable value still yields an empty store, but a KV read failure is
// returned so the stored cart is not overwritten with an empty one.
func Load(ctx context.Context, kv KV, logger *slog.Logger) (*Store, error) {
	data, err := kv.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.DebugContext(ctx, "no persisted cart")
			return NewStore(), nil
		}
		return nil, fmt.Errorf("reading cart: %w", err)
	}

	items, stats, err := Decode(data)
	if err != nil {
		logger.WarnContext(ctx, "discarding unreadable persisted cart", slog.String("error", err.Error()))
		return NewStore(), nil
	}
	if stats != (DecodeStats{}) {
		logger.InfoContext(ctx, "normalized persisted cart",
			slog.Int("migrated", stats.Migrated),
			slog.Int("dropped", stats.Dropped),
			slog.Int("merged", stats.Merged),
		)
	}

	return NewStore(items...), nil
}

// Mirror writes the whole cart to a KV every time its Store changes. It
// never changes the store itself.
type Mirror struct {
	ctx    context.Context
	kv     KV
	logger *slog.Logger

	mu          sync.Mutex
	err         error
	writes      int
	unsubscribe func()
}

// Attach subscribes a Mirror to store. ctx bounds every write.
func Attach(ctx context.Context, store *Store, kv KV, logger *slog.Logger) *Mirror {
	m := &Mirror{ctx: ctx, kv: kv, logger: logger}
	m.unsubscribe = store.Subscribe(m.write)
	return m
}

func (m *Mirror) write(items []domain.CartItem) {
	data, err := Encode(items)
	if err == nil {
		err = m.kv.Set(m.ctx, StorageKey, data)
	}

	m.mu.Lock()
	m.err = err
	m.writes++
	m.mu.Unlock()

	if err != nil {
		m.logger.ErrorContext(m.ctx, "failed to persist cart", slog.String("error", err.Error()))
	}
}

// Err returns the error of the most recent write, if any.
func (m *Mirror) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Writes returns how many writes were attempted.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Detach stops mirroring.
func (m *Mirror) Detach() {
	m.unsubscribe()
}
