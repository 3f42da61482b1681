package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"stockroom/internal/domain"
	"stockroom/internal/query"
	"stockroom/internal/ratelimit"
	"stockroom/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory product table plus ledger. Do runs fn against a
// copy of the state and only keeps it when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
	changes  []domain.ChangeEntry
	seq      int

	failRecord error
}

func newMemStore() *memStore {
	return &memStore{products: make(map[uuid.UUID]domain.Product)}
}

func (m *memStore) Do(ctx context.Context, fn func(repository.Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make(map[uuid.UUID]domain.Product, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	changes := append([]domain.ChangeEntry(nil), m.changes...)

	tx := &memTx{store: m, products: products, changes: changes}
	if err := fn(repository.Stores{Products: tx, Changes: memChanges{tx}}); err != nil {
		return err
	}
	m.products = tx.products
	m.changes = tx.changes
	return nil
}

func (m *memStore) ledger() []domain.ChangeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChangeEntry(nil), m.changes...)
}

func (m *memStore) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

// reader exposes committed state through the repository interfaces
func (m *memStore) reader() *memTx {
	return &memTx{store: m, readOnly: true}
}

type memTx struct {
	store    *memStore
	products map[uuid.UUID]domain.Product
	changes  []domain.ChangeEntry
	readOnly bool
}

func (t *memTx) view() (map[uuid.UUID]domain.Product, []domain.ChangeEntry) {
	if t.readOnly {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
		products := make(map[uuid.UUID]domain.Product, len(t.store.products))
		for k, v := range t.store.products {
			products[k] = v
		}
		return products, append([]domain.ChangeEntry(nil), t.store.changes...)
	}
	return t.products, t.changes
}

func (t *memTx) Create(ctx context.Context, p *domain.Product) error {
	t.products[p.ID] = *p
	return nil
}

func (t *memTx) Update(ctx context.Context, p *domain.Product) error {
	if _, ok := t.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	t.products[p.ID] = *p
	return nil
}

func (t *memTx) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(t.products, id)
	return nil
}

func (t *memTx) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	products, _ := t.view()
	p, ok := products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (t *memTx) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return t.FindByID(ctx, id)
}

func (t *memTx) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	switch next := p.Stock + delta; {
	case next < 0:
		return nil, repository.ErrInsufficientStock
	case next > math.MaxInt32:
		return nil, repository.ErrStockOverflow
	}
	p.Stock += delta
	t.products[id] = p
	return &p, nil
}

func (t *memTx) List(ctx context.Context, q query.ListQuery) ([]*domain.Product, int, error) {
	products, _ := t.view()
	var matched []*domain.Product
	for _, p := range products {
		p := p
		if q.Category != "" && string(p.Category) != q.Category {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			continue
		}
		if q.InStockOnly && p.Stock <= 0 {
			continue
		}
		if q.OwnerID != nil && p.OwnerID != *q.OwnerID {
			continue
		}
		matched = append(matched, &p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return matched[start:end], total, nil
}

func (t *memTx) Record(ctx context.Context, e *domain.ChangeEntry) error {
	if t.store.failRecord != nil {
		return t.store.failRecord
	}
	if !e.ChangeType.IsValid() {
		return fmt.Errorf("invalid change type %q", e.ChangeType)
	}
	t.store.seq++
	e.ID = fmt.Sprintf("%026d", t.store.seq)
	e.CreatedAt = time.Now().UTC()
	t.changes = append(t.changes, *e)
	return nil
}

func (t *memTx) History(ctx context.Context, productID uuid.UUID, limit int) ([]*domain.ChangeEntry, error) {
	_, changes := t.view()
	var out []*domain.ChangeEntry
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].ProductID == productID {
			e := changes[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (t *memTx) Recent(ctx context.Context, limit int) ([]*domain.ChangeEntry, error) {
	_, changes := t.view()
	var out []*domain.ChangeEntry
	for i := len(changes) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := changes[i]
		out = append(out, &e)
	}
	return out, nil
}

func (t *memTx) WithTx(tx repository.DBTX) repository.ProductRepository { return t }

// memChanges adapts memTx to ChangeRepository, whose WithTx has a different result type
type memChanges struct{ *memTx }

func (c memChanges) WithTx(tx repository.DBTX) repository.ChangeRepository { return c }

type stubLimiter struct {
	decision ratelimit.Decision
	err      error
	calls    int
}

func (l *stubLimiter) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	l.calls++
	return l.decision, l.err
}

var errLedgerDown = errors.New("ledger unavailable")
