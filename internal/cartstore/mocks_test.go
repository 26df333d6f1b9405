package cartstore

import (
	"context"
	"errors"
	"sync"

	"github.com/aquavo/fishweb-cart/internal/domain"
	"github.com/aquavo/fishweb-cart/internal/localstore"
	"github.com/aquavo/fishweb-cart/internal/logger"
	"github.com/aquavo/fishweb-cart/internal/notify"
	"github.com/aquavo/fishweb-cart/internal/session"
)

var errNetwork = errors.New("network down")

type addCall struct {
	ProductID string
	Quantity  int
}

// mockRemote behaves like the cart API: Add accumulates quantities per product.
type mockRemote struct {
	m        sync.RWMutex
	catalog  map[string]domain.Product
	lines    []domain.CartItem
	adds     []addCall
	fetches  int
	fetchErr error
	addErr   error
	failAdd  map[string]error
	rmErr    error
	updErr   error
	clearErr error
}

func newMockRemote(products ...domain.Product) *mockRemote {
	r := &mockRemote{catalog: make(map[string]domain.Product), failAdd: make(map[string]error)}
	for _, p := range products {
		r.catalog[p.ID] = p
	}
	return r
}

func (r *mockRemote) Fetch(context.Context) ([]domain.CartItem, error) {
	r.m.Lock()
	defer r.m.Unlock()
	r.fetches++
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return cloneItems(r.lines), nil
}

func (r *mockRemote) Add(_ context.Context, productID string, quantity int) error {
	r.m.Lock()
	defer r.m.Unlock()
	r.adds = append(r.adds, addCall{productID, quantity})
	if r.addErr != nil {
		return r.addErr
	}
	if err := r.failAdd[productID]; err != nil {
		return err
	}
	for i := range r.lines {
		if r.lines[i].ID == productID {
			r.lines[i].Quantity += quantity
			return nil
		}
	}
	p, ok := r.catalog[productID]
	if !ok {
		p = domain.Product{ID: productID}
	}
	r.lines = append(r.lines, domain.NewCartItem(p, quantity))
	return nil
}

func (r *mockRemote) Remove(_ context.Context, id string) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.rmErr != nil {
		return r.rmErr
	}
	r.lines = without(r.lines, id)
	return nil
}

func (r *mockRemote) Update(_ context.Context, id string, quantity int) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.updErr != nil {
		return r.updErr
	}
	r.lines = withQuantity(r.lines, id, quantity)
	return nil
}

func (r *mockRemote) Clear(context.Context) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.clearErr != nil {
		return r.clearErr
	}
	r.lines = nil
	return nil
}

func (r *mockRemote) setLines(items ...domain.CartItem) {
	r.m.Lock()
	defer r.m.Unlock()
	r.lines = items
}

func (r *mockRemote) getLines() []domain.CartItem {
	r.m.RLock()
	defer r.m.RUnlock()
	return cloneItems(r.lines)
}

func (r *mockRemote) addCalls() []addCall {
	r.m.RLock()
	defer r.m.RUnlock()
	out := make([]addCall, len(r.adds))
	copy(out, r.adds)
	return out
}

func (r *mockRemote) setErr(target *error, err error) {
	r.m.Lock()
	defer r.m.Unlock()
	*target = err
}

func newTestStore(backend localstore.Backend, remote Remote, holder *session.Holder) (*Store, *notify.Recorder) {
	rec := &notify.Recorder{}
	s := New(Config{}, backend, remote, holder, rec, logger.Discard())
	return s, rec
}

func (r *mockRemote) fetchCount() int {
	r.m.RLock()
	defer r.m.RUnlock()
	return r.fetches
}
