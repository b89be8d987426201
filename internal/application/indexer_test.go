package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

type fakeIndex struct {
	mu     sync.Mutex
	docs   map[string]entity.Product
	prunes int
}

func (f *fakeIndex) Upsert(_ context.Context, p entity.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[p.ID] = p
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) Prune(_ context.Context, keep []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunes++
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	for id := range f.docs {
		if !kept[id] {
			delete(f.docs, id)
		}
	}
	return nil
}

func (f *fakeIndex) Search(_ context.Context, q string, _ int) ([]entity.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Product
	for _, p := range f.docs {
		if p.Name == q {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeIndex) get(id string) (entity.Product, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.docs[id]
	return p, ok
}

func TestIndexerMirrorsChanges(t *testing.T) {
	f := newFixture(t)
	idx := &fakeIndex{docs: map[string]entity.Product{}}
	x := NewProductIndexer(f.repo, idx, nil, time.Second)
	ctx := context.Background()

	stop, err := x.Start()
	require.NoError(t, err)
	defer stop()

	id, err := f.repo.Create(ctx, paracetamol())
	require.NoError(t, err)
	require.Eventually(t, func() bool { _, ok := idx.get(id); return ok }, waitFor, tick)

	p := paracetamol()
	p.Price = "₹30"
	require.NoError(t, f.repo.Update(ctx, id, p))
	require.Eventually(t, func() bool { got, _ := idx.get(id); return got.Price == "₹30" }, waitFor, tick)

	hits, err := x.Search(ctx, "Paracetamol", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)

	require.NoError(t, f.repo.Delete(ctx, id))
	require.Eventually(t, func() bool { _, ok := idx.get(id); return !ok }, waitFor, tick)
}

func TestIndexerPrunesStaleEntriesOnStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.repo.Create(ctx, paracetamol())
	require.NoError(t, err)

	idx := &fakeIndex{docs: map[string]entity.Product{
		"deleted-while-down": {ID: "deleted-while-down", Name: "Old Syrup"},
	}}
	x := NewProductIndexer(f.repo, idx, nil, time.Second)
	stop, err := x.Start()
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool { _, ok := idx.get(id); return ok }, waitFor, tick)
	_, ok := idx.get("deleted-while-down")
	assert.False(t, ok)

	_, err = f.repo.Create(ctx, paracetamol())
	require.NoError(t, err)
	require.Eventually(t, func() bool { idx.mu.Lock(); defer idx.mu.Unlock(); return len(idx.docs) == 2 }, waitFor, tick)
	idx.mu.Lock()
	assert.Equal(t, 1, idx.prunes)
	idx.mu.Unlock()
}
