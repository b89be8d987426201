// Package memstore is an in-process DocumentStore used for local
// development and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

type collection struct {
	docs  map[string]map[string]any
	order []string
}

// Store keeps documents in memory. Snapshots are delivered on one goroutine
// per listener; bursts of writes may be folded into a single snapshot.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
	listeners   map[string]map[int]*listener
	nextID      int
}

type listener struct {
	dirty chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (l *listener) poke() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

func (l *listener) stop() {
	l.once.Do(func() { close(l.done) })
}

var _ repo.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string]*collection),
		listeners:   make(map[string]map[int]*listener),
	}
}

func (s *Store) Add(ctx context.Context, path string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	c := s.collectionLocked(path)
	c.docs[id] = copyFields(fields)
	c.order = append(c.order, id)
	s.mu.Unlock()

	s.notify(path)
	return id, nil
}

// Update merges fields into document id.
func (s *Store) Update(ctx context.Context, path, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	c := s.collectionLocked(path)
	doc, ok := c.docs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", repo.ErrDocumentNotFound, path, id)
	}
	merged := copyFields(doc)
	for k, v := range fields {
		merged[k] = v
	}
	c.docs[id] = merged
	s.mu.Unlock()

	s.notify(path)
	return nil
}

func (s *Store) Delete(ctx context.Context, path, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	c := s.collectionLocked(path)
	if _, ok := c.docs[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Get returns a copy of one document.
func (s *Store) Get(path, id string) (repo.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[path]
	if !ok {
		return repo.Document{}, false
	}
	doc, ok := c.docs[id]
	if !ok {
		return repo.Document{}, false
	}
	return repo.Document{ID: id, Fields: copyFields(doc)}, true
}

// Listen starts a listener goroutine that delivers the current contents and
// then a fresh snapshot after every write to path.
func (s *Store) Listen(ctx context.Context, path string, onSnapshot repo.SnapshotFunc, onError repo.ErrorFunc) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := &listener{dirty: make(chan struct{}, 1), done: make(chan struct{})}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.listeners[path] == nil {
		s.listeners[path] = make(map[int]*listener)
	}
	s.listeners[path][id] = l
	s.mu.Unlock()

	l.poke()
	go func() {
		defer s.unregister(path, id)
		var prev []repo.Document
		for {
			select {
			case <-l.done:
				return
			case <-ctx.Done():
				return
			case <-l.dirty:
			}
			docs := s.snapshot(path)
			select {
			case <-l.done:
				return
			default:
			}
			onSnapshot(repo.CollectionSnapshot{Documents: docs, Changes: repo.DiffDocuments(prev, docs)})
			prev = docs
		}
	}()
	return l.stop, nil
}

func (s *Store) unregister(path string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners[path], id)
}

func (s *Store) notify(path string) {
	s.mu.Lock()
	ls := make([]*listener, 0, len(s.listeners[path]))
	for _, l := range s.listeners[path] {
		ls = append(ls, l)
	}
	s.mu.Unlock()
	for _, l := range ls {
		l.poke()
	}
}

func (s *Store) snapshot(path string) []repo.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[path]
	if !ok {
		return []repo.Document{}
	}
	docs := make([]repo.Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, repo.Document{ID: id, Fields: copyFields(c.docs[id])})
	}
	return docs
}

func (s *Store) collectionLocked(path string) *collection {
	c, ok := s.collections[path]
	if !ok {
		c = &collection{docs: make(map[string]map[string]any)}
		s.collections[path] = c
	}
	return c
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
