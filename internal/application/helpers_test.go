package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/internal/infrastructure/memstore"
	"github.com/oksasatya/storefront-admin/pkg/clock"
)

const testAppID = "test-app"

var t0 = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

// fakeAuth accepts the passwords in users and mints anonymous identities.
type fakeAuth struct {
	mu         sync.Mutex
	users      map[string]string
	anonErr    error
	signOutErr error
	anonCount  int
	signOuts   int
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]string{"admin@example.com": "secret123"}}
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (*entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.users[email]; !ok || pw != password {
		return nil, fmt.Errorf("%w: INVALID_PASSWORD", repo.ErrCredentialsRejected)
	}
	return &entity.Credential{Identity: entity.Identity{ID: "uid-" + email, Email: email}, Token: "tok-" + email}, nil
}

func (f *fakeAuth) SignInAnonymously(context.Context) (*entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.anonErr != nil {
		return nil, f.anonErr
	}
	f.anonCount++
	id := fmt.Sprintf("anon-%d", f.anonCount)
	return &entity.Credential{Identity: entity.Identity{ID: id, IsAnonymous: true}, Token: id}, nil
}

func (f *fakeAuth) SignOut(context.Context, *entity.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signOutErr != nil {
		return f.signOutErr
	}
	f.signOuts++
	return nil
}

func (f *fakeAuth) Resolve(_ context.Context, token string) (*entity.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email := range f.users {
		if token == "tok-"+email {
			return &entity.Credential{Identity: entity.Identity{ID: "uid-" + email, Email: email}, Token: token}, nil
		}
	}
	return nil, errors.New("token expired")
}

// faultyStore wraps a DocumentStore with injectable failures and an optional
// gate that holds Update calls until released.
type faultyStore struct {
	repo.DocumentStore
	addErr    error
	updateErr error
	deleteErr error
	listenErr error
	streamErr error
	// streamErrAt, when set, holds streamErr back until it is closed.
	streamErrAt chan struct{}

	updateEntered chan struct{}
	updateRelease chan struct{}
}

func (f *faultyStore) Add(ctx context.Context, c string, fields map[string]any) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	return f.DocumentStore.Add(ctx, c, fields)
}

func (f *faultyStore) Update(ctx context.Context, c, id string, fields map[string]any) error {
	if f.updateEntered != nil {
		f.updateEntered <- struct{}{}
		<-f.updateRelease
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.DocumentStore.Update(ctx, c, id, fields)
}

func (f *faultyStore) Delete(ctx context.Context, c, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.DocumentStore.Delete(ctx, c, id)
}

func (f *faultyStore) Listen(ctx context.Context, c string, onSnapshot repo.SnapshotFunc, onError repo.ErrorFunc) (func(), error) {
	if f.listenErr != nil {
		return nil, f.listenErr
	}
	if f.streamErr != nil {
		stop, err := f.DocumentStore.Listen(ctx, c, onSnapshot, onError)
		if err != nil {
			return nil, err
		}
		gate := f.streamErrAt
		go func() {
			if gate != nil {
				<-gate
			} else {
				time.Sleep(20 * time.Millisecond)
			}
			onError(f.streamErr)
		}()
		return stop, nil
	}
	return f.DocumentStore.Listen(ctx, c, onSnapshot, onError)
}

// spyCatalog counts the calls the dashboard makes into the repository.
type spyCatalog struct {
	*ProductRepository

	mu         sync.Mutex
	deletes    int
	subscribes int
	active     int
}

func (s *spyCatalog) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()
	return s.ProductRepository.Delete(ctx, id)
}

func (s *spyCatalog) SubscribeToProducts(fn func([]entity.Product), onErr func(error)) (func(), error) {
	stop, err := s.ProductRepository.SubscribeToProducts(fn, onErr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.subscribes++
	s.active++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			stop()
		})
	}, nil
}

func (s *spyCatalog) counts() (deletes, subscribes, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes, s.subscribes, s.active
}

type fixture struct {
	mem     *memstore.Store
	store   *faultyStore
	clock   *clock.FakeClock
	repo    *ProductRepository
	auth    *fakeAuth
	session *SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memstore.New()
	store := &faultyStore{DocumentStore: mem}
	clk := clock.NewFake(t0)
	auth := newFakeAuth()
	return &fixture{
		mem:     mem,
		store:   store,
		clock:   clk,
		repo:    NewProductRepository(store, testAppID, clk, 0, nil),
		auth:    auth,
		session: NewSessionManager(auth, nil, time.Second),
	}
}

func (f *fixture) stored(t *testing.T, id string) entity.Product {
	t.Helper()
	doc, ok := f.mem.Get(ProductCollectionPath(testAppID), id)
	require.True(t, ok, "document %s not stored", id)
	return productFromDocument(doc)
}

func paracetamol() entity.Product {
	return entity.Product{
		Name:        "Paracetamol",
		Category:    entity.CategoryAllopathic,
		Price:       "₹20",
		ImageURL:    "",
		Description: "Pain relief",
	}
}
