package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

type loader struct {
	mu    sync.Mutex
	docs  []repo.Document
	err   error
	calls int
}

func (l *loader) set(docs ...repo.Document) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs = docs
}

func (l *loader) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *loader) load(context.Context) ([]repo.Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return append([]repo.Document(nil), l.docs...), l.err
}

func TestRunListenerDeliversSnapshotsWithDiff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan struct{}, 1)
	l := &loader{}
	l.set(repo.Document{ID: "a", Fields: map[string]any{"name": "A"}})

	snaps := make(chan repo.CollectionSnapshot, 4)
	done := make(chan struct{})
	go func() {
		runListener(ctx, signals, l.load, func(s repo.CollectionSnapshot) { snaps <- s }, func(error) {})
		close(done)
	}()

	first := <-snaps
	require.Len(t, first.Documents, 1)
	assert.Equal(t, []repo.DocumentChange{{Kind: repo.DocumentAdded, ID: "a"}}, first.Changes)

	l.set(repo.Document{ID: "b", Fields: map[string]any{"name": "B"}})
	signals <- struct{}{}
	second := <-snaps
	assert.Equal(t, []repo.DocumentChange{
		{Kind: repo.DocumentAdded, ID: "b"},
		{Kind: repo.DocumentRemoved, ID: "a"},
	}, second.Changes)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestRunListenerReportsLoadFailureOnce(t *testing.T) {
	signals := make(chan struct{}, 1)
	l := &loader{}
	l.fail(errors.New("permission denied for table documents"))

	var errs []error
	runListener(context.Background(), signals, l.load, func(repo.CollectionSnapshot) {
		t.Fatal("no snapshot expected")
	}, func(err error) { errs = append(errs, err) })

	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "permission denied for table documents")
}

func TestRunListenerClosedFeed(t *testing.T) {
	signals := make(chan struct{})
	close(signals)
	l := &loader{}

	var errs []error
	runListener(context.Background(), signals, l.load, func(repo.CollectionSnapshot) {}, func(err error) { errs = append(errs, err) })
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errFeedClosed)
}

func TestRunListenerStaysQuietAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &loader{}
	l.fail(context.Canceled)

	runListener(ctx, make(chan struct{}), l.load, func(repo.CollectionSnapshot) {
		t.Fatal("no snapshot expected")
	}, func(error) {
		t.Fatal("no error expected after cancel")
	})
}
