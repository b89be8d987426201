package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

// ChangeFeed carries "collection changed" signals between writers and
// listeners, possibly across processes.
type ChangeFeed interface {
	Publish(ctx context.Context, collection string) error
	Subscribe(ctx context.Context, collection string) (<-chan struct{}, func(), error)
}

var errFeedClosed = errors.New("change feed closed")

// DocumentStore keeps documents as jsonb rows keyed by (collection, id).
// Every write publishes a signal on the feed; listeners re-read the whole
// collection when signalled.
type DocumentStore struct {
	pool   *pgxpool.Pool
	feed   ChangeFeed
	logger *logrus.Logger

	// QueryTimeout bounds each collection read made by a listener.
	QueryTimeout time.Duration
}

var _ repo.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(pool *pgxpool.Pool, feed ChangeFeed, logger *logrus.Logger) *DocumentStore {
	return &DocumentStore{pool: pool, feed: feed, logger: logger, QueryTimeout: 10 * time.Second}
}

func (s *DocumentStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
	`, collection, id, data); err != nil {
		return "", err
	}
	s.publish(ctx, collection)
	return id, nil
}

// Update merges fields into the stored document.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`, collection, id, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s/%s", repo.ErrDocumentNotFound, collection, id)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		s.publish(ctx, collection)
	}
	return nil
}

func (s *DocumentStore) Listen(ctx context.Context, collection string, onSnapshot repo.SnapshotFunc, onError repo.ErrorFunc) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	signals, unsubscribe, err := s.feed.Subscribe(ctx, collection)
	if err != nil {
		cancel()
		return nil, err
	}
	load := func(ctx context.Context) ([]repo.Document, error) {
		if s.QueryTimeout > 0 {
			var c context.CancelFunc
			ctx, c = context.WithTimeout(ctx, s.QueryTimeout)
			defer c()
		}
		return s.load(ctx, collection)
	}
	go func() {
		defer unsubscribe()
		runListener(ctx, signals, load, onSnapshot, onError)
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// load reads the collection in storage order; sorting is the reader's job.
func (s *DocumentStore) load(ctx context.Context, collection string) ([]repo.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, data
		FROM documents
		WHERE collection = $1
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []repo.Document{}
	for rows.Next() {
		var (
			id   string
			data map[string]any
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		docs = append(docs, repo.Document{ID: id, Fields: data})
	}
	return docs, rows.Err()
}

func (s *DocumentStore) publish(ctx context.Context, collection string) {
	if err := s.feed.Publish(ctx, collection); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("collection", collection).Warn("publish change failed")
	}
}

// runListener delivers one snapshot up front and one per signal until ctx
// ends. A failed read is reported once and ends the listener.
func runListener(
	ctx context.Context,
	signals <-chan struct{},
	load func(context.Context) ([]repo.Document, error),
	onSnapshot repo.SnapshotFunc,
	onError repo.ErrorFunc,
) {
	var prev []repo.Document
	deliver := func() bool {
		docs, err := load(ctx)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			onError(err)
			return false
		}
		onSnapshot(repo.CollectionSnapshot{Documents: docs, Changes: repo.DiffDocuments(prev, docs)})
		prev = docs
		return true
	}

	if !deliver() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				if ctx.Err() == nil {
					onError(errFeedClosed)
				}
				return
			}
			if !deliver() {
				return
			}
		}
	}
}
