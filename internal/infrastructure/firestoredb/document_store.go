// Package firestoredb implements the document store on Cloud Firestore.
package firestoredb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

type DocumentStore struct {
	client *firestore.Client
	logger *logrus.Logger
}

var _ repo.DocumentStore = (*DocumentStore)(nil)

// NewClient connects to projectID. Empty credentials fall back to
// Application Default Credentials.
func NewClient(ctx context.Context, projectID, credsJSON string) (*firestore.Client, error) {
	return firestore.NewClient(ctx, projectID, helpers.GoogleOptions(credsJSON)...)
}

func NewDocumentStore(client *firestore.Client, logger *logrus.Logger) *DocumentStore {
	return &DocumentStore{client: client, logger: logger}
}

func (s *DocumentStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, fields)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Update merges fields; Firestore refuses updates of missing documents.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", repo.ErrDocumentNotFound, status.Convert(err).Message())
	}
	return err
}

func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

// Listen follows an unordered query over the whole collection.
func (s *DocumentStore) Listen(ctx context.Context, collection string, onSnapshot repo.SnapshotFunc, onError repo.ErrorFunc) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.client.Collection(collection).Snapshots(ctx)

	go func() {
		// Stop must not race Next, so only this goroutine calls it
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if !isStopped(ctx, err) {
					onError(err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				if !isStopped(ctx, err) {
					onError(err)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			onSnapshot(repo.CollectionSnapshot{
				Documents: toDocuments(docs),
				Changes:   toChanges(snap.Changes),
			})
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func isStopped(ctx context.Context, err error) bool {
	if errors.Is(err, iterator.Done) || ctx.Err() != nil {
		return true
	}
	return status.Code(err) == codes.Canceled
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []repo.Document {
	docs := make([]repo.Document, 0, len(snaps))
	for _, d := range snaps {
		docs = append(docs, repo.Document{ID: d.Ref.ID, Fields: d.Data()})
	}
	return docs
}

func toChanges(changes []firestore.DocumentChange) []repo.DocumentChange {
	out := make([]repo.DocumentChange, 0, len(changes))
	for _, c := range changes {
		var kind repo.ChangeKind
		switch c.Kind {
		case firestore.DocumentAdded:
			kind = repo.DocumentAdded
		case firestore.DocumentModified:
			kind = repo.DocumentModified
		case firestore.DocumentRemoved:
			kind = repo.DocumentRemoved
		default:
			continue
		}
		out = append(out, repo.DocumentChange{Kind: kind, ID: c.Doc.Ref.ID})
	}
	return out
}
