package repository

import (
	"context"
	"errors"
	"reflect"
)

// ErrDocumentNotFound is returned by DocumentStore.Update when the target
// document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// Document is a single record in a collection. Fields hold JSON-compatible
// values; timestamps may come back as time.Time or RFC 3339 strings
// depending on the backend.
type Document struct {
	ID     string
	Fields map[string]any
}

// ChangeKind classifies a DocumentChange.
type ChangeKind int

const (
	DocumentAdded ChangeKind = iota
	DocumentModified
	DocumentRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case DocumentAdded:
		return "added"
	case DocumentModified:
		return "modified"
	case DocumentRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// DocumentChange describes how one document differs from the previous
// snapshot of the same listener.
type DocumentChange struct {
	Kind ChangeKind
	ID   string
}

// CollectionSnapshot is the full contents of a collection at one point in
// time, plus the changes since the listener's previous snapshot.
type CollectionSnapshot struct {
	Documents []Document
	Changes   []DocumentChange
}

// SnapshotFunc receives every snapshot delivered to a listener.
type SnapshotFunc func(CollectionSnapshot)

// ErrorFunc receives a listener's terminal error. No further snapshots
// follow it.
type ErrorFunc func(error)

// DocumentStore is the external realtime document database.
type DocumentStore interface {
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// Listen delivers the current snapshot and then one snapshot per change
	// until stop is called or ctx ends. stop is safe to call more than once
	// and from inside onSnapshot.
	Listen(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) (stop func(), err error)
}

// DiffDocuments reports the changes that turn prev into next. Added and
// modified entries follow next's order; removals follow prev's.
func DiffDocuments(prev, next []Document) []DocumentChange {
	before := make(map[string]Document, len(prev))
	for _, d := range prev {
		before[d.ID] = d
	}
	seen := make(map[string]struct{}, len(next))
	var changes []DocumentChange
	for _, d := range next {
		seen[d.ID] = struct{}{}
		old, ok := before[d.ID]
		switch {
		case !ok:
			changes = append(changes, DocumentChange{Kind: DocumentAdded, ID: d.ID})
		case !reflect.DeepEqual(old.Fields, d.Fields):
			changes = append(changes, DocumentChange{Kind: DocumentModified, ID: d.ID})
		}
	}
	for _, d := range prev {
		if _, ok := seen[d.ID]; !ok {
			changes = append(changes, DocumentChange{Kind: DocumentRemoved, ID: d.ID})
		}
	}
	return changes
}
