package application

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

// ProductIndexer mirrors the product collection into a search index by
// applying each snapshot's changes.
type ProductIndexer struct {
	Products *ProductRepository
	Index    repo.ProductIndex
	Logger   *logrus.Logger
	Timeout  time.Duration

	pruned sync.Once
}

func NewProductIndexer(products *ProductRepository, index repo.ProductIndex, logger *logrus.Logger, timeout time.Duration) *ProductIndexer {
	return &ProductIndexer{Products: products, Index: index, Logger: logger, Timeout: timeout}
}

// Start subscribes to the product stream. The returned function stops it.
func (x *ProductIndexer) Start() (func(), error) {
	return x.Products.SubscribeToChanges(x.apply, func(err error) {
		if x.Logger != nil {
			x.Logger.WithError(err).Error("product indexer stopped")
		}
	})
}

// apply writes one snapshot's changes. The first snapshot also prunes
// products deleted while nothing was listening.
func (x *ProductIndexer) apply(snap ProductSnapshot) {
	byID := make(map[string]entity.Product, len(snap.Products))
	ids := make([]string, 0, len(snap.Products))
	for _, p := range snap.Products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	x.pruned.Do(func() {
		ctx, cancel := x.context()
		defer cancel()
		if err := x.Index.Prune(ctx, ids); err != nil && x.Logger != nil {
			x.Logger.WithError(err).Warn("index prune failed")
		}
	})
	for _, ch := range snap.Changes {
		var err error
		ctx, cancel := x.context()
		switch ch.Kind {
		case repo.DocumentAdded, repo.DocumentModified:
			if p, ok := byID[ch.ID]; ok {
				err = x.Index.Upsert(ctx, p)
			}
		case repo.DocumentRemoved:
			err = x.Index.Remove(ctx, ch.ID)
		}
		cancel()
		if err != nil && x.Logger != nil {
			x.Logger.WithError(err).WithFields(logrus.Fields{"product_id": ch.ID, "change": ch.Kind.String()}).Warn("index update failed")
		}
	}
}

// Search runs a full-text query over the index.
func (x *ProductIndexer) Search(ctx context.Context, q string, size int) ([]entity.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout())
	defer cancel()
	return x.Index.Search(ctx, q, size)
}

func (x *ProductIndexer) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), x.timeout())
}

func (x *ProductIndexer) timeout() time.Duration {
	if x.Timeout <= 0 {
		return 5 * time.Second
	}
	return x.Timeout
}
