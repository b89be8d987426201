package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/pkg/clock"
)

// Document field names, shared by every store backend.
const (
	fieldName        = "name"
	fieldCategory    = "category"
	fieldPrice       = "price"
	fieldImageURL    = "imageUrl"
	fieldDescription = "description"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
)

// ProductCollectionPath returns the collection holding appID's products.
func ProductCollectionPath(appID string) string {
	return fmt.Sprintf("artifacts/%s/public/data/products", appID)
}

// ProductSnapshot is one delivery of the product subscription: every
// product, sorted by category then name, plus what changed since the
// previous delivery.
type ProductSnapshot struct {
	Products []entity.Product
	Changes  []repo.DocumentChange
}

// ProductRepository reads and writes the product collection. It keeps no
// cache: every write waits for the store, and readers only see it through
// the next snapshot.
type ProductRepository struct {
	Store   repo.DocumentStore
	AppID   string
	Clock   clock.Clock
	Timeout time.Duration
	Logger  *logrus.Logger
}

func NewProductRepository(store repo.DocumentStore, appID string, clk clock.Clock, timeout time.Duration, logger *logrus.Logger) *ProductRepository {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &ProductRepository{Store: store, AppID: appID, Clock: clk, Timeout: timeout, Logger: logger}
}

func (r *ProductRepository) collection() string {
	return ProductCollectionPath(r.AppID)
}

// SubscribeToProducts delivers the full sorted product list on every change.
func (r *ProductRepository) SubscribeToProducts(fn func([]entity.Product), onErr func(error)) (func(), error) {
	return r.SubscribeToChanges(func(s ProductSnapshot) { fn(s.Products) }, onErr)
}

// SubscribeToChanges is SubscribeToProducts with the per-delivery diff.
// onErr receives ErrSubscriptionFailed errors; no resubscription happens.
func (r *ProductRepository) SubscribeToChanges(fn func(ProductSnapshot), onErr func(error)) (func(), error) {
	stop, err := r.Store.Listen(context.Background(), r.collection(),
		func(snap repo.CollectionSnapshot) {
			products := make([]entity.Product, 0, len(snap.Documents))
			for _, d := range snap.Documents {
				products = append(products, productFromDocument(d))
			}
			entity.SortProducts(products)
			fn(ProductSnapshot{Products: products, Changes: snap.Changes})
		},
		func(err error) {
			if r.Logger != nil {
				r.Logger.WithError(err).WithField("collection", r.collection()).Error("product subscription failed")
			}
			if onErr != nil {
				onErr(fail(ErrSubscriptionFailed, err))
			}
		},
	)
	if err != nil {
		return nil, fail(ErrSubscriptionFailed, err)
	}
	return stop, nil
}

// Create stores a new product and returns its generated id.
func (r *ProductRepository) Create(ctx context.Context, p entity.Product) (string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.Clock.Now()
	fields := mutableFields(p)
	fields[fieldCreatedAt] = now
	fields[fieldUpdatedAt] = now

	id, err := r.Store.Add(ctx, r.collection(), fields)
	if err != nil {
		r.logWrite(err, "create", "")
		return "", fail(ErrWriteFailed, err)
	}
	return id, nil
}

// Update replaces the mutable fields of product id. createdAt is never
// written, so the value stored at creation survives.
func (r *ProductRepository) Update(ctx context.Context, id string, p entity.Product) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	fields := mutableFields(p)
	fields[fieldUpdatedAt] = r.Clock.Now()

	if err := r.Store.Update(ctx, r.collection(), id, fields); err != nil {
		r.logWrite(err, "update", id)
		return fail(ErrWriteFailed, err)
	}
	return nil
}

// Delete removes product id. Authorization is the caller's job.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.Store.Delete(ctx, r.collection(), id); err != nil {
		r.logWrite(err, "delete", id)
		return fail(ErrWriteFailed, err)
	}
	return nil
}

func (r *ProductRepository) logWrite(err error, op, id string) {
	if r.Logger == nil {
		return
	}
	r.Logger.WithError(err).WithFields(logrus.Fields{"op": op, "product_id": id}).Error("product write failed")
}

func (r *ProductRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func mutableFields(p entity.Product) map[string]any {
	image := strings.TrimSpace(p.ImageURL)
	if image == "" {
		image = entity.PlaceholderImageURL
	}
	return map[string]any{
		fieldName:        p.Name,
		fieldCategory:    string(p.Category),
		fieldPrice:       p.Price,
		fieldImageURL:    image,
		fieldDescription: p.Description,
	}
}

// productFromDocument decodes a stored product. Categories outside the fixed
// set are kept as-is.
func productFromDocument(d repo.Document) entity.Product {
	return entity.Product{
		ID:          d.ID,
		Name:        stringField(d.Fields, fieldName),
		Category:    entity.Category(stringField(d.Fields, fieldCategory)),
		Price:       stringField(d.Fields, fieldPrice),
		ImageURL:    stringField(d.Fields, fieldImageURL),
		Description: stringField(d.Fields, fieldDescription),
		CreatedAt:   timeField(d.Fields, fieldCreatedAt),
		UpdatedAt:   timeField(d.Fields, fieldUpdatedAt),
	}
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func timeField(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v != nil {
			return v.UTC()
		}
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
