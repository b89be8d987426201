package repository

import (
	"context"
	"io"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

// ImageStore persists uploaded product images and returns their public URL.
// Remove takes a URL returned by Upload; URLs it did not issue are ignored.
type ImageStore interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// ProductIndex is a searchable mirror of the product collection.
type ProductIndex interface {
	Upsert(ctx context.Context, p entity.Product) error
	Remove(ctx context.Context, id string) error
	// Prune drops every indexed product whose id is not in keep.
	Prune(ctx context.Context, keep []string) error
	Search(ctx context.Context, query string, size int) ([]entity.Product, error)
}
