package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

const productPrefix = "products"

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrUnsupportedImage is returned for uploads that are not images.
var ErrUnsupportedImage = errors.New("unsupported image type")

// ImageStore uploads product images to a public GCS bucket.
type ImageStore struct {
	Client *storage.Client
	Bucket string
}

var _ repo.ImageStore = (*ImageStore)(nil)

func NewImageStore(client *storage.Client, bucket string) *ImageStore {
	return &ImageStore{Client: client, Bucket: bucket}
}

func (s *ImageStore) Upload(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	object, err := objectPath(filename, contentType)
	if err != nil {
		return "", err
	}
	return helpers.UploadObject(ctx, s.Client, s.Bucket, object, contentType, r)
}

// Remove deletes an image uploaded by this store. Foreign URLs and objects
// that are already gone are not errors.
func (s *ImageStore) Remove(ctx context.Context, url string) error {
	object, ok := objectFromURL(s.Bucket, url)
	if !ok {
		return nil
	}
	err := s.Client.Bucket(s.Bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// objectFromURL maps a public URL back to its object under products/.
func objectFromURL(bucket, url string) (string, bool) {
	object, ok := strings.CutPrefix(url, helpers.PublicURL(bucket, ""))
	if !ok || !strings.HasPrefix(object, productPrefix+"/") || strings.Contains(object, "..") {
		return "", false
	}
	return object, true
}

// objectPath names the object products/<uuid><ext>. The extension follows
// the content type, falling back to the uploaded file's own.
func objectPath(filename, contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	ext, ok := allowedTypes[ct]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, contentType)
	}
	if e := strings.ToLower(path.Ext(filename)); e == ".jpeg" || e == ext {
		ext = e
	}
	return productPrefix + "/" + uuid.NewString() + ext, nil
}
