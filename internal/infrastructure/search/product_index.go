package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	repo "github.com/oksasatya/storefront-admin/internal/domain/repository"
)

// ProductIndex mirrors products into an Elasticsearch index for the
// dashboard's search box.
type ProductIndex struct {
	ES    *elasticsearch.Client
	Index string
}

var _ repo.ProductIndex = (*ProductIndex)(nil)

func NewProductIndex(es *elasticsearch.Client, index string) *ProductIndex {
	if index == "" {
		index = "products"
	}
	return &ProductIndex{ES: es, Index: index}
}

type productDoc struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (x *ProductIndex) Upsert(ctx context.Context, p entity.Product) error {
	body, err := json.Marshal(productDoc{
		Name:        p.Name,
		Category:    string(p.Category),
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      x.Index,
		DocumentID: p.ID,
		Body:       bytes.NewReader(body),
	}.Do(ctx, x.ES)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return responseError("index", res)
}

// Remove deletes id from the index. A missing document is not an error.
func (x *ProductIndex) Remove(ctx context.Context, id string) error {
	res, err := esapi.DeleteRequest{Index: x.Index, DocumentID: id}.Do(ctx, x.ES)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError("delete", res)
}

// Prune deletes every document whose id is not in keep. A missing index is
// already pruned.
func (x *ProductIndex) Prune(ctx context.Context, keep []string) error {
	if keep == nil {
		keep = []string{}
	}
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must_not": map[string]any{"ids": map[string]any{"values": keep}},
			},
		},
	})
	if err != nil {
		return err
	}
	res, err := esapi.DeleteByQueryRequest{
		Index:     []string{x.Index},
		Body:      bytes.NewReader(body),
		Conflicts: "proceed",
	}.Do(ctx, x.ES)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError("prune", res)
}

// Search runs a multi_match over name, category and description, with name
// weighted highest.
func (x *ProductIndex) Search(ctx context.Context, query string, size int) ([]entity.Product, error) {
	if size <= 0 {
		size = 20
	}
	q := map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  strings.TrimSpace(query),
				"fields": []string{"name^2", "category", "description"},
			},
		},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	res, err := esapi.SearchRequest{
		Index: []string{x.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, x.ES)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := responseError("search", res); err != nil {
		return nil, err
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Source productDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}
	products := make([]entity.Product, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		products = append(products, entity.Product{
			ID:          h.ID,
			Name:        h.Source.Name,
			Category:    entity.Category(h.Source.Category),
			Price:       h.Source.Price,
			ImageURL:    h.Source.ImageURL,
			Description: h.Source.Description,
			CreatedAt:   h.Source.CreatedAt,
			UpdatedAt:   h.Source.UpdatedAt,
		})
	}
	return products, nil
}

func responseError(op string, res *esapi.Response) error {
	if !res.IsError() {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("search: %s: %s: %s", op, res.Status(), strings.TrimSpace(string(msg)))
}
