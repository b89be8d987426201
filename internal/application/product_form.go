package application

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	"github.com/oksasatya/storefront-admin/pkg/validation"
)

// ProductWriter is the part of ProductRepository the form needs.
type ProductWriter interface {
	Create(ctx context.Context, p entity.Product) (string, error)
	Update(ctx context.Context, id string, p entity.Product) error
}

// Draft is the editable state of the product form.
type Draft struct {
	Name        string `form:"name" validate:"required"`
	Category    string `form:"category" validate:"required,category"`
	Price       string `form:"price" validate:"required"`
	ImageURL    string `form:"imageUrl" validate:"omitempty,url"`
	Description string `form:"description" validate:"required"`
}

func (d Draft) trimmed() Draft {
	return Draft{
		Name:        strings.TrimSpace(d.Name),
		Category:    strings.TrimSpace(d.Category),
		Price:       strings.TrimSpace(d.Price),
		ImageURL:    strings.TrimSpace(d.ImageURL),
		Description: strings.TrimSpace(d.Description),
	}
}

func (d Draft) product() entity.Product {
	return entity.Product{
		Name:        d.Name,
		Category:    entity.Category(d.Category),
		Price:       d.Price,
		ImageURL:    d.ImageURL,
		Description: d.Description,
	}
}

func draftOf(p entity.Product) Draft {
	return Draft{
		Name:        p.Name,
		Category:    string(p.Category),
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Description: p.Description,
	}
}

func emptyDraft() Draft {
	return Draft{Category: string(entity.DefaultCategory())}
}

// ValidationError lists the draft fields that failed validation, keyed by
// form field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDraft }

// Result reports what a successful Submit did.
type Result struct {
	ID      string
	Updated bool
}

// ProductForm stages create and update payloads for one product at a time.
type ProductForm struct {
	Writer   ProductWriter
	Validate *validator.Validate

	mu        sync.Mutex
	draft     Draft
	editingID string
}

func NewProductForm(writer ProductWriter) *ProductForm {
	return &ProductForm{
		Writer:   writer,
		Validate: validation.Default(),
		draft:    emptyDraft(),
	}
}

// Edit switches to edit mode for p.
func (f *ProductForm) Edit(p entity.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = draftOf(p)
	f.editingID = p.ID
}

// Cancel leaves edit mode and resets the draft.
func (f *ProductForm) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = emptyDraft()
	f.editingID = ""
}

func (f *ProductForm) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Editing returns the id of the product being edited, or "" in create mode.
func (f *ProductForm) Editing() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editingID
}

// Check validates d without touching the form or the store.
func (f *ProductForm) Check(d Draft) error {
	return f.check(d.trimmed())
}

func (f *ProductForm) check(d Draft) error {
	if err := f.Validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Fields: validation.ToDetails(err)}
		}
		return err
	}
	return nil
}

// Submit validates d and writes it. On failure the submitted values stay in
// the draft so they can be corrected; repository errors are returned as-is.
func (f *ProductForm) Submit(ctx context.Context, d Draft) (Result, error) {
	d = d.trimmed()

	f.mu.Lock()
	f.draft = d
	id := f.editingID
	f.mu.Unlock()

	if err := f.check(d); err != nil {
		return Result{}, err
	}

	if id != "" {
		if err := f.Writer.Update(ctx, id, d.product()); err != nil {
			return Result{}, err
		}
		f.finish(id)
		return Result{ID: id, Updated: true}, nil
	}

	newID, err := f.Writer.Create(ctx, d.product())
	if err != nil {
		return Result{}, err
	}
	f.finish("")
	return Result{ID: newID}, nil
}

// finish resets the form unless the user moved on to another product while
// the write was in flight.
func (f *ProductForm) finish(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editingID != id {
		return
	}
	f.draft = emptyDraft()
	f.editingID = ""
}
