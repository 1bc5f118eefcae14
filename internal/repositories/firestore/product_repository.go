package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
	"github.com/kograph/api/internal/platform/pagination"
)

const productCollection = "products"

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Price       int64     `firestore:"price"`
	Category    string    `firestore:"category,omitempty"`
	ImageURL    string    `firestore:"imageUrl,omitempty"`
	Stock       int       `firestore:"stock"`
	Features    []string  `firestore:"features,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProductRepository implements repositories.ProductRepository backed by Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[productDocument](provider, productCollection, nil)
	if err != nil {
		return nil, err
	}
	return &ProductRepository{provider: provider, products: collection}, nil
}

// Insert creates a product document.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}
	return r.products.Create(ctx, product.ID, fromDomainProduct(product))
}

// Update rewrites a product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product id is required")
	}
	if _, err := r.products.Get(ctx, product.ID); err != nil {
		return err
	}
	return r.products.Set(ctx, product.ID, fromDomainProduct(product))
}

// Delete removes a product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return errors.New("product id is required")
	}
	return r.products.Delete(ctx, productID)
}

// FindByID loads a product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(productID, doc), nil
}

// List returns products newest-first, optionally filtered by category.
func (r *ProductRepository) List(ctx context.Context, category string, pager domain.Pagination) (domain.CursorPage[domain.Product], error) {
	query, err := r.products.Query(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	if category != "" {
		query = query.Where("category", "==", category)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	if !cursor.IsZero() {
		query = query.StartAfter(cursorValues(cursor)...)
	}

	snaps, err := query.Limit(pageSize + 1).Documents(ctx).GetAll()
	if err != nil {
		return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.List", err)
	}

	page := domain.CursorPage[domain.Product]{}
	for i, snap := range snaps {
		if i == pageSize {
			break
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.List", err)
		}
		page.Items = append(page.Items, toDomainProduct(snap.Ref.ID, doc))
	}

	if len(snaps) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func fromDomainProduct(product domain.Product) productDocument {
	return productDocument{
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Category:    product.Category,
		ImageURL:    product.ImageURL,
		Stock:       product.Stock,
		Features:    product.Features,
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
}

func toDomainProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       doc.Price,
		Category:    doc.Category,
		ImageURL:    doc.ImageURL,
		Stock:       doc.Stock,
		Features:    doc.Features,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
