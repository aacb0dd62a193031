package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	pfirestore "github.com/teleshop/api/internal/platform/firestore"
	"github.com/teleshop/api/internal/platform/pagination"
	"github.com/teleshop/api/internal/repositories"
)

const (
	productsCollection = "products"
	variantsCollection = "productVariants"

	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

// Money is persisted as its canonical decimal string so Firestore never sees
// binary floats; parsing back through shopspring keeps two-decimal semantics.
type productDocument struct {
	Name          string    `firestore:"name"`
	Description   string    `firestore:"description,omitempty"`
	Price         string    `firestore:"price"`
	DiscountPrice *string   `firestore:"discountPrice,omitempty"`
	CategoryID    *string   `firestore:"categoryId,omitempty"`
	IsActive      bool      `firestore:"isActive"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

type variantDocument struct {
	ProductID     string    `firestore:"productId"`
	Name          string    `firestore:"name"`
	PriceOverride *string   `firestore:"priceOverride,omitempty"`
	Stock         int       `firestore:"stock"`
	IsActive      bool      `firestore:"isActive"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// ProductRepository reads catalog documents from Firestore.
type ProductRepository struct {
	products *pfirestore.BaseRepository[productDocument]
	variants *pfirestore.BaseRepository[variantDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil),
		variants: pfirestore.NewBaseRepository[variantDocument](provider, variantsCollection, nil, nil),
	}, nil
}

// FindByID loads a product regardless of its active flag; callers decide how
// to treat inactive entries.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return productFromDocument(doc.ID, doc.Data)
}

// FindVariant loads a variant and verifies it belongs to the given product.
func (r *ProductRepository) FindVariant(ctx context.Context, productID string, variantID string) (domain.ProductVariant, error) {
	if r == nil || r.variants == nil {
		return domain.ProductVariant{}, errors.New("product repository not initialised")
	}
	doc, err := r.variants.Get(ctx, strings.TrimSpace(variantID))
	if err != nil {
		return domain.ProductVariant{}, err
	}
	if doc.Data.ProductID != strings.TrimSpace(productID) {
		return domain.ProductVariant{}, pfirestore.NewNotFoundError("productVariants.get", variantID)
	}
	return variantFromDocument(doc.ID, doc.Data)
}

// ListActive returns active products ordered by name with cursor-token paging.
func (r *ProductRepository) ListActive(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.products == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	size := pager.PageSize
	if size <= 0 {
		size = defaultProductPageSize
	}
	if size > maxProductPageSize {
		size = maxProductPageSize
	}

	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("isActive", "==", true).OrderBy("name", firestore.Asc).Limit(size + 1)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	page := domain.CursorPage[domain.Product]{Items: make([]domain.Product, 0, len(docs))}
	for i, doc := range docs {
		if i == size {
			last := page.Items[len(page.Items)-1]
			token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Name}})
			if err != nil {
				return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
			}
			page.NextPageToken = token
			break
		}
		product, err := productFromDocument(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, err
		}
		page.Items = append(page.Items, product)
	}
	return page, nil
}

func productFromDocument(id string, doc productDocument) (domain.Product, error) {
	price, err := decimal.NewFromString(doc.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("products decode %s: price %q: %w", id, doc.Price, err)
	}
	product := domain.Product{
		ID:          id,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       price,
		CategoryID:  doc.CategoryID,
		IsActive:    doc.IsActive,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.DiscountPrice != nil {
		discount, err := decimal.NewFromString(*doc.DiscountPrice)
		if err != nil {
			return domain.Product{}, fmt.Errorf("products decode %s: discount price %q: %w", id, *doc.DiscountPrice, err)
		}
		product.DiscountPrice = &discount
	}
	return product, nil
}

func variantFromDocument(id string, doc variantDocument) (domain.ProductVariant, error) {
	variant := domain.ProductVariant{
		ID:        id,
		ProductID: doc.ProductID,
		Name:      doc.Name,
		Stock:     doc.Stock,
		IsActive:  doc.IsActive,
		CreatedAt: doc.CreatedAt,
	}
	if doc.PriceOverride != nil {
		override, err := decimal.NewFromString(*doc.PriceOverride)
		if err != nil {
			return domain.ProductVariant{}, fmt.Errorf("productVariants decode %s: price override %q: %w", id, *doc.PriceOverride, err)
		}
		variant.PriceOverride = &override
	}
	return variant, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
