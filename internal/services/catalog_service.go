package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/repositories"
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid input.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product or variant does not exist.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogUnavailable indicates the catalog backend cannot be reached.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
)

// CatalogServiceDeps wires the repositories required by catalog operations.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService validating required dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{products: deps.Products, logger: logger}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

func (s *catalogService) GetVariant(ctx context.Context, productID string, variantID string) (ProductVariant, error) {
	pid := strings.TrimSpace(productID)
	vid := strings.TrimSpace(variantID)
	if pid == "" || vid == "" {
		return ProductVariant{}, ErrCatalogInvalidInput
	}
	variant, err := s.products.FindVariant(ctx, pid, vid)
	if err != nil {
		return ProductVariant{}, s.translateRepoError(err)
	}
	return variant, nil
}

func (s *catalogService) ListProducts(ctx context.Context, pager Pagination) (domain.CursorPage[Product], error) {
	page, err := s.products.ListActive(ctx, pager)
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}
	return page, nil
}

// ResolveLine joins a cart line with its catalog entry. Lines pointing at
// missing or inactive products resolve to ok=false rather than an error so
// callers can skip them while keeping the rest of the cart usable.
func (s *catalogService) ResolveLine(ctx context.Context, line CartLine) (ResolvedLine, bool, error) {
	product, err := s.products.FindByID(ctx, line.ProductID)
	if err != nil {
		if isRepoNotFound(err) {
			return ResolvedLine{}, false, nil
		}
		return ResolvedLine{}, false, s.translateRepoError(err)
	}
	if !product.IsActive {
		return ResolvedLine{}, false, nil
	}

	resolved := ResolvedLine{
		Line:        line,
		Product:     product,
		ProductName: product.Name,
	}

	if line.VariantID != nil && strings.TrimSpace(*line.VariantID) != "" {
		variant, err := s.products.FindVariant(ctx, line.ProductID, *line.VariantID)
		if err != nil {
			if isRepoNotFound(err) {
				return ResolvedLine{}, false, nil
			}
			return ResolvedLine{}, false, s.translateRepoError(err)
		}
		if !variant.IsActive {
			return ResolvedLine{}, false, nil
		}
		resolved.Variant = &variant
		name := variant.Name
		resolved.VariantName = &name
	}

	resolved.UnitPrice = domain.EffectiveUnitPrice(product, resolved.Variant)
	return resolved, true, nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCatalogNotFound
		case repoErr.IsUnavailable():
			return ErrCatalogUnavailable
		}
	}
	return ErrCatalogUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
