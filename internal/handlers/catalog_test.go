package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/services"
)

type stubCatalogService struct {
	getProductFn  func(context.Context, string) (services.Product, error)
	getVariantFn  func(context.Context, string, string) (services.ProductVariant, error)
	listFn        func(context.Context, domain.Pagination) (domain.CursorPage[services.Product], error)
	resolveLineFn func(context.Context, services.CartLine) (services.ResolvedLine, bool, error)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getProductFn != nil {
		return s.getProductFn(ctx, productID)
	}
	return services.Product{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) GetVariant(ctx context.Context, productID string, variantID string) (services.ProductVariant, error) {
	if s.getVariantFn != nil {
		return s.getVariantFn(ctx, productID, variantID)
	}
	return services.ProductVariant{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) ListProducts(ctx context.Context, pager domain.Pagination) (domain.CursorPage[services.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, pager)
	}
	return domain.CursorPage[services.Product]{}, nil
}

func (s *stubCatalogService) ResolveLine(ctx context.Context, line services.CartLine) (services.ResolvedLine, bool, error) {
	if s.resolveLineFn != nil {
		return s.resolveLineFn(ctx, line)
	}
	return services.ResolvedLine{}, false, nil
}

func newCatalogRouter(catalog services.CatalogService) chi.Router {
	h := NewCatalogHandlers(catalog)
	r := chi.NewRouter()
	r.Route("/catalog", h.Routes)
	return r
}

func TestCatalogHandlersListProducts(t *testing.T) {
	discount := decimal.RequireFromString("80.00")
	catalog := &stubCatalogService{
		listFn: func(_ context.Context, pager domain.Pagination) (domain.CursorPage[services.Product], error) {
			if pager.PageSize != defaultCatalogPageSize {
				t.Fatalf("expected default page size, got %d", pager.PageSize)
			}
			return domain.CursorPage[services.Product]{
				Items: []services.Product{
					{
						ID:            "p1",
						Name:          "Tea",
						Price:         decimal.RequireFromString("100.00"),
						DiscountPrice: &discount,
						IsActive:      true,
					},
				},
				NextPageToken: "tok2",
			}, nil
		},
	}
	router := newCatalogRouter(catalog)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Products      []productPayload `json:"products"`
		NextPageToken string           `json:"next_page_token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(body.Products) != 1 || body.NextPageToken != "tok2" {
		t.Fatalf("unexpected page %+v", body)
	}
	product := body.Products[0]
	if product.Price != "100.00" {
		t.Fatalf("expected price 100.00, got %s", product.Price)
	}
	if product.DiscountPrice == nil || *product.DiscountPrice != "80.00" {
		t.Fatalf("unexpected discount price %v", product.DiscountPrice)
	}
}

func TestCatalogHandlersGetProductNotFound(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "product_not_found" {
		t.Fatalf("expected product_not_found error code, got %v", body["error"])
	}
}

func TestCatalogHandlersGetVariant(t *testing.T) {
	override := decimal.RequireFromString("150.00")
	catalog := &stubCatalogService{
		getVariantFn: func(_ context.Context, productID string, variantID string) (services.ProductVariant, error) {
			if productID != "p1" || variantID != "v1" {
				return services.ProductVariant{}, services.ErrCatalogNotFound
			}
			return services.ProductVariant{
				ID:            "v1",
				ProductID:     "p1",
				Name:          "Large",
				PriceOverride: &override,
				IsActive:      true,
			}, nil
		},
	}
	router := newCatalogRouter(catalog)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products/p1/variants/v1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Variant variantPayload `json:"variant"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.Variant.Name != "Large" {
		t.Fatalf("unexpected variant %+v", body.Variant)
	}
	if body.Variant.PriceOverride == nil || *body.Variant.PriceOverride != "150.00" {
		t.Fatalf("unexpected price override %v", body.Variant.PriceOverride)
	}
}

func TestCatalogHandlersListProductsClampsPageSize(t *testing.T) {
	catalog := &stubCatalogService{
		listFn: func(_ context.Context, pager domain.Pagination) (domain.CursorPage[services.Product], error) {
			if pager.PageSize != maxCatalogPageSize {
				t.Fatalf("expected page size clamped to %d, got %d", maxCatalogPageSize, pager.PageSize)
			}
			if pager.PageToken != "tok1" {
				t.Fatalf("expected page token tok1, got %q", pager.PageToken)
			}
			return domain.CursorPage[services.Product]{}, nil
		},
	}
	router := newCatalogRouter(catalog)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products?page_size=5000&page_token=tok1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCatalogHandlersListProductsRejectsBadPageSize(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalog/products?page_size=-1", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
