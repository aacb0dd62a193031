package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/platform/httpx"
	"github.com/teleshop/api/internal/platform/pagination"
	"github.com/teleshop/api/internal/services"
)

// CatalogHandlers exposes public product browsing endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

const (
	defaultCatalogPageSize = 20
	maxCatalogPageSize     = 100
)

// NewCatalogHandlers constructs unauthenticated catalog endpoints.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/variants/{variantID}", h.getVariant)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultCatalogPageSize,
		MaxPageSize:     maxCatalogPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be a positive integer", http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListProducts(ctx, domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	})
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	payload := productsResponse{
		Products:      make([]productPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, product := range page.Items {
		payload.Products = append(payload.Products, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) getVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	variant, err := h.catalog.GetVariant(ctx, chi.URLParam(r, "productID"), chi.URLParam(r, "variantID"))
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"variant": buildVariantPayload(variant)})
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog operation failed", http.StatusInternalServerError))
	}
}

type productsResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productPayload struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Price         string  `json:"price"`
	DiscountPrice *string `json:"discount_price,omitempty"`
	CategoryID    *string `json:"category_id,omitempty"`
	IsActive      bool    `json:"is_active"`
}

type variantPayload struct {
	ID            string  `json:"id"`
	ProductID     string  `json:"product_id"`
	Name          string  `json:"name"`
	PriceOverride *string `json:"price_override,omitempty"`
	Stock         int     `json:"stock"`
	IsActive      bool    `json:"is_active"`
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price.StringFixed(2),
		CategoryID:  cloneStringPointer(product.CategoryID),
		IsActive:    product.IsActive,
	}
	if product.DiscountPrice != nil {
		v := product.DiscountPrice.StringFixed(2)
		payload.DiscountPrice = &v
	}
	return payload
}

func buildVariantPayload(variant services.ProductVariant) variantPayload {
	payload := variantPayload{
		ID:        variant.ID,
		ProductID: variant.ProductID,
		Name:      variant.Name,
		Stock:     variant.Stock,
		IsActive:  variant.IsActive,
	}
	if variant.PriceOverride != nil {
		v := variant.PriceOverride.StringFixed(2)
		payload.PriceOverride = &v
	}
	return payload
}
