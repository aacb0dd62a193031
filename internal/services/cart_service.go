package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/repositories"
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartNotFound indicates the requested cart line does not exist.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrCartProductUnavailable indicates the product is missing or inactive.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartInsufficientStock indicates the variant cannot cover the requested quantity.
	ErrCartInsufficientStock = errors.New("cart: insufficient stock")
	// ErrCartUnavailable indicates the cart backend cannot be reached.
	ErrCartUnavailable = errors.New("cart: unavailable")
)

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Catalog    CatalogService
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	repo    repositories.CartRepository
	catalog CatalogService
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errors.New("cart service: repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		now:     func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// AddItem adds a product to the cart. Adding a (product, variant) pair the
// user already holds increments the existing line's quantity instead of
// creating a second line.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartLine, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" || productID == "" {
		return CartLine{}, ErrCartInvalidInput
	}
	if cmd.Quantity < 1 {
		return CartLine{}, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrCatalogNotFound) {
			return CartLine{}, ErrCartProductUnavailable
		}
		return CartLine{}, ErrCartUnavailable
	}
	if !product.IsActive {
		return CartLine{}, ErrCartProductUnavailable
	}

	var variant *domain.ProductVariant
	if cmd.VariantID != nil && strings.TrimSpace(*cmd.VariantID) != "" {
		v, err := s.catalog.GetVariant(ctx, productID, *cmd.VariantID)
		if err != nil {
			if errors.Is(err, ErrCatalogNotFound) {
				return CartLine{}, ErrCartProductUnavailable
			}
			return CartLine{}, ErrCartUnavailable
		}
		if !v.IsActive {
			return CartLine{}, ErrCartProductUnavailable
		}
		variant = &v
	}

	now := s.now()
	line := domain.CartLine{
		UserID:    userID,
		ProductID: productID,
		VariantID: cmd.VariantID,
		Quantity:  cmd.Quantity,
		AddedAt:   now,
		UpdatedAt: now,
	}

	existing, err := s.repo.FindByProduct(ctx, userID, productID, cmd.VariantID)
	switch {
	case err == nil:
		line.Quantity = existing.Quantity + cmd.Quantity
		line.AddedAt = existing.AddedAt
	case isRepoNotFound(err):
		// first line for this pair
	default:
		return CartLine{}, s.translateRepoError(err)
	}

	// Stock is checked against the merged line quantity, so repeated adds
	// cannot creep past the variant's available units.
	if variant != nil && line.Quantity > variant.Stock {
		return CartLine{}, fmt.Errorf("%w: %d available", ErrCartInsufficientStock, variant.Stock)
	}

	saved, err := s.repo.Upsert(ctx, line)
	if err != nil {
		return CartLine{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.item_added", map[string]any{
		"userID":    userID,
		"productID": productID,
		"quantity":  saved.Quantity,
	})
	return saved, nil
}

// UpdateQuantity sets the absolute quantity of a line; zero removes it.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (CartView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	lineID := strings.TrimSpace(cmd.LineID)
	if userID == "" || lineID == "" {
		return CartView{}, ErrCartInvalidInput
	}
	if cmd.Quantity < 0 {
		return CartView{}, fmt.Errorf("%w: quantity must not be negative", ErrCartInvalidInput)
	}

	line, err := s.repo.FindLine(ctx, userID, lineID)
	if err != nil {
		return CartView{}, s.translateRepoError(err)
	}

	if cmd.Quantity == 0 {
		if err := s.repo.Delete(ctx, userID, lineID); err != nil {
			return CartView{}, s.translateRepoError(err)
		}
		return s.GetCart(ctx, userID)
	}

	line.Quantity = cmd.Quantity
	line.UpdatedAt = s.now()
	if _, err := s.repo.Upsert(ctx, line); err != nil {
		return CartView{}, s.translateRepoError(err)
	}
	return s.GetCart(ctx, userID)
}

// RemoveItem removes a single line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID string, lineID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	lid := strings.TrimSpace(lineID)
	if uid == "" || lid == "" {
		return CartView{}, ErrCartInvalidInput
	}
	if err := s.repo.Delete(ctx, uid, lid); err != nil {
		return CartView{}, s.translateRepoError(err)
	}
	return s.GetCart(ctx, uid)
}

// Clear removes every line from the user's cart and reports how many lines
// were removed.
func (s *cartService) Clear(ctx context.Context, userID string) (int, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return 0, ErrCartInvalidInput
	}
	removed, err := s.repo.DeleteAll(ctx, uid)
	if err != nil {
		return 0, s.translateRepoError(err)
	}
	return removed, nil
}

// GetCart resolves the user's lines against the catalog and totals them.
// Lines whose product is gone or inactive are reported as unavailable and
// contribute nothing to the total.
func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CartView{}, ErrCartInvalidInput
	}

	lines, err := s.repo.ListByUser(ctx, uid)
	if err != nil {
		return CartView{}, s.translateRepoError(err)
	}

	view := CartView{UserID: uid, Lines: make([]domain.CartViewLine, 0, len(lines)), Total: decimal.Zero}
	for _, line := range lines {
		resolved, ok, err := s.catalog.ResolveLine(ctx, line)
		if err != nil {
			return CartView{}, ErrCartUnavailable
		}
		if !ok {
			s.logger(ctx, "cart.line_unavailable", map[string]any{
				"userID":    uid,
				"lineID":    line.ID,
				"productID": line.ProductID,
			})
			view.Lines = append(view.Lines, domain.CartViewLine{
				LineID:      line.ID,
				ProductID:   line.ProductID,
				VariantID:   line.VariantID,
				Quantity:    line.Quantity,
				Unavailable: true,
			})
			continue
		}

		subtotal := domain.LineSubtotal(resolved.UnitPrice, line.Quantity)
		view.Lines = append(view.Lines, domain.CartViewLine{
			LineID:      line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: resolved.ProductName,
			VariantName: resolved.VariantName,
			UnitPrice:   resolved.UnitPrice,
			Quantity:    line.Quantity,
			Subtotal:    subtotal,
		})
		view.Total = view.Total.Add(subtotal)
	}
	return view, nil
}

// Count returns the number of lines in the user's cart.
func (s *cartService) Count(ctx context.Context, userID string) (int, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return 0, ErrCartInvalidInput
	}
	count, err := s.repo.Count(ctx, uid)
	if err != nil {
		return 0, s.translateRepoError(err)
	}
	return count, nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}
