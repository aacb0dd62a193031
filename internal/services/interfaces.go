package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Product            = domain.Product
	ProductVariant     = domain.ProductVariant
	CartLine           = domain.CartLine
	CartView           = domain.CartView
	CartViewLine       = domain.CartViewLine
	CheckoutSession    = domain.CheckoutSession
	CheckoutState      = domain.CheckoutState
	DeliveryType       = domain.DeliveryType
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService resolves products and variants for cart and order flows.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	GetVariant(ctx context.Context, productID string, variantID string) (ProductVariant, error)
	ListProducts(ctx context.Context, pager Pagination) (domain.CursorPage[Product], error)
	// ResolveLine resolves a cart line against the catalog; ok is false when
	// the product or variant is missing or inactive.
	ResolveLine(ctx context.Context, line CartLine) (ResolvedLine, bool, error)
}

// ResolvedLine is a cart line joined with its catalog data and effective price.
type ResolvedLine struct {
	Line        CartLine
	Product     Product
	Variant     *ProductVariant
	ProductName string
	VariantName *string
	UnitPrice   decimal.Decimal
}

// CartService manages the per-user cart aggregate.
type CartService interface {
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartLine, error)
	UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (CartView, error)
	RemoveItem(ctx context.Context, userID string, lineID string) (CartView, error)
	Clear(ctx context.Context, userID string) (int, error)
	GetCart(ctx context.Context, userID string) (CartView, error)
	Count(ctx context.Context, userID string) (int, error)
}

// AddCartItemCommand carries the inputs for adding a product to the cart.
type AddCartItemCommand struct {
	UserID    string
	ProductID string
	VariantID *string
	Quantity  int
}

// UpdateCartQuantityCommand sets the absolute quantity of an existing line;
// zero removes the line.
type UpdateCartQuantityCommand struct {
	UserID   string
	LineID   string
	Quantity int
}

// CheckoutService drives the guided checkout conversation stored in shared
// session state.
type CheckoutService interface {
	Start(ctx context.Context, userID string) (CheckoutSession, error)
	SubmitName(ctx context.Context, userID string, input string) (CheckoutSession, error)
	SubmitPhone(ctx context.Context, userID string, input string) (CheckoutSession, error)
	ChooseDelivery(ctx context.Context, userID string, deliveryType string) (CheckoutSession, error)
	SubmitAddress(ctx context.Context, userID string, input string) (CheckoutSession, error)
	SubmitComment(ctx context.Context, userID string, input string) (CheckoutSession, error)
	SkipComment(ctx context.Context, userID string) (CheckoutSession, error)
	Back(ctx context.Context, userID string) (CheckoutSession, error)
	Summary(ctx context.Context, userID string) (CheckoutSummary, error)
	Confirm(ctx context.Context, userID string) (Order, error)
	Edit(ctx context.Context, userID string) (CheckoutSession, error)
	Cancel(ctx context.Context, userID string) error
}

// CheckoutSummary bundles the collected answers with the current cart for the
// confirmation step.
type CheckoutSummary struct {
	Session CheckoutSession
	Cart    CartView
}

// OrderService creates orders from completed checkouts and manages their
// status lifecycle.
type OrderService interface {
	CreateFromCheckout(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetByNumber(ctx context.Context, number string) (Order, error)
	ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
}

// CreateOrderCommand carries the checkout answers used to build an order.
type CreateOrderCommand struct {
	UserID       string
	CustomerName string
	Phone        string
	DeliveryType DeliveryType
	Address      string
	Comment      string
}

// OrderStatusTransitionCommand requests a status change for an order.
type OrderStatusTransitionCommand struct {
	OrderID      string
	TargetStatus OrderStatus
}

// CounterService issues formatted sequence numbers backed by atomic counters.
type CounterService interface {
	Next(ctx context.Context, scope string, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextOrderNumber(ctx context.Context) (string, error)
}

// CounterGenerationOptions customises counter increments and formatting.
type CounterGenerationOptions struct {
	Step         int64
	Prefix       string
	Suffix       string
	PadLength    int
	MaxValue     *int64
	InitialValue *int64
	Formatter    func(now time.Time, seq int64) string
}

// CounterValue returns the raw and formatted counter value.
type CounterValue struct {
	Value     int64
	Formatted string
}

// SystemService exposes operational health and readiness information.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
	Readiness(ctx context.Context) (SystemHealthReport, error)
}

// OrderListFilter narrows order listings for services re-exporting repository filters.
type OrderListFilter = repositories.OrderListFilter
