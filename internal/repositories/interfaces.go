package repositories

import (
	"context"
	"time"

	domain "github.com/teleshop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Carts() CartRepository
	CheckoutSessions() CheckoutSessionRepository
	Orders() OrderRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository reads catalog entries and their variants.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindVariant(ctx context.Context, productID string, variantID string) (domain.ProductVariant, error)
	ListActive(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Product], error)
}

// CartRepository owns per-user cart line persistence. Lines are keyed by
// (user, product, variant); Upsert replaces the matching line wholesale.
type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	FindLine(ctx context.Context, userID string, lineID string) (domain.CartLine, error)
	FindByProduct(ctx context.Context, userID string, productID string, variantID *string) (domain.CartLine, error)
	Upsert(ctx context.Context, line domain.CartLine) (domain.CartLine, error)
	Delete(ctx context.Context, userID string, lineID string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	Count(ctx context.Context, userID string) (int, error)
}

// CheckoutSessionRepository stores in-flight checkout conversations keyed by
// user so any replica can continue them.
type CheckoutSessionRepository interface {
	Get(ctx context.Context, userID string) (domain.CheckoutSession, error)
	Save(ctx context.Context, session domain.CheckoutSession) error
	Delete(ctx context.Context, userID string) error
}

// OrderRepository persists order headers with embedded items and provides
// query helpers for customers and staff.
type OrderRepository interface {
	// InsertWithCartClear writes the order and removes the user's cart lines
	// in one transaction; either both happen or neither does.
	InsertWithCartClear(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, number string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	After      *time.Time
	Before     *time.Time
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
