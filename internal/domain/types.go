package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Product represents a storefront catalog entry.
type Product struct {
	ID            string
	Name          string
	Description   string
	Price         decimal.Decimal
	DiscountPrice *decimal.Decimal
	CategoryID    *string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductVariant stores a purchasable variation of a product (size, color).
// Stock counts the units available for sale; adds beyond it are refused.
type ProductVariant struct {
	ID            string
	ProductID     string
	Name          string
	PriceOverride *decimal.Decimal
	Stock         int
	IsActive      bool
	CreatedAt     time.Time
}

// CartLine stores one product/variant entry in a user's cart. A user holds at
// most one line per (product, variant) pair; adding the same pair again bumps
// the quantity on the existing line.
type CartLine struct {
	ID        string
	UserID    string
	ProductID string
	VariantID *string
	Quantity  int
	AddedAt   time.Time
	UpdatedAt time.Time
}

// CartViewLine is a cart line resolved against the catalog for presentation
// and totalling. Unavailable marks lines whose product is missing or inactive;
// such lines contribute nothing to the cart total.
type CartViewLine struct {
	LineID      string
	ProductID   string
	VariantID   *string
	ProductName string
	VariantName *string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
	Unavailable bool
}

// CartView aggregates resolved cart lines with the running total.
type CartView struct {
	UserID string
	Lines  []CartViewLine
	Total  decimal.Decimal
}

// DeliveryType enumerates supported order delivery methods.
type DeliveryType string

const (
	// DeliveryCourier indicates delivery to a customer-provided address.
	DeliveryCourier DeliveryType = "courier"
	// DeliveryPickup indicates in-store pickup; no address is collected.
	DeliveryPickup DeliveryType = "pickup"
)

// CheckoutState enumerates the steps of the guided checkout conversation.
type CheckoutState string

const (
	// CheckoutStateAwaitingName expects the customer's full name.
	CheckoutStateAwaitingName CheckoutState = "awaiting_name"
	// CheckoutStateAwaitingPhone expects a contact phone number.
	CheckoutStateAwaitingPhone CheckoutState = "awaiting_phone"
	// CheckoutStateAwaitingDeliveryType expects a courier/pickup choice.
	CheckoutStateAwaitingDeliveryType CheckoutState = "awaiting_delivery_type"
	// CheckoutStateAwaitingAddress expects a delivery address (courier only).
	CheckoutStateAwaitingAddress CheckoutState = "awaiting_address"
	// CheckoutStateAwaitingComment expects an optional order comment.
	CheckoutStateAwaitingComment CheckoutState = "awaiting_comment"
	// CheckoutStateAwaitingConfirmation expects a final confirm/edit/cancel.
	CheckoutStateAwaitingConfirmation CheckoutState = "awaiting_confirmation"
)

// CheckoutSession carries the state and collected answers of one in-flight
// checkout conversation. Sessions live in shared storage keyed by user so any
// replica can continue the conversation; completion or cancellation deletes
// the session.
type CheckoutSession struct {
	ID           string
	UserID       string
	State        CheckoutState
	Name         string
	Phone        string
	DeliveryType DeliveryType
	Address      string
	Comment      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    time.Time
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusNew indicates the order has been placed and not yet picked up by staff.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusProcessing indicates staff is reviewing the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusConfirmed indicates the order has been confirmed with the customer.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the order is being assembled.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady indicates the order is assembled and awaits handoff.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivering indicates the order is out for delivery.
	OrderStatusDelivering OrderStatus = "delivering"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order captures an order header as stored and returned to handlers.
type Order struct {
	ID           string
	Number       string
	UserID       string
	CustomerName string
	Phone        string
	DeliveryType DeliveryType
	Address      *string
	Comment      *string
	Status       OrderStatus
	Total        decimal.Decimal
	Items        []OrderItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem mirrors a cart line at the moment of purchase. Product and variant
// names plus the unit price are denormalized so later catalog edits never
// change what the customer agreed to pay.
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	VariantID       *string
	ProductName     string
	VariantName     *string
	PriceAtPurchase decimal.Decimal
	Quantity        int
	Subtotal        decimal.Decimal
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
