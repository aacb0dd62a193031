package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied malformed order data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderEmptyCart indicates the cart held no purchasable items at confirmation.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderUnavailable indicates a dependency failed while serving the request.
	ErrOrderUnavailable = errors.New("order: temporarily unavailable")
)

// orderStateTransitions lists the permitted forward moves for each status.
// Cancellation is handled separately because it is reachable from every
// non-terminal status.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusNew:        {domain.OrderStatusProcessing},
	domain.OrderStatusProcessing: {domain.OrderStatusConfirmed},
	domain.OrderStatusConfirmed:  {domain.OrderStatusPreparing},
	domain.OrderStatusPreparing:  {domain.OrderStatusReady},
	domain.OrderStatusReady:      {domain.OrderStatusDelivering},
	domain.OrderStatusDelivering: {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCancelled:  {},
}

var cancellableStatuses = []domain.OrderStatus{
	domain.OrderStatusNew,
	domain.OrderStatusProcessing,
	domain.OrderStatusConfirmed,
	domain.OrderStatusPreparing,
	domain.OrderStatusReady,
	domain.OrderStatusDelivering,
}

// OrderEventMessage is the payload published when an order is created or
// changes status.
type OrderEventMessage struct {
	Event      string `json:"event"`
	OrderID    string `json:"orderId"`
	Number     string `json:"number"`
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	PrevStatus string `json:"prevStatus,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

// OrderEventPublisher delivers order lifecycle events to interested consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// OrderServiceDeps bundles dependencies for the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Carts       repositories.CartRepository
	Catalog     CatalogService
	Counter     CounterService
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders  repositories.OrderRepository
	carts   repositories.CartRepository
	catalog CatalogService
	counter CounterService
	events  OrderEventPublisher
	now     func() time.Time
	newID   func() string
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService wires order creation and lifecycle management.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, fmt.Errorf("order service requires an order repository")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("order service requires a cart repository")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("order service requires a catalog service")
	}
	if deps.Counter == nil {
		return nil, fmt.Errorf("order service requires a counter service")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = defaultIDGenerator
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		orders:  deps.Orders,
		carts:   deps.Carts,
		catalog: deps.Catalog,
		counter: deps.Counter,
		events:  deps.Events,
		now:     func() time.Time { return clock().UTC() },
		newID:   newID,
		logger:  logger,
	}, nil
}

// CreateFromCheckout snapshots the cart into a new order. The order write and
// the cart clear happen in one transaction; either both land or neither does.
// Unit prices are frozen at this moment and never re-read from the catalog.
func (s *orderService) CreateFromCheckout(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	name := strings.TrimSpace(cmd.CustomerName)
	phone := strings.TrimSpace(cmd.Phone)
	if userID == "" || name == "" || phone == "" {
		return Order{}, fmt.Errorf("%w: user id, customer name and phone are required", ErrOrderInvalidInput)
	}
	switch cmd.DeliveryType {
	case domain.DeliveryCourier:
		if strings.TrimSpace(cmd.Address) == "" {
			return Order{}, fmt.Errorf("%w: courier delivery requires an address", ErrOrderInvalidInput)
		}
	case domain.DeliveryPickup:
	default:
		return Order{}, fmt.Errorf("%w: unknown delivery type %q", ErrOrderInvalidInput, cmd.DeliveryType)
	}

	lines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	now := s.now()
	orderID := "ord_" + s.newID()
	items := make([]domain.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		resolved, ok, err := s.catalog.ResolveLine(ctx, line)
		if err != nil {
			return Order{}, fmt.Errorf("%w: resolve cart line: %v", ErrOrderUnavailable, err)
		}
		if !ok {
			// Products retired while the customer was checking out simply
			// drop out of the order.
			s.logger(ctx, "order.line_skipped", map[string]any{
				"userId":    userID,
				"lineId":    line.ID,
				"productId": line.ProductID,
			})
			continue
		}
		subtotal := domain.LineSubtotal(resolved.UnitPrice, line.Quantity)
		items = append(items, domain.OrderItem{
			ID:              "itm_" + s.newID(),
			OrderID:         orderID,
			ProductID:       line.ProductID,
			VariantID:       line.VariantID,
			ProductName:     resolved.ProductName,
			VariantName:     resolved.VariantName,
			PriceAtPurchase: resolved.UnitPrice,
			Quantity:        line.Quantity,
			Subtotal:        subtotal,
		})
		total = total.Add(subtotal)
	}
	if len(items) == 0 {
		return Order{}, ErrOrderEmptyCart
	}

	number, err := s.counter.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("%w: assign order number: %v", ErrOrderUnavailable, err)
	}

	order := domain.Order{
		ID:           orderID,
		Number:       number,
		UserID:       userID,
		CustomerName: name,
		Phone:        phone,
		DeliveryType: cmd.DeliveryType,
		Status:       domain.OrderStatusNew,
		Total:        total,
		Items:        items,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cmd.DeliveryType == domain.DeliveryCourier {
		order.Address = valuePtr(strings.TrimSpace(cmd.Address))
	}
	if comment := strings.TrimSpace(cmd.Comment); comment != "" {
		order.Comment = valuePtr(comment)
	}

	if err := s.orders.InsertWithCartClear(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      "order.created",
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		Status:     string(order.Status),
		OccurredAt: now.Format(time.RFC3339),
	})
	s.logger(ctx, "order.created", map[string]any{
		"orderId": order.ID,
		"number":  order.Number,
		"userId":  order.UserID,
		"total":   order.Total.String(),
		"items":   len(order.Items),
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) GetByNumber(ctx context.Context, number string) (Order, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListByUser(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Pagination: pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// TransitionStatus advances an order along its lifecycle. Only the single
// next forward step, or cancellation, is permitted.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if _, ok := orderStateTransitions[cmd.TargetStatus]; !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return s.applyStatusTransition(ctx, order, cmd.TargetStatus)
}

// Cancel moves an order to cancelled from any non-terminal status.
func (s *orderService) Cancel(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return s.applyStatusTransition(ctx, order, domain.OrderStatusCancelled)
}

func (s *orderService) applyStatusTransition(ctx context.Context, order domain.Order, target domain.OrderStatus) (Order, error) {
	if order.Status == target {
		return order, nil
	}
	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, target)
	}

	prev := order.Status
	order.Status = target
	order.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:      "order.status_changed",
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		Status:     string(order.Status),
		PrevStatus: string(prev),
		OccurredAt: order.UpdatedAt.Format(time.RFC3339),
	})
	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": order.ID,
		"from":    string(prev),
		"to":      string(target),
	})
	return order, nil
}

func canTransition(from domain.OrderStatus, to domain.OrderStatus) bool {
	if to == domain.OrderStatusCancelled {
		return slices.Contains(cancellableStatuses, from)
	}
	return slices.Contains(orderStateTransitions[from], to)
}

// publishEvent delivers the event on a best-effort basis; order persistence
// never depends on the broker being up.
func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"orderId": message.OrderID,
			"event":   message.Event,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return fmt.Errorf("%w: conflicting write", ErrOrderUnavailable)
		}
	}
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}

func valuePtr[T any](v T) *T {
	return &v
}
