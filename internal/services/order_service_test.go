package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/repositories"
)

type stubOrderRepository struct {
	insertFn       func(context.Context, domain.Order) error
	updateFn       func(context.Context, domain.Order) error
	findByIDFn     func(context.Context, string) (domain.Order, error)
	findByNumberFn func(context.Context, string) (domain.Order, error)
	listFn         func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	inserted       []domain.Order
	updated        []domain.Order
}

func (s *stubOrderRepository) InsertWithCartClear(ctx context.Context, order domain.Order) error {
	s.inserted = append(s.inserted, order)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	s.updated = append(s.updated, order)
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, &stubRepoError{notFound: true}
}

func (s *stubOrderRepository) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	if s.findByNumberFn != nil {
		return s.findByNumberFn(ctx, number)
	}
	return domain.Order{}, &stubRepoError{notFound: true}
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubCounterService struct {
	number string
	err    error
}

func (s *stubCounterService) Next(context.Context, string, string, CounterGenerationOptions) (CounterValue, error) {
	return CounterValue{}, s.err
}

func (s *stubCounterService) NextOrderNumber(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.number, nil
}

type captureEventPublisher struct {
	events []OrderEventMessage
	err    error
}

func (p *captureEventPublisher) PublishOrderEvent(_ context.Context, message OrderEventMessage) (string, error) {
	p.events = append(p.events, message)
	return "msg-1", p.err
}

func orderTestClock() time.Time {
	return time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
}

func newTestOrderService(t *testing.T, orders *stubOrderRepository, carts *stubCartRepository, catalog CatalogService, events OrderEventPublisher) OrderService {
	t.Helper()
	if orders == nil {
		orders = &stubOrderRepository{}
	}
	if carts == nil {
		carts = &stubCartRepository{}
	}
	if catalog == nil {
		catalog = &stubCatalogService{}
	}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      orders,
		Carts:       carts,
		Catalog:     catalog,
		Counter:     &stubCounterService{number: "ORD-20260901-042"},
		Events:      events,
		Clock:       orderTestClock,
		IDGenerator: func() string { return "TESTID" },
	})
	if err != nil {
		t.Fatalf("new order service: %v", err)
	}
	return svc
}

func TestOrderCreateFromCheckoutSnapshotsCart(t *testing.T) {
	lines := []domain.CartLine{
		{ID: "l1", UserID: "u1", ProductID: "p1", Quantity: 2},
		{ID: "l2", UserID: "u1", ProductID: "p2", Quantity: 1},
	}
	carts := &stubCartRepository{
		listByUserFn: func(context.Context, string) ([]domain.CartLine, error) {
			return lines, nil
		},
	}
	catalog := &stubCatalogService{
		resolveLineFn: func(_ context.Context, line CartLine) (ResolvedLine, bool, error) {
			price := "500.00"
			if line.ProductID == "p2" {
				price = "1500.00"
			}
			product := activeProduct(line.ProductID, price)
			return ResolvedLine{Line: line, Product: product, ProductName: product.Name, UnitPrice: product.Price}, true, nil
		},
	}
	orders := &stubOrderRepository{}
	events := &captureEventPublisher{}
	svc := newTestOrderService(t, orders, carts, catalog, events)

	order, err := svc.CreateFromCheckout(context.Background(), CreateOrderCommand{
		UserID:       "u1",
		CustomerName: "John Smith",
		Phone:        "+7 (900) 123-45-67",
		DeliveryType: domain.DeliveryCourier,
		Address:      "Москва, ул. Ленина, д. 1",
	})
	if err != nil {
		t.Fatalf("create from checkout: %v", err)
	}

	if order.Number != "ORD-20260901-042" {
		t.Fatalf("unexpected order number %s", order.Number)
	}
	if order.Status != domain.OrderStatusNew {
		t.Fatalf("expected status new, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if !order.Total.Equal(decimal.RequireFromString("2500.00")) {
		t.Fatalf("expected total 2500.00, got %s", order.Total)
	}
	if !order.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("500.00")) {
		t.Fatalf("expected frozen unit price, got %s", order.Items[0].PriceAtPurchase)
	}
	if len(orders.inserted) != 1 {
		t.Fatalf("expected one transactional insert, got %d", len(orders.inserted))
	}
	if len(events.events) != 1 || events.events[0].Event != "order.created" {
		t.Fatalf("expected order.created event, got %+v", events.events)
	}
}

func TestOrderCreateSkipsUnavailableLines(t *testing.T) {
	lines := []domain.CartLine{
		{ID: "l1", UserID: "u1", ProductID: "p1", Quantity: 1},
		{ID: "l2", UserID: "u1", ProductID: "gone", Quantity: 3},
	}
	carts := &stubCartRepository{
		listByUserFn: func(context.Context, string) ([]domain.CartLine, error) {
			return lines, nil
		},
	}
	catalog := &stubCatalogService{
		resolveLineFn: func(_ context.Context, line CartLine) (ResolvedLine, bool, error) {
			if line.ProductID == "gone" {
				return ResolvedLine{}, false, nil
			}
			product := activeProduct(line.ProductID, "300.00")
			return ResolvedLine{Line: line, Product: product, ProductName: product.Name, UnitPrice: product.Price}, true, nil
		},
	}
	svc := newTestOrderService(t, nil, carts, catalog, nil)

	order, err := svc.CreateFromCheckout(context.Background(), CreateOrderCommand{
		UserID:       "u1",
		CustomerName: "John Smith",
		Phone:        "+7 (900) 123-45-67",
		DeliveryType: domain.DeliveryPickup,
	})
	if err != nil {
		t.Fatalf("create from checkout: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected unavailable line skipped, got %d items", len(order.Items))
	}
	if !order.Total.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected total 300.00, got %s", order.Total)
	}
}

func TestOrderCreateFailsWhenNothingResolvable(t *testing.T) {
	carts := &stubCartRepository{
		listByUserFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{{ID: "l1", UserID: "u1", ProductID: "gone", Quantity: 1}}, nil
		},
	}
	svc := newTestOrderService(t, nil, carts, &stubCatalogService{}, nil)

	_, err := svc.CreateFromCheckout(context.Background(), CreateOrderCommand{
		UserID:       "u1",
		CustomerName: "John Smith",
		Phone:        "+7 (900) 123-45-67",
		DeliveryType: domain.DeliveryPickup,
	})
	if !errors.Is(err, ErrOrderEmptyCart) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestOrderCreateRequiresAddressForCourier(t *testing.T) {
	svc := newTestOrderService(t, nil, nil, nil, nil)

	_, err := svc.CreateFromCheckout(context.Background(), CreateOrderCommand{
		UserID:       "u1",
		CustomerName: "John Smith",
		Phone:        "+7 (900) 123-45-67",
		DeliveryType: domain.DeliveryCourier,
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestOrderStatusForwardTransitions(t *testing.T) {
	current := domain.Order{ID: "ord_1", Number: "ORD-20260901-001", UserID: "u1", Status: domain.OrderStatusNew}
	orders := &stubOrderRepository{
		findByIDFn: func(context.Context, string) (domain.Order, error) {
			return current, nil
		},
	}
	events := &captureEventPublisher{}
	svc := newTestOrderService(t, orders, nil, nil, events)
	ctx := context.Background()

	chain := []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReady,
		domain.OrderStatusDelivering,
		domain.OrderStatusDelivered,
	}
	for _, target := range chain {
		updated, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{OrderID: "ord_1", TargetStatus: target})
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("expected status %s, got %s", target, updated.Status)
		}
		current = updated
	}

	if len(events.events) != len(chain) {
		t.Fatalf("expected %d status events, got %d", len(chain), len(events.events))
	}
	if events.events[0].PrevStatus != string(domain.OrderStatusNew) {
		t.Fatalf("expected prev status new, got %s", events.events[0].PrevStatus)
	}
}

func TestOrderStatusRejectsSkippingSteps(t *testing.T) {
	orders := &stubOrderRepository{
		findByIDFn: func(context.Context, string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", Status: domain.OrderStatusNew}, nil
		},
	}
	svc := newTestOrderService(t, orders, nil, nil, nil)

	_, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{OrderID: "ord_1", TargetStatus: domain.OrderStatusDelivered})
	if !errors.Is(err, ErrOrderInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestOrderCancelFromAnyNonTerminalStatus(t *testing.T) {
	for _, from := range []domain.OrderStatus{
		domain.OrderStatusNew,
		domain.OrderStatusProcessing,
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReady,
		domain.OrderStatusDelivering,
	} {
		orders := &stubOrderRepository{
			findByIDFn: func(context.Context, string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", Status: from}, nil
			},
		}
		svc := newTestOrderService(t, orders, nil, nil, nil)

		order, err := svc.Cancel(context.Background(), "ord_1")
		if err != nil {
			t.Fatalf("cancel from %s: %v", from, err)
		}
		if order.Status != domain.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %s", order.Status)
		}
	}
}

func TestOrderCancelRejectedForTerminalStatuses(t *testing.T) {
	for _, from := range []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
		orders := &stubOrderRepository{
			findByIDFn: func(context.Context, string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", Status: from}, nil
			},
		}
		svc := newTestOrderService(t, orders, nil, nil, nil)

		_, err := svc.Cancel(context.Background(), "ord_1")
		if from == domain.OrderStatusCancelled {
			// Cancelling a cancelled order is a no-op, not an error.
			if err != nil {
				t.Fatalf("cancel from cancelled: %v", err)
			}
			continue
		}
		if !errors.Is(err, ErrOrderInvalidTransition) {
			t.Fatalf("expected invalid transition from %s, got %v", from, err)
		}
	}
}

func TestOrderGetByNumberMapsNotFound(t *testing.T) {
	svc := newTestOrderService(t, nil, nil, nil, nil)

	_, err := svc.GetByNumber(context.Background(), "ORD-20260901-999")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderEventPublishFailureDoesNotFailCreate(t *testing.T) {
	carts := &stubCartRepository{
		listByUserFn: func(context.Context, string) ([]domain.CartLine, error) {
			return []domain.CartLine{{ID: "l1", UserID: "u1", ProductID: "p1", Quantity: 1}}, nil
		},
	}
	catalog := &stubCatalogService{
		resolveLineFn: func(_ context.Context, line CartLine) (ResolvedLine, bool, error) {
			product := activeProduct(line.ProductID, "100.00")
			return ResolvedLine{Line: line, Product: product, ProductName: product.Name, UnitPrice: product.Price}, true, nil
		},
	}
	events := &captureEventPublisher{err: errors.New("broker down")}
	svc := newTestOrderService(t, nil, carts, catalog, events)

	if _, err := svc.CreateFromCheckout(context.Background(), CreateOrderCommand{
		UserID:       "u1",
		CustomerName: "John Smith",
		Phone:        "+7 (900) 123-45-67",
		DeliveryType: domain.DeliveryPickup,
	}); err != nil {
		t.Fatalf("create should tolerate publish failure: %v", err)
	}
}
