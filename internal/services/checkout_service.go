package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/teleshop/api/internal/domain"
	"github.com/teleshop/api/internal/repositories"
	"github.com/teleshop/api/internal/validation"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied malformed checkout data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutSessionNotFound indicates no active checkout exists for the user.
	ErrCheckoutSessionNotFound = errors.New("checkout: session not found")
	// ErrCheckoutWrongState indicates the requested action does not apply to the current step.
	ErrCheckoutWrongState = errors.New("checkout: action not allowed in current state")
	// ErrCheckoutEmptyCart indicates the cart holds no purchasable items.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutUnavailable indicates a dependency failed while serving the request.
	ErrCheckoutUnavailable = errors.New("checkout: temporarily unavailable")
)

const defaultCheckoutSessionTTL = 30 * time.Minute

// CheckoutServiceDeps bundles dependencies for the checkout service.
type CheckoutServiceDeps struct {
	Sessions    repositories.CheckoutSessionRepository
	Cart        CartService
	Orders      OrderService
	SessionTTL  time.Duration
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	sessions repositories.CheckoutSessionRepository
	cart     CartService
	orders   OrderService
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService wires the guided checkout conversation on top of shared
// session storage.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("checkout service requires a session repository")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("checkout service requires a cart service")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("checkout service requires an order service")
	}
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = defaultCheckoutSessionTTL
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
	return &checkoutService{
		sessions: deps.Sessions,
		cart:     deps.Cart,
		orders:   deps.Orders,
		ttl:      ttl,
		now:      func() time.Time { return clock().UTC() },
		newID:    newID,
		logger:   logger,
	}, nil
}

// Start opens a fresh checkout for the user. An existing in-flight session is
// replaced, so re-entering checkout always begins at the name step.
func (s *checkoutService) Start(ctx context.Context, userID string) (CheckoutSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}

	count, err := s.cart.Count(ctx, userID)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: count cart items: %v", ErrCheckoutUnavailable, err)
	}
	if count == 0 {
		return CheckoutSession{}, ErrCheckoutEmptyCart
	}

	now := s.now()
	session := domain.CheckoutSession{
		ID:        "chk_" + s.newID(),
		UserID:    userID,
		State:     domain.CheckoutStateAwaitingName,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return CheckoutSession{}, s.translateRepoError(err)
	}
	s.logger(ctx, "checkout.started", map[string]any{
		"userId":    userID,
		"sessionId": session.ID,
	})
	return session, nil
}

func (s *checkoutService) SubmitName(ctx context.Context, userID string, input string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingName)
	if err != nil {
		return CheckoutSession{}, err
	}
	name, err := validation.Name(input)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, err)
	}
	session.Name = name
	session.State = domain.CheckoutStateAwaitingPhone
	return s.saveSession(ctx, session)
}

func (s *checkoutService) SubmitPhone(ctx context.Context, userID string, input string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingPhone)
	if err != nil {
		return CheckoutSession{}, err
	}
	phone, err := validation.Phone(input)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, err)
	}
	session.Phone = phone
	session.State = domain.CheckoutStateAwaitingDeliveryType
	return s.saveSession(ctx, session)
}

func (s *checkoutService) ChooseDelivery(ctx context.Context, userID string, deliveryType string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingDeliveryType)
	if err != nil {
		return CheckoutSession{}, err
	}
	switch domain.DeliveryType(strings.ToLower(strings.TrimSpace(deliveryType))) {
	case domain.DeliveryCourier:
		session.DeliveryType = domain.DeliveryCourier
		session.State = domain.CheckoutStateAwaitingAddress
	case domain.DeliveryPickup:
		session.DeliveryType = domain.DeliveryPickup
		session.Address = ""
		session.State = domain.CheckoutStateAwaitingComment
	default:
		return CheckoutSession{}, fmt.Errorf("%w: delivery type must be %q or %q", ErrCheckoutInvalidInput, domain.DeliveryCourier, domain.DeliveryPickup)
	}
	return s.saveSession(ctx, session)
}

func (s *checkoutService) SubmitAddress(ctx context.Context, userID string, input string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingAddress)
	if err != nil {
		return CheckoutSession{}, err
	}
	address, err := validation.Address(input)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, err)
	}
	session.Address = address
	session.State = domain.CheckoutStateAwaitingComment
	return s.saveSession(ctx, session)
}

func (s *checkoutService) SubmitComment(ctx context.Context, userID string, input string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingComment)
	if err != nil {
		return CheckoutSession{}, err
	}
	comment, err := validation.Comment(input)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %w", ErrCheckoutInvalidInput, err)
	}
	session.Comment = comment
	session.State = domain.CheckoutStateAwaitingConfirmation
	return s.saveSession(ctx, session)
}

func (s *checkoutService) SkipComment(ctx context.Context, userID string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingComment)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.Comment = ""
	session.State = domain.CheckoutStateAwaitingConfirmation
	return s.saveSession(ctx, session)
}

// Back steps the conversation to the previous question. Only the delivery and
// comment steps support going back.
func (s *checkoutService) Back(ctx context.Context, userID string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID)
	if err != nil {
		return CheckoutSession{}, err
	}
	switch session.State {
	case domain.CheckoutStateAwaitingDeliveryType:
		session.State = domain.CheckoutStateAwaitingPhone
	case domain.CheckoutStateAwaitingComment:
		if session.DeliveryType == domain.DeliveryCourier {
			session.State = domain.CheckoutStateAwaitingAddress
		} else {
			session.State = domain.CheckoutStateAwaitingDeliveryType
		}
	default:
		return CheckoutSession{}, fmt.Errorf("%w: cannot go back from %s", ErrCheckoutWrongState, session.State)
	}
	return s.saveSession(ctx, session)
}

func (s *checkoutService) Summary(ctx context.Context, userID string) (CheckoutSummary, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingConfirmation)
	if err != nil {
		return CheckoutSummary{}, err
	}
	cart, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return CheckoutSummary{}, fmt.Errorf("%w: load cart: %v", ErrCheckoutUnavailable, err)
	}
	return CheckoutSummary{Session: session, Cart: cart}, nil
}

// Confirm finalizes the checkout: the order service snapshots the cart into an
// order and clears it atomically, then the session is destroyed.
func (s *checkoutService) Confirm(ctx context.Context, userID string) (Order, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingConfirmation)
	if err != nil {
		return Order{}, err
	}

	order, err := s.orders.CreateFromCheckout(ctx, CreateOrderCommand{
		UserID:       session.UserID,
		CustomerName: session.Name,
		Phone:        session.Phone,
		DeliveryType: session.DeliveryType,
		Address:      session.Address,
		Comment:      session.Comment,
	})
	if err != nil {
		if errors.Is(err, ErrOrderEmptyCart) {
			return Order{}, ErrCheckoutEmptyCart
		}
		return Order{}, err
	}

	if err := s.sessions.Delete(ctx, userID); err != nil {
		// The order exists; a stale session is an acceptable leftover.
		s.logger(ctx, "checkout.session_cleanup_failed", map[string]any{
			"userId": userID,
			"error":  err.Error(),
		})
	}
	s.logger(ctx, "checkout.confirmed", map[string]any{
		"userId":  userID,
		"orderId": order.ID,
		"number":  order.Number,
	})
	return order, nil
}

// Edit returns the conversation to the name step while keeping every answer
// collected so far, so the customer can re-enter only what changed.
func (s *checkoutService) Edit(ctx context.Context, userID string) (CheckoutSession, error) {
	session, err := s.loadSession(ctx, userID, domain.CheckoutStateAwaitingConfirmation)
	if err != nil {
		return CheckoutSession{}, err
	}
	session.State = domain.CheckoutStateAwaitingName
	return s.saveSession(ctx, session)
}

// Cancel abandons the checkout at any step. The cart is left untouched.
func (s *checkoutService) Cancel(ctx context.Context, userID string) error {
	session, err := s.loadSession(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "checkout.cancelled", map[string]any{
		"userId":    userID,
		"sessionId": session.ID,
		"state":     string(session.State),
	})
	return nil
}

// loadSession fetches the active session and optionally enforces the expected
// step. Expired sessions surface as not found.
func (s *checkoutService) loadSession(ctx context.Context, userID string, expected ...domain.CheckoutState) (domain.CheckoutSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CheckoutSession{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	session, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return domain.CheckoutSession{}, s.translateRepoError(err)
	}
	if len(expected) > 0 && session.State != expected[0] {
		return domain.CheckoutSession{}, fmt.Errorf("%w: expected %s, session is at %s", ErrCheckoutWrongState, expected[0], session.State)
	}
	return session, nil
}

// saveSession persists the session with a refreshed sliding expiry.
func (s *checkoutService) saveSession(ctx context.Context, session domain.CheckoutSession) (domain.CheckoutSession, error) {
	now := s.now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.ttl)
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.CheckoutSession{}, s.translateRepoError(err)
	}
	return session, nil
}

func (s *checkoutService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrCheckoutSessionNotFound
	}
	return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
}

// defaultIDGenerator issues lexicographically sortable identifiers.
func defaultIDGenerator() string {
	return ulid.Make().String()
}
