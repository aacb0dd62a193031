package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teleshop/api/internal/platform/auth"
	"github.com/teleshop/api/internal/platform/httpx"
	"github.com/teleshop/api/internal/services"
)

// CheckoutHandlers drives the step-by-step checkout conversation over HTTP.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

const maxCheckoutBodySize = 16 * 1024

// NewCheckoutHandlers constructs authenticated checkout endpoints.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/start", h.start)
	r.Post("/name", h.submitInput(func(ctx context.Context, uid, input string) (services.CheckoutSession, error) {
		return h.checkout.SubmitName(ctx, uid, input)
	}))
	r.Post("/phone", h.submitInput(func(ctx context.Context, uid, input string) (services.CheckoutSession, error) {
		return h.checkout.SubmitPhone(ctx, uid, input)
	}))
	r.Post("/delivery", h.chooseDelivery)
	r.Post("/address", h.submitInput(func(ctx context.Context, uid, input string) (services.CheckoutSession, error) {
		return h.checkout.SubmitAddress(ctx, uid, input)
	}))
	r.Post("/comment", h.submitInput(func(ctx context.Context, uid, input string) (services.CheckoutSession, error) {
		return h.checkout.SubmitComment(ctx, uid, input)
	}))
	r.Post("/comment/skip", h.sessionAction(func(ctx context.Context, uid string) (services.CheckoutSession, error) {
		return h.checkout.SkipComment(ctx, uid)
	}))
	r.Post("/back", h.sessionAction(func(ctx context.Context, uid string) (services.CheckoutSession, error) {
		return h.checkout.Back(ctx, uid)
	}))
	r.Get("/summary", h.summary)
	r.Post("/confirm", h.confirm)
	r.Post("/edit", h.sessionAction(func(ctx context.Context, uid string) (services.CheckoutSession, error) {
		return h.checkout.Edit(ctx, uid)
	}))
	r.Post("/cancel", h.cancel)
}

func (h *CheckoutHandlers) start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.Start(ctx, uid)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, sessionResponse{Session: buildSessionPayload(session)})
}

type checkoutInputRequest struct {
	Value string `json:"value"`
}

func (h *CheckoutHandlers) submitInput(fn func(ctx context.Context, uid, input string) (services.CheckoutSession, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		uid, ok := h.requireUser(ctx, w)
		if !ok {
			return
		}

		var req checkoutInputRequest
		if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
			writeBodyError(ctx, w, err)
			return
		}

		session, err := fn(ctx, uid, req.Value)
		if err != nil {
			h.writeCheckoutError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, sessionResponse{Session: buildSessionPayload(session)})
	}
}

func (h *CheckoutHandlers) sessionAction(fn func(ctx context.Context, uid string) (services.CheckoutSession, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		uid, ok := h.requireUser(ctx, w)
		if !ok {
			return
		}

		session, err := fn(ctx, uid)
		if err != nil {
			h.writeCheckoutError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, sessionResponse{Session: buildSessionPayload(session)})
	}
}

type chooseDeliveryRequest struct {
	DeliveryType string `json:"delivery_type"`
}

func (h *CheckoutHandlers) chooseDelivery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	var req chooseDeliveryRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	session, err := h.checkout.ChooseDelivery(ctx, uid, req.DeliveryType)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionResponse{Session: buildSessionPayload(session)})
}

func (h *CheckoutHandlers) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	summary, err := h.checkout.Summary(ctx, uid)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, summaryResponse{
		Session: buildSessionPayload(summary.Session),
		Cart:    buildCartPayload(summary.Cart),
	})
}

func (h *CheckoutHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.checkout.Confirm(ctx, uid)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *CheckoutHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	if err := h.checkout.Cancel(ctx, uid); err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_not_found", "no active checkout session", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutWrongState):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_wrong_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no purchasable items", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout operation failed", http.StatusInternalServerError))
	}
}

type sessionResponse struct {
	Session sessionPayload `json:"session"`
}

type summaryResponse struct {
	Session sessionPayload `json:"session"`
	Cart    cartPayload    `json:"cart"`
}

type sessionPayload struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	DeliveryType string `json:"delivery_type,omitempty"`
	Address      string `json:"address,omitempty"`
	Comment      string `json:"comment,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

func buildSessionPayload(session services.CheckoutSession) sessionPayload {
	return sessionPayload{
		ID:           session.ID,
		State:        string(session.State),
		Name:         session.Name,
		Phone:        session.Phone,
		DeliveryType: string(session.DeliveryType),
		Address:      session.Address,
		Comment:      session.Comment,
		ExpiresAt:    formatTime(session.ExpiresAt),
	}
}
