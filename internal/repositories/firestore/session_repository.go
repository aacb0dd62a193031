package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/teleshop/api/internal/domain"
	pfirestore "github.com/teleshop/api/internal/platform/firestore"
	"github.com/teleshop/api/internal/repositories"
)

const checkoutSessionsCollection = "checkoutSessions"

type checkoutSessionDocument struct {
	SessionID    string    `firestore:"sessionId"`
	State        string    `firestore:"state"`
	Name         string    `firestore:"name,omitempty"`
	Phone        string    `firestore:"phone,omitempty"`
	DeliveryType string    `firestore:"deliveryType,omitempty"`
	Address      string    `firestore:"address,omitempty"`
	Comment      string    `firestore:"comment,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
	ExpiresAt    time.Time `firestore:"expiresAt"`
}

// CheckoutSessionRepository keeps in-flight checkout conversations in a shared
// Firestore collection keyed by user ID, so any API replica can resume a
// conversation started on another one. Expired documents read as not found;
// a Firestore TTL policy on expiresAt reaps them eventually.
type CheckoutSessionRepository struct {
	base  *pfirestore.BaseRepository[checkoutSessionDocument]
	clock func() time.Time
}

// NewCheckoutSessionRepository constructs a Firestore-backed session repository.
func NewCheckoutSessionRepository(provider *pfirestore.Provider) (*CheckoutSessionRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout session repository requires firestore provider")
	}
	return &CheckoutSessionRepository{
		base:  pfirestore.NewBaseRepository[checkoutSessionDocument](provider, checkoutSessionsCollection, nil, nil),
		clock: time.Now,
	}, nil
}

// Get loads the user's active session. Expired sessions surface as not found.
func (r *CheckoutSessionRepository) Get(ctx context.Context, userID string) (domain.CheckoutSession, error) {
	if r == nil || r.base == nil {
		return domain.CheckoutSession{}, errors.New("checkout session repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CheckoutSession{}, errors.New("checkout session repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if !doc.Data.ExpiresAt.IsZero() && !r.clock().Before(doc.Data.ExpiresAt) {
		return domain.CheckoutSession{}, pfirestore.NewNotFoundError("checkoutSessions.get", uid)
	}

	return domain.CheckoutSession{
		ID:           doc.Data.SessionID,
		UserID:       doc.ID,
		State:        domain.CheckoutState(doc.Data.State),
		Name:         doc.Data.Name,
		Phone:        doc.Data.Phone,
		DeliveryType: domain.DeliveryType(doc.Data.DeliveryType),
		Address:      doc.Data.Address,
		Comment:      doc.Data.Comment,
		CreatedAt:    doc.Data.CreatedAt,
		UpdatedAt:    doc.Data.UpdatedAt,
		ExpiresAt:    doc.Data.ExpiresAt,
	}, nil
}

// Save writes the whole session document keyed by user ID.
func (r *CheckoutSessionRepository) Save(ctx context.Context, session domain.CheckoutSession) error {
	if r == nil || r.base == nil {
		return errors.New("checkout session repository not initialised")
	}
	uid := strings.TrimSpace(session.UserID)
	if uid == "" {
		return errors.New("checkout session repository: user id is required")
	}
	if session.State == "" {
		return errors.New("checkout session repository: state is required")
	}

	doc := checkoutSessionDocument{
		SessionID:    session.ID,
		State:        string(session.State),
		Name:         session.Name,
		Phone:        session.Phone,
		DeliveryType: string(session.DeliveryType),
		Address:      session.Address,
		Comment:      session.Comment,
		CreatedAt:    session.CreatedAt.UTC(),
		UpdatedAt:    session.UpdatedAt.UTC(),
		ExpiresAt:    session.ExpiresAt.UTC(),
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = r.clock().UTC()
	}
	_, err := r.base.Set(ctx, uid, doc)
	return err
}

// Delete destroys the user's session. Deleting an absent session is not an error.
func (r *CheckoutSessionRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("checkout session repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("checkoutSessions.delete", err)
	}
	return nil
}

var _ repositories.CheckoutSessionRepository = (*CheckoutSessionRepository)(nil)
