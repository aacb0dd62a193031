package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/teleshop/api/internal/domain"
	pfirestore "github.com/teleshop/api/internal/platform/firestore"
	"github.com/teleshop/api/internal/repositories"
)

const cartLinesCollection = "cartLines"

type cartLineDocument struct {
	UserID    string    `firestore:"userId"`
	ProductID string    `firestore:"productId"`
	VariantID *string   `firestore:"variantId,omitempty"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CartRepository persists cart lines in Firestore. The document ID is derived
// from (user, product, variant) so the one-line-per-pair invariant holds by
// construction: writing the same pair always lands on the same document.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartLineDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base:     pfirestore.NewBaseRepository[cartLineDocument](provider, cartLinesCollection, nil, nil),
		provider: provider,
	}, nil
}

// CartLineID builds the deterministic document ID for a (user, product, variant) triple.
func CartLineID(userID, productID string, variantID *string) string {
	variant := "-"
	if variantID != nil && strings.TrimSpace(*variantID) != "" {
		variant = strings.TrimSpace(*variantID)
	}
	return fmt.Sprintf("%s__%s__%s", strings.TrimSpace(userID), strings.TrimSpace(productID), variant)
}

// ListByUser returns every cart line owned by the user, most recently added first.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", uid).OrderBy("addedAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, cartLineFromDocument(doc.ID, doc.Data))
	}
	return lines, nil
}

// FindLine loads a single cart line and verifies ownership.
func (r *CartRepository) FindLine(ctx context.Context, userID string, lineID string) (domain.CartLine, error) {
	if r == nil || r.base == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(lineID))
	if err != nil {
		return domain.CartLine{}, err
	}
	if doc.Data.UserID != strings.TrimSpace(userID) {
		return domain.CartLine{}, pfirestore.NewNotFoundError("cartLines.get", lineID)
	}
	return cartLineFromDocument(doc.ID, doc.Data), nil
}

// FindByProduct looks up the user's line for a (product, variant) pair.
func (r *CartRepository) FindByProduct(ctx context.Context, userID string, productID string, variantID *string) (domain.CartLine, error) {
	if r == nil || r.base == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, CartLineID(userID, productID, variantID))
	if err != nil {
		return domain.CartLine{}, err
	}
	return cartLineFromDocument(doc.ID, doc.Data), nil
}

// Upsert writes the cart line under its deterministic ID.
func (r *CartRepository) Upsert(ctx context.Context, line domain.CartLine) (domain.CartLine, error) {
	if r == nil || r.base == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	if strings.TrimSpace(line.UserID) == "" || strings.TrimSpace(line.ProductID) == "" {
		return domain.CartLine{}, errors.New("cart repository: user id and product id are required")
	}
	if line.Quantity < 1 {
		return domain.CartLine{}, errors.New("cart repository: quantity must be at least 1")
	}

	id := CartLineID(line.UserID, line.ProductID, line.VariantID)
	now := time.Now().UTC()
	addedAt := line.AddedAt.UTC()
	if addedAt.IsZero() {
		addedAt = now
	}

	doc := cartLineDocument{
		UserID:    strings.TrimSpace(line.UserID),
		ProductID: strings.TrimSpace(line.ProductID),
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		AddedAt:   addedAt,
		UpdatedAt: now,
	}
	result, err := r.base.Set(ctx, id, doc)
	if err != nil {
		return domain.CartLine{}, err
	}

	saved := cartLineFromDocument(id, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes a single line after checking it belongs to the user.
func (r *CartRepository) Delete(ctx context.Context, userID string, lineID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	if _, err := r.FindLine(ctx, userID, lineID); err != nil {
		return err
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(lineID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("cartLines.delete", err)
	}
	return nil
}

// DeleteAll removes every cart line owned by the user in one transaction and
// reports how many lines were removed.
func (r *CartRepository) DeleteAll(ctx context.Context, userID string) (int, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return 0, errors.New("cart repository: user id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		removed = 0
		refs, err := cartLineRefs(tx, client, uid)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		removed = len(refs)
		return nil
	})
	if err != nil {
		return 0, pfirestore.WrapError("cartLines.deleteAll", err)
	}
	return removed, nil
}

// Count returns the number of lines in the user's cart.
func (r *CartRepository) Count(ctx context.Context, userID string) (int, error) {
	lines, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// cartLineRefs collects document references for a user's lines inside a transaction.
func cartLineRefs(tx *firestore.Transaction, client *firestore.Client, userID string) ([]*firestore.DocumentRef, error) {
	iter := tx.Documents(client.Collection(cartLinesCollection).Where("userId", "==", userID))
	snaps, err := iter.GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(snaps))
	for _, snap := range snaps {
		refs = append(refs, snap.Ref)
	}
	return refs, nil
}

func cartLineFromDocument(id string, doc cartLineDocument) domain.CartLine {
	return domain.CartLine{
		ID:        id,
		UserID:    doc.UserID,
		ProductID: doc.ProductID,
		VariantID: doc.VariantID,
		Quantity:  doc.Quantity,
		AddedAt:   doc.AddedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
