package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/teleshop/api/internal/domain"
	pfirestore "github.com/teleshop/api/internal/platform/firestore"
	"github.com/teleshop/api/internal/platform/pagination"
	"github.com/teleshop/api/internal/repositories"
)

const (
	ordersCollection = "orders"

	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

type orderDocument struct {
	Number       string              `firestore:"number"`
	UserID       string              `firestore:"userId"`
	CustomerName string              `firestore:"customerName"`
	Phone        string              `firestore:"phone"`
	DeliveryType string              `firestore:"deliveryType"`
	Address      *string             `firestore:"address,omitempty"`
	Comment      *string             `firestore:"comment,omitempty"`
	Status       string              `firestore:"status"`
	Total        string              `firestore:"total"`
	Items        []orderItemDocument `firestore:"items"`
	CreatedAt    time.Time           `firestore:"createdAt"`
	UpdatedAt    time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ItemID          string  `firestore:"itemId"`
	ProductID       string  `firestore:"productId"`
	VariantID       *string `firestore:"variantId,omitempty"`
	ProductName     string  `firestore:"productName"`
	VariantName     *string `firestore:"variantName,omitempty"`
	PriceAtPurchase string  `firestore:"priceAtPurchase"`
	Quantity        int     `firestore:"quantity"`
	Subtotal        string  `firestore:"subtotal"`
}

// OrderRepository persists orders with their items embedded in a single
// document, which keeps order creation atomic without cross-document fanout.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:     pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
		provider: provider,
	}, nil
}

// InsertWithCartClear creates the order document and deletes the user's cart
// lines in one Firestore transaction. Either the order exists and the cart is
// empty, or neither change landed.
func (r *OrderRepository) InsertWithCartClear(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	if strings.TrimSpace(order.UserID) == "" {
		return errors.New("order repository: user id is required")
	}

	doc := orderToDocument(order)
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		refs, err := cartLineRefs(tx, client, doc.UserID)
		if err != nil {
			return err
		}
		orderRef := client.Collection(ordersCollection).Doc(order.ID)
		if err := tx.Create(orderRef, doc); err != nil {
			return err
		}
		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update rewrites the order document; used for status transitions.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	_, err := r.base.Set(ctx, strings.TrimSpace(order.ID), orderToDocument(order))
	return err
}

// FindByID loads an order with its items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return orderFromDocument(doc.ID, doc.Data)
}

// FindByNumber resolves an order by its human-facing number.
func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	num := strings.TrimSpace(number)
	if num == "" {
		return domain.Order{}, errors.New("order repository: order number is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("number", "==", num).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NewNotFoundError("orders.findByNumber", num)
	}
	return orderFromDocument(docs[0].ID, docs[0].Data)
}

// List returns orders newest-first, filtered by user and status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	size := filter.Pagination.PageSize
	if size <= 0 {
		size = defaultOrderPageSize
	}
	if size > maxOrderPageSize {
		size = maxOrderPageSize
	}

	startAfter, err := decodeOrderCursor(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if uid := strings.TrimSpace(filter.UserID); uid != "" {
			q = q.Where("userId", "==", uid)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.After != nil {
			q = q.Where("createdAt", ">=", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("createdAt", "<", filter.Before.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).Limit(size + 1)
		if startAfter != nil {
			q = q.StartAfter(*startAfter)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	for i, doc := range docs {
		if i == size {
			last := page.Items[len(page.Items)-1]
			token, err := pagination.EncodeToken(pagination.Cursor{
				StartAfter: []any{last.CreatedAt.UTC().Format(time.RFC3339Nano)},
			})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
			}
			page.NextPageToken = token
			break
		}
		order, err := orderFromDocument(doc.ID, doc.Data)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.Items = append(page.Items, order)
	}
	return page, nil
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:       strings.TrimSpace(order.Number),
		UserID:       strings.TrimSpace(order.UserID),
		CustomerName: order.CustomerName,
		Phone:        order.Phone,
		DeliveryType: string(order.DeliveryType),
		Address:      order.Address,
		Comment:      order.Comment,
		Status:       string(order.Status),
		Total:        order.Total.String(),
		Items:        make([]orderItemDocument, 0, len(order.Items)),
		CreatedAt:    order.CreatedAt.UTC(),
		UpdatedAt:    order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ItemID:          item.ID,
			ProductID:       item.ProductID,
			VariantID:       item.VariantID,
			ProductName:     item.ProductName,
			VariantName:     item.VariantName,
			PriceAtPurchase: item.PriceAtPurchase.String(),
			Quantity:        item.Quantity,
			Subtotal:        item.Subtotal.String(),
		})
	}
	return doc
}

func orderFromDocument(id string, doc orderDocument) (domain.Order, error) {
	total, err := decimal.NewFromString(doc.Total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders decode %s: total %q: %w", id, doc.Total, err)
	}
	order := domain.Order{
		ID:           id,
		Number:       doc.Number,
		UserID:       doc.UserID,
		CustomerName: doc.CustomerName,
		Phone:        doc.Phone,
		DeliveryType: domain.DeliveryType(doc.DeliveryType),
		Address:      doc.Address,
		Comment:      doc.Comment,
		Status:       domain.OrderStatus(doc.Status),
		Total:        total,
		Items:        make([]domain.OrderItem, 0, len(doc.Items)),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		price, err := decimal.NewFromString(item.PriceAtPurchase)
		if err != nil {
			return domain.Order{}, fmt.Errorf("orders decode %s: item price %q: %w", id, item.PriceAtPurchase, err)
		}
		subtotal, err := decimal.NewFromString(item.Subtotal)
		if err != nil {
			return domain.Order{}, fmt.Errorf("orders decode %s: item subtotal %q: %w", id, item.Subtotal, err)
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:              item.ItemID,
			OrderID:         id,
			ProductID:       item.ProductID,
			VariantID:       item.VariantID,
			ProductName:     item.ProductName,
			VariantName:     item.VariantName,
			PriceAtPurchase: price,
			Quantity:        item.Quantity,
			Subtotal:        subtotal,
		})
	}
	return order, nil
}

// decodeOrderCursor unpacks a list page token into the createdAt boundary the
// query resumes after.
func decodeOrderCursor(token string) (*time.Time, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if len(cursor.StartAfter) == 0 {
		return nil, nil
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected cursor value", pagination.ErrInvalidPageToken)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	return &ts, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
