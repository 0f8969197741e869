// Package memory holds process-local repositories used by tests and by
// STORAGE_DRIVER=memory deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/utils"
)

// OrderRepository stores order snapshots keyed by id. Callers always get copies.
type OrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]*domain.Order
	history map[string][]domain.OrderHistory
	now     func() time.Time
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]*domain.Order),
		history: make(map[string][]domain.OrderHistory),
		now:     time.Now,
	}
}

func (r *OrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; ok {
		return domain.NewError(domain.KindConflict, "order already exists", nil)
	}
	if order.Revision == 0 {
		order.Revision = 1
	}
	now := r.now()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = utils.GenerateUUID()
		}
		order.Items[i].OrderID = order.ID
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "order not found", nil)
	}
	return o.Clone(), nil
}

func (r *OrderRepository) GetAll(_ context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.DeliveryType != "" && o.DeliveryType != filter.DeliveryType {
			continue
		}
		if filter.RiderID != "" && (o.RiderID == nil || *o.RiderID != filter.RiderID) {
			continue
		}
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if search != "" && !matchesSearch(o, search) {
			continue
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit, page := filter.Limit, filter.Page
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+limit, len(matched))

	result := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		result = append(result, *o.Clone())
	}
	return result, int64(len(matched)), nil
}

func matchesSearch(o *domain.Order, q string) bool {
	if strings.Contains(strings.ToLower(o.ID), q) || strings.Contains(strings.ToLower(o.CustomerName), q) {
		return true
	}
	return o.TrackingCode != nil && strings.Contains(strings.ToLower(*o.TrackingCode), q)
}

// Update is a compare-and-swap on Revision.
func (r *OrderRepository) Update(_ context.Context, order *domain.Order, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.NewError(domain.KindNotFound, "order not found", nil)
	}
	if stored.Revision != expectedRevision {
		return domain.ErrStaleRevision
	}
	if order.TrackingCode != nil {
		for id, o := range r.orders {
			if id != order.ID && o.TrackingCode != nil && *o.TrackingCode == *order.TrackingCode {
				return domain.NewError(domain.KindConflict, "tracking code already belongs to another order", nil)
			}
		}
	}

	order.Revision = expectedRevision + 1
	order.UpdatedAt = r.now()
	next := order.Clone()
	// Items, address and creation time are fixed at placement.
	next.Items = stored.Items
	next.ShippingAddress = stored.ShippingAddress
	next.CreatedAt = stored.CreatedAt
	r.orders[order.ID] = next
	return nil
}

func (r *OrderRepository) CountActiveForRider(_ context.Context, riderID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, o := range r.orders {
		if o.RiderID == nil || *o.RiderID != riderID {
			continue
		}
		if o.Status == domain.OrderStatusReadyToShip || o.Status == domain.OrderStatusShipped {
			n++
		}
	}
	return n, nil
}

func (r *OrderRepository) CreateOrderHistory(_ context.Context, history *domain.OrderHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if history.ID == "" {
		history.ID = utils.GenerateUUID()
	}
	history.CreatedAt = r.now()
	r.history[history.OrderID] = append(r.history[history.OrderID], *history)
	return nil
}

func (r *OrderRepository) GetOrderHistory(_ context.Context, orderID string) ([]domain.OrderHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.OrderHistory{}, r.history[orderID]...), nil
}

// TransactionManager runs fn directly; the order store is guarded by its own lock
// and Update's revision check.
type TransactionManager struct{}

func NewTransactionManager() domain.TransactionManager {
	return TransactionManager{}
}

func (TransactionManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// DispatchBuckets groups orders created in [from, to) by status and delivery type.
func (r *OrderRepository) DispatchBuckets(_ context.Context, from, to time.Time) ([]domain.DispatchBucket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct {
		status       domain.OrderStatus
		deliveryType domain.DeliveryType
	}
	groups := make(map[key]*domain.DispatchBucket)
	for _, o := range r.orders {
		if o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		k := key{o.Status, o.DeliveryType}
		b, ok := groups[k]
		if !ok {
			b = &domain.DispatchBucket{Status: o.Status, DeliveryType: o.DeliveryType}
			groups[k] = b
		}
		b.Orders++
		outForDelivery := o.Status == domain.OrderStatusReadyToShip || o.Status == domain.OrderStatusShipped
		if outForDelivery && o.PaymentMethod == domain.PaymentMethodCOD && o.PaymentStatus != domain.PaymentStatusPaid {
			b.CashInField += o.TotalAmount
		}
	}

	out := make([]domain.DispatchBucket, 0, len(groups))
	for _, b := range groups {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].DeliveryType < out[j].DeliveryType
	})
	return out, nil
}
