package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/utils"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) domain.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id::text, user_id, customer_name, status, payment_status, payment_method,
	delivery_method, delivery_type, rider_id::text, courier, tracking_code,
	courier_city_id, courier_zone_id, courier_area_id,
	sub_total::float8, shipping_cost::float8, discount::float8, total_amount::float8,
	shipping_address, revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// --- Mappers ---

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                                       domain.Order
		status, payStatus, payMethod, delMethod string
		delType                                 string
		address                                 []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CustomerName, &status, &payStatus, &payMethod,
		&delMethod, &delType, &o.RiderID, &o.Courier, &o.TrackingCode,
		&o.CourierCityID, &o.CourierZoneID, &o.CourierAreaID,
		&o.SubTotal, &o.ShippingCost, &o.Discount, &o.TotalAmount,
		&address, &o.Revision, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payStatus)
	o.PaymentMethod = domain.PaymentMethod(payMethod)
	o.DeliveryMethod = domain.DeliveryMethod(delMethod)
	o.DeliveryType = domain.DeliveryType(delType)
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address of order %s: %w", o.ID, err)
		}
	}
	return &o, nil
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	q := conn(ctx, r.db)
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	if order.Revision == 0 {
		order.Revision = 1
	}

	err = q.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, customer_name, status, payment_status, payment_method,
			delivery_method, delivery_type, rider_id, courier, tracking_code,
			courier_city_id, courier_zone_id, courier_area_id,
			sub_total, shipping_cost, discount, total_amount, shipping_address, revision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.CustomerName, string(order.Status), string(order.PaymentStatus),
		string(order.PaymentMethod), string(order.DeliveryMethod), string(order.DeliveryType),
		order.RiderID, order.Courier, order.TrackingCode,
		order.CourierCityID, order.CourierZoneID, order.CourierAreaID,
		order.SubTotal, order.ShippingCost, order.Discount, order.TotalAmount, address, order.Revision,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.KindConflict, "order already exists", err)
		}
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = utils.GenerateUUID()
		}
		item.OrderID = order.ID
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, name, quantity, price, unit_weight, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, order.ID, item.ProductID, item.VariantID, item.Name, item.Quantity, item.Price, item.UnitWeight, i,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := conn(ctx, r.db)
	order, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("order", err)
	}
	if err := r.attachItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetAll(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	q := conn(ctx, r.db)

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", string(filter.PaymentStatus))
	}
	if filter.DeliveryType != "" {
		add("delivery_type = $%d", string(filter.DeliveryType))
	}
	if filter.RiderID != "" {
		add("rider_id::text = $%d", filter.RiderID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("(id::text ILIKE $%[1]d OR customer_name ILIKE $%[1]d OR tracking_code ILIKE $%[1]d)", "%"+s+"%")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageArgs := append(append([]any{}, args...), limit, (page-1)*limit)
	sql := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, clause, len(args)+1, len(args)+2)

	rows, err := q.Query(ctx, sql, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var ptrs []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		ptrs = append(ptrs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	if err := r.attachItems(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	result := make([]domain.Order, len(ptrs))
	for i, o := range ptrs {
		result[i] = *o
	}
	return result, total, nil
}

func (r *orderRepository) attachItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []domain.OrderItem{}
	}

	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id::text, order_id::text, product_id, variant_id, name, quantity, price::float8, unit_weight::float8
		FROM order_items WHERE order_id::text = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Name,
			&it.Quantity, &it.Price, &it.UnitWeight); err != nil {
			return err
		}
		if o, ok := byID[it.OrderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

// Update stores the mutable order fields when the stored revision still equals
// expectedRevision. Items and the address are immutable after placement.
func (r *orderRepository) Update(ctx context.Context, order *domain.Order, expectedRevision int64) error {
	q := conn(ctx, r.db)

	var (
		revision  int64
		updatedAt time.Time
	)
	err := q.QueryRow(ctx, `
		UPDATE orders SET
			status = $2, payment_status = $3, payment_method = $4, delivery_type = $5,
			rider_id = $6, courier = $7, tracking_code = $8,
			courier_city_id = $9, courier_zone_id = $10, courier_area_id = $11,
			shipping_cost = $12, discount = $13, total_amount = $14,
			revision = revision + 1, updated_at = NOW()
		WHERE id = $1 AND revision = $15
		RETURNING revision, updated_at`,
		order.ID, string(order.Status), string(order.PaymentStatus), string(order.PaymentMethod),
		string(order.DeliveryType), order.RiderID, order.Courier, order.TrackingCode,
		order.CourierCityID, order.CourierZoneID, order.CourierAreaID,
		order.ShippingCost, order.Discount, order.TotalAmount, expectedRevision,
	).Scan(&revision, &updatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.NewError(domain.KindNotFound, "order not found", nil)
		}
		return domain.ErrStaleRevision
	}
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.KindConflict, "tracking code already belongs to another order", err)
		}
		return err
	}

	order.Revision = revision
	order.UpdatedAt = updatedAt
	return nil
}

func (r *orderRepository) CountActiveForRider(ctx context.Context, riderID string) (int, error) {
	var n int64
	err := conn(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE rider_id::text = $1 AND status IN ($2, $3)`,
		riderID, string(domain.OrderStatusReadyToShip), string(domain.OrderStatusShipped),
	).Scan(&n)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *orderRepository) CreateOrderHistory(ctx context.Context, history *domain.OrderHistory) error {
	if history.ID == "" {
		history.ID = utils.GenerateUUID()
	}
	return conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO order_history (id, order_id, previous_status, new_status, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		history.ID, history.OrderID, history.PreviousStatus, history.NewStatus, history.Reason, history.CreatedBy,
	).Scan(&history.CreatedAt)
}

func (r *orderRepository) GetOrderHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT id::text, order_id::text, previous_status, new_status, reason, created_by, created_at
		FROM order_history WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.OrderHistory{}
	for rows.Next() {
		var h domain.OrderHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.PreviousStatus, &h.NewStatus, &h.Reason, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
