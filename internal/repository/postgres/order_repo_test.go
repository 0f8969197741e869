package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"orderdesk-backend/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{
	"id", "user_id", "customer_name", "status", "payment_status", "payment_method",
	"delivery_method", "delivery_type", "rider_id", "courier", "tracking_code",
	"courier_city_id", "courier_zone_id", "courier_area_id",
	"sub_total", "shipping_cost", "discount", "total_amount",
	"shipping_address", "revision", "created_at", "updated_at",
}

var itemCols = []string{"id", "order_id", "product_id", "variant_id", "name", "quantity", "price", "unit_weight"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func orderRow(id string, revision int64) []any {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []any{
		id, "u1", "Rahim", "ready_to_ship", "unpaid", "cod",
		"external", "external", nil, domain.Ptr("pathao"), domain.Ptr("PTH123"),
		domain.Ptr(int64(1)), domain.Ptr(int64(52)), domain.Ptr(int64(100)),
		2500.0, 150.0, 0.0, 2650.0,
		[]byte(`{"name":"Rahim","phone":"01700000000","street":"House 1","city":"Dhaka","district":"Dhaka","province":"Dhaka"}`),
		revision, now, now,
	}
}

func TestOrderRepository_GetByID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow("o1", 3)...))
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items WHERE order_id::text = ANY($1)")).
		WithArgs([]string{"o1"}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("i1", "o1", "p1", nil, "Panjabi", 1, 2500.0, domain.Ptr(0.8)))

	order, err := repo.GetByID(context.Background(), "o1")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusReadyToShip, order.Status)
	assert.Equal(t, domain.DeliveryTypeExternal, order.DeliveryType)
	assert.Equal(t, "PTH123", *order.TrackingCode)
	assert.Equal(t, int64(100), *order.CourierAreaID)
	assert.Nil(t, order.RiderID)
	assert.Equal(t, "Dhaka", order.ShippingAddress.Province)
	assert.Equal(t, int64(3), order.Revision)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 0.8, *order.Items[0].UnitWeight)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(orderCols))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateCompareAndSwap(t *testing.T) {
	order := &domain.Order{
		ID:            "o1",
		Status:        domain.OrderStatusProcessing,
		PaymentStatus: domain.PaymentStatusUnpaid,
		PaymentMethod: domain.PaymentMethodCOD,
		DeliveryType:  domain.DeliveryTypeUnassigned,
		TotalAmount:   2650,
	}
	updateSQL := regexp.QuoteMeta("WHERE id = $1 AND revision = $15")
	existsSQL := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)")

	t.Run("matching revision bumps it", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewOrderRepository(mock)
		now := time.Now()

		mock.ExpectQuery(updateSQL).
			WithArgs("o1", "processing", "unpaid", "cod", "unassigned",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				0.0, 0.0, 2650.0, int64(4)).
			WillReturnRows(pgxmock.NewRows([]string{"revision", "updated_at"}).AddRow(int64(5), now))

		o := order.Clone()
		require.NoError(t, repo.Update(context.Background(), o, 4))
		assert.Equal(t, int64(5), o.Revision)
		assert.Equal(t, now, o.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale revision", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewOrderRepository(mock)

		mock.ExpectQuery(updateSQL).WillReturnRows(pgxmock.NewRows([]string{"revision", "updated_at"}))
		mock.ExpectQuery(existsSQL).WithArgs("o1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.Update(context.Background(), order.Clone(), 4)
		assert.ErrorIs(t, err, domain.ErrStaleRevision)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown order", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewOrderRepository(mock)

		mock.ExpectQuery(updateSQL).WillReturnRows(pgxmock.NewRows([]string{"revision", "updated_at"}))
		mock.ExpectQuery(existsSQL).WithArgs("o1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.Update(context.Background(), order.Clone(), 4)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate tracking code", func(t *testing.T) {
		mock := newMockPool(t)
		repo := NewOrderRepository(mock)

		mock.ExpectQuery(updateSQL).WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Update(context.Background(), order.Clone(), 4)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})
}

func TestOrderRepository_CreateOrderInTransaction(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)
	tm := NewTransactionManager(mock)

	order := &domain.Order{
		ID:             "o1",
		CustomerName:   "Rahim",
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentStatusUnpaid,
		PaymentMethod:  domain.PaymentMethodCOD,
		DeliveryMethod: domain.DeliveryMethodRider,
		DeliveryType:   domain.DeliveryTypeUnassigned,
		SubTotal:       100,
		TotalAmount:    100,
		Items:          []domain.OrderItem{{ID: "i1", ProductID: "p1", Name: "Cap", Quantity: 2, Price: 50}},
	}

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec("INSERT INTO order_items").
		WithArgs("i1", "o1", "p1", (*string)(nil), "Cap", 2, 50.0, (*float64)(nil), 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO order_history").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	err := tm.Do(context.Background(), func(ctx context.Context) error {
		if err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		return repo.CreateOrderHistory(ctx, &domain.OrderHistory{OrderID: order.ID, NewStatus: "pending"})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), order.Revision)
	assert.Equal(t, "o1", order.Items[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	mock := newMockPool(t)
	tm := NewTransactionManager(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tm.Do(context.Background(), func(ctx context.Context) error {
		return tm.Do(ctx, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetAllFilters(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE status = $1 AND delivery_type = $2")).
		WithArgs("ready_to_ship", "external").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(41)))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs("ready_to_ship", "external", 20, 20).
		WillReturnRows(pgxmock.NewRows(orderCols).AddRow(orderRow("o1", 1)...).AddRow(orderRow("o2", 2)...))
	mock.ExpectQuery("FROM order_items").
		WithArgs([]string{"o1", "o2"}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("i2", "o2", "p9", domain.Ptr("v1"), "Saree", 1, 2500.0, nil))

	orders, total, err := repo.GetAll(context.Background(), domain.OrderFilter{
		Page:         2,
		Limit:        20,
		Status:       domain.OrderStatusReadyToShip,
		DeliveryType: domain.DeliveryTypeExternal,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(41), total)
	require.Len(t, orders, 2)
	assert.Empty(t, orders[0].Items)
	require.Len(t, orders[1].Items, 1)
	assert.Equal(t, "v1", *orders[1].Items[0].VariantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CountActiveForRider(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("r1", "ready_to_ship", "shipped").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := repo.CountActiveForRider(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOrderRepository_GetOrderHistory(t *testing.T) {
	mock := newMockPool(t)
	repo := NewOrderRepository(mock)
	now := time.Now()

	mock.ExpectQuery("FROM order_history").
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "previous_status", "new_status", "reason", "created_by", "created_at"}).
			AddRow("h1", "o1", nil, "pending", domain.Ptr("Order placed"), nil, now).
			AddRow("h2", "o1", domain.Ptr("pending"), "ready_to_ship", domain.Ptr("Dispatched via pathao"), domain.Ptr("admin"), now))

	history, err := repo.GetOrderHistory(context.Background(), "o1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[0].PreviousStatus)
	assert.Equal(t, "pending", *history[1].PreviousStatus)
}

func TestInitSchema(t *testing.T) {
	mock := newMockPool(t)
	for range schemaStatements {
		mock.ExpectExec(".*").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	require.NoError(t, InitSchema(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
