package usecase

import (
	"context"
	"fmt"
	"strings"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
	"orderdesk-backend/pkg/utils"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	writer   *OrderWriter
	repo     domain.OrderRepository
	shipping *ShippingUsecase
	coverage *CourierUsecase
	reversal *ReversalUsecase
	settings *SettingsProvider
}

func NewOrderUsecase(
	writer *OrderWriter,
	repo domain.OrderRepository,
	shipping *ShippingUsecase,
	coverage *CourierUsecase,
	reversal *ReversalUsecase,
	settings *SettingsProvider,
) *OrderUsecase {
	return &OrderUsecase{
		writer:   writer,
		repo:     repo,
		shipping: shipping,
		coverage: coverage,
		reversal: reversal,
		settings: settings,
	}
}

// --- Placement ---

// PlaceOrderItem is a line item with the price captured by the catalog at checkout.
type PlaceOrderItem struct {
	ProductID  string   `json:"productId"`
	VariantID  *string  `json:"variantId"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	Price      float64  `json:"price"`
	UnitWeight *float64 `json:"unitWeight"`
}

type PlaceOrderReq struct {
	CustomerName   string                 `json:"customerName"`
	Items          []PlaceOrderItem       `json:"items"`
	Address        domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod  domain.PaymentMethod   `json:"paymentMethod"`
	DeliveryMethod domain.DeliveryMethod  `json:"deliveryMethod"`
	Discount       float64                `json:"discount"`
	CourierCityID  *int64                 `json:"courierCityId"`
	CourierZoneID  *int64                 `json:"courierZoneId"`
	CourierAreaID  *int64                 `json:"courierAreaId"`
}

// PlaceOrder prices and stores a new order. The shipping cost quoted here is
// locked on the order; later changes go through UpdateShippingCost.
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID string, req PlaceOrderReq) (*domain.Order, error) {
	log := logger.WithContext(ctx)
	settings := u.settings.Snapshot()

	if _, err := domain.ParsePaymentMethod(string(req.PaymentMethod)); err != nil {
		return nil, err
	}
	if !settings.PaymentMethodEnabled(req.PaymentMethod) {
		return nil, domain.NewError(domain.KindMethodDisabled,
			fmt.Sprintf("payment method %s is disabled", req.PaymentMethod), nil)
	}
	if _, err := domain.ParseDeliveryMethod(string(req.DeliveryMethod)); err != nil {
		return nil, err
	}
	if !settings.DeliveryMethodEnabled(req.DeliveryMethod) {
		return nil, domain.NewError(domain.KindMethodDisabled,
			fmt.Sprintf("delivery method %s is disabled", req.DeliveryMethod), nil)
	}
	if err := req.Address.Validate(); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "order has no items", nil)
	}
	if req.Discount < 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "discount must not be negative", nil)
	}

	orderID := utils.GenerateUUID()
	items := make([]domain.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 || it.Price < 0 {
			return nil, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("item %d is invalid", i+1), nil)
		}
		items = append(items, domain.OrderItem{
			ID:         utils.GenerateUUID(),
			OrderID:    orderID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      it.Price,
			UnitWeight: it.UnitWeight,
		})
	}

	order := &domain.Order{
		ID:              orderID,
		UserID:          userID,
		CustomerName:    firstNonEmpty(req.CustomerName, req.Address.Name),
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusUnpaid,
		PaymentMethod:   req.PaymentMethod,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryType:    domain.DeliveryTypeUnassigned,
		SubTotal:        domain.SumItems(items),
		Discount:        req.Discount,
		ShippingAddress: req.Address,
		Items:           items,
		Revision:        1,
	}

	if order.DeliveryMethod == domain.DeliveryMethodExternal {
		if err := u.resolveCourierLocation(ctx, order, req); err != nil {
			return nil, err
		}
	}

	quote, err := u.shipping.QuoteForOrder(ctx, order)
	if err != nil {
		log.Warn().Err(err).Str("method", string(order.DeliveryMethod)).Msg("shipping quote failed at checkout")
		return nil, err
	}
	order.ShippingCost = quote.Cost
	order.RecalculateTotal()

	if decimal.NewFromFloat(order.Discount).GreaterThan(decimal.NewFromFloat(order.SubTotal).Add(decimal.NewFromFloat(order.ShippingCost))) {
		return nil, domain.NewError(domain.KindInvalidInput, "discount exceeds order value", nil)
	}

	reason := fmt.Sprintf("Order placed, shipping %.2f via %s", order.ShippingCost, order.DeliveryMethod)
	err = u.writer.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := u.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		history := &domain.OrderHistory{
			OrderID:   order.ID,
			NewStatus: string(order.Status),
			Reason:    &reason,
		}
		if userID != "" {
			history.CreatedBy = &userID
		}
		return u.repo.CreateOrderHistory(txCtx, history)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Float64("total", order.TotalAmount).
		Float64("shipping", order.ShippingCost).
		Msg("order placed")
	return order, nil
}

// resolveCourierLocation takes explicit ids when given, otherwise matches the
// address against the courier taxonomy.
func (u *OrderUsecase) resolveCourierLocation(ctx context.Context, order *domain.Order, req PlaceOrderReq) error {
	if req.CourierCityID != nil && req.CourierZoneID != nil {
		order.CourierCityID = req.CourierCityID
		order.CourierZoneID = req.CourierZoneID
		order.CourierAreaID = req.CourierAreaID
		return nil
	}
	if u.coverage == nil {
		return domain.NewError(domain.KindLocationUnresolved, "courier city and zone are required", nil)
	}
	match, err := u.coverage.MatchLocation(ctx, order.ShippingAddress)
	if err != nil {
		return err
	}
	order.CourierCityID = domain.Ptr(match.City.ID)
	order.CourierZoneID = domain.Ptr(match.Zone.ID)
	if match.Area != nil {
		order.CourierAreaID = domain.Ptr(match.Area.ID)
	}
	return nil
}

// --- Reads ---

func (u *OrderUsecase) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return u.repo.GetByID(ctx, id)
}

func (u *OrderUsecase) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	return u.repo.GetAll(ctx, filter)
}

func (u *OrderUsecase) GetOrderHistory(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	if _, err := u.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return u.repo.GetOrderHistory(ctx, orderID)
}

// --- Status ---

// UpdateOrderStatus moves the order along the forward path. Cancellation is
// routed through CancelOrder so the assignment and payment are settled too.
func (u *OrderUsecase) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, note, actorID string) (*domain.Order, error) {
	if status == domain.OrderStatusCancelled {
		res, err := u.CancelOrder(ctx, orderID, note, actorID)
		if err != nil {
			return nil, err
		}
		return res.Order, nil
	}

	return u.writer.Mutate(ctx, orderID, actorID, func(_ context.Context, order *domain.Order) (*Change, error) {
		if err := domain.ValidateTransition(order.Status, status); err != nil {
			return nil, err
		}
		if (status == domain.OrderStatusShipped || status == domain.OrderStatusDelivered) && !order.IsAssigned() {
			return nil, domain.NewError(domain.KindInvalidTransition,
				fmt.Sprintf("order must be assigned before it is %s", status), nil)
		}
		order.Status = status
		return &Change{Reason: note}, nil
	})
}

// CancelResult is the cancelled order plus any reversal warning.
type CancelResult struct {
	Order   *domain.Order         `json:"order"`
	Warning *domain.DispatchError `json:"-"`
}

// CancelOrder reverses the assignment and cancels the order in one commit.
// An unpaid COD order becomes failed since no money changed hands.
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID, note, actorID string) (*CancelResult, error) {
	var rev *reversal
	order, err := u.writer.Mutate(ctx, orderID, actorID, func(ctx context.Context, order *domain.Order) (*Change, error) {
		if order.Status == domain.OrderStatusCancelled {
			return nil, nil
		}
		if err := domain.ValidateTransition(order.Status, domain.OrderStatusCancelled); err != nil {
			return nil, err
		}
		if order.IsAssigned() {
			r, err := u.reversal.reverse(ctx, order)
			if err != nil {
				return nil, err
			}
			rev = r
		}
		markCancelled(order)

		reason := firstNonEmpty(note, "Order cancelled")
		if rev != nil {
			reason += "; " + rev.reason()
		}
		return &Change{Reason: reason}, nil
	})
	if err != nil {
		return nil, err
	}

	result := &CancelResult{Order: order}
	if rev != nil {
		u.reversal.afterReverse(ctx, orderID, actorID, rev)
		result.Warning = rev.warning
	}
	return result, nil
}

// markCancelled moves the working copy to cancelled. Whatever assignment is
// left is dropped locally; callers reverse it at the courier first when the
// parcel is still out there. An unpaid COD order becomes failed since no money
// changed hands.
func markCancelled(order *domain.Order) {
	order.ClearAssignment()
	order.Status = domain.OrderStatusCancelled
	if order.PaymentMethod == domain.PaymentMethodCOD && order.PaymentStatus == domain.PaymentStatusUnpaid {
		order.PaymentStatus = domain.PaymentStatusFailed
	}
}

// --- Shipping cost ---

// UpdateShippingCost is the audited override of the locked shipping cost.
func (u *OrderUsecase) UpdateShippingCost(ctx context.Context, orderID string, amount float64, note, actorID string) (*domain.Order, error) {
	if amount < 0 {
		return nil, domain.NewError(domain.KindInvalidInput, "shipping cost must not be negative", nil)
	}
	return u.writer.Mutate(ctx, orderID, actorID, func(_ context.Context, order *domain.Order) (*Change, error) {
		if order.ShippingCost == amount {
			return nil, nil
		}
		if order.Status.IsTerminal() || order.Status == domain.OrderStatusDelivered {
			return nil, domain.NewError(domain.KindInvalidTransition,
				fmt.Sprintf("cannot change shipping cost of a %s order", order.Status), nil)
		}
		if order.HasRemoteDispatch() && order.AmountToCollect() > 0 {
			return nil, domain.NewError(domain.KindInvalidTransition,
				"the courier is collecting the current total; cancel the assignment first", nil)
		}
		previous := order.ShippingCost
		order.ShippingCost = amount
		order.RecalculateTotal()
		reason := fmt.Sprintf("Shipping cost changed: %.2f -> %.2f", previous, amount)
		if note != "" {
			reason += " (" + note + ")"
		}
		return &Change{Reason: reason}, nil
	})
}

// RequoteShipping prices the order again under its checkout scheme and stores
// the new cost through UpdateShippingCost.
func (u *OrderUsecase) RequoteShipping(ctx context.Context, orderID, actorID string) (*domain.Order, *ShippingQuote, error) {
	order, err := u.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	quote, err := u.shipping.QuoteForOrder(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	updated, err := u.UpdateShippingCost(ctx, orderID, quote.Cost, "synced to live quote", actorID)
	if err != nil {
		return nil, nil, err
	}
	return updated, quote, nil
}
