package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
)

// ExternalDispatch is the operator payload for a courier consignment.
// Recipient fields default to the order's shipping address snapshot; Weight
// defaults to the estimate from the line items.
type ExternalDispatch struct {
	RecipientName    string  `json:"recipientName"`
	RecipientPhone   string  `json:"recipientPhone"`
	RecipientAddress string  `json:"recipientAddress"`
	CityID           int64   `json:"cityId"`
	ZoneID           int64   `json:"zoneId"`
	AreaID           int64   `json:"areaId"`
	Weight           float64 `json:"weight"`
	ItemQuantity     int     `json:"itemQuantity"`
	Instruction      string  `json:"instruction"`
	Description      string  `json:"description"`
}

// AssignParams carries the method-specific input of Assign.
type AssignParams struct {
	RiderID  string
	External *ExternalDispatch
}

// AssignResult is returned on a successful assignment.
type AssignResult struct {
	Order           *domain.Order `json:"order"`
	Method          string        `json:"method"`
	TrackingCode    string        `json:"trackingCode,omitempty"`
	AmountToCollect float64       `json:"amountToCollect"`
}

// DispatchUsecase decides and records how an order is delivered. It enforces
// at most one active assignment per order and drives the courier gateway.
type DispatchUsecase struct {
	writer    *OrderWriter
	orderRepo domain.OrderRepository
	riderRepo domain.RiderRepository
	gateway   domain.CourierGateway
	coverage  *CourierUsecase
	reversal  *ReversalUsecase
	archive   domain.ConsignmentArchive
	settings  *SettingsProvider
}

func NewDispatchUsecase(
	writer *OrderWriter,
	orderRepo domain.OrderRepository,
	riderRepo domain.RiderRepository,
	gateway domain.CourierGateway,
	coverage *CourierUsecase,
	reversal *ReversalUsecase,
	archive domain.ConsignmentArchive,
	settings *SettingsProvider,
) *DispatchUsecase {
	return &DispatchUsecase{
		writer:    writer,
		orderRepo: orderRepo,
		riderRepo: riderRepo,
		gateway:   gateway,
		coverage:  coverage,
		reversal:  reversal,
		archive:   archive,
		settings:  settings,
	}
}

// Assign dispatches an order by rider or by external courier.
func (u *DispatchUsecase) Assign(ctx context.Context, orderID string, method domain.DeliveryMethod, params AssignParams, actorID string) (*AssignResult, error) {
	switch method {
	case domain.DeliveryMethodRider:
		return u.AssignRider(ctx, orderID, params.RiderID, actorID)
	case domain.DeliveryMethodExternal:
		if params.External == nil {
			return nil, domain.NewError(domain.KindInvalidInput, "external dispatch payload is required", nil)
		}
		return u.DispatchExternal(ctx, orderID, *params.External, actorID)
	}
	return nil, domain.NewError(domain.KindInvalidInput, fmt.Sprintf("unknown delivery method %q", method), nil)
}

// AssignRider hands the order to an internal rider.
func (u *DispatchUsecase) AssignRider(ctx context.Context, orderID, riderID, actorID string) (*AssignResult, error) {
	log := logger.ForOrder(ctx, orderID)
	settings := u.settings.Snapshot()
	if !settings.DeliveryMethodEnabled(domain.DeliveryMethodRider) {
		return nil, domain.NewError(domain.KindMethodDisabled, "rider delivery is disabled", nil)
	}
	if strings.TrimSpace(riderID) == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "rider id is required", nil)
	}

	rider, err := u.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if !rider.IsActive {
		return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("rider %s is not active", riderID), nil)
	}

	order, err := u.writer.Mutate(ctx, orderID, actorID, func(_ context.Context, order *domain.Order) (*Change, error) {
		if err := checkAssignable(order); err != nil {
			return nil, err
		}
		order.DeliveryType = domain.DeliveryTypeInternal
		order.RiderID = &rider.ID
		advanceToReadyToShip(order)
		return &Change{Reason: fmt.Sprintf("Assigned to rider %s (%s)", rider.Name, rider.ID)}, nil
	})
	if err != nil {
		return nil, u.resolveLostRace(ctx, orderID, err)
	}

	log.Info().Str("rider_id", rider.ID).Msg("order assigned to rider")
	return &AssignResult{
		Order:           order,
		Method:          string(domain.DeliveryMethodRider),
		AmountToCollect: order.AmountToCollect(),
	}, nil
}

// DispatchExternal creates a consignment with the courier and, only when that
// succeeds, records the external assignment. A failed remote call leaves the
// order untouched.
func (u *DispatchUsecase) DispatchExternal(ctx context.Context, orderID string, req ExternalDispatch, actorID string) (*AssignResult, error) {
	log := logger.ForOrder(ctx, orderID)
	settings := u.settings.Snapshot()
	if !settings.DeliveryMethodEnabled(domain.DeliveryMethodExternal) {
		return nil, domain.NewError(domain.KindMethodDisabled, "courier delivery is disabled", nil)
	}
	if req.CityID <= 0 || req.ZoneID <= 0 || req.AreaID <= 0 {
		return nil, domain.NewError(domain.KindLocationUnresolved, "courier city, zone and area must be selected", nil)
	}
	if u.coverage != nil {
		if err := u.coverage.ValidateLocation(ctx, req.CityID, req.ZoneID, req.AreaID); err != nil {
			return nil, err
		}
	}

	var consignment *domain.Consignment
	var sent domain.ConsignmentRequest

	order, err := u.writer.Mutate(ctx, orderID, actorID, func(ctx context.Context, order *domain.Order) (*Change, error) {
		if err := checkAssignable(order); err != nil {
			return nil, err
		}

		payload, err := buildConsignment(order, req, settings)
		if err != nil {
			return nil, err
		}

		created, err := u.gateway.CreateConsignment(ctx, payload)
		if err != nil {
			log.Error().Err(err).Msg("courier consignment failed")
			return nil, err
		}
		if created.TrackingCode == "" {
			return nil, domain.NewError(domain.KindCourierRejected, "courier returned no tracking code", nil)
		}
		consignment, sent = created, payload

		courier := u.gateway.Name()
		order.DeliveryType = domain.DeliveryTypeExternal
		order.Courier = &courier
		order.TrackingCode = &created.TrackingCode
		order.CourierCityID = &payload.CityID
		order.CourierZoneID = &payload.ZoneID
		order.CourierAreaID = &payload.AreaID
		advanceToReadyToShip(order)
		return &Change{Reason: fmt.Sprintf("Dispatched via %s, tracking %s", courier, created.TrackingCode)}, nil
	})
	if err != nil {
		if consignment != nil {
			u.releaseOrphan(ctx, orderID, consignment.TrackingCode, actorID, err)
		}
		return nil, u.resolveLostRace(ctx, orderID, err)
	}

	log.Info().
		Str("tracking_code", consignment.TrackingCode).
		Float64("amount_to_collect", sent.AmountToCollect).
		Msg("order dispatched to courier")

	u.storeReceipt(ctx, domain.ConsignmentReceipt{
		OrderID:      orderID,
		Action:       "create",
		Courier:      u.gateway.Name(),
		TrackingCode: consignment.TrackingCode,
		Request:      &sent,
		ActorID:      actorID,
		RecordedAt:   time.Now(),
	})

	return &AssignResult{
		Order:           order,
		Method:          string(domain.DeliveryMethodExternal),
		TrackingCode:    consignment.TrackingCode,
		AmountToCollect: sent.AmountToCollect,
	}, nil
}

// CancelAssignment is handled by the reversal usecase.
func (u *DispatchUsecase) CancelAssignment(ctx context.Context, orderID, actorID string) (*ReversalResult, error) {
	return u.reversal.CancelAssignment(ctx, orderID, actorID)
}

// SyncCourierStatus pulls the courier's status for an external order and moves
// the order forward when the courier is ahead. Backward or illegal moves are ignored.
func (u *DispatchUsecase) SyncCourierStatus(ctx context.Context, orderID, actorID string) (*domain.Order, domain.ProviderStatus, error) {
	var providerStatus domain.ProviderStatus
	order, err := u.writer.Mutate(ctx, orderID, actorID, func(ctx context.Context, order *domain.Order) (*Change, error) {
		if !order.HasRemoteDispatch() {
			return nil, domain.NewError(domain.KindInvalidTransition, "order has no courier consignment", nil)
		}
		status, err := u.gateway.GetStatus(ctx, *order.TrackingCode)
		if err != nil {
			return nil, err
		}
		providerStatus = status

		target, ok := status.OrderStatus()
		if !ok || target == order.Status {
			return nil, nil
		}
		if target == domain.OrderStatusReturned && order.Status != domain.OrderStatusDelivered {
			// The parcel came back undelivered and is no longer with the courier.
			trackingCode := *order.TrackingCode
			markCancelled(order)
			return &Change{Reason: fmt.Sprintf("Courier reported %s before delivery; consignment %s closed, order cancelled", status, trackingCode)}, nil
		}
		if !domain.CanTransition(order.Status, target) {
			log := logger.ForOrder(ctx, order.ID)
			log.Warn().
				Str("order_status", string(order.Status)).
				Str("provider_status", string(status)).
				Msg("courier status ignored")
			return nil, nil
		}
		order.Status = target
		return &Change{Reason: fmt.Sprintf("Courier reported %s", status)}, nil
	})
	if err != nil {
		return nil, "", err
	}
	return order, providerStatus, nil
}

// releaseOrphan cancels a consignment whose order update did not commit, so a
// lost race never leaves a second parcel with the courier. A consignment the
// stored order already references (the gateway dedupes by order id) is kept.
func (u *DispatchUsecase) releaseOrphan(ctx context.Context, orderID, trackingCode, actorID string, cause error) {
	log := logger.ForConsignment(ctx, orderID, trackingCode)

	latest, err := u.orderRepo.GetByID(ctx, orderID)
	if err == nil && latest.TrackingCode != nil && *latest.TrackingCode == trackingCode {
		return
	}

	receipt := domain.ConsignmentReceipt{
		OrderID:      orderID,
		Action:       "cancel",
		Courier:      u.gateway.Name(),
		TrackingCode: trackingCode,
		ActorID:      actorID,
		Warning:      "order update failed: " + cause.Error(),
		RecordedAt:   time.Now(),
	}
	if err := u.gateway.CancelConsignment(context.WithoutCancel(ctx), trackingCode); err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("orphan consignment could not be cancelled; cancel it with the courier")
		receipt.Warning += "; courier cancel failed: " + err.Error()
	} else {
		log.Warn().AnErr("cause", cause).Msg("orphan consignment cancelled after failed order update")
	}
	u.storeReceipt(ctx, receipt)
}

func (u *DispatchUsecase) storeReceipt(ctx context.Context, receipt domain.ConsignmentReceipt) {
	if u.archive == nil {
		return
	}
	if err := u.archive.Store(ctx, receipt); err != nil {
		log := logger.ForConsignment(ctx, receipt.OrderID, receipt.TrackingCode)
		log.Warn().Err(err).Msg("consignment receipt not archived")
	}
}

// resolveLostRace turns a lost compare-and-swap into AlreadyAssigned when the
// winning write assigned the order.
func (u *DispatchUsecase) resolveLostRace(ctx context.Context, orderID string, err error) error {
	if !isStale(err) {
		return err
	}
	latest, getErr := u.orderRepo.GetByID(ctx, orderID)
	if getErr == nil && latest.IsAssigned() {
		return domain.NewError(domain.KindAlreadyAssigned, "order was dispatched by another request", err)
	}
	return err
}

func checkAssignable(order *domain.Order) error {
	if order.IsAssigned() {
		return domain.NewError(domain.KindAlreadyAssigned,
			fmt.Sprintf("order %s is already assigned (%s)", order.ID, order.DeliveryType), nil)
	}
	if order.Status.IsTerminal() || order.Status == domain.OrderStatusDelivered {
		return domain.NewError(domain.KindInvalidTransition,
			fmt.Sprintf("cannot dispatch an order in status '%s'", order.Status), nil)
	}
	return nil
}

// advanceToReadyToShip moves pending/processing orders to ready_to_ship.
func advanceToReadyToShip(order *domain.Order) {
	if domain.CanTransition(order.Status, domain.OrderStatusReadyToShip) {
		order.Status = domain.OrderStatusReadyToShip
	}
}

// buildConsignment fills the courier payload. The amount to collect is always
// derived from the order, never taken from the caller.
func buildConsignment(order *domain.Order, req ExternalDispatch, settings domain.DispatchSettings) (domain.ConsignmentRequest, error) {
	addr := order.ShippingAddress
	payload := domain.ConsignmentRequest{
		MerchantOrderID:  order.ID,
		RecipientName:    firstNonEmpty(req.RecipientName, addr.Name, order.CustomerName),
		RecipientPhone:   firstNonEmpty(req.RecipientPhone, addr.Phone),
		RecipientAddress: firstNonEmpty(req.RecipientAddress, addr.OneLine()),
		CityID:           req.CityID,
		ZoneID:           req.ZoneID,
		AreaID:           req.AreaID,
		Weight:           req.Weight,
		ItemQuantity:     req.ItemQuantity,
		AmountToCollect:  order.AmountToCollect(),
		Description:      req.Description,
		Instruction:      req.Instruction,
	}
	if payload.Weight <= 0 {
		payload.Weight = EstimateWeight(order.Items, settings.DefaultItemWeight)
	}
	if payload.ItemQuantity <= 0 {
		for _, it := range order.Items {
			payload.ItemQuantity += it.Quantity
		}
		if payload.ItemQuantity == 0 {
			payload.ItemQuantity = 1
		}
	}

	var missing []string
	if payload.RecipientName == "" {
		missing = append(missing, "recipient name")
	}
	if payload.RecipientPhone == "" {
		missing = append(missing, "recipient phone")
	}
	if payload.RecipientAddress == "" {
		missing = append(missing, "recipient address")
	}
	if len(missing) > 0 {
		return payload, domain.NewError(domain.KindInvalidInput, "missing "+strings.Join(missing, ", "), nil)
	}
	return payload, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
