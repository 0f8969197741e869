package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"
)

// ReversalResult describes what CancelAssignment undid.
// Warning is set (kind partial_reversal) when the local assignment was cleared
// but the courier could not stop the parcel.
type ReversalResult struct {
	Order                *domain.Order         `json:"order"`
	PreviousDeliveryType domain.DeliveryType   `json:"previousDeliveryType"`
	RemoteCancelled      bool                  `json:"remoteCancelled"`
	StatusDemoted        bool                  `json:"statusDemoted"`
	Warning              *domain.DispatchError `json:"-"`
}

// WarningMessage is the operator text of Warning, empty when there is none.
func (r *ReversalResult) WarningMessage() string {
	if r == nil || r.Warning == nil {
		return ""
	}
	return r.Warning.Message
}

// ReversalUsecase undoes a delivery assignment, locally and at the courier.
type ReversalUsecase struct {
	writer  *OrderWriter
	gateway domain.CourierGateway
	archive domain.ConsignmentArchive
}

func NewReversalUsecase(writer *OrderWriter, gateway domain.CourierGateway, archive domain.ConsignmentArchive) *ReversalUsecase {
	return &ReversalUsecase{
		writer:  writer,
		gateway: gateway,
		archive: archive,
	}
}

// reversal is the in-place outcome of reverse, shared by the cancel and refund paths.
type reversal struct {
	previous        domain.DeliveryType
	trackingCode    string
	courier         string
	remoteCancelled bool
	demoted         bool
	delivered       bool
	warning         *domain.DispatchError
}

func (r *reversal) reason() string {
	switch r.previous {
	case domain.DeliveryTypeExternal:
		msg := fmt.Sprintf("Courier assignment %s cancelled", r.trackingCode)
		if r.delivered {
			msg = fmt.Sprintf("Courier assignment %s cleared after delivery", r.trackingCode)
		}
		if r.warning != nil {
			msg += " locally; parcel already picked up, contact courier"
		}
		return msg
	case domain.DeliveryTypeInternal:
		return "Rider assignment cancelled"
	}
	return ""
}

// CancelAssignment resets the order to unassigned. Calling it on an unassigned
// order is a successful no-op.
func (u *ReversalUsecase) CancelAssignment(ctx context.Context, orderID, actorID string) (*ReversalResult, error) {
	var rev *reversal
	order, err := u.writer.Mutate(ctx, orderID, actorID, func(ctx context.Context, order *domain.Order) (*Change, error) {
		if !order.IsAssigned() {
			return nil, nil
		}
		if order.Status.IsTerminal() {
			return nil, domain.NewError(domain.KindInvalidTransition,
				fmt.Sprintf("cannot cancel the assignment of a %s order", order.Status), nil)
		}
		r, err := u.reverse(ctx, order)
		if err != nil {
			return nil, err
		}
		rev = r
		return &Change{Reason: r.reason()}, nil
	})
	if err != nil {
		return nil, err
	}

	result := &ReversalResult{Order: order, PreviousDeliveryType: domain.DeliveryTypeUnassigned}
	if rev == nil {
		return result, nil
	}
	result.PreviousDeliveryType = rev.previous
	result.RemoteCancelled = rev.remoteCancelled
	result.StatusDemoted = rev.demoted
	result.Warning = rev.warning
	u.afterReverse(ctx, orderID, actorID, rev)
	return result, nil
}

// reverse clears the assignment on the working copy. For an external dispatch it
// first cancels the consignment; any courier failure other than "already picked
// up" aborts and leaves the order as it was. A delivered parcel is no longer with
// the courier, so nothing is sent for it.
func (u *ReversalUsecase) reverse(ctx context.Context, order *domain.Order) (*reversal, error) {
	rev := &reversal{previous: order.DeliveryType, delivered: order.Status == domain.OrderStatusDelivered}

	if order.HasRemoteDispatch() {
		rev.trackingCode = *order.TrackingCode
		if order.Courier != nil {
			rev.courier = *order.Courier
		}
	}
	if order.HasRemoteDispatch() && !rev.delivered {
		err := u.gateway.CancelConsignment(ctx, rev.trackingCode)
		switch {
		case err == nil:
			rev.remoteCancelled = true
		case errors.Is(err, domain.ErrConsignmentPickedUp):
			rev.warning = domain.NewError(domain.KindPartialReversal,
				fmt.Sprintf("consignment %s was already picked up; contact %s to stop it", rev.trackingCode, rev.courier), err)
		default:
			return nil, err
		}
	}

	order.ClearAssignment()
	if order.Status.After(domain.OrderStatusReadyToShip) {
		order.Status = domain.OrderStatusProcessing
		rev.demoted = true
	}
	return rev, nil
}

func (u *ReversalUsecase) afterReverse(ctx context.Context, orderID, actorID string, rev *reversal) {
	log := logger.ForConsignment(ctx, orderID, rev.trackingCode)
	if rev.warning != nil {
		log.Warn().
			Msg("assignment cleared but consignment could not be cancelled remotely")
	} else {
		log.Info().Str("previous", string(rev.previous)).Msg("assignment cancelled")
	}

	if rev.trackingCode == "" || u.archive == nil {
		return
	}
	receipt := domain.ConsignmentReceipt{
		OrderID:      orderID,
		Action:       "cancel",
		Courier:      rev.courier,
		TrackingCode: rev.trackingCode,
		ActorID:      actorID,
		RecordedAt:   time.Now(),
	}
	if rev.warning != nil {
		receipt.Warning = rev.warning.Message
	}
	if err := u.archive.Store(ctx, receipt); err != nil {
		log.Warn().Err(err).Msg("consignment receipt not archived")
	}
}
