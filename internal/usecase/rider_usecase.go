package usecase

import (
	"context"
	"strings"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/utils"
)

type RiderUsecase struct {
	riderRepo domain.RiderRepository
	orderRepo domain.OrderRepository
}

func NewRiderUsecase(riderRepo domain.RiderRepository, orderRepo domain.OrderRepository) *RiderUsecase {
	return &RiderUsecase{
		riderRepo: riderRepo,
		orderRepo: orderRepo,
	}
}

// ListRiders returns the roster with each rider's current workload.
func (u *RiderUsecase) ListRiders(ctx context.Context, activeOnly bool) ([]domain.Rider, error) {
	riders, err := u.riderRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	for i := range riders {
		n, err := u.orderRepo.CountActiveForRider(ctx, riders[i].ID)
		if err != nil {
			return nil, err
		}
		riders[i].Workload = n
	}
	return riders, nil
}

func (u *RiderUsecase) GetRider(ctx context.Context, id string) (*domain.Rider, error) {
	rider, err := u.riderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := u.orderRepo.CountActiveForRider(ctx, id)
	if err != nil {
		return nil, err
	}
	rider.Workload = n
	return rider, nil
}

type CreateRiderReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (u *RiderUsecase) CreateRider(ctx context.Context, req CreateRiderReq) (*domain.Rider, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	if name == "" || phone == "" {
		return nil, domain.NewError(domain.KindInvalidInput, "rider name and phone are required", nil)
	}
	rider := &domain.Rider{
		ID:       utils.GenerateUUID(),
		Name:     name,
		Phone:    phone,
		IsActive: true,
	}
	if err := u.riderRepo.Create(ctx, rider); err != nil {
		return nil, err
	}
	return rider, nil
}
