package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"orderdesk-backend/internal/domain"
)

type RiderRepository struct {
	mu     sync.RWMutex
	riders map[string]domain.Rider
}

func NewRiderRepository(seed ...domain.Rider) *RiderRepository {
	r := &RiderRepository{riders: make(map[string]domain.Rider)}
	for _, rider := range seed {
		r.riders[rider.ID] = rider
	}
	return r
}

func (r *RiderRepository) GetByID(_ context.Context, id string) (*domain.Rider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rider, ok := r.riders[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "rider not found", nil)
	}
	return &rider, nil
}

func (r *RiderRepository) List(_ context.Context, activeOnly bool) ([]domain.Rider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.Rider{}
	for _, rider := range r.riders {
		if activeOnly && !rider.IsActive {
			continue
		}
		result = append(result, rider)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *RiderRepository) Create(_ context.Context, rider *domain.Rider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.riders[rider.ID]; ok {
		return domain.NewError(domain.KindConflict, "rider already exists", nil)
	}
	rider.CreatedAt = time.Now()
	r.riders[rider.ID] = *rider
	return nil
}

type ConfigRepository struct {
	mu     sync.RWMutex
	rates  map[int32]domain.ShippingRate
	nextID int32
}

func NewConfigRepository(seed ...domain.ShippingRate) *ConfigRepository {
	r := &ConfigRepository{rates: make(map[int32]domain.ShippingRate)}
	for _, rate := range seed {
		r.nextID++
		rate.ID = r.nextID
		r.rates[rate.ID] = rate
	}
	return r
}

func (r *ConfigRepository) list(activeOnly bool) []domain.ShippingRate {
	result := []domain.ShippingRate{}
	for _, rate := range r.rates {
		if activeOnly && !rate.IsActive {
			continue
		}
		result = append(result, rate)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Province < result[j].Province })
	return result
}

func (r *ConfigRepository) GetActiveShippingRates(_ context.Context) ([]domain.ShippingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list(true), nil
}

func (r *ConfigRepository) GetAllShippingRates(_ context.Context) ([]domain.ShippingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list(false), nil
}

func (r *ConfigRepository) GetShippingRateByProvince(_ context.Context, province string) (*domain.ShippingRate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.TrimSpace(province)
	for _, rate := range r.rates {
		if rate.IsActive && strings.EqualFold(rate.Province, key) {
			return &rate, nil
		}
	}
	return nil, domain.NewError(domain.KindNotFound, "shipping rate not found", nil)
}

func (r *ConfigRepository) provinceTaken(province string, except int32) bool {
	for id, rate := range r.rates {
		if id != except && strings.EqualFold(rate.Province, province) {
			return true
		}
	}
	return false
}

func (r *ConfigRepository) CreateShippingRate(_ context.Context, rate *domain.ShippingRate) (*domain.ShippingRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provinceTaken(rate.Province, 0) {
		return nil, domain.NewError(domain.KindConflict, "a rate for this province already exists", nil)
	}
	r.nextID++
	created := *rate
	created.ID = r.nextID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	r.rates[created.ID] = created
	return &created, nil
}

func (r *ConfigRepository) UpdateShippingRate(_ context.Context, rate *domain.ShippingRate) (*domain.ShippingRate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rates[rate.ID]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "shipping rate not found", nil)
	}
	if r.provinceTaken(rate.Province, rate.ID) {
		return nil, domain.NewError(domain.KindConflict, "a rate for this province already exists", nil)
	}
	updated := *rate
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	r.rates[rate.ID] = updated
	return &updated, nil
}

func (r *ConfigRepository) DeleteShippingRate(_ context.Context, id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rates[id]; !ok {
		return domain.NewError(domain.KindNotFound, "shipping rate not found", nil)
	}
	delete(r.rates, id)
	return nil
}
