package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/cache"
	"orderdesk-backend/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const (
	coverageCitiesKey = "courier:cities"
	coverageZonesKey  = "courier:zones:%d"
	coverageAreasKey  = "courier:areas:%d"
)

// CourierUsecase serves the courier coverage taxonomy from a shared cache.
// Each cached list is an immutable slice replaced wholesale on refresh.
type CourierUsecase struct {
	gateway domain.CourierGateway
	cache   cache.CacheService
	ttl     time.Duration
	group   singleflight.Group
}

func NewCourierUsecase(gateway domain.CourierGateway, cache cache.CacheService, ttl time.Duration) *CourierUsecase {
	return &CourierUsecase{
		gateway: gateway,
		cache:   cache,
		ttl:     ttl,
	}
}

func (u *CourierUsecase) CourierName() string {
	return u.gateway.Name()
}

func (u *CourierUsecase) ListCities(ctx context.Context) ([]domain.City, error) {
	return loadCached(u, coverageCitiesKey, func() ([]domain.City, error) {
		return u.gateway.ListCities(ctx)
	})
}

func (u *CourierUsecase) ListZones(ctx context.Context, cityID int64) ([]domain.Zone, error) {
	return loadCached(u, fmt.Sprintf(coverageZonesKey, cityID), func() ([]domain.Zone, error) {
		return u.gateway.ListZones(ctx, cityID)
	})
}

func (u *CourierUsecase) ListAreas(ctx context.Context, zoneID int64) ([]domain.Area, error) {
	return loadCached(u, fmt.Sprintf(coverageAreasKey, zoneID), func() ([]domain.Area, error) {
		return u.gateway.ListAreas(ctx, zoneID)
	})
}

// Refresh drops the cached taxonomy; the next read fetches a fresh snapshot.
func (u *CourierUsecase) Refresh() {
	u.cache.Flush()
}

func loadCached[T any](u *CourierUsecase, key string, fetch func() ([]T, error)) ([]T, error) {
	if list, found := cache.GetAs[[]T](u.cache, key); found {
		return list, nil
	}

	v, err, _ := u.group.Do(key, func() (interface{}, error) {
		list, err := fetch()
		if err != nil {
			return nil, err
		}
		snapshot := append([]T(nil), list...)
		u.cache.Set(key, snapshot, u.ttl)
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

// ValidateLocation checks that zone belongs to city and area belongs to zone.
func (u *CourierUsecase) ValidateLocation(ctx context.Context, cityID, zoneID, areaID int64) error {
	zones, err := u.ListZones(ctx, cityID)
	if err != nil {
		return err
	}
	if !containsID(zones, zoneID, func(z domain.Zone) int64 { return z.ID }) {
		return domain.NewError(domain.KindLocationUnresolved,
			fmt.Sprintf("zone %d is not served in city %d", zoneID, cityID), nil)
	}
	areas, err := u.ListAreas(ctx, zoneID)
	if err != nil {
		return err
	}
	if !containsID(areas, areaID, func(a domain.Area) int64 { return a.ID }) {
		return domain.NewError(domain.KindLocationUnresolved,
			fmt.Sprintf("area %d is not part of zone %d", areaID, zoneID), nil)
	}
	return nil
}

func containsID[T any](list []T, id int64, key func(T) int64) bool {
	for _, v := range list {
		if key(v) == id {
			return true
		}
	}
	return false
}

// MatchLocation resolves a free-text address to the courier taxonomy.
// Anything short of a single unambiguous city and zone is LocationUnresolved;
// the operator then picks the location by hand. Area is best-effort.
func (u *CourierUsecase) MatchLocation(ctx context.Context, addr domain.ShippingAddress) (*domain.LocationMatch, error) {
	log := logger.WithContext(ctx)

	cities, err := u.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	city, ok := uniqueMatch(cities, func(c domain.City) string { return c.Name }, addr.City, addr.District)
	if !ok {
		log.Warn().Str("city", addr.City).Str("district", addr.District).Msg("courier city unmatched")
		return nil, domain.NewError(domain.KindLocationUnresolved, "city not recognized", nil)
	}

	zones, err := u.ListZones(ctx, city.ID)
	if err != nil {
		return nil, err
	}
	zone, ok := uniqueMatch(zones, func(z domain.Zone) string { return z.Name }, addr.Ward, addr.Street, addr.City)
	if !ok {
		log.Warn().Int64("city_id", city.ID).Str("street", addr.Street).Msg("courier zone unmatched")
		return nil, domain.NewError(domain.KindLocationUnresolved, "zone not recognized", nil)
	}

	match := &domain.LocationMatch{City: city, Zone: zone}

	areas, err := u.ListAreas(ctx, zone.ID)
	if err != nil {
		return nil, err
	}
	if area, ok := uniqueMatch(areas, func(a domain.Area) string { return a.Name }, addr.Street, addr.Ward); ok {
		match.Area = &area
	}
	return match, nil
}

// uniqueMatch tries each hint in order; a hint matches a candidate when one
// normalised name contains the other. The first hint with exactly one match wins.
func uniqueMatch[T any](candidates []T, name func(T) string, hints ...string) (T, bool) {
	var zero T
	for _, hint := range hints {
		h := normalizeLocation(hint)
		if h == "" {
			continue
		}
		var found []T
		for _, c := range candidates {
			n := normalizeLocation(name(c))
			if n == "" {
				continue
			}
			if n == h {
				return c, true
			}
			if strings.Contains(h, n) || strings.Contains(n, h) {
				found = append(found, c)
			}
		}
		if len(found) == 1 {
			return found[0], true
		}
	}
	return zero, false
}

func normalizeLocation(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
