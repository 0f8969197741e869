package postgres

import (
	"context"
	"strings"

	"orderdesk-backend/internal/domain"

	"github.com/jackc/pgx/v5"
)

type configRepository struct {
	db DB
}

func NewConfigRepository(db DB) domain.ConfigRepository {
	return &configRepository{db: db}
}

const rateColumns = `id, province, label, cost::float8, free_shipping_threshold::float8, is_active, created_at, updated_at`

func scanRate(row rowScanner) (*domain.ShippingRate, error) {
	var z domain.ShippingRate
	if err := row.Scan(&z.ID, &z.Province, &z.Label, &z.Cost, &z.FreeShippingThreshold,
		&z.IsActive, &z.CreatedAt, &z.UpdatedAt); err != nil {
		return nil, err
	}
	return &z, nil
}

func (r *configRepository) listRates(ctx context.Context, sql string) ([]domain.ShippingRate, error) {
	rows, err := conn(ctx, r.db).Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.ShippingRate{}
	for rows.Next() {
		z, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *z)
	}
	return result, rows.Err()
}

func (r *configRepository) GetActiveShippingRates(ctx context.Context) ([]domain.ShippingRate, error) {
	return r.listRates(ctx, `SELECT `+rateColumns+` FROM shipping_rates WHERE is_active ORDER BY province`)
}

func (r *configRepository) GetAllShippingRates(ctx context.Context) ([]domain.ShippingRate, error) {
	return r.listRates(ctx, `SELECT `+rateColumns+` FROM shipping_rates ORDER BY province`)
}

// GetShippingRateByProvince matches case-insensitively and only among active rates.
func (r *configRepository) GetShippingRateByProvince(ctx context.Context, province string) (*domain.ShippingRate, error) {
	z, err := scanRate(conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+rateColumns+` FROM shipping_rates WHERE LOWER(province) = $1 AND is_active`,
		strings.ToLower(strings.TrimSpace(province))))
	if err != nil {
		return nil, notFound("shipping rate", err)
	}
	return z, nil
}

func (r *configRepository) CreateShippingRate(ctx context.Context, rate *domain.ShippingRate) (*domain.ShippingRate, error) {
	z, err := scanRate(conn(ctx, r.db).QueryRow(ctx, `
		INSERT INTO shipping_rates (province, label, cost, free_shipping_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+rateColumns,
		rate.Province, rate.Label, rate.Cost, rate.FreeShippingThreshold, rate.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.KindConflict, "a rate for this province already exists", err)
		}
		return nil, err
	}
	return z, nil
}

func (r *configRepository) UpdateShippingRate(ctx context.Context, rate *domain.ShippingRate) (*domain.ShippingRate, error) {
	z, err := scanRate(conn(ctx, r.db).QueryRow(ctx, `
		UPDATE shipping_rates
		SET province = $2, label = $3, cost = $4, free_shipping_threshold = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+rateColumns,
		rate.ID, rate.Province, rate.Label, rate.Cost, rate.FreeShippingThreshold, rate.IsActive))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.KindConflict, "a rate for this province already exists", err)
		}
		return nil, notFound("shipping rate", err)
	}
	return z, nil
}

func (r *configRepository) DeleteShippingRate(ctx context.Context, id int32) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM shipping_rates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("shipping rate", pgx.ErrNoRows)
	}
	return nil
}
