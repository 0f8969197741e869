package postgres

import (
	"context"

	"orderdesk-backend/internal/domain"
)

type riderRepository struct {
	db DB
}

func NewRiderRepository(db DB) domain.RiderRepository {
	return &riderRepository{db: db}
}

func (r *riderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	var rider domain.Rider
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT id::text, name, phone, is_active, created_at FROM riders WHERE id::text = $1`, id,
	).Scan(&rider.ID, &rider.Name, &rider.Phone, &rider.IsActive, &rider.CreatedAt)
	if err != nil {
		return nil, notFound("rider", err)
	}
	return &rider, nil
}

func (r *riderRepository) List(ctx context.Context, activeOnly bool) ([]domain.Rider, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT id::text, name, phone, is_active, created_at FROM riders
		WHERE ($1 = FALSE OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	riders := []domain.Rider{}
	for rows.Next() {
		var rider domain.Rider
		if err := rows.Scan(&rider.ID, &rider.Name, &rider.Phone, &rider.IsActive, &rider.CreatedAt); err != nil {
			return nil, err
		}
		riders = append(riders, rider)
	}
	return riders, rows.Err()
}

func (r *riderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	err := conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO riders (id, name, phone, is_active) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		rider.ID, rider.Name, rider.Phone, rider.IsActive,
	).Scan(&rider.CreatedAt)
	if isUniqueViolation(err) {
		return domain.NewError(domain.KindConflict, "rider already exists", err)
	}
	return err
}
