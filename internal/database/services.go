package database

import (
	"context"
	"database/sql"

	"massagebot/internal/models"
)

// GetService returns an active service by id.
func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, description, price_cents, duration_minutes, is_active
		FROM services WHERE id = ? AND is_active = 1`, id)

	var s models.Service
	var desc sql.NullString
	err := row.Scan(&s.ID, &s.Name, &desc, &s.PriceCents, &s.DurationMinutes, &s.IsActive)
	if err == sql.ErrNoRows {
		return nil, models.ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Description = desc.String
	return &s, nil
}

// ListActiveServices returns the bookable catalog.
func (db *DB) ListActiveServices(ctx context.Context) ([]models.Service, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, description, price_cents, duration_minutes, is_active
		FROM services WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var s models.Service
		var desc sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &desc, &s.PriceCents, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, err
		}
		s.Description = desc.String
		services = append(services, s)
	}
	return services, rows.Err()
}
