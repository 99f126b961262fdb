package repository

import (
	"context"

	"github.com/google/uuid"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"gorm.io/gorm"
)

const merchantColumns = `id, name, api_key, api_secret_hash, is_active, created_at, updated_at`

type repo struct{}

func Provide() merchantdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *merchantdomain.Merchant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO merchants (`+merchantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(),
		m.Name,
		m.APIKey,
		m.APISecretHash,
		m.IsActive,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, m *merchantdomain.Merchant) error {
	return db.WithContext(ctx).Exec(
		`UPDATE merchants
		 SET name = ?, api_key = ?, api_secret_hash = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		m.Name,
		m.APIKey,
		m.APISecretHash,
		m.IsActive,
		m.UpdatedAt,
		m.ID.String(),
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*merchantdomain.Merchant, error) {
	var m merchantdomain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT `+merchantColumns+` FROM merchants WHERE id = ?`,
		id.String(),
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) FindByAPIKey(ctx context.Context, db *gorm.DB, apiKey string) (*merchantdomain.Merchant, error) {
	var m merchantdomain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT `+merchantColumns+` FROM merchants WHERE api_key = ?`,
		apiKey,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == uuid.Nil {
		return nil, nil
	}
	return &m, nil
}
