package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/paygate/internal/payment/domain"
	"github.com/smallbiznis/paygate/pkg/db"
	"github.com/smallbiznis/paygate/pkg/db/pagination"
	"gorm.io/gorm"
)

const paymentColumns = `id, merchant_id, amount, currency, card_holder_name, card_number_hash, card_last4,
	card_brand, expiry_month, expiry_year, status, created_at, processed_at, acquirer_reference, idempotency_key`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert stores a payment once. A (merchant_id, idempotency_key) collision
// is reported as domain.ErrDuplicateIdempotencyKey.
func (r *repo) Insert(ctx context.Context, conn *gorm.DB, payment *domain.Payment) error {
	rec := domain.ToRecord(payment)
	err := conn.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.MerchantID,
		rec.Amount,
		rec.Currency,
		rec.CardHolderName,
		rec.CardNumberHash,
		rec.CardLast4,
		rec.CardBrand,
		rec.ExpiryMonth,
		rec.ExpiryYear,
		rec.Status,
		rec.CreatedAt,
		rec.ProcessedAt,
		rec.AcquirerReference,
		rec.IdempotencyKey,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) && rec.IdempotencyKey != nil {
			return fmt.Errorf("%w: %v", domain.ErrDuplicateIdempotencyKey, err)
		}
		return err
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id uuid.UUID) (*domain.Payment, error) {
	var rec domain.PaymentRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE id = ? LIMIT 1`,
		id.String(),
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, nil
	}
	return domain.FromRecord(rec)
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, conn *gorm.DB, merchantID uuid.UUID, key string) (*domain.Payment, error) {
	var rec domain.PaymentRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments
		 WHERE merchant_id = ? AND idempotency_key = ?
		 LIMIT 1`,
		merchantID.String(),
		key,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, nil
	}
	return domain.FromRecord(rec)
}

// ListByMerchant returns up to limit payments newest first, strictly after the cursor.
func (r *repo) ListByMerchant(ctx context.Context, conn *gorm.DB, merchantID uuid.UUID, after *pagination.Cursor, limit int) ([]*domain.Payment, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Select(paymentColumns).
		Where("merchant_id = ?", merchantID.String())

	if after != nil {
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var recs []domain.PaymentRecord
	if err := stmt.Order("created_at DESC, id DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}

	items := make([]*domain.Payment, 0, len(recs))
	for _, rec := range recs {
		p, err := domain.FromRecord(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

func (r *repo) InsertEvents(ctx context.Context, conn *gorm.DB, records []domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&records).Error
}

func (r *repo) ListUnpublishedEvents(ctx context.Context, conn *gorm.DB, limit int) ([]domain.EventRecord, error) {
	var records []domain.EventRecord
	err := conn.WithContext(ctx).
		Where("published_at IS NULL").
		Order("occurred_at ASC, id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) MarkEventsPublished(ctx context.Context, conn *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return conn.WithContext(ctx).
		Model(&domain.EventRecord{}).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", at).Error
}
