package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rcarraroia/comademig/internal/fallback/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.PendingRegistration) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
		Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*domain.PendingRegistration, error) {
	var item domain.PendingRegistration
	err := db.WithContext(ctx).Where("payment_id = ?", paymentID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, limit, ceiling int, now time.Time) ([]domain.PendingRegistration, error) {
	var claimed []domain.PendingRegistration
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.PendingRegistration{}).
			Where("status = ? AND retry_count < ?", domain.StatusPending, ceiling).
			Order("created_at ASC").
			Order("id ASC").
			Limit(limit)
		// SQLite serializes writers and has no row locks.
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(claimed))
		for _, item := range claimed {
			ids = append(ids, int64(item.ID))
		}
		if err := tx.Exec(
			`UPDATE pending_registrations SET status = ?, updated_at = ? WHERE id IN ? AND status = ?`,
			domain.StatusProcessing, now, ids, domain.StatusPending,
		).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = domain.StatusProcessing
			claimed[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repo) RecoverStale(ctx context.Context, db *gorm.DB, before, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE pending_registrations SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		domain.StatusPending, now, domain.StatusProcessing, before,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, id int64, reason string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pending_registrations SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		domain.StatusPending, reason, now, id, domain.StatusProcessing,
	).Error
}

func (r *repo) MarkCompleted(ctx context.Context, db *gorm.DB, id int64, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pending_registrations SET status = ?, processed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		domain.StatusCompleted, now, now, id, domain.StatusProcessing,
	).Error
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, id int64, reason string, ceiling int, now time.Time) (bool, error) {
	exhausted := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`UPDATE pending_registrations
			 SET status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE ? END,
			     retry_count = retry_count + 1,
			     last_error = ?,
			     updated_at = ?
			 WHERE id = ? AND status = ?`,
			ceiling, domain.StatusFailed, domain.StatusPending, reason, now,
			id, domain.StatusProcessing,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var status string
		if err := tx.Raw(`SELECT status FROM pending_registrations WHERE id = ?`, id).Scan(&status).Error; err != nil {
			return err
		}
		exhausted = domain.Status(status) == domain.StatusFailed
		return nil
	})
	return exhausted, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.PendingRegistration, error) {
	q := db.WithContext(ctx).Model(&domain.PendingRegistration{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.AfterID > 0 {
		q = q.Where("id < ?", filter.AfterID)
	}
	var items []*domain.PendingRegistration
	if err := q.Order("id DESC").Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
