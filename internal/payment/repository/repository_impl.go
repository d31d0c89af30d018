package repository

import (
	"context"
	"errors"
	"time"

	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Reserve(ctx context.Context, db *gorm.DB, record *domain.Record) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByAttemptID(ctx context.Context, db *gorm.DB, attemptID string) (*domain.Record, error) {
	return r.findOne(ctx, db, "attempt_id = ?", attemptID)
}

func (r *repo) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*domain.Record, error) {
	return r.findOne(ctx, db, "gateway_payment_id = ?", paymentID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Record, error) {
	var record domain.Record
	err := db.WithContext(ctx).Where(where, arg).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repo) AttachGatewayPayment(ctx context.Context, db *gorm.DB, id int64, paymentID string, status gatewaydomain.PaymentStatus, invoiceURL string, now time.Time) error {
	var invoice *string
	if invoiceURL != "" {
		invoice = &invoiceURL
	}
	var confirmedAt *time.Time
	if status == gatewaydomain.StatusConfirmed {
		confirmedAt = &now
	}
	return db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET gateway_payment_id = ?, status = ?, invoice_url = ?, confirmed_at = ?, updated_at = ?
		 WHERE id = ?`,
		paymentID, status, invoice, confirmedAt, now, id,
	).Error
}

// UpdateStatus never moves a confirmed record back to a non-final state; only
// a cancellation (refund, chargeback) may follow a confirmation.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, paymentID string, status gatewaydomain.PaymentStatus, now time.Time) (bool, error) {
	var confirmedAt *time.Time
	if status == gatewaydomain.StatusConfirmed {
		confirmedAt = &now
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET status = ?, confirmed_at = COALESCE(confirmed_at, ?), updated_at = ?
		 WHERE gateway_payment_id = ? AND (status <> ? OR ? = ?)`,
		status, confirmedAt, now,
		paymentID, gatewaydomain.StatusConfirmed, status, gatewaydomain.StatusCancelled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) DeleteReservation(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM payment_records WHERE id = ? AND status = ?`,
		id, domain.StatusInitiating,
	).Error
}

func (r *repo) ReclaimReservation(ctx context.Context, db *gorm.DB, id int64, staleBefore, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_records SET updated_at = ?
		 WHERE id = ? AND status = ? AND gateway_payment_id IS NULL AND updated_at < ?`,
		now, id, domain.StatusInitiating, staleBefore,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
