package domain

import (
	"context"
	"time"

	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// Reserve inserts an INITIATING record. It returns a duplicate key error
	// when the attempt id is taken.
	Reserve(ctx context.Context, db *gorm.DB, record *Record) error
	FindByAttemptID(ctx context.Context, db *gorm.DB, attemptID string) (*Record, error)
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*Record, error)
	AttachGatewayPayment(ctx context.Context, db *gorm.DB, id int64, paymentID string, status gatewaydomain.PaymentStatus, invoiceURL string, now time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, paymentID string, status gatewaydomain.PaymentStatus, now time.Time) (bool, error)
	DeleteReservation(ctx context.Context, db *gorm.DB, id int64) error
	// ReclaimReservation takes over an INITIATING record untouched since
	// staleBefore. Only one caller wins.
	ReclaimReservation(ctx context.Context, db *gorm.DB, id int64, staleBefore, now time.Time) (bool, error)
}
