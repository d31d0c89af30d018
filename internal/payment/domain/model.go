package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
)

// StatusInitiating marks a record reserved for an attempt whose gateway
// charge has not returned yet.
const StatusInitiating gatewaydomain.PaymentStatus = "INITIATING"

type Record struct {
	ID                snowflake.ID                `gorm:"primaryKey"`
	AttemptID         string                      `gorm:"column:attempt_id"`
	GatewayPaymentID  *string                     `gorm:"column:gateway_payment_id"`
	GatewayCustomerID string                      `gorm:"column:gateway_customer_id"`
	Method            gatewaydomain.BillingType   `gorm:"column:method"`
	AmountCents       int64                       `gorm:"column:amount_cents"`
	Currency          string                      `gorm:"column:currency"`
	Status            gatewaydomain.PaymentStatus `gorm:"column:status"`
	InvoiceURL        *string                     `gorm:"column:invoice_url"`
	ConfirmedAt       *time.Time                  `gorm:"column:confirmed_at"`
	CreatedAt         time.Time                   `gorm:"column:created_at"`
	UpdatedAt         time.Time                   `gorm:"column:updated_at"`
}

func (Record) TableName() string { return "payment_records" }

func (r Record) PaymentID() string {
	if r.GatewayPaymentID == nil {
		return ""
	}
	return *r.GatewayPaymentID
}

// InitiateRequest carries everything needed to charge once. AttemptID is
// the idempotency key; repeating a request with the same AttemptID never
// reaches the gateway twice.
type InitiateRequest struct {
	AttemptID   string
	CustomerID  string
	Method      gatewaydomain.BillingType
	AmountCents int64
	Currency    string
	Description string
	Card        *gatewaydomain.CardCharge
}

type Initiation struct {
	Record Record
	// Reused is true when the record came from an earlier call with the same
	// attempt id.
	Reused bool
}

// PollResult is the outcome of one confirmation wait.
type PollResult struct {
	Success  bool                        `json:"success"`
	Status   gatewaydomain.PaymentStatus `json:"status,omitempty"`
	TimedOut bool                        `json:"timedOut"`
	Error    string                      `json:"error,omitempty"`
	Attempts int                         `json:"attempts"`
	Duration time.Duration               `json:"duration"`
}

type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	// OnStatus is called after every successful status read.
	OnStatus func(status gatewaydomain.PaymentStatus, attempt int)
}
