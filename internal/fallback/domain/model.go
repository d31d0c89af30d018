package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/pkg/db/pagination"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type Source string

const (
	SourceConfirmationTimeout  Source = "confirmation_timeout"
	SourceMaterializationError Source = "materialization_error"
)

// RegistrationData is the persisted registration payload. Card data never
// reaches this struct.
type RegistrationData struct {
	accountdomain.Registrant
	Client accountdomain.ClientInfo `json:"client,omitempty"`
}

type PendingRegistration struct {
	ID               snowflake.ID                         `gorm:"primaryKey" json:"id"`
	PaymentID        string                               `gorm:"column:payment_id" json:"payment_id"`
	CustomerID       string                               `gorm:"column:customer_id" json:"customer_id"`
	RegistrationData datatypes.JSONType[RegistrationData] `gorm:"column:registration_data" json:"-"`
	PlanID           string                               `gorm:"column:plan_id" json:"plan_id"`
	AffiliateID      *string                              `gorm:"column:affiliate_id" json:"affiliate_id,omitempty"`
	PaymentMethod    string                               `gorm:"column:payment_method" json:"payment_method"`
	AmountCents      int64                                `gorm:"column:amount_cents" json:"amount"`
	RetryCount       int                                  `gorm:"column:retry_count" json:"retry_count"`
	LastError        *string                              `gorm:"column:last_error" json:"last_error,omitempty"`
	Status           Status                               `gorm:"column:status" json:"status"`
	Source           Source                               `gorm:"column:source" json:"source"`
	ProcessedAt      *time.Time                           `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt        time.Time                            `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time                            `gorm:"column:updated_at" json:"updated_at"`
}

func (PendingRegistration) TableName() string { return "pending_registrations" }

func (p PendingRegistration) Affiliate() string {
	if p.AffiliateID == nil {
		return ""
	}
	return *p.AffiliateID
}

type StoreRequest struct {
	PaymentID     string
	CustomerID    string
	PlanID        string
	AffiliateID   string
	PaymentMethod string
	AmountCents   int64
	Data          RegistrationData
	Source        Source
	LastError     string
}

type ListRequest struct {
	Status Status
	pagination.Pagination
}

type ListResponse struct {
	Items    []*PendingRegistration `json:"items"`
	PageInfo *pagination.PageInfo   `json:"page_info"`
}
