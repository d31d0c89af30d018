package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	FlowVersion = "payment_first_v1"

	ProfileStatusActive      = "ativo"
	SubscriptionStatusActive = "active"

	CommissionStatusPending = "pending"
	CommissionTypeFiliacao  = "filiacao"

	AffiliateStatusActive = "active"
)

// MemberType is the ministerial role a registrant applies with.
type MemberType string

const (
	MemberBispo   MemberType = "bispo"
	MemberPastor  MemberType = "pastor"
	MemberDiacono MemberType = "diacono"
	MemberMembro  MemberType = "membro"
)

func ParseMemberType(value string) (MemberType, bool) {
	mt := MemberType(strings.ToLower(strings.TrimSpace(value)))
	return mt, mt.Valid()
}

func (m MemberType) Valid() bool {
	switch m {
	case MemberBispo, MemberPastor, MemberDiacono, MemberMembro:
		return true
	}
	return false
}

type Address struct {
	CEP         string `json:"cep"`
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento,omitempty"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	Estado      string `json:"estado"`
}

// Registrant is the identity part of a registration. It is what the fallback
// queue persists, so it never carries card data or a clear text password.
type Registrant struct {
	Name         string     `json:"nome"`
	Email        string     `json:"email"`
	CPF          string     `json:"cpf"`
	Phone        string     `json:"telefone"`
	Address      Address    `json:"endereco"`
	MemberType   MemberType `json:"tipo_membro"`
	PasswordHash string     `json:"password_hash"`
}

type ClientInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type User struct {
	ID           string    `gorm:"primaryKey;type:text"`
	Email        string    `gorm:"type:text;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

type Profile struct {
	UserID                  string                      `gorm:"primaryKey;column:user_id"`
	Name                    string                      `gorm:"column:name"`
	Email                   string                      `gorm:"column:email"`
	CPF                     string                      `gorm:"column:cpf"`
	Phone                   string                      `gorm:"column:phone"`
	Address                 datatypes.JSONType[Address] `gorm:"column:address"`
	MemberType              MemberType                  `gorm:"column:member_type"`
	Status                  string                      `gorm:"column:status"`
	GatewayCustomerID       string                      `gorm:"column:gateway_customer_id"`
	PaymentConfirmedAt      *time.Time                  `gorm:"column:payment_confirmed_at"`
	RegistrationFlowVersion string                      `gorm:"column:registration_flow_version"`
	CreatedAt               time.Time                   `gorm:"column:created_at"`
	UpdatedAt               time.Time                   `gorm:"column:updated_at"`
}

func (Profile) TableName() string { return "profiles" }

type Subscription struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	UserID            string            `gorm:"column:user_id"`
	PlanID            string            `gorm:"column:plan_id"`
	Status            string            `gorm:"column:status"`
	ValueCents        int64             `gorm:"column:value_cents"`
	StartDate         time.Time         `gorm:"column:start_date"`
	NextBillingDate   time.Time         `gorm:"column:next_billing_date"`
	GatewayPaymentID  string            `gorm:"column:gateway_payment_id"`
	GatewayCustomerID string            `gorm:"column:gateway_customer_id"`
	ProcessingContext datatypes.JSONMap `gorm:"column:processing_context"`
	CreatedAt         time.Time         `gorm:"column:created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at"`
}

func (Subscription) TableName() string { return "user_subscriptions" }

type Affiliate struct {
	ID                   string    `gorm:"primaryKey;type:text"`
	UserID               *string   `gorm:"column:user_id"`
	ReferralCode         string    `gorm:"column:referral_code"`
	CommissionPercentage *int      `gorm:"column:commission_percentage"`
	Status               string    `gorm:"column:status"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (Affiliate) TableName() string { return "affiliates" }

type Commission struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	AffiliateID    string       `gorm:"column:affiliate_id"`
	ReferredUserID string       `gorm:"column:referred_user_id"`
	PaymentID      string       `gorm:"column:payment_id"`
	AmountCents    int64        `gorm:"column:amount_cents"`
	Percentage     int          `gorm:"column:percentage"`
	Status         string       `gorm:"column:status"`
	CommissionType string       `gorm:"column:commission_type"`
	CreatedAt      time.Time    `gorm:"column:created_at"`
}

func (Commission) TableName() string { return "commissions" }
