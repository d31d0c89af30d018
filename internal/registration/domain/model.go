package domain

import (
	"time"

	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
)

// CardData is only held for the duration of the request that charges it.
type CardData struct {
	HolderName  string `json:"holder_name"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CCV         string `json:"ccv"`
}

// RegistrationData is the inbound registration payload.
type RegistrationData struct {
	Name          string                `json:"nome"`
	Email         string                `json:"email"`
	Password      string                `json:"password"`
	CPF           string                `json:"cpf"`
	Phone         string                `json:"telefone"`
	Address       accountdomain.Address `json:"endereco"`
	MemberType    string                `json:"tipo_membro"`
	PlanID        string                `json:"plan_id"`
	AffiliateID   string                `json:"affiliate_id,omitempty"`
	PaymentMethod string                `json:"payment_method"`
	CardData      *CardData             `json:"card_data,omitempty"`
}

type Request struct {
	Data RegistrationData
	// AttemptID makes client retries of the same submission reuse one charge.
	// A fresh id is generated when empty.
	AttemptID string
	Client    accountdomain.ClientInfo
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors"`
}

type StepName string

const (
	StepValidation          StepName = "validation"
	StepCustomerResolution  StepName = "customer_resolution"
	StepPaymentCreation     StepName = "payment_creation"
	StepPaymentConfirmation StepName = "payment_confirmation"
	StepAccountCreation     StepName = "account_creation"
	StepSubscription        StepName = "subscription_creation"
	StepCompleted           StepName = "completed"
)

// StepOrder is the only order in which steps may be recorded.
var StepOrder = []StepName{
	StepValidation,
	StepCustomerResolution,
	StepPaymentCreation,
	StepPaymentConfirmation,
	StepAccountCreation,
	StepSubscription,
	StepCompleted,
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

type Step struct {
	Name      StepName   `json:"name"`
	Status    StepStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
	Detail    string     `json:"detail,omitempty"`
}

type Outcome string

const (
	OutcomeCompleted             Outcome = "completed"
	OutcomeValidationFailed      Outcome = "validation_failed"
	OutcomePaymentRefused        Outcome = "payment_refused"
	OutcomeConfirmationTimeout   Outcome = "confirmation_timeout"
	OutcomeMaterializationFailed Outcome = "materialization_failed"
	OutcomeAttemptInProgress     Outcome = "attempt_in_progress"
	OutcomeGatewayFailed         Outcome = "gateway_failed"
	OutcomeFailed                Outcome = "failed"
)

type Result struct {
	Success                    bool              `json:"success"`
	Outcome                    Outcome           `json:"-"`
	UserID                     string            `json:"user_id,omitempty"`
	PaymentID                  string            `json:"payment_id,omitempty"`
	CustomerID                 string            `json:"customer_id,omitempty"`
	SubscriptionID             string            `json:"subscription_id,omitempty"`
	InvoiceURL                 string            `json:"invoice_url,omitempty"`
	Steps                      []Step            `json:"steps"`
	Error                      string            `json:"error,omitempty"`
	FallbackStored             bool              `json:"fallback_stored,omitempty"`
	RequiresManualIntervention bool              `json:"requires_manual_intervention,omitempty"`
	ValidationErrors           []ValidationError `json:"validation_errors,omitempty"`
	Duration                   int64             `json:"duration"`
}
