package domain

import "time"

// PaymentStatus is the normalized gateway payment status.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusConfirmed PaymentStatus = "CONFIRMED"
	StatusRefused   PaymentStatus = "REFUSED"
	StatusOverdue   PaymentStatus = "OVERDUE"
	StatusCancelled PaymentStatus = "CANCELLED"
)

// IsTerminalFailure reports statuses that will never become CONFIRMED.
func (s PaymentStatus) IsTerminalFailure() bool {
	return s == StatusRefused || s == StatusCancelled
}

// BillingType is the payment method understood by the gateway.
type BillingType string

const (
	BillingCreditCard BillingType = "CREDIT_CARD"
	BillingBoleto     BillingType = "BOLETO"
	BillingPix        BillingType = "PIX"
)

func (b BillingType) Valid() bool {
	switch b {
	case BillingCreditCard, BillingBoleto, BillingPix:
		return true
	default:
		return false
	}
}

type Address struct {
	PostalCode string `json:"postal_code"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

type CustomerRequest struct {
	Name              string
	Email             string
	TaxID             string
	Phone             string
	Address           Address
	ExternalReference string
}

type Customer struct {
	ID    string
	Name  string
	Email string
	TaxID string
}

type PaymentRequest struct {
	CustomerID        string
	BillingType       BillingType
	ValueCents        int64
	DueDate           time.Time
	Description       string
	ExternalReference string
}

type Payment struct {
	ID                string
	CustomerID        string
	BillingType       BillingType
	ValueCents        int64
	Status            PaymentStatus
	RawStatus         string
	InvoiceURL        string
	DueDate           time.Time
	ExternalReference string
}

type Card struct {
	HolderName  string
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CCV         string
}

type CardHolder struct {
	Name          string
	Email         string
	TaxID         string
	PostalCode    string
	AddressNumber string
	Phone         string
}

type CardCharge struct {
	Card     Card
	Holder   CardHolder
	RemoteIP string
}

// PaymentEvent is the canonical payment notification parsed from webhooks.
type PaymentEvent struct {
	Provider          string
	EventID           string
	EventType         string
	PaymentID         string
	ExternalReference string
	Status            PaymentStatus
	OccurredAt        time.Time
}
