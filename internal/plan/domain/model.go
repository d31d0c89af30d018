package domain

import (
	"strings"
	"time"
)

// Cycle is the billing recurrence of a plan.
type Cycle string

const (
	CycleMonthly      Cycle = "MONTHLY"
	CycleSemiannually Cycle = "SEMIANNUALLY"
	CycleYearly       Cycle = "YEARLY"
)

// ParseCycle normalizes cycle names, including the lowercase Portuguese
// aliases still present in older plan rows.
func ParseCycle(raw string) Cycle {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "semiannually", "semestral", "semiannual":
		return CycleSemiannually
	case "yearly", "annual", "anual":
		return CycleYearly
	default:
		return CycleMonthly
	}
}

// NextBillingDate returns the first renewal date after from. Unknown cycles
// renew monthly.
func (c Cycle) NextBillingDate(from time.Time) time.Time {
	switch c {
	case CycleSemiannually:
		return from.AddDate(0, 6, 0)
	case CycleYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

type Plan struct {
	ID           string       `json:"id" gorm:"primaryKey;type:text"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	MemberType   *string      `json:"member_type,omitempty" gorm:"column:member_type;type:text"`
	ValueCents   int64        `json:"value" gorm:"column:value_cents;not null"`
	Currency     string       `json:"currency" gorm:"type:text;not null;default:'BRL'"`
	Cycle        Cycle        `json:"cycle" gorm:"type:text;not null"`
	Active       bool         `json:"active" gorm:"not null;default:true"`
	Capabilities Capabilities `json:"capabilities" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Plan) TableName() string { return "subscription_plans" }
