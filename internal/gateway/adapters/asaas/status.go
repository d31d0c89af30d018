package asaas

import (
	"strings"

	"github.com/rcarraroia/comademig/internal/gateway/domain"
)

// normalizeStatus maps Asaas payment statuses onto the normalized set.
// Unknown statuses are treated as pending so the caller keeps waiting.
func normalizeStatus(raw string) domain.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "CONFIRMED", "RECEIVED", "RECEIVED_IN_CASH", "DUNNING_RECEIVED":
		return domain.StatusConfirmed
	case "OVERDUE":
		return domain.StatusOverdue
	case "REFUSED":
		return domain.StatusRefused
	case "REFUNDED", "REFUND_REQUESTED", "REFUND_IN_PROGRESS",
		"CHARGEBACK_REQUESTED", "CHARGEBACK_DISPUTE", "AWAITING_CHARGEBACK_REVERSAL",
		"DELETED", "CANCELLED":
		return domain.StatusCancelled
	default:
		return domain.StatusPending
	}
}

// statusForEvent maps webhook event names; ok is false for events that do
// not change payment state.
func statusForEvent(event, paymentStatus string) (domain.PaymentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(event)) {
	case "PAYMENT_CONFIRMED", "PAYMENT_RECEIVED":
		return domain.StatusConfirmed, true
	case "PAYMENT_OVERDUE":
		return domain.StatusOverdue, true
	case "PAYMENT_CREDIT_CARD_CAPTURE_REFUSED", "PAYMENT_REPROVED_BY_RISK_ANALYSIS":
		return domain.StatusRefused, true
	case "PAYMENT_REFUNDED", "PAYMENT_DELETED", "PAYMENT_CHARGEBACK_REQUESTED", "PAYMENT_CHARGEBACK_DISPUTE":
		return domain.StatusCancelled, true
	case "PAYMENT_CREATED", "PAYMENT_UPDATED", "PAYMENT_AWAITING_RISK_ANALYSIS", "PAYMENT_APPROVED_BY_RISK_ANALYSIS":
		return normalizeStatus(paymentStatus), true
	default:
		return "", false
	}
}
