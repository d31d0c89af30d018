package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		client    bool
		transient bool
	}{
		{name: "conflict", err: &Error{StatusCode: 409}, client: true},
		{name: "bad_request_wrapped", err: fmt.Errorf("create customer: %w", &Error{StatusCode: 400}), client: true},
		{name: "throttled", err: &Error{StatusCode: 429}, transient: true},
		{name: "server", err: &Error{StatusCode: 502}, transient: true},
		{name: "network", err: &Error{Err: errors.New("connection reset")}, transient: true},
		{name: "plain", err: errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsClientError(tc.err); got != tc.client {
				t.Fatalf("IsClientError = %v, want %v", got, tc.client)
			}
			if got := IsTransient(tc.err); got != tc.transient {
				t.Fatalf("IsTransient = %v, want %v", got, tc.transient)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Provider: "asaas", Operation: "create_customer", StatusCode: 400, Code: "invalid_cpfCnpj", Description: "CPF inválido"}
	want := "asaas create_customer: status 400: invalid_cpfCnpj: CPF inválido"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestTerminalFailure(t *testing.T) {
	if !StatusRefused.IsTerminalFailure() || !StatusCancelled.IsTerminalFailure() {
		t.Fatalf("refused and cancelled are terminal")
	}
	if StatusPending.IsTerminalFailure() || StatusOverdue.IsTerminalFailure() || StatusConfirmed.IsTerminalFailure() {
		t.Fatalf("pending, overdue and confirmed are not terminal failures")
	}
}
