package domain

import (
	"testing"
	"time"
)

func TestFlowExecutionSettlesInPlace(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var f FlowExecution

	f.Start(StepValidation, now)
	f.Succeed("ok", now.Add(time.Second))
	f.Start(StepCustomerResolution, now.Add(2*time.Second))
	f.Fail("gateway down", now.Add(3*time.Second))

	steps := f.Steps()
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Status != StepSucceeded || steps[1].Status != StepFailed || steps[1].Detail != "gateway down" {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if f.Current() != StepCustomerResolution {
		t.Fatalf("unexpected current step %s", f.Current())
	}
}

func TestFlowExecutionRejectsStepAfterFailure(t *testing.T) {
	now := time.Now()
	var f FlowExecution
	f.Start(StepValidation, now)
	f.Fail("bad", now)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	f.Start(StepCustomerResolution, now)
}

func TestFlowExecutionRejectsOutOfOrderStep(t *testing.T) {
	var f FlowExecution
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	f.Start(StepPaymentCreation, time.Now())
}
