package domain

import "time"

// FlowExecution is the append-only step log of one registration attempt.
type FlowExecution struct {
	steps []Step
}

// Start appends name as pending. Steps must be started in StepOrder and never
// after a failure; violations panic since they are programming errors.
func (f *FlowExecution) Start(name StepName, now time.Time) {
	if n := len(f.steps); n > 0 {
		last := f.steps[n-1]
		if last.Status != StepSucceeded {
			panic("registration: step " + string(name) + " started after " + string(last.Name) + " " + string(last.Status))
		}
	}
	if len(f.steps) >= len(StepOrder) || StepOrder[len(f.steps)] != name {
		panic("registration: step " + string(name) + " out of order")
	}
	f.steps = append(f.steps, Step{Name: name, Status: StepPending, Timestamp: now})
}

func (f *FlowExecution) Succeed(detail string, now time.Time) {
	f.settle(StepSucceeded, detail, now)
}

func (f *FlowExecution) Fail(detail string, now time.Time) {
	f.settle(StepFailed, detail, now)
}

func (f *FlowExecution) settle(status StepStatus, detail string, now time.Time) {
	n := len(f.steps)
	if n == 0 || f.steps[n-1].Status != StepPending {
		return
	}
	f.steps[n-1].Status = status
	f.steps[n-1].Detail = detail
	f.steps[n-1].Timestamp = now
}

// Current returns the last recorded step name, or "" before the first step.
func (f *FlowExecution) Current() StepName {
	if len(f.steps) == 0 {
		return ""
	}
	return f.steps[len(f.steps)-1].Name
}

func (f *FlowExecution) Steps() []Step {
	out := make([]Step, len(f.steps))
	copy(out, f.steps)
	return out
}
