package syncer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Outcome classifies one sync step.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeWarning
	OutcomeError
)

// Step operations, in run order.
const (
	OpLoadIntegration  = "load_integration"
	OpValidate         = "validate"
	OpAuth             = "auth"
	OpLoadProperty     = "load_property"
	OpPushPrices       = "push_prices"
	OpPushBaseParams   = "push_base_params"
	OpPushAvailability = "push_availability"
	OpPullBookings     = "pull_bookings"
	OpCancelUnpaid     = "cancel_unpaid"
	OpAborted          = "aborted"
)

// Step is the tagged outcome of one sub-operation of a run.
type Step struct {
	Op      string  `json:"op"`
	Outcome Outcome `json:"outcome"`
	Status  int     `json:"status,omitempty"` // HTTP status when the marketplace answered
	Detail  string  `json:"detail,omitempty"`
	Err     error   `json:"-"`
}

// PullStats counts what the pull phase did.
type PullStats struct {
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Cancelled int `json:"cancelled"`
}

// Result folds every step of one sync run. A run succeeds when no step
// errored; warnings (remote data gaps, courtesy-cancel refusals) do not
// block the remaining steps and do not fail the run.
type Result struct {
	RunID         string    `json:"run_id"`
	IntegrationID int64     `json:"integration_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Steps         []Step    `json:"steps"`
	Pull          PullStats `json:"pull"`
}

func newResult(integrationID int64) *Result {
	return &Result{
		RunID:         uuid.New().String(),
		IntegrationID: integrationID,
		StartedAt:     time.Now(),
	}
}

func (r *Result) ok(op, detail string) {
	r.Steps = append(r.Steps, Step{Op: op, Outcome: OutcomeOK, Detail: detail})
}

func (r *Result) warn(op string, status int, detail string) {
	r.Steps = append(r.Steps, Step{Op: op, Outcome: OutcomeWarning, Status: status, Detail: detail})
}

func (r *Result) fail(op string, err error) {
	r.Steps = append(r.Steps, Step{Op: op, Outcome: OutcomeError, Detail: err.Error(), Err: err})
}

// Success reports whether the run had no errors.
func (r *Result) Success() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeError {
			return false
		}
	}

	return true
}

// Errors returns the failed steps.
func (r *Result) Errors() []Step {
	return r.filter(OutcomeError)
}

// Warnings returns the degraded-but-tolerated steps.
func (r *Result) Warnings() []Step {
	return r.filter(OutcomeWarning)
}

func (r *Result) filter(outcome Outcome) []Step {
	var out []Step

	for _, s := range r.Steps {
		if s.Outcome == outcome {
			out = append(out, s)
		}
	}

	return out
}

// Err folds all step errors into one error, nil on success. Wrapped causes
// stay visible to errors.Is, so callers can spot fatal classes like an
// expired authorization.
func (r *Result) Err() error {
	var err error

	for _, s := range r.Steps {
		if s.Outcome != OutcomeError {
			continue
		}

		if s.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Op, s.Err))
		} else {
			err = multierr.Append(err, fmt.Errorf("%s: %s", s.Op, s.Detail))
		}
	}

	return err
}

// Summary is a one-line description for logs and API responses.
func (r *Result) Summary() string {
	if errs := r.Errors(); len(errs) > 0 {
		return fmt.Sprintf("failed: %s: %s", errs[0].Op, errs[0].Detail)
	}

	return fmt.Sprintf("ok: %d steps, %d warnings, pull fetched=%d created=%d updated=%d skipped=%d cancelled=%d",
		len(r.Steps), len(r.Warnings()),
		r.Pull.Fetched, r.Pull.Created, r.Pull.Updated, r.Pull.Skipped, r.Pull.Cancelled)
}
