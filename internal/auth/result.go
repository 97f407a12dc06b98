package auth

import (
	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/metrics"
)

// Outcome is the kind of an authentication attempt.
type Outcome int

const (
	// OutcomeError means the attempt could not be decided because a store or
	// the hasher failed.
	OutcomeError Outcome = iota
	// OutcomeAuthenticated means the credentials matched.
	OutcomeAuthenticated
	// OutcomeRejected means the credentials did not match a known identity.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return metrics.OutcomeAuthenticated
	case OutcomeRejected:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// Result is the tagged outcome of an authentication attempt. Profile is set
// only when Outcome is OutcomeAuthenticated, Reason only when rejected and
// Cause only on error.
type Result struct {
	Outcome Outcome
	Profile identity.Profile
	Reason  string
	Cause   error
}

func authenticated(p identity.Profile) Result {
	return Result{Outcome: OutcomeAuthenticated, Profile: p}
}

func rejected() Result {
	return Result{Outcome: OutcomeRejected, Reason: apperr.ReasonInvalidCredentials}
}

func failed(err error) Result {
	return Result{Outcome: OutcomeError, Cause: err}
}

// Err returns nil for an authenticated result, apperr.ErrInvalidCredentials
// for a rejection and the underlying failure otherwise.
func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeAuthenticated:
		return nil
	case OutcomeRejected:
		return apperr.ErrInvalidCredentials
	default:
		if r.Cause == nil {
			return apperr.ErrStore
		}
		return r.Cause
	}
}
