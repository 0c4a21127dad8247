package discount

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for claim submission.
var (
	ErrEmptyCode     = errors.New("discount code required")
	ErrClaimInFlight = errors.New("discount claim already in progress")
)

const defaultClaimMessage = "Unable to claim discount, please try again."

// Phase is the submission phase of a claim.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// State is a point-in-time copy of the claim workflow.
type State struct {
	Code  string
	Phase Phase
	// Message is the server success message, set in PhaseSuccess.
	Message string
	// Error is set only in PhaseError.
	Error string
}

// Result is a successful redemption.
type Result struct {
	Message string
}

// Redeemer submits a coupon code for the current order.
type Redeemer interface {
	RedeemCoupon(ctx context.Context, code string) (string, error)
}

// FieldErrors is implemented by redeemer errors that carry server-reported
// field errors.
type FieldErrors interface {
	error
	Flatten(withKeys bool) string
}

// ClaimError is a rejected or failed redemption. Message is safe to show.
type ClaimError struct {
	Code    string
	Message string
	Err     error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("claim %q: %s", e.Code, e.Message)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

func claimError(code string, err error) *ClaimError {
	msg := defaultClaimMessage
	var fe FieldErrors
	if errors.As(err, &fe) {
		if m := fe.Flatten(false); m != "" {
			msg = m
		}
	}
	return &ClaimError{Code: code, Message: msg, Err: err}
}
