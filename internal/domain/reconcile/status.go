package reconcile

import (
	"fmt"
	"net/url"
)

// Status is the settled outcome of a payment attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusPending Status = "pending"
)

var statusCodes = map[int]Status{
	1: StatusSuccess,
	2: StatusFail,
	3: StatusPending,
}

// UnmappedStatusError is a status code outside the known table. The backend
// is not supposed to send one.
type UnmappedStatusError struct {
	Code int
}

func (e *UnmappedStatusError) Error() string {
	return fmt.Sprintf("unmapped transaction status %d", e.Code)
}

// MapStatus maps a verification status code. It never falls back to a
// default.
func MapStatus(code int) (Status, error) {
	s, ok := statusCodes[code]
	if !ok {
		return "", &UnmappedStatusError{Code: code}
	}
	return s, nil
}

// NavigationTarget is where the shopper goes once a payment is reconciled.
type NavigationTarget struct {
	Status Status
	// Ref is the public order reference.
	Ref string
}

// Path renders the target as an in-app route.
func (t NavigationTarget) Path() string {
	return "/payment?status=" + url.QueryEscape(string(t.Status)) + "&ref=" + url.QueryEscape(t.Ref)
}
