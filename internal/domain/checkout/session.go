// Package checkout drives one shopper's checkout of one order: loading the
// order, gating payment on the terms checkbox, claiming a discount and
// reconciling a completed payment.
package checkout

import "github.com/go-faster/errors"

// Controller errors.
var (
	ErrUnauthenticated     = errors.New("shopper not authenticated")
	ErrNotReady            = errors.New("no order loaded")
	ErrPaymentDisabled     = errors.New("payment requires a loaded order and accepted terms")
	ErrPaymentInFlight     = errors.New("payment verification in progress")
	ErrDiscountUnavailable = errors.New("discount cannot be claimed for this order")
	ErrClosed              = errors.New("checkout closed")
)

// DefaultLoginPath is where unauthenticated shoppers are sent.
const DefaultLoginPath = "/login?next=/pending-orders"

// Session is the authenticated-session input supplied by the caller.
type Session struct {
	Token string
}

// Authenticated reports whether a session token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// State is the externally visible controller mode.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoading         State = "loading"
	StateReady           State = "ready"
)
