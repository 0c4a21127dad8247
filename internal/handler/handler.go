// Package handler exposes checkout sessions over HTTP for the browser page.
package handler

import (
	"context"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
	"github.com/xenking/bes-checkout/internal/domain/payment"
)

const (
	maxRequestBody = 8 * 1024
	// mountTimeout bounds the initial order load when a session is created.
	mountTimeout = 20 * time.Second
)

// Factory builds a controller for one shopper's checkout of orderID. The
// widget is the server-side dialog the controller opens payments on.
type Factory func(orderID string, s checkout.Session, w payment.Widget) (*checkout.Controller, error)

// Handlers serves the checkout session API.
type Handlers struct {
	store         *Store
	newController Factory
}

// New creates Handlers backed by store.
func New(store *Store, newController Factory) *Handlers {
	return &Handlers{
		store:         store,
		newController: newController,
	}
}

// Routes registers the session endpoints under r.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/checkout/{orderID}/sessions", h.createSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.getSession)
		r.Delete("/", h.deleteSession)
		r.Post("/acceptance", h.setAcceptance)
		r.Post("/terms/open", h.openTerms)
		r.Post("/terms/close", h.closeTerms)
		r.Post("/discount", h.claimDiscount)
		r.Post("/reload", h.reload)
		r.Post("/payments/complete", h.completePayment)
		r.Post("/payments/close", h.closePayment)
		r.Post("/payments/{currency}", h.pay)
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// mountContext detaches the initial load from client cancellation so a
// dropped connection does not leave a half-mounted session behind.
func mountContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), mountTimeout)
}
