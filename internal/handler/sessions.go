package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/order"
	"github.com/xenking/bes-checkout/internal/domain/payment"
)

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	View      checkout.View `json:"view"`
}

type paymentResponse struct {
	Config payment.Config `json:"config"`
	View   checkout.View  `json:"view"`
}

func (h *Handlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := bearerToken(r.Header.Get("Authorization"))
	orderID := chi.URLParam(r, "orderID")

	widget := &payment.HostedWidget{}
	ctrl, err := h.newController(orderID, checkout.Session{Token: token}, widget)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, ctrl.View())
		return
	}

	mountCtx, cancel := mountContext(ctx)
	defer cancel()
	err = ctrl.Mount(mountCtx)

	// A failed order load is still a session: the page shows the banner and
	// the shopper can reload.
	var le *order.LoadError
	if err != nil && !errors.As(err, &le) && !errors.Is(err, order.ErrEmptyOrderID) {
		ctrl.Close()
		writeError(ctx, w, err)
		return
	}

	sess := h.store.Add(token, ctrl, widget)
	zctx.From(ctx).Info("Checkout session created",
		zap.String("session", sess.ID),
		zap.String("order", orderID),
	)
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID, View: ctrl.View()})
}

// session resolves the {sessionID} path parameter, writing the error
// response itself when it fails.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.store.Get(chi.URLParam(r, "sessionID"), bearerToken(r.Header.Get("Authorization")))
	if err != nil {
		writeError(r.Context(), w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handlers) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.store.Delete(id, bearerToken(r.Header.Get("Authorization"))); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	zctx.From(r.Context()).Info("Checkout session closed", zap.String("session", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) setAcceptance(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		accepted bool
		seen     bool
	)
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "accepted" {
			return d.Skip()
		}
		seen = true
		v, err := d.Bool()
		accepted = v
		return err
	}); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if !seen {
		writeError(r.Context(), w, badRequest("accepted is required"))
		return
	}

	sess.Controller.SetAcceptance(accepted)
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) openTerms(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Controller.OpenTerms()
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) closeTerms(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Controller.CloseTerms()
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) claimDiscount(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var code string
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		v, err := d.Str()
		code = v
		return err
	}); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	sess.Controller.SetDiscountCode(code)
	if _, err := sess.Controller.ClaimDiscount(r.Context()); err != nil {
		// A rejected claim is rendered in the discount block.
		var ce *discount.ClaimError
		if !errors.As(err, &ce) {
			writeError(r.Context(), w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) reload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Controller.Reload(r.Context()); err != nil {
		var le *order.LoadError
		if !errors.As(err, &le) {
			writeError(r.Context(), w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) pay(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	currency, err := money.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	cfg, err := sess.Controller.Pay(r.Context(), currency)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Config: cfg, View: sess.Controller.View()})
}

func (h *Handlers) completePayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var done payment.Completion
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "tx_ref":
			done.TxRef, err = d.Str()
		case "transaction_id":
			done.TransactionID, err = decodeID(d)
		case "status":
			done.Status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	// The dialog callback reconciles synchronously; verification failures end
	// up in the view rather than the response status.
	if err := sess.Widget.Complete(r.Context(), done); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Controller.View())
}

func (h *Handlers) closePayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Widget.Abandon()
	writeJSON(w, http.StatusOK, sess.Controller.View())
}
