package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bes-checkout/internal/domain/checkout"
	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/payment"
)

const msgNotObject = "request body must be a JSON object"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestError is a malformed request body.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err to a status and error code. Unknown errors are
// failures talking to the storefront.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()

	lg := zctx.From(ctx)
	if status >= http.StatusInternalServerError {
		lg.Error("Checkout request failed", zap.Error(err))
		msg = "storefront unavailable, please try again"
	} else {
		lg.Debug("Checkout request rejected", zap.Error(err), zap.String("code", code))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func classify(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, money.ErrUnsupportedCurrency):
		return http.StatusBadRequest, "unsupported_currency"
	case errors.Is(err, discount.ErrEmptyCode):
		return http.StatusBadRequest, "empty_code"
	case errors.Is(err, checkout.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, ErrSessionForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, checkout.ErrClosed):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, checkout.ErrPaymentDisabled),
		errors.Is(err, checkout.ErrNotReady),
		errors.Is(err, checkout.ErrDiscountUnavailable):
		return http.StatusConflict, "not_allowed"
	case errors.Is(err, checkout.ErrPaymentInFlight),
		errors.Is(err, discount.ErrClaimInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, payment.ErrNoPendingPayment):
		return http.StatusConflict, "no_pending_payment"
	case errors.Is(err, payment.ErrTxRefMismatch):
		return http.StatusUnprocessableEntity, "tx_ref_mismatch"
	default:
		return http.StatusBadGateway, "upstream"
	}
}

// decodeBody reads a JSON object from the request and calls fn per field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return badRequest("read request body")
	}
	if len(body) > maxRequestBody {
		return badRequest("request body too large")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return badRequest(msgNotObject)
	}

	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return badRequest(msgNotObject)
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}
	return nil
}

// decodeID accepts an identifier sent as a JSON string or number.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.New("identifier must be a string or number")
	}
}
