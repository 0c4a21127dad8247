// Package reconcile confirms completed payments against the backend record.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrMissingTransaction is returned when either identifier is empty.
var ErrMissingTransaction = errors.New("transaction and order identifiers required")

// ErrMissingOrderRef is wrapped by VerificationError when the backend confirms
// a transaction without returning the order it belongs to.
var ErrMissingOrderRef = errors.New("verification response has no order reference")

const (
	instrumentationName  = "github.com/xenking/bes-checkout/internal/domain/reconcile"
	defaultVerifyMessage = "Unable to verify transaction, please contact support."
)

// Verification is the payload submitted for server-side confirmation.
type Verification struct {
	// OrderID is the internal order identifier.
	OrderID       string
	TransactionID string
}

// VerifyResult is a successful verification response.
type VerifyResult struct {
	// Status is nil when the response carried no status.
	Status *int
	// OrderRef is the public identifier of the returned order.
	OrderRef string
}

// Verifier confirms a transaction with the backend.
type Verifier interface {
	VerifyTransaction(ctx context.Context, v Verification) (*VerifyResult, error)
}

// FieldErrors is implemented by verifier errors carrying server field errors.
type FieldErrors interface {
	error
	Flatten(withKeys bool) string
}

// VerificationError is a failed reconciliation. Message is safe to show.
type VerificationError struct {
	TransactionID string
	OrderID       string
	Message       string
	Err           error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify transaction %s: %s", e.TransactionID, e.Message)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMeterProvider sets the meter provider for outcome counters.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(r *Reconciler) { r.meterProvider = p }
}

// WithTracerProvider sets the tracer provider for reconciliation spans.
func WithTracerProvider(p trace.TracerProvider) Option {
	return func(r *Reconciler) { r.tracerProvider = p }
}

// Reconciler turns a completed payment into a navigation target.
type Reconciler struct {
	verifier Verifier

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	outcomes       metric.Int64Counter
}

// NewReconciler creates a Reconciler backed by verifier.
func NewReconciler(verifier Verifier, opts ...Option) (*Reconciler, error) {
	r := &Reconciler{
		verifier:       verifier,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, o := range opts {
		o(r)
	}

	r.tracer = r.tracerProvider.Tracer(instrumentationName)
	counter, err := r.meterProvider.Meter(instrumentationName).Int64Counter(
		"checkout.reconcile.outcomes",
		metric.WithDescription("Reconciled payment attempts by mapped status"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "outcomes counter")
	}
	r.outcomes = counter
	return r, nil
}

// Reconcile verifies transactionID against orderID. It holds no state, so
// repeating a call with the same arguments yields the same target as long as
// the backend record has not changed.
func (r *Reconciler) Reconcile(ctx context.Context, transactionID, orderID string) (_ NavigationTarget, rerr error) {
	transactionID = strings.TrimSpace(transactionID)
	orderID = strings.TrimSpace(orderID)
	if transactionID == "" || orderID == "" {
		return NavigationTarget{}, ErrMissingTransaction
	}

	ctx, span := r.tracer.Start(ctx, "reconcile.Reconcile",
		trace.WithAttributes(
			attribute.String("order.id", orderID),
			attribute.String("payment.transaction_id", transactionID),
		),
	)
	defer span.End()

	lg := zctx.From(ctx).With(
		zap.String("order", orderID),
		zap.String("transaction_id", transactionID),
	)

	outcome := "error"
	defer func() {
		r.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", outcome)))
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "reconcile failed")
		}
	}()

	res, err := r.verifier.VerifyTransaction(ctx, Verification{
		OrderID:       orderID,
		TransactionID: transactionID,
	})
	if err != nil {
		msg := defaultVerifyMessage
		var fe FieldErrors
		if errors.As(err, &fe) {
			if m := fe.Flatten(true); m != "" {
				msg = m
			}
		}
		lg.Warn("Transaction verification failed", zap.Error(err))
		return NavigationTarget{}, &VerificationError{
			TransactionID: transactionID,
			OrderID:       orderID,
			Message:       msg,
			Err:           err,
		}
	}

	status := StatusPending
	if res.Status != nil {
		status, err = MapStatus(*res.Status)
		if err != nil {
			lg.Error("Backend returned unmapped transaction status", zap.Int("status", *res.Status))
			return NavigationTarget{}, &VerificationError{
				TransactionID: transactionID,
				OrderID:       orderID,
				Message:       fmt.Sprintf("Unrecognised transaction status %d, please contact support.", *res.Status),
				Err:           err,
			}
		}
	}

	ref := strings.TrimSpace(res.OrderRef)
	if ref == "" {
		lg.Error("Backend verified transaction without order reference", zap.String("status", string(status)))
		return NavigationTarget{}, &VerificationError{
			TransactionID: transactionID,
			OrderID:       orderID,
			Message:       defaultVerifyMessage,
			Err:           ErrMissingOrderRef,
		}
	}

	outcome = string(status)
	span.SetAttributes(attribute.String("payment.status", outcome))

	target := NavigationTarget{Status: status, Ref: ref}
	lg.Info("Transaction reconciled",
		zap.String("status", outcome),
		zap.String("ref", target.Ref),
	)
	return target, nil
}
