package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/order"
	"github.com/xenking/bes-checkout/internal/domain/payment"
	"github.com/xenking/bes-checkout/internal/domain/reconcile"
)

const (
	instrumentationName   = "github.com/xenking/bes-checkout/internal/domain/checkout"
	defaultPaymentMessage = "Unable to verify payment, please contact support."
)

// OrderLoader loads order snapshots.
type OrderLoader interface {
	Load(ctx context.Context, id string) (*order.Snapshot, error)
}

// Reconciler verifies completed payments.
type Reconciler interface {
	Reconcile(ctx context.Context, transactionID, orderID string) (reconcile.NavigationTarget, error)
}

// Config wires a Controller. Loader, Redeemer, Builder, Widget and
// Reconciler are required.
type Config struct {
	OrderID string
	Session Session

	Loader     OrderLoader
	Redeemer   discount.Redeemer
	Builder    *payment.Builder
	Widget     payment.Widget
	Reconciler Reconciler

	// Scheduler and ReloadDelay control the reload after a claim.
	Scheduler   discount.Scheduler
	ReloadDelay time.Duration

	LoginPath    string
	BankTransfer *BankTransfer

	// Logger is used for work not tied to a request, such as the scheduled
	// reload.
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
}

// Controller is the checkout state machine for one order and one shopper.
// All methods are safe for concurrent use; network calls are made without
// holding the state lock.
type Controller struct {
	orderID    string
	session    Session
	loader     OrderLoader
	builder    *payment.Builder
	initiator  *payment.Initiator
	widget     payment.Widget
	reconciler Reconciler
	discount   *discount.Workflow
	loginPath  string
	bank       BankTransfer
	lg         *zap.Logger
	tracer     trace.Tracer

	mu          sync.Mutex
	state       State
	snap        *order.Snapshot
	banner      string
	accepted    bool
	termsOpen   bool
	reconciling bool
	paymentErr  string
	target      *reconcile.NavigationTarget
	loadGen     uint64
	closed      bool
}

// New creates a Controller. Call Mount to load the order.
func New(cfg Config) *Controller {
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	bank := DefaultBankTransfer()
	if cfg.BankTransfer != nil {
		bank = *cfg.BankTransfer
	}

	c := &Controller{
		orderID:    strings.TrimSpace(cfg.OrderID),
		session:    cfg.Session,
		loader:     cfg.Loader,
		builder:    cfg.Builder,
		initiator:  payment.NewInitiator(cfg.Widget),
		widget:     cfg.Widget,
		reconciler: cfg.Reconciler,
		loginPath:  cfg.LoginPath,
		bank:       bank,
		lg:         cfg.Logger.With(zap.String("order", strings.TrimSpace(cfg.OrderID))),
		tracer:     cfg.TracerProvider.Tracer(instrumentationName),
		state:      StateLoading,
	}
	if !cfg.Session.Authenticated() {
		c.state = StateUnauthenticated
	}

	var opts []discount.Option
	if cfg.ReloadDelay > 0 {
		opts = append(opts, discount.WithReloadDelay(cfg.ReloadDelay))
	}
	if cfg.Scheduler != nil {
		opts = append(opts, discount.WithScheduler(cfg.Scheduler))
	}
	c.discount = discount.NewWorkflow(cfg.Redeemer, c.scheduledReload, opts...)
	return c
}

// Mount performs the initial order load.
func (c *Controller) Mount(ctx context.Context) error {
	return c.load(ctx, "mount")
}

// Reload re-fetches the order and replaces all page state. The terms
// checkbox is cleared and must be ticked again, and an open payment dialog
// is discarded.
func (c *Controller) Reload(ctx context.Context) error {
	return c.load(ctx, "reload")
}

func (c *Controller) scheduledReload() {
	ctx := zctx.Base(context.Background(), c.lg)
	if err := c.load(ctx, "claim"); err != nil && !errors.Is(err, ErrClosed) {
		c.lg.Warn("Scheduled reload failed", zap.Error(err))
	}
}

func (c *Controller) load(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.session.Authenticated() {
		c.state = StateUnauthenticated
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	c.loadGen++
	gen := c.loadGen
	c.state = StateLoading
	c.snap = nil
	c.banner = ""
	c.accepted = false
	c.termsOpen = false
	c.paymentErr = ""
	c.target = nil
	c.mu.Unlock()

	// A dialog opened against the previous snapshot must not complete.
	c.widget.Close()
	c.discount.Reset()

	ctx, span := c.tracer.Start(ctx, "checkout.Load", trace.WithAttributes(
		attribute.String("order.id", c.orderID),
		attribute.String("checkout.reason", reason),
	))
	defer span.End()

	snap, err := c.loader.Load(ctx, c.orderID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.loadGen || c.closed {
		// A newer load or Close superseded this one.
		return err
	}
	if err != nil {
		c.banner = loadMessage(err)
		span.RecordError(err)
		return err
	}
	c.snap = snap
	c.state = StateReady
	span.SetAttributes(attribute.String("order.settlement", string(snap.Settlement().Kind())))
	zctx.From(ctx).Debug("Checkout ready", zap.String("reason", reason))
	return nil
}

func loadMessage(err error) string {
	var le *order.LoadError
	if errors.As(err, &le) {
		return le.Message
	}
	if errors.Is(err, order.ErrEmptyOrderID) {
		return "No order selected."
	}
	return "Unable to load order, please try again."
}

// SetAcceptance sets the terms checkbox.
func (c *Controller) SetAcceptance(accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	c.accepted = accepted
}

// OpenTerms shows the terms and conditions.
func (c *Controller) OpenTerms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateReady {
		c.termsOpen = true
	}
}

// CloseTerms hides the terms and conditions.
func (c *Controller) CloseTerms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.termsOpen = false
}

// SetDiscountCode edits the entered discount code.
func (c *Controller) SetDiscountCode(code string) {
	c.discount.SetCode(strings.TrimSpace(code))
}

// ClaimDiscount submits the entered code. It is only available while the
// order offers an unclaimed discount.
func (c *Controller) ClaimDiscount(ctx context.Context) (discount.Result, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return discount.Result{}, ErrClosed
	}
	if c.state != StateReady {
		c.mu.Unlock()
		return discount.Result{}, ErrNotReady
	}
	if !c.snap.DiscountClaimable() {
		c.mu.Unlock()
		return discount.Result{}, ErrDiscountUnavailable
	}
	c.mu.Unlock()

	return c.discount.Submit(ctx)
}

// Pay opens the payment widget for currency. Every call builds a config from
// the current snapshot with a new transaction reference.
func (c *Controller) Pay(ctx context.Context, currency money.Currency) (payment.Config, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return payment.Config{}, ErrClosed
	}
	if c.state != StateReady || !c.accepted {
		c.mu.Unlock()
		return payment.Config{}, ErrPaymentDisabled
	}
	if c.reconciling {
		c.mu.Unlock()
		return payment.Config{}, ErrPaymentInFlight
	}
	snap := c.snap
	cfg, err := c.builder.Build(snap, currency)
	if err != nil {
		c.mu.Unlock()
		return payment.Config{}, err
	}
	c.paymentErr = ""
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "checkout.Pay", trace.WithAttributes(
		attribute.String("order.id", snap.ID),
		attribute.String("payment.currency", currency.String()),
		attribute.String("payment.tx_ref", cfg.TxRef),
	))
	defer span.End()

	orderID := snap.ID
	if err := c.initiator.Initiate(ctx, cfg, func(ctx context.Context, done payment.Completion) {
		c.complete(ctx, orderID, done)
	}); err != nil {
		span.RecordError(err)
		return payment.Config{}, err
	}
	return cfg, nil
}

// complete handles the widget completion callback. The dialog is closed
// before verification starts.
func (c *Controller) complete(ctx context.Context, orderID string, done payment.Completion) {
	c.widget.Close()

	c.mu.Lock()
	if c.closed || c.reconciling {
		c.mu.Unlock()
		return
	}
	c.reconciling = true
	c.paymentErr = ""
	c.mu.Unlock()

	target, err := c.reconciler.Reconcile(ctx, done.TransactionID, orderID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconciling = false
	if err != nil {
		c.paymentErr = paymentMessage(err)
		return
	}
	c.target = &target
}

func paymentMessage(err error) string {
	var ve *reconcile.VerificationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if errors.Is(err, reconcile.ErrMissingTransaction) {
		return "Payment did not return a transaction reference."
	}
	return defaultPaymentMessage
}

// Close tears the checkout down: the scheduled reload is abandoned and the
// open payment dialog is discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.discount.Cancel()
	c.widget.Close()
}

// View returns the current view model.
func (c *Controller) View() View {
	ds := c.discount.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:        c.state,
		Error:        c.banner,
		Accepted:     c.accepted,
		TermsOpen:    c.termsOpen,
		BankTransfer: c.bank,
		Payment: PaymentView{
			InFlight: c.reconciling,
			Error:    c.paymentErr,
		},
	}

	if c.state == StateUnauthenticated {
		v.LoginRedirect = c.loginPath
		return v
	}
	if c.target != nil {
		v.Navigation = &NavigationView{
			Status: c.target.Status,
			Ref:    c.target.Ref,
			Path:   c.target.Path(),
		}
	}
	if c.state != StateReady || c.snap == nil {
		return v
	}

	v.Order = orderView(c.snap)
	v.Discount = discountView(c.snap, ds)

	canPay := !c.closed && c.accepted && !c.reconciling
	v.Actions = Actions{
		PayNaira:      canPay,
		PayDollar:     canPay,
		ClaimDiscount: !c.closed && c.snap.DiscountClaimable() && len(ds.Code) > 0 && ds.Phase != discount.PhaseSubmitting,
		OpenTerms:     !c.closed,
	}
	return v
}
