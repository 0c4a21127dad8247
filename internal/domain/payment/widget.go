package payment

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Hosted widget errors.
var (
	ErrNoPendingPayment = errors.New("no payment dialog open")
	ErrTxRefMismatch    = errors.New("transaction reference does not match open payment")
)

// Completion is what the widget reports when the shopper finishes paying.
type Completion struct {
	// TransactionID is the provider's opaque transaction identifier.
	TransactionID string
	TxRef         string
	// Status is the provider's own status string, informational only.
	Status string
}

// Callbacks are registered with the widget when it is opened.
type Callbacks struct {
	OnComplete func(ctx context.Context, c Completion)
	// OnClose fires when the dialog is dismissed without completing.
	OnClose func()
}

// Widget is the third-party payment dialog.
type Widget interface {
	Open(ctx context.Context, cfg Config, cb Callbacks) error
	Close()
}

// Initiator opens payment sessions on a Widget.
type Initiator struct {
	widget Widget
}

// NewInitiator creates an Initiator for w.
func NewInitiator(w Widget) *Initiator {
	return &Initiator{widget: w}
}

// Initiate opens the widget for cfg. Abandoning the dialog is silent.
func (i *Initiator) Initiate(ctx context.Context, cfg Config, onComplete func(ctx context.Context, c Completion)) error {
	lg := zctx.From(ctx)
	if err := i.widget.Open(ctx, cfg, Callbacks{
		OnComplete: onComplete,
		OnClose:    func() {},
	}); err != nil {
		return errors.Wrap(err, "open payment widget")
	}
	lg.Info("Payment initiated",
		zap.String("tx_ref", cfg.TxRef),
		zap.String("currency", cfg.Currency.String()),
		zap.String("amount", cfg.Amount.String()),
	)
	return nil
}

// HostedWidget keeps the open dialog on the server while the browser renders
// it. The browser reports back through Complete and Abandon.
type HostedWidget struct {
	mu      sync.Mutex
	pending *Config
	cb      Callbacks
}

var _ Widget = (*HostedWidget)(nil)

// Open records cfg as the open dialog, replacing any previous one.
func (w *HostedWidget) Open(_ context.Context, cfg Config, cb Callbacks) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = &cfg
	w.cb = cb
	return nil
}

// Close forgets the open dialog without firing callbacks.
func (w *HostedWidget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = nil
	w.cb = Callbacks{}
}

// Pending returns the open dialog configuration.
func (w *HostedWidget) Pending() (Config, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return Config{}, false
	}
	return *w.pending, true
}

// Complete delivers a completion for the open dialog. The callback runs
// synchronously on the caller's goroutine.
func (w *HostedWidget) Complete(ctx context.Context, c Completion) error {
	w.mu.Lock()
	if w.pending == nil {
		w.mu.Unlock()
		return ErrNoPendingPayment
	}
	if c.TxRef != w.pending.TxRef {
		w.mu.Unlock()
		return errors.Wrapf(ErrTxRefMismatch, "got %q", c.TxRef)
	}
	onComplete := w.cb.OnComplete
	w.mu.Unlock()

	if onComplete != nil {
		onComplete(ctx, c)
	}
	return nil
}

// Abandon reports that the shopper dismissed the dialog.
func (w *HostedWidget) Abandon() {
	w.mu.Lock()
	onClose := w.cb.OnClose
	w.pending = nil
	w.cb = Callbacks{}
	w.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}
