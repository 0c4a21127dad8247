package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/order"
)

// ErrNoOrder is returned when a config is requested without a snapshot.
var ErrNoOrder = errors.New("no order loaded")

// Builder defaults.
const (
	DefaultTxRefPrefix    = "BES"
	DefaultPaymentOptions = "card,mobilemoney,ussd"
	DefaultTitle          = "beta-eshopping"
)

// BuilderOptions configures a Builder. Empty fields take the defaults.
type BuilderOptions struct {
	PublicKey      string
	TxRefPrefix    string
	PaymentOptions string
	Title          string
	Logo           string

	Now    func() time.Time
	Random func() string
}

// Builder derives payment configurations from order snapshots.
type Builder struct {
	opts BuilderOptions
}

// NewBuilder creates a Builder.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.TxRefPrefix == "" {
		opts.TxRefPrefix = DefaultTxRefPrefix
	}
	if opts.PaymentOptions == "" {
		opts.PaymentOptions = DefaultPaymentOptions
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Random == nil {
		opts.Random = randomSuffix
	}
	return &Builder{opts: opts}
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// TxRef generates a fresh transaction reference.
func (b *Builder) TxRef() string {
	return fmt.Sprintf("%s-%d-%s", b.opts.TxRefPrefix, b.opts.Now().UnixMilli(), b.opts.Random())
}

// Build returns the configuration for paying snap in currency c. The amount
// is whatever the snapshot's settlement says is due, and every call carries
// a new transaction reference.
func (b *Builder) Build(snap *order.Snapshot, c money.Currency) (Config, error) {
	if snap == nil {
		return Config{}, ErrNoOrder
	}
	if _, err := money.ParseCurrency(string(c)); err != nil {
		return Config{}, err
	}

	return Config{
		PublicKey:      b.opts.PublicKey,
		TxRef:          b.TxRef(),
		Amount:         snap.Settlement().AmountDue(c),
		Currency:       c,
		PaymentOptions: b.opts.PaymentOptions,
		Customer: Customer{
			Email:       snap.Shopper.Email,
			PhoneNumber: snap.Shopper.Phone,
			Name:        snap.Shopper.FullName(),
		},
		Customizations: Customizations{
			Title:       b.opts.Title,
			Description: "Payment for order: " + snap.OrderID,
			Logo:        b.opts.Logo,
		},
	}, nil
}
