package payment

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bes-checkout/internal/domain/money"
)

// Customer is the shopper contact block handed to the widget.
type Customer struct {
	Email       string
	PhoneNumber string
	Name        string
}

// Customizations brand the payment dialog.
type Customizations struct {
	Title       string
	Description string
	Logo        string
}

// Config is one currency-specific payment widget configuration.
type Config struct {
	PublicKey      string
	TxRef          string
	Amount         decimal.Decimal
	Currency       money.Currency
	PaymentOptions string
	Customer       Customer
	Customizations Customizations
}

// Encode writes c using the widget's field names.
func (c Config) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("public_key", func(e *jx.Encoder) { e.Str(c.PublicKey) })
		e.Field("tx_ref", func(e *jx.Encoder) { e.Str(c.TxRef) })
		e.Field("amount", func(e *jx.Encoder) { e.Raw([]byte(c.Amount.String())) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(c.Currency.String()) })
		e.Field("payment_options", func(e *jx.Encoder) { e.Str(c.PaymentOptions) })
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("email", func(e *jx.Encoder) { e.Str(c.Customer.Email) })
				e.Field("phonenumber", func(e *jx.Encoder) { e.Str(c.Customer.PhoneNumber) })
				e.Field("name", func(e *jx.Encoder) { e.Str(c.Customer.Name) })
			})
		})
		e.Field("customizations", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("title", func(e *jx.Encoder) { e.Str(c.Customizations.Title) })
				e.Field("description", func(e *jx.Encoder) { e.Str(c.Customizations.Description) })
				e.Field("logo", func(e *jx.Encoder) { e.Str(c.Customizations.Logo) })
			})
		})
	})
}

// MarshalJSON implements json.Marshaler.
func (c Config) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	c.Encode(&e)
	return e.Bytes(), nil
}
