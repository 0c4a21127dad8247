package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/bes-checkout/internal/domain/money"
)

// Kind names a settlement mode.
type Kind string

const (
	KindFullSettlement    Kind = "full_settlement"
	KindAdditionalPayment Kind = "additional_payment"
)

// Settlement is either FullSettlement or AdditionalPayment.
type Settlement interface {
	// Kind names the mode.
	Kind() Kind
	// AmountDue is what the shopper owes right now in currency c.
	AmountDue(c money.Currency) decimal.Decimal

	isSettlement()
}

// FullSettlement pays the whole order total.
type FullSettlement struct {
	Total money.Dual
}

// AdditionalPayment tops up an order that was previously partially paid.
type AdditionalPayment struct {
	Amount money.Dual
}

func (FullSettlement) Kind() Kind { return KindFullSettlement }

func (s FullSettlement) AmountDue(c money.Currency) decimal.Decimal { return s.Total.In(c) }

func (FullSettlement) isSettlement() {}

func (AdditionalPayment) Kind() Kind { return KindAdditionalPayment }

func (s AdditionalPayment) AmountDue(c money.Currency) decimal.Decimal { return s.Amount.In(c) }

func (AdditionalPayment) isSettlement() {}

func settlementFor(total, additional money.Dual) Settlement {
	if additional.IsPositive() {
		return AdditionalPayment{Amount: additional}
	}
	return FullSettlement{Total: total}
}
