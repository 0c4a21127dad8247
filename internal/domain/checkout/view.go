package checkout

import (
	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/order"
	"github.com/xenking/bes-checkout/internal/domain/reconcile"
)

// View is everything needed to render the checkout page.
type View struct {
	State State `json:"state"`
	// LoginRedirect is set in StateUnauthenticated.
	LoginRedirect string `json:"login_redirect,omitempty"`
	// Error is the page banner: a failed order load.
	Error string `json:"error,omitempty"`

	Order    *OrderView    `json:"order,omitempty"`
	Discount *DiscountView `json:"discount,omitempty"`

	Accepted  bool        `json:"accepted"`
	TermsOpen bool        `json:"terms_open"`
	Payment   PaymentView `json:"payment"`

	Navigation *NavigationView `json:"navigation,omitempty"`

	BankTransfer BankTransfer `json:"bank_transfer"`
	Actions      Actions      `json:"actions"`
}

// Line is one formatted row of the order summary.
type Line struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// OrderView is the order summary for the active settlement mode.
type OrderView struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"order_id"`
	Settlement order.Kind `json:"settlement"`
	Lines      []Line     `json:"lines"`
	// DueNaira and DueDollar label the two pay buttons.
	DueNaira  string `json:"due_naira"`
	DueDollar string `json:"due_dollar"`
}

// DiscountView is the discount block. It is absent in additional-payment
// mode.
type DiscountView struct {
	// Claimable shows the code input and claim control.
	Claimable bool `json:"claimable"`
	Claimed   bool `json:"claimed"`
	// AppliedCode and Amount are the read-only values from the order.
	AppliedCode string `json:"applied_code,omitempty"`
	Amount      string `json:"amount,omitempty"`

	Code    string         `json:"code"`
	Phase   discount.Phase `json:"phase"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// PaymentView is the payment-scoped state.
type PaymentView struct {
	InFlight bool `json:"in_flight"`
	// Error is a failed verification, shown next to the pay buttons.
	Error string `json:"error,omitempty"`
}

// NavigationView is the hand-off produced by a reconciled payment.
type NavigationView struct {
	Status reconcile.Status `json:"status"`
	Ref    string           `json:"ref"`
	Path   string           `json:"path"`
}

// Actions reports which controls are enabled.
type Actions struct {
	PayNaira      bool `json:"pay_naira"`
	PayDollar     bool `json:"pay_dollar"`
	ClaimDiscount bool `json:"claim_discount"`
	OpenTerms     bool `json:"open_terms"`
}

// BankTransfer is the static offline payment information.
type BankTransfer struct {
	Bank          string `json:"bank"`
	Address       string `json:"address"`
	SortCode      string `json:"sort_code"`
	SwiftCode     string `json:"swift_code"`
	NUBAN         string `json:"nuban"`
	AccountName   string `json:"account_name"`
	DollarAccount string `json:"dollar_account"`
	NairaAccount  string `json:"naira_account"`
	ProofEmail    string `json:"proof_email"`
}

// DefaultBankTransfer returns the account details published on the checkout
// page.
func DefaultBankTransfer() BankTransfer {
	return BankTransfer{
		Bank:          "Guaranty Trust Bank Ltd",
		Address:       "31 Mobolaji Bank Anthony Way, Ikeja, Lagos, Nigeria.",
		SortCode:      "058-152023",
		SwiftCode:     "GTBINGLA",
		NUBAN:         "0679125931",
		AccountName:   "Beta Courier Services Ltd",
		DollarAccount: "0679125931",
		NairaAccount:  "0002887073",
		ProofEmail:    "info@beta-eshopping.com",
	}
}

func orderView(snap *order.Snapshot) *OrderView {
	s := snap.Settlement()
	v := &OrderView{
		ID:         snap.ID,
		OrderID:    snap.OrderID,
		Settlement: s.Kind(),
		DueNaira:   money.FormatNaira(s.AmountDue(money.NGN)),
		DueDollar:  money.FormatDollar(s.AmountDue(money.USD)),
	}

	switch s := s.(type) {
	case order.AdditionalPayment:
		v.Lines = []Line{
			{Label: "Additional payment", Amount: money.FormatDollar(s.Amount.USD)},
			{Label: "Additional payment (NGN)", Amount: money.FormatNaira(s.Amount.NGN)},
		}
	case order.FullSettlement:
		v.Lines = []Line{
			{Label: "Subtotal", Amount: money.FormatDollar(snap.Subtotal)},
			{Label: "Shipping fee", Amount: money.FormatDollar(snap.ShippingFee)},
			{Label: "Handling fee", Amount: money.FormatDollar(snap.HandlingFee)},
			{Label: "Tax & duties", Amount: money.FormatDollar(snap.TaxDuties)},
		}
		if snap.DiscountLineVisible() {
			v.Lines = append(v.Lines, Line{
				Label:  "Discount",
				Amount: money.FormatNull(money.USD, snap.DiscountAmount),
			})
		}
		v.Lines = append(v.Lines,
			Line{Label: "Total", Amount: money.FormatDollar(s.Total.USD)},
			Line{Label: "Total (NGN)", Amount: money.FormatNaira(s.Total.NGN)},
		)
	}
	return v
}

func discountView(snap *order.Snapshot, st discount.State) *DiscountView {
	if snap.Settlement().Kind() != order.KindFullSettlement {
		return nil
	}
	if !snap.GiveDiscount && !snap.IsClaimed() {
		return nil
	}
	v := &DiscountView{
		Claimable: snap.DiscountClaimable(),
		Claimed:   snap.IsClaimed(),
		Code:      st.Code,
		Phase:     st.Phase,
		Message:   st.Message,
		Error:     st.Error,
	}
	if snap.IsClaimed() {
		v.AppliedCode = snap.Code()
		v.Amount = money.FormatNull(money.USD, snap.DiscountAmount)
	}
	return v
}
