package order

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/bes-checkout/internal/domain/money"
)

// ClaimStatus records whether the order's discount has been redeemed.
type ClaimStatus string

const (
	// NotClaimed is the wire value "NO" (or an absent field).
	NotClaimed ClaimStatus = "NO"
	// Claimed is the wire value "YES".
	Claimed ClaimStatus = "YES"
)

// ParseClaimStatus maps the order source value onto ClaimStatus. Anything
// other than "YES" counts as not claimed.
func ParseClaimStatus(v string) ClaimStatus {
	if strings.EqualFold(strings.TrimSpace(v), string(Claimed)) {
		return Claimed
	}
	return NotClaimed
}

// Shopper holds the contact details copied into payment configurations.
type Shopper struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
}

// FullName joins first and last name with a single space.
func (s Shopper) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Snapshot is the server-computed order at the moment it was fetched. It is
// replaced wholesale on every reload and never patched in place.
type Snapshot struct {
	// ID is the internal identifier used to fetch and verify the order.
	ID string
	// OrderID is the public order reference shown to the shopper.
	OrderID string
	Shopper Shopper

	// Fee lines, denominated in dollars.
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	HandlingFee decimal.Decimal
	TaxDuties   decimal.Decimal

	GiveDiscount    bool
	DiscountAmount  decimal.NullDecimal
	DiscountCode    *string
	DiscountClaimed ClaimStatus

	Total             money.Dual
	AdditionalPayment money.Dual

	settlement Settlement
}

// New finalizes a snapshot, selecting its settlement mode once.
func New(s Snapshot) *Snapshot {
	s.settlement = settlementFor(s.Total, s.AdditionalPayment)
	return &s
}

// Settlement returns the mode chosen when the snapshot was built.
func (s *Snapshot) Settlement() Settlement {
	if s.settlement == nil {
		return settlementFor(s.Total, s.AdditionalPayment)
	}
	return s.settlement
}

// IsClaimed reports whether the discount was already redeemed.
func (s *Snapshot) IsClaimed() bool {
	return s.DiscountClaimed == Claimed
}

// DiscountLineVisible reports whether a discount line belongs on the summary:
// either an offered discount with a known amount, or one already claimed.
func (s *Snapshot) DiscountLineVisible() bool {
	return (s.GiveDiscount && s.DiscountAmount.Valid) || s.IsClaimed()
}

// DiscountClaimable reports whether the shopper may still redeem a code.
// Additional-payment orders never offer the claim.
func (s *Snapshot) DiscountClaimable() bool {
	if _, ok := s.Settlement().(FullSettlement); !ok {
		return false
	}
	return s.GiveDiscount && !s.IsClaimed()
}

// Code returns the discount code or "" when none is set.
func (s *Snapshot) Code() string {
	if s.DiscountCode == nil {
		return ""
	}
	return *s.DiscountCode
}
