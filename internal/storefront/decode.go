package storefront

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bes-checkout/internal/domain/money"
	"github.com/xenking/bes-checkout/internal/domain/order"
)

// The storefront serializes decimals as strings, ids as numbers, and leaves
// most optional fields null rather than omitting them. The helpers below
// accept every variant.

func decodeNullDecimal(d *jx.Decoder) (decimal.NullDecimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.NullDecimal{}, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, errors.Wrapf(err, "parse %q", s)
		}
		return decimal.NewNullDecimal(v), nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.NullDecimal{}, errors.Wrapf(err, "parse %s", n)
		}
		return decimal.NewNullDecimal(v), nil
	default:
		return decimal.NullDecimal{}, errors.Errorf("unexpected %s for amount", d.Next())
	}
}

// decodeDecimal treats null as zero.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	v, err := decodeNullDecimal(d)
	if err != nil {
		return decimal.Zero, err
	}
	if !v.Valid {
		return decimal.Zero, nil
	}
	return v.Decimal, nil
}

// decodeString accepts strings and numbers, returning "" for null.
func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return d.Str()
	}
}

func decodeNullString(d *jx.Decoder) (*string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := decodeString(d)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func decodeBool(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Null:
		return false, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return false, err
		}
		return strconv.ParseBool(s)
	default:
		return d.Bool()
	}
}

// decodeNullInt accepts integers and integer strings, returning nil for null.
func decodeNullInt(d *jx.Decoder) (*int, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %q", s)
		}
		return &v, nil
	default:
		v, err := d.Int()
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
}

func decodeShopper(d *jx.Decoder) (order.Shopper, error) {
	var s order.Shopper
	if d.Next() == jx.Null {
		return s, d.Null()
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "email":
			s.Email, err = decodeString(d)
		case "phone_no":
			s.Phone, err = decodeString(d)
		case "first_name":
			s.FirstName, err = decodeString(d)
		case "last_name":
			s.LastName, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "shopper.%s", key)
	})
	return s, err
}

func decodeOrder(d *jx.Decoder) (*order.Snapshot, error) {
	var (
		s     order.Snapshot
		total money.Dual
		extra money.Dual
	)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			s.ID, err = decodeString(d)
		case "order_id":
			s.OrderID, err = decodeString(d)
		case "shopper":
			s.Shopper, err = decodeShopper(d)
		case "amount":
			s.Subtotal, err = decodeDecimal(d)
		case "shipping_fee":
			s.ShippingFee, err = decodeDecimal(d)
		case "handling_fee":
			s.HandlingFee, err = decodeDecimal(d)
		case "tax_duties":
			s.TaxDuties, err = decodeDecimal(d)
		case "give_discount":
			s.GiveDiscount, err = decodeBool(d)
		case "discount_amount":
			s.DiscountAmount, err = decodeNullDecimal(d)
		case "discount_code":
			s.DiscountCode, err = decodeNullString(d)
		case "discount_claimed":
			var v string
			v, err = decodeString(d)
			s.DiscountClaimed = order.ParseClaimStatus(v)
		case "order_total":
			total.USD, err = decodeDecimal(d)
		case "order_total_naira":
			total.NGN, err = decodeDecimal(d)
		case "additional_payment":
			extra.USD, err = decodeDecimal(d)
		case "additional_payment_naira":
			extra.NGN, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "%s", key)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if s.DiscountClaimed == "" {
		s.DiscountClaimed = order.NotClaimed
	}
	s.Total = total
	s.AdditionalPayment = extra
	return order.New(s), nil
}

func decodeVerifyResult(d *jx.Decoder) (status *int, orderRef string, _ error) {
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "status":
			status, err = decodeNullInt(d)
		case "order":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				if string(key) != "order_id" {
					return d.Skip()
				}
				var err error
				orderRef, err = decodeString(d)
				return err
			})
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "%s", key)
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "decode verification")
	}
	return status, orderRef, nil
}

func decodeMessage(d *jx.Decoder) (string, error) {
	var msg string
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "message" {
			return d.Skip()
		}
		var err error
		msg, err = decodeString(d)
		return err
	})
	return msg, errors.Wrap(err, "decode message")
}
