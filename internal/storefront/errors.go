package storefront

import (
	"fmt"
	"strings"

	"github.com/go-faster/jx"
)

// Field is one entry of a server error body, in the order it was sent.
type Field struct {
	Key    string
	Values []string
}

// APIError is a non-2xx storefront response.
type APIError struct {
	StatusCode int
	Fields     []Field
}

func (e *APIError) Error() string {
	if msg := e.Flatten(true); msg != "" {
		return fmt.Sprintf("storefront: status %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("storefront: status %d", e.StatusCode)
}

// Detail returns the "detail" field, or "" when the body had none.
func (e *APIError) Detail() string {
	for _, f := range e.Fields {
		if f.Key == "detail" {
			return strings.Join(f.Values, " ")
		}
	}
	return ""
}

// Flatten joins every field into one message. With keys each field renders
// as "key: v1,v2"; without, only the values are kept.
func (e *APIError) Flatten(withKeys bool) string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		v := strings.Join(f.Values, ",")
		if withKeys {
			v = f.Key + ": " + v
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

// decodeAPIError parses a DRF-style error body. Bodies that are not JSON
// objects produce an error with no fields.
func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return e
	}

	var fields []Field
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		values, err := decodeMessages(d)
		if err != nil {
			return err
		}
		fields = append(fields, Field{Key: string(key), Values: values})
		return nil
	}); err != nil {
		return e
	}
	e.Fields = fields
	return e
}

func decodeMessages(d *jx.Decoder) ([]string, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	case jx.Array:
		var out []string
		err := d.Arr(func(d *jx.Decoder) error {
			vs, err := decodeMessages(d)
			if err != nil {
				return err
			}
			out = append(out, vs...)
			return nil
		})
		return out, err
	case jx.Null:
		return nil, d.Null()
	default:
		raw, err := d.Raw()
		if err != nil {
			return nil, err
		}
		return []string{raw.String()}, nil
	}
}
