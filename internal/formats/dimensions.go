// Package formats interprets the dimensions of advertising placements: it
// classifies them into categories, renders them for display and normalises
// selector input.
package formats

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Dimensions is the accepted size set of a placement. It is either a single
// value (a pixel size such as "300x250" or a semantic label such as
// "full-newsletter") or a list of alternative pixel sizes. A list means the
// placement accepts any one of its sizes, not all of them.
type Dimensions struct {
	values []string
	multi  bool
}

// Single returns a scalar Dimensions value.
func Single(v string) Dimensions {
	return Dimensions{values: []string{v}}
}

// Multiple returns a list Dimensions value. The slice is copied.
func Multiple(vs ...string) Dimensions {
	out := make([]string, len(vs))
	copy(out, vs)
	return Dimensions{values: out, multi: true}
}

// IsMultiple reports whether d was stored as a list.
func (d Dimensions) IsMultiple() bool { return d.multi }

// IsZero reports whether d holds no value at all. An empty list is zero.
func (d Dimensions) IsZero() bool { return len(d.values) == 0 }

// All returns every accepted value. Scalars become a one-element slice and
// lists are returned as stored.
func All(d Dimensions) []string {
	out := make([]string, len(d.values))
	copy(out, d.values)
	return out
}

// Primary returns the representative value: the scalar, or the first list
// element. ok is false for an empty list, which callers treat as
// "no format specified".
func Primary(d Dimensions) (v string, ok bool) {
	if len(d.values) == 0 {
		return "", false
	}
	return d.values[0], true
}

// Supports reports whether candidate is one of the accepted values of d.
func Supports(d Dimensions, candidate string) bool {
	for _, v := range d.values {
		if v == candidate {
			return true
		}
	}
	return false
}

// With returns d with v added. Adding a value that is already present is a
// no-op. A scalar that gains a second value becomes a list.
func (d Dimensions) With(v string) Dimensions {
	if Supports(d, v) {
		return d
	}
	if len(d.values) == 0 && !d.multi {
		return Single(v)
	}
	return Multiple(append(All(d), v)...)
}

// Without returns d with v removed. Removing the last value yields the zero
// Dimensions.
func (d Dimensions) Without(v string) Dimensions {
	kept := make([]string, 0, len(d.values))
	for _, existing := range d.values {
		if existing != v {
			kept = append(kept, existing)
		}
	}
	switch len(kept) {
	case 0:
		return Dimensions{}
	case 1:
		return Single(kept[0])
	default:
		return Multiple(kept...)
	}
}

// Equal reports whether d and o hold the same values in the same shape.
func (d Dimensions) Equal(o Dimensions) bool {
	if d.multi != o.multi || len(d.values) != len(o.values) {
		return false
	}
	for i := range d.values {
		if d.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

func (d Dimensions) String() string {
	if d.multi {
		return fmt.Sprintf("%q", d.values)
	}
	if len(d.values) == 0 {
		return ""
	}
	return d.values[0]
}

// MarshalJSON encodes a scalar as a JSON string and a list as an array.
func (d Dimensions) MarshalJSON() ([]byte, error) {
	if d.multi {
		return json.Marshal(d.values)
	}
	if len(d.values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(d.values[0])
}

// UnmarshalJSON accepts a string, an array of strings or null.
func (d *Dimensions) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Dimensions{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Single(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("dimensions must be a string or an array of strings: %w", err)
	}
	*d = Multiple(list...)
	return nil
}

// MarshalBSONValue stores a scalar as a BSON string and a list as an array.
func (d Dimensions) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if d.multi {
		return bson.MarshalValue(d.values)
	}
	if len(d.values) == 0 {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(d.values[0])
}

// UnmarshalBSONValue decodes a BSON string, array of strings or null.
func (d *Dimensions) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*d = Dimensions{}
		return nil
	case bsontype.String:
		*d = Single(raw.StringValue())
		return nil
	case bsontype.Array:
		var list []string
		if err := raw.Unmarshal(&list); err != nil {
			return fmt.Errorf("decode dimensions array: %w", err)
		}
		*d = Multiple(list...)
		return nil
	default:
		return fmt.Errorf("unsupported bson type %s for dimensions", t)
	}
}

// Format is the value written by the format selector. A nil *Format means no
// format has been selected.
type Format struct {
	Dimensions Dimensions `json:"dimensions" bson:"dimensions"`
}
