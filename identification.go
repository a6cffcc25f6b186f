package gcov

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind is the decoded shape of an identification value.
type Kind int

const (
	KindText Kind = iota + 1
	KindNumber
	KindTexts
	KindNumbers
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindTexts:
		return "texts"
	case KindNumbers:
		return "numbers"
	default:
		return "unknown"
	}
}

// Value is one decoded identification entry. Only the field matching Kind
// is set.
type Value struct {
	Kind    Kind
	Text    string
	Number  float64
	Texts   []string
	Numbers []float64
}

func TextValue(s string) Value        { return Value{Kind: KindText, Text: s} }
func NumberValue(n float64) Value     { return Value{Kind: KindNumber, Number: n} }
func TextsValue(s ...string) Value    { return Value{Kind: KindTexts, Texts: s} }
func NumbersValue(n ...float64) Value { return Value{Kind: KindNumbers, Numbers: n} }

// Native returns the value as a plain Go value: string, float64, []string or
// []float64.
func (v Value) Native() interface{} {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return v.Number
	case KindTexts:
		return v.Texts
	case KindNumbers:
		return v.Numbers
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

func (v *Value) UnmarshalJSON(d []byte) error {
	var raw interface{}
	if err := json.Unmarshal(d, &raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case string:
		*v = TextValue(x)
	case float64:
		*v = NumberValue(x)
	case []interface{}:
		if len(x) == 0 {
			*v = NumbersValue()
			return nil
		}
		if _, ok := x[0].(string); ok {
			texts := make([]string, len(x))
			for i, el := range x {
				s, ok := el.(string)
				if !ok {
					return fmt.Errorf("mixed identification list element %d: %T", i, el)
				}
				texts[i] = s
			}
			*v = TextsValue(texts...)
			return nil
		}
		nums := make([]float64, len(x))
		for i, el := range x {
			n, ok := el.(float64)
			if !ok {
				return fmt.Errorf("mixed identification list element %d: %T", i, el)
			}
			nums[i] = n
		}
		*v = NumbersValue(nums...)
	default:
		return fmt.Errorf("unexpected identification value %T", raw)
	}
	return nil
}

// Identification is the flat key/value record of one product's
// identification group.
type Identification map[string]Value

// DecodeValue reads a dataset into a Value, choosing the case from its
// element type and shape:
//   - byte-string scalar: KindText
//   - byte-string array: KindTexts
//   - other array: KindNumbers, flattened in row-major order
//   - numeric scalar: KindNumber
func DecodeValue(ds Dataset) (Value, error) {
	info, err := ds.Info()
	if err != nil {
		return Value{}, err
	}

	switch {
	case info.Dtype.IsText():
		s, err := ds.ReadStrings()
		if err != nil {
			return Value{}, err
		}
		if info.Scalar() {
			if len(s) == 0 {
				return TextValue(""), nil
			}
			return TextValue(s[0]), nil
		}
		return TextsValue(s...), nil

	case info.Dtype.IsNumeric():
		n, err := ds.Read()
		if err != nil {
			return Value{}, err
		}
		if info.Scalar() {
			if len(n) != 1 {
				return Value{}, fmt.Errorf("scalar dataset returned %d values", len(n))
			}
			return NumberValue(n[0]), nil
		}
		return NumbersValue(n...), nil

	default:
		return Value{}, fmt.Errorf("%w: %s", ErrUnsupportedType, info.Dtype)
	}
}

// ReadIdentification decodes every dataset directly inside group. Nested
// groups and datasets of unsupported element types are skipped.
func ReadIdentification(f File, group string) (Identification, error) {
	members, err := f.Members(group)
	if err != nil {
		return nil, err
	}

	id := Identification{}
	for _, m := range members {
		if m.Group {
			continue
		}
		p := NewPath(group).Join(m.Name).String()
		ds, err := f.Dataset(p)
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(ds)
		if errors.Is(err, ErrUnsupportedType) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		id[m.Name] = v
	}
	return id, nil
}

// readIdentificationFile opens name, reads its identification group and
// closes it again.
func readIdentificationFile(store Store, name, group string) (Identification, error) {
	f, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadIdentification(f, group)
}
