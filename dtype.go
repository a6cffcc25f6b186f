package gcov

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedType is returned when a dataset's element type cannot be
// decoded into numbers or text.
var ErrUnsupportedType = errors.New("unsupported element type")

// Dtype is the element type of a raster or metadata dataset, written as a
// NumPy array protocol type string (typestr). The format consists of 3 parts:
//   - One character describing the byteorder of the data:
//     "<": little-endian; ">": big-endian; "|": not-relevant)
//   - One character code giving the basic type of the array:
//     "b" boolean, "i" integer, "u" unsigned integer, "f" floating point,
//     "c" complex floating point, "S" fixed-length byte string,
//     "V" other (each item is a fixed-size chunk of memory)
//   - An integer specifying the number of bytes the type uses.
//
// GCOV products store covariance terms as "<f4", off-diagonal terms as
// "<c8", masks as "|u1" and identification strings as "|S<n>".
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

// ParseDtype parses a typestr such as "<f4".
func ParseDtype(s string) (dt Dtype, err error) {
	if len(s) < 3 {
		return dt, fmt.Errorf("invalid Dtype string. %q is too short", s)
	}

	boByte, s := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, s := s[0], s[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	size, err := strconv.ParseInt(s, 10, 0)
	if err != nil {
		return dt, err
	}
	if size <= 0 {
		return dt, fmt.Errorf("invalid Dtype size %d", size)
	}
	dt.ByteSize = int(size)

	return dt, nil
}

func (dt Dtype) String() string {
	if dt.BasicType == 0 {
		return ""
	}
	return fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
}

// IsText reports whether elements are byte strings.
func (dt Dtype) IsText() bool {
	return dt.BasicType == BTString
}

// IsComplex reports whether elements are complex numbers.
func (dt Dtype) IsComplex() bool {
	return dt.BasicType == BTComplex
}

// IsNumeric reports whether elements decode to real numbers.
func (dt Dtype) IsNumeric() bool {
	switch dt.BasicType {
	case BTBoolean, BTInteger, BTUnsigned, BTFloatingPoint:
		return true
	}
	return false
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.String() + `"`), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}

	*dt = t
	return nil
}

// dtypeFromClass maps an HDF5 datatype class name and byte size onto a Dtype.
// Compound types of 8 or 16 bytes are the {r, i} pairs HDF5 writers use for
// complex numbers. The class name does not carry signedness: integers are
// assumed signed, except single bytes, which are assumed to be unsigned
// masks. Callers that can see the full datatype replace the guess with
// dtypeFromGoType.
func dtypeFromClass(class string, size int) (Dtype, error) {
	dt := Dtype{ByteOrder: BOLittleEndian, ByteSize: size}
	switch strings.ToLower(class) {
	case "integer":
		dt.BasicType = BTInteger
		if size == 1 {
			dt.ByteOrder = BONotRelevant
			dt.BasicType = BTUnsigned
		}
	case "float":
		dt.BasicType = BTFloatingPoint
	case "string":
		dt.ByteOrder = BONotRelevant
		dt.BasicType = BTString
	case "compound":
		if size != 8 && size != 16 {
			return Dtype{}, fmt.Errorf("%w: compound of %d bytes", ErrUnsupportedType, size)
		}
		dt.BasicType = BTComplex
	default:
		return Dtype{}, fmt.Errorf("%w: %s (size=%d bytes)", ErrUnsupportedType, class, size)
	}
	return dt, nil
}

type ByteOrder rune

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("unsupported byte order format: %q", r)
	}
	return o, nil
}

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

type BasicType rune

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := supportedBasicTypes[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return supportedBasicTypes[bt]
}

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTString        BasicType = 'S'
	BTOther         BasicType = 'V'
)

var supportedBasicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTString:        "string",
	BTOther:         "other",
}

// dtypeFromGoType maps the Go element type name a netcdf variable reports
// onto a little-endian Dtype.
func dtypeFromGoType(name string) (Dtype, bool) {
	dt, ok := goTypes[name]
	return dt, ok
}

var goTypes = map[string]Dtype{
	"int8":    {ByteOrder: BONotRelevant, BasicType: BTInteger, ByteSize: 1},
	"uint8":   {ByteOrder: BONotRelevant, BasicType: BTUnsigned, ByteSize: 1},
	"int16":   {ByteOrder: BOLittleEndian, BasicType: BTInteger, ByteSize: 2},
	"uint16":  {ByteOrder: BOLittleEndian, BasicType: BTUnsigned, ByteSize: 2},
	"int32":   {ByteOrder: BOLittleEndian, BasicType: BTInteger, ByteSize: 4},
	"uint32":  {ByteOrder: BOLittleEndian, BasicType: BTUnsigned, ByteSize: 4},
	"int64":   {ByteOrder: BOLittleEndian, BasicType: BTInteger, ByteSize: 8},
	"uint64":  {ByteOrder: BOLittleEndian, BasicType: BTUnsigned, ByteSize: 8},
	"float32": {ByteOrder: BOLittleEndian, BasicType: BTFloatingPoint, ByteSize: 4},
	"float64": {ByteOrder: BOLittleEndian, BasicType: BTFloatingPoint, ByteSize: 8},
}
