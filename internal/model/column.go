package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/apd/v3"
)

// ColumnKind is the logical type of a column
type ColumnKind int

const (
	// Integer is a 64-bit integer
	Integer ColumnKind = iota
	// String is a bounded varchar
	String
	// Text is unbounded text
	Text
	// Date is a calendar date without time
	Date
	// DateTime is a timestamp, always stored in UTC
	DateTime
	// Numeric is a fixed precision decimal
	Numeric
	// Boolean is true or false
	Boolean
	// Enum is a string restricted to Column.Values
	Enum
)

var kindNames = map[ColumnKind]string{
	Integer:  "integer",
	String:   "string",
	Text:     "text",
	Date:     "date",
	DateTime: "datetime",
	Numeric:  "numeric",
	Boolean:  "boolean",
	Enum:     "enum",
}

func (k ColumnKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText renders the kind by name
func (k ColumnKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Auto describes values the store manages for a column
type Auto int

const (
	// AutoNone means the client supplies the value
	AutoNone Auto = iota
	// AutoCreate sets the current time on insert
	AutoCreate
	// AutoCreateUpdate sets the current time on insert and on every update
	AutoCreateUpdate
)

// DateLayout is the wire format of Date columns
const DateLayout = time.DateOnly

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// ForeignKey references the primary key of another table
type ForeignKey struct {
	Entity   string `json:"entity"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	OnDelete string `json:"on_delete,omitempty"`
}

// Column describes one table column
type Column struct {
	Name       string      `json:"name"`
	Kind       ColumnKind  `json:"kind"`
	Size       int         `json:"size,omitempty"`
	Precision  int         `json:"precision,omitempty"`
	Scale      int         `json:"scale,omitempty"`
	PrimaryKey bool        `json:"primary_key,omitempty"`
	Required   bool        `json:"required,omitempty"`
	Unique     bool        `json:"unique,omitempty"`
	Default    any         `json:"default,omitempty"`
	Values     []string    `json:"values,omitempty"`
	References *ForeignKey `json:"references,omitempty"`
	Auto       Auto        `json:"-"`
}

// Writable reports whether clients may set the column
func (c Column) Writable() bool {
	return !c.PrimaryKey && c.Auto == AutoNone
}

// FieldError reports an invalid value for a named field
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value for %s: %s", e.Field, e.Reason)
}

func (c Column) invalid(format string, args ...any) error {
	return &FieldError{Field: c.Name, Reason: fmt.Sprintf(format, args...)}
}

// Decode converts a JSON-decoded value into the Go value bound for the
// column. Request bodies are expected to be decoded with UseNumber.
func (c Column) Decode(v any) (any, error) {
	if v == nil {
		if c.Required {
			return nil, c.invalid("must not be null")
		}
		return nil, nil
	}

	switch c.Kind {
	case Integer:
		return c.decodeInteger(v)
	case String, Text, Enum:
		s, ok := v.(string)
		if !ok {
			return nil, c.invalid("expected a string")
		}
		return c.checkString(s)
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, c.invalid("expected a boolean")
		}
		return b, nil
	case Date, DateTime:
		s, ok := v.(string)
		if !ok {
			return nil, c.invalid("expected a date string")
		}
		return c.parseTime(s)
	case Numeric:
		return c.decodeNumeric(v)
	default:
		return nil, c.invalid("unsupported column kind %s", c.Kind)
	}
}

// ParseParam converts a query string value into the Go value bound for the column
func (c Column) ParseParam(s string) (any, error) {
	switch c.Kind {
	case Integer:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, c.invalid("expected an integer")
		}
		return n, nil
	case Boolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, c.invalid("expected a boolean")
		}
		return b, nil
	case Date, DateTime:
		return c.parseTime(s)
	case Numeric:
		return c.decodeNumeric(s)
	default:
		return c.checkString(s)
	}
}

// Normalize converts a value scanned from the database into its JSON form
func (c Column) Normalize(v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch c.Kind {
	case Boolean:
		switch b := v.(type) {
		case int64:
			return b != 0
		case string:
			parsed, err := strconv.ParseBool(b)
			if err == nil {
				return parsed
			}
		}
	case Numeric:
		if d, err := c.scaleNumeric(v); err == nil {
			return d
		}
	case Date:
		if t, ok := c.asTime(v); ok {
			return t.Format(DateLayout)
		}
	case DateTime:
		if t, ok := c.asTime(v); ok {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return v
}

func (c Column) asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := c.parseTime(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.(time.Time), true
	}
	return time.Time{}, false
}

func (c Column) decodeInteger(v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, c.invalid("expected an integer")
		}
		return i, nil
	case float64:
		if n != math.Trunc(n) {
			return nil, c.invalid("expected an integer")
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return nil, c.invalid("expected an integer")
}

func (c Column) decodeNumeric(v any) (any, error) {
	d, err := c.scaleNumeric(v)
	if errors.Is(err, errNumericRange) {
		return nil, c.invalid("exceeds %d digits with %d decimals", c.Precision, c.Scale)
	}
	if err != nil {
		return nil, c.invalid("expected a number")
	}
	return d, nil
}

// maxNumericDigits bounds the work done on pathological exponents
const maxNumericDigits = 1000

var errNumericRange = errors.New("numeric value out of range")

// scaleNumeric rounds v half away from zero to the column scale and renders
// it in fixed notation. The digit count is checked on the rounded value.
func (c Column) scaleNumeric(v any) (string, error) {
	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case string:
		text = strings.TrimSpace(n)
	case float64:
		text = strconv.FormatFloat(n, 'f', -1, 64)
	case int64:
		text = strconv.FormatInt(n, 10)
	case int:
		text = strconv.Itoa(n)
	default:
		return "", fmt.Errorf("unsupported numeric type %T", v)
	}

	d, _, err := apd.NewFromString(text)
	if err != nil {
		return "", err
	}
	if d.Form != apd.Finite {
		return "", fmt.Errorf("numeric value %q is not finite", text)
	}
	if c.Precision == 0 {
		if d.Exponent > maxNumericDigits || d.Exponent < -maxNumericDigits {
			return "", errNumericRange
		}
		return d.Text('f'), nil
	}

	ctx := apd.BaseContext.WithPrecision(maxNumericDigits)
	ctx.Rounding = apd.RoundHalfUp
	var scaled apd.Decimal
	if _, err := ctx.Quantize(&scaled, d, -int32(c.Scale)); err != nil {
		return "", errNumericRange
	}
	if scaled.NumDigits() > int64(c.Precision) {
		return "", errNumericRange
	}
	if scaled.IsZero() {
		scaled.Negative = false
	}
	return scaled.Text('f'), nil
}

func (c Column) checkString(s string) (any, error) {
	if c.Required && strings.TrimSpace(s) == "" {
		return nil, c.invalid("must not be empty")
	}
	if c.Size > 0 && utf8.RuneCountInString(s) > c.Size {
		return nil, c.invalid("longer than %d characters", c.Size)
	}
	if c.Kind == Enum && !slices.Contains(c.Values, s) {
		return nil, c.invalid("must be one of %s", strings.Join(c.Values, ", "))
	}
	return s, nil
}

func (c Column) parseTime(s string) (any, error) {
	if c.Kind == Date {
		// timestamps are accepted for dates and truncated
		if len(s) > len(DateLayout) {
			s = s[:len(DateLayout)]
		}
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, c.invalid("expected a date in YYYY-MM-DD format")
		}
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, c.invalid("expected an ISO 8601 timestamp")
}
