package jsoniq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single value of the data model.  Sequences are []Item and are
// never nested.
type Item interface {
	Type() TypeID
	// String returns the string value of the item.  Use Serialize for the
	// JSON form.
	String() string
}

type Null struct{}

type Boolean bool

type Integer int64

type Decimal struct {
	decimal.Decimal
}

type Float float32

type Double float64

type String string

// Duration holds the month and day-time components of a duration
// separately since the two are not commensurable.  Kind is one of
// IDDuration, IDYearMonthDuration or IDDayTimeDuration.
type Duration struct {
	Kind   TypeID
	Months int64
	Nanos  int64
}

// Temporal is a date, dateTime or time.  Kind selects which.
type Temporal struct {
	Kind TypeID
	Time time.Time
}

type Array struct {
	Members []Item
}

// Object is a JSON object with its key order preserved.
type Object struct {
	keys   []string
	values map[string]Item
}

// Function is a function item.  NewBody returns a fresh body plan for every
// activation so that activations never share iterator state.
type Function struct {
	ID        FunctionIdentifier
	Params    []Name
	Signature FunctionSignature
	NewBody   func() any
	Closure   map[Name][]Item
}

var True, False = Boolean(true), Boolean(false)

func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{d}
}

func ParseDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{d}, nil
}

func NewDayTimeDuration(d time.Duration) Duration {
	return Duration{Kind: IDDayTimeDuration, Nanos: int64(d)}
}

func NewYearMonthDuration(months int64) Duration {
	return Duration{Kind: IDYearMonthDuration, Months: months}
}

func NewDate(t time.Time) Temporal {
	y, m, d := t.Date()
	return Temporal{Kind: IDDate, Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

func NewDateTime(t time.Time) Temporal {
	return Temporal{Kind: IDDateTime, Time: t}
}

func NewTime(t time.Time) Temporal {
	return Temporal{Kind: IDTime, Time: time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())}
}

func NewArray(members ...Item) *Array {
	return &Array{Members: members}
}

func NewObject() *Object {
	return &Object{values: map[string]Item{}}
}

func (Null) Type() TypeID { return IDNull }
func (Boolean) Type() TypeID { return IDBoolean }
func (Integer) Type() TypeID { return IDInteger }
func (Decimal) Type() TypeID { return IDDecimal }
func (Float) Type() TypeID { return IDFloat }
func (Double) Type() TypeID { return IDDouble }
func (String) Type() TypeID { return IDString }
func (d Duration) Type() TypeID { return d.Kind }
func (t Temporal) Type() TypeID { return t.Kind }
func (*Array) Type() TypeID { return IDArray }
func (*Object) Type() TypeID { return IDObject }
func (*Function) Type() TypeID { return IDFunction }

func (Null) String() string { return "null" }

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

func (d Decimal) String() string { return d.Decimal.String() }

func (f Float) String() string { return formatFloat(float64(f), 32) }

func (d Double) String() string { return formatFloat(float64(d), 64) }

func (s String) String() string { return string(s) }

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

const (
	nanosPerSecond = int64(time.Second)
	nanosPerDay    = 24 * int64(time.Hour)
	// nanosPerMonth is the mean Gregorian month.
	nanosPerMonth = 2629746 * nanosPerSecond
)

// OrderKey returns an integer whose order agrees with the order of
// durations of the same kind.  Mixed-kind comparisons use the mean
// Gregorian month.  Durations beyond about 292 years saturate to the int64
// bounds.
func (d Duration) OrderKey() int64 {
	switch {
	case d.Months > math.MaxInt64/nanosPerMonth:
		return math.MaxInt64
	case d.Months < math.MinInt64/nanosPerMonth:
		return math.MinInt64
	}
	months := d.Months * nanosPerMonth
	key := months + d.Nanos
	switch {
	case months > 0 && d.Nanos > 0 && key < 0:
		return math.MaxInt64
	case months < 0 && d.Nanos < 0 && key >= 0:
		return math.MinInt64
	}
	return key
}

func (d Duration) String() string {
	months, nanos := d.Months, d.Nanos
	var b strings.Builder
	if months < 0 || nanos < 0 {
		b.WriteByte('-')
		months, nanos = -months, -nanos
	}
	b.WriteByte('P')
	empty := true
	if y := months / 12; y != 0 {
		fmt.Fprintf(&b, "%dY", y)
		empty = false
	}
	if m := months % 12; m != 0 {
		fmt.Fprintf(&b, "%dM", m)
		empty = false
	}
	if days := nanos / nanosPerDay; days != 0 {
		fmt.Fprintf(&b, "%dD", days)
		empty = false
	}
	if rest := nanos % nanosPerDay; rest != 0 {
		b.WriteByte('T')
		if h := rest / int64(time.Hour); h != 0 {
			fmt.Fprintf(&b, "%dH", h)
		}
		if m := rest % int64(time.Hour) / int64(time.Minute); m != 0 {
			fmt.Fprintf(&b, "%dM", m)
		}
		if s := rest % int64(time.Minute); s != 0 {
			secs := strconv.FormatFloat(float64(s)/float64(nanosPerSecond), 'f', -1, 64)
			fmt.Fprintf(&b, "%sS", secs)
		}
		empty = false
	}
	if empty {
		if d.Kind == IDYearMonthDuration {
			b.WriteString("0M")
		} else {
			b.WriteString("T0S")
		}
	}
	return b.String()
}

// OrderKey returns an integer whose order agrees with the order of
// temporals of the same kind.  A time is keyed as the instant it denotes
// on the reference date 1972-12-31 in its own timezone.
func (t Temporal) OrderKey() int64 {
	if t.Kind == IDTime {
		tm := t.Time
		return time.Date(1972, time.December, 31, tm.Hour(), tm.Minute(), tm.Second(), tm.Nanosecond(), tm.Location()).UnixNano()
	}
	return t.Time.UnixNano()
}

func (t Temporal) String() string {
	switch t.Kind {
	case IDDate:
		return t.Time.Format("2006-01-02")
	case IDTime:
		return t.Time.Format("15:04:05.999999999")
	}
	return t.Time.Format(time.RFC3339Nano)
}

func (a *Array) String() string {
	return Serialize(a)
}

func (o *Object) Add(key string, value Item) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Object) Get(key string) (Item, bool) {
	item, ok := o.values[key]
	return item, ok
}

func (o *Object) Keys() []string {
	return o.keys
}

func (o *Object) Len() int {
	return len(o.keys)
}

func (o *Object) String() string {
	return Serialize(o)
}

func (f *Function) String() string {
	return f.ID.String()
}

// Copy returns a copy of f that shares no mutable state with f.
func (f *Function) Copy() *Function {
	out := *f
	out.Params = append([]Name(nil), f.Params...)
	out.Signature.Params = append([]SequenceType(nil), f.Signature.Params...)
	if f.Closure != nil {
		out.Closure = make(map[Name][]Item, len(f.Closure))
		for name, items := range f.Closure {
			out.Closure[name] = append([]Item(nil), items...)
		}
	}
	return &out
}

// Serialize returns the JSON form of item.  Non-JSON atomics serialize as
// their quoted string value.
func Serialize(item Item) string {
	var b strings.Builder
	serialize(&b, item)
	return b.String()
}

func serialize(b *strings.Builder, item Item) {
	switch item := item.(type) {
	case Null, Boolean, Integer, Decimal:
		b.WriteString(item.String())
	case Float, Double:
		s := item.String()
		if s == "NaN" || strings.HasSuffix(s, "INF") {
			b.WriteString(quote(s))
		} else {
			b.WriteString(s)
		}
	case *Array:
		b.WriteByte('[')
		for i, m := range item.Members {
			if i > 0 {
				b.WriteString(", ")
			}
			serialize(b, m)
		}
		b.WriteByte(']')
	case *Object:
		b.WriteByte('{')
		for i, k := range item.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(quote(k))
			b.WriteString(": ")
			serialize(b, item.values[k])
		}
		b.WriteByte('}')
	default:
		b.WriteString(quote(item.String()))
	}
}

func quote(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// SerializeSequence serializes items one per line.
func SerializeSequence(items []Item) string {
	var b strings.Builder
	for _, item := range items {
		serialize(&b, item)
		b.WriteByte('\n')
	}
	return b.String()
}
