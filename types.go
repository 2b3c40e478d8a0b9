package jsoniq

import "strings"

// TypeID identifies an item type.  The atomic IDs come first so that
// IsAtomic is a range check, and the numeric IDs are ordered by widening
// rank.
type TypeID int

const (
	IDNull TypeID = iota
	IDBoolean
	IDInteger
	IDDecimal
	IDFloat
	IDDouble
	IDString
	IDDuration
	IDYearMonthDuration
	IDDayTimeDuration
	IDDate
	IDDateTime
	IDTime
	IDArray
	IDObject
	IDFunction
	// IDAtomic and IDItem appear only in sequence types.
	IDAtomic
	IDItem
)

var typeNames = [...]string{
	IDNull:              "null",
	IDBoolean:           "boolean",
	IDInteger:           "integer",
	IDDecimal:           "decimal",
	IDFloat:             "float",
	IDDouble:            "double",
	IDString:            "string",
	IDDuration:          "duration",
	IDYearMonthDuration: "yearMonthDuration",
	IDDayTimeDuration:   "dayTimeDuration",
	IDDate:              "date",
	IDDateTime:          "dateTime",
	IDTime:              "time",
	IDArray:             "array",
	IDObject:            "object",
	IDFunction:          "function",
	IDAtomic:            "atomic",
	IDItem:              "item",
}

func (t TypeID) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// LookupTypeID returns the type with the given name.  The "xs:" prefix is
// accepted for the atomic types.
func LookupTypeID(name string) (TypeID, bool) {
	name = strings.TrimPrefix(name, "xs:")
	if name == "anyAtomicType" {
		return IDAtomic, true
	}
	for id, s := range typeNames {
		if s == name {
			return TypeID(id), true
		}
	}
	return 0, false
}

func (t TypeID) IsAtomic() bool {
	return t >= IDNull && t <= IDTime
}

func (t TypeID) IsNumeric() bool {
	return t >= IDInteger && t <= IDDouble
}

func (t TypeID) IsDuration() bool {
	return t >= IDDuration && t <= IDDayTimeDuration
}

func (t TypeID) IsTemporal() bool {
	return t >= IDDate && t <= IDTime
}

// Matches reports whether an item of type t is an instance of item type u.
func (t TypeID) Matches(u TypeID) bool {
	switch u {
	case IDItem:
		return true
	case IDAtomic:
		return t.IsAtomic()
	case IDDecimal:
		return t == IDInteger || t == IDDecimal
	case IDDuration:
		return t.IsDuration()
	}
	return t == u
}
