package jsoniq

import (
	"fmt"
	"strings"
)

type Arity int

const (
	ArityOne Arity = iota
	ArityZeroOrOne
	ArityOneOrMore
	ArityZeroOrMore
)

func (a Arity) String() string {
	switch a {
	case ArityZeroOrOne:
		return "?"
	case ArityOneOrMore:
		return "+"
	case ArityZeroOrMore:
		return "*"
	}
	return ""
}

func (a Arity) AllowsEmpty() bool {
	return a == ArityZeroOrOne || a == ArityZeroOrMore
}

func (a Arity) AllowsMany() bool {
	return a == ArityOneOrMore || a == ArityZeroOrMore
}

// SequenceType is an item type plus an arity.
type SequenceType struct {
	Item  TypeID
	Arity Arity
}

var AnySequence = SequenceType{Item: IDItem, Arity: ArityZeroOrMore}

func NewSequenceType(item TypeID, arity Arity) SequenceType {
	return SequenceType{Item: item, Arity: arity}
}

func (s SequenceType) String() string {
	return s.Item.String() + s.Arity.String()
}

func (s SequenceType) IsAnySequence() bool {
	return s == AnySequence
}

// Incremented returns s widened to admit more than one item.  It is how a
// variable's type changes once a clause groups or sorts many bindings into
// one.
func (s SequenceType) Incremented() SequenceType {
	switch s.Arity {
	case ArityOne:
		s.Arity = ArityOneOrMore
	case ArityZeroOrOne:
		s.Arity = ArityZeroOrMore
	}
	return s
}

// Matches reports whether items is an instance of s.
func (s SequenceType) Matches(items []Item) bool {
	if len(items) == 0 {
		return s.Arity.AllowsEmpty()
	}
	if len(items) > 1 && !s.Arity.AllowsMany() {
		return false
	}
	for _, item := range items {
		if !item.Type().Matches(s.Item) {
			return false
		}
	}
	return true
}

// ParseSequenceType parses the String form, e.g. "integer?" or "item*".
func ParseSequenceType(s string) (SequenceType, error) {
	s = strings.TrimSpace(s)
	arity := ArityOne
	if n := len(s); n > 0 {
		switch s[n-1] {
		case '?':
			arity = ArityZeroOrOne
		case '+':
			arity = ArityOneOrMore
		case '*':
			arity = ArityZeroOrMore
		}
		if arity != ArityOne {
			s = s[:n-1]
		}
	}
	id, ok := LookupTypeID(s)
	if !ok {
		return SequenceType{}, fmt.Errorf("unknown item type %q", s)
	}
	return SequenceType{Item: id, Arity: arity}, nil
}

// FunctionIdentifier names a function by name and arity.
type FunctionIdentifier struct {
	Name  Name
	Arity int
}

func NewFunctionIdentifier(name Name, arity int) FunctionIdentifier {
	return FunctionIdentifier{Name: name, Arity: arity}
}

func (f FunctionIdentifier) String() string {
	return fmt.Sprintf("%s#%d", f.Name, f.Arity)
}

type FunctionSignature struct {
	Params []SequenceType
	Return SequenceType
}

func (f FunctionSignature) String() string {
	params := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		params = append(params, p.String())
	}
	return "(" + strings.Join(params, ", ") + ") as " + f.Return.String()
}

// ExecutionMode is the evaluation strategy fixed for an expression or clause
// when its plan is built.
type ExecutionMode int

const (
	ModeUnset ExecutionMode = iota
	ModeLocal
	ModeRDD
	ModeDataFrame
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRDD:
		return "rdd"
	case ModeDataFrame:
		return "dataframe"
	}
	return "unset"
}

// IsBig reports whether m evaluates on the distributed engine.
func (m ExecutionMode) IsBig() bool {
	return m == ModeRDD || m == ModeDataFrame
}

func (m ExecutionMode) IsDataFrame() bool {
	return m == ModeDataFrame
}
