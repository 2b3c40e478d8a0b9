package jsoniq

import (
	"fmt"
	"strings"
)

// Loc is a position in query text.  The zero Loc is unknown.
type Loc struct {
	File   string
	Line   int
	Column int
}

func NewLoc(line, column int) Loc {
	return Loc{Line: line, Column: column}
}

func (l Loc) IsValid() bool {
	return l.Line > 0
}

func (l Loc) String() string {
	if !l.IsValid() {
		return "unknown location"
	}
	var b strings.Builder
	if l.File != "" {
		fmt.Fprintf(&b, "in %s ", l.File)
	}
	fmt.Fprintf(&b, "at line %d, column %d", l.Line, l.Column)
	return b.String()
}

// Code is a JSONiq error code.  A Code is itself an error so that
// errors.Is(err, jsoniq.UnexpectedType) matches any *Error carrying it.
type Code string

const (
	UnexpectedType             Code = "XPTY0004"
	AbsentPartOfDynamicContext Code = "XPDY0002"
	UndeclaredVariable         Code = "XPST0008"
	UnknownFunctionCall        Code = "XPST0017"
	DuplicateFunction          Code = "XQST0034"
	UnboundPrefix              Code = "XPST0081"
	UnsupportedCollation       Code = "FOCH0002"
	InvalidEffectiveBoolean    Code = "FORG0006"
	JobWithinAJob              Code = "JNCT0001"
	MaterializationCapExceeded Code = "JNRS0001"
	OnlyCountAvailable         Code = "JNRS0002"
)

var codeText = map[Code]string{
	UnexpectedType:             "unexpected type",
	AbsentPartOfDynamicContext: "absent part of the dynamic context",
	UndeclaredVariable:         "undeclared variable",
	UnknownFunctionCall:        "unknown function",
	DuplicateFunction:          "duplicate function declaration",
	UnboundPrefix:              "unbound namespace prefix",
	UnsupportedCollation:       "unsupported collation",
	InvalidEffectiveBoolean:    "invalid argument for effective boolean value",
	JobWithinAJob:              "distributed evaluation nested inside a distributed job",
	MaterializationCapExceeded: "materialization cap exceeded",
	OnlyCountAvailable:         "only the count of the variable is available",
}

func (c Code) Error() string {
	if text, ok := codeText[c]; ok {
		return string(c) + ": " + text
	}
	return string(c)
}

// Error is a located JSONiq error.
type Error struct {
	Code Code
	Msg  string
	Loc  Loc
}

func NewError(code Code, loc Loc, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Loc: loc}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Msg)
	if e.Loc.IsValid() {
		b.WriteString(" ")
		b.WriteString(e.Loc.String())
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	code, ok := target.(Code)
	return ok && code == e.Code
}

// WithLoc returns err located at loc when err is an Error without a
// location.  Other errors are returned unchanged.
func WithLoc(err error, loc Loc) error {
	e, ok := err.(*Error)
	if !ok || e.Loc.IsValid() || !loc.IsValid() {
		return err
	}
	located := *e
	located.Loc = loc
	return &located
}
