package order

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Empty is the position of empty sequences among the values of an order by
// key.  EmptyDefault defers to the query's default ordering mode.  The
// position is in terms of value order, so a descending key with
// EmptyLeast places empty sequences last.
type Empty int

const (
	EmptyDefault Empty = iota
	EmptyLeast
	EmptyGreatest
)

func ParseEmpty(s string) (Empty, error) {
	switch strings.ToLower(s) {
	case "":
		return EmptyDefault, nil
	case "least":
		return EmptyLeast, nil
	case "greatest":
		return EmptyGreatest, nil
	default:
		return EmptyDefault, fmt.Errorf("unknown empty order: %s", s)
	}
}

func (e Empty) String() string {
	switch e {
	case EmptyLeast:
		return "least"
	case EmptyGreatest:
		return "greatest"
	}
	return ""
}

// Least resolves e against the default given by defaultLeast.
func (e Empty) Least(defaultLeast bool) bool {
	switch e {
	case EmptyLeast:
		return true
	case EmptyGreatest:
		return false
	}
	return defaultLeast
}

func (e Empty) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Empty) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	empty, err := ParseEmpty(s)
	if err != nil {
		return err
	}
	*e = empty
	return nil
}

func (e *Empty) UnmarshalYAML(b []byte) error {
	empty, err := ParseEmpty(strings.Trim(strings.TrimSpace(string(b)), `"'`))
	if err != nil {
		return err
	}
	*e = empty
	return nil
}
