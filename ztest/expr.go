package ztest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/runtime"
	"github.com/brimdata/jsoniq/runtime/expr"
)

// ParseExpr builds the iterator for a ztest expression located at loc.
// The term "input" evaluates to input.
func ParseExpr(text string, input []jsoniq.Item, loc jsoniq.Loc) (runtime.Iterator, error) {
	terms, err := splitTerms(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	var its []runtime.Iterator
	for _, term := range terms {
		it, err := parseTerm(term, input, loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", loc, term, err)
		}
		its = append(its, it)
	}
	if len(its) == 1 {
		return its[0], nil
	}
	return expr.NewComma(loc, its...), nil
}

func parseTerm(term string, input []jsoniq.Item, loc jsoniq.Loc) (runtime.Iterator, error) {
	switch {
	case term == "":
		return nil, errors.New("empty term")
	case term == "input":
		return expr.NewLiteral(loc, input...), nil
	case term == "()":
		return expr.NewLiteral(loc), nil
	case strings.HasPrefix(term, "parallelize(") && strings.HasSuffix(term, ")"):
		in, err := ParseExpr(term[len("parallelize("):len(term)-1], input, loc)
		if err != nil {
			return nil, err
		}
		return expr.NewParallelize(in, loc), nil
	case strings.HasPrefix(term, "count($") && strings.HasSuffix(term, ")"):
		name := term[len("count($") : len(term)-1]
		if !isIdent(name) {
			return nil, fmt.Errorf("bad variable name %q", name)
		}
		return expr.NewCountVar(jsoniq.NewName(name), loc), nil
	case term[0] == '$':
		path := strings.Split(term[1:], ".")
		for _, p := range path {
			if !isIdent(p) {
				return nil, fmt.Errorf("bad identifier %q", p)
			}
		}
		var it runtime.Iterator = expr.NewVar(jsoniq.NewName(path[0]), jsoniq.ModeLocal, loc)
		for _, key := range path[1:] {
			it = expr.NewLookup(it, key, loc)
		}
		return it, nil
	}
	item, err := jsoniq.ParseJSON(term)
	if err != nil {
		return nil, err
	}
	return expr.NewLiteral(loc, item), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// splitTerms splits text at the commas outside of brackets and strings.
func splitTerms(text string) ([]string, error) {
	var terms []string
	var depth int
	var inString, escaped bool
	start := 0
	for i, r := range text {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '"':
			inString = true
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", r)
			}
		case r == ',' && depth == 0:
			terms = append(terms, strings.TrimSpace(text[start:i]))
			start = i + 1
		}
	}
	if inString || depth != 0 {
		return nil, errors.New("unterminated expression")
	}
	return append(terms, strings.TrimSpace(text[start:])), nil
}
