// Package collation resolves collation URIs to string comparators.
package collation

import (
	"net/url"
	"strings"

	"github.com/brimdata/jsoniq"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	Codepoint = "http://www.w3.org/2005/xpath-functions/collation/codepoint"
	UCA       = "http://www.w3.org/2013/collation/UCA"
)

// Lookup returns the collator for uri.  The codepoint collation and the
// empty URI yield a nil collator, meaning plain codepoint order.  UCA URIs
// accept the lang and strength parameters.
func Lookup(uri string) (jsoniq.Collator, error) {
	if uri == "" || uri == Codepoint {
		return nil, nil
	}
	base, query, _ := strings.Cut(uri, "?")
	if base != UCA {
		return nil, jsoniq.NewError(jsoniq.UnsupportedCollation, jsoniq.Loc{}, "unsupported collation %q", uri)
	}
	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, jsoniq.NewError(jsoniq.UnsupportedCollation, jsoniq.Loc{}, "malformed collation %q: %s", uri, err)
	}
	tag := language.Und
	if lang := params.Get("lang"); lang != "" {
		if tag, err = language.Parse(lang); err != nil {
			return nil, jsoniq.NewError(jsoniq.UnsupportedCollation, jsoniq.Loc{}, "collation %q: unknown language %q", uri, lang)
		}
	}
	var opts []collate.Option
	switch params.Get("strength") {
	case "", "tertiary", "quaternary", "identical":
	case "primary":
		opts = append(opts, collate.IgnoreCase, collate.IgnoreDiacritics)
	case "secondary":
		opts = append(opts, collate.IgnoreCase)
	default:
		return nil, jsoniq.NewError(jsoniq.UnsupportedCollation, jsoniq.Loc{}, "collation %q: unknown strength %q", uri, params.Get("strength"))
	}
	return collate.New(tag, opts...), nil
}

// Compare returns a comparison function for coll.
func Compare(coll jsoniq.Collator) func(a, b string) int {
	if coll == nil {
		return strings.Compare
	}
	return coll.CompareString
}
