package jsoniq

import (
	"cmp"
	"maps"
	"slices"
	"strings"
)

// Well-known namespaces.
const (
	FunctionsNamespace      = "http://www.w3.org/2005/xpath-functions"
	JSONiqNamespace         = "http://jsoniq.org/functions"
	LocalFunctionsNamespace = "http://www.w3.org/2005/xquery-local-functions"
	SchemaNamespace         = "http://www.w3.org/2001/XMLSchema"
	EngineNamespace         = "http://jsoniq.org/engine"
)

// Name is an expanded name: an optional namespace URI and a local part.
// Names are comparable and usable as map keys.
type Name struct {
	Namespace string
	Local     string
}

func NewName(local string) Name {
	return Name{Local: local}
}

func NewQName(namespace, local string) Name {
	return Name{Namespace: namespace, Local: local}
}

// Reserved variable names holding the context position and size.
var (
	PositionName = Name{Namespace: EngineNamespace, Local: "position"}
	LastName     = Name{Namespace: EngineNamespace, Local: "last"}
)

func (n Name) IsZero() bool {
	return n == Name{}
}

// String returns the local part for names without a namespace and the
// URI-qualified form Q{uri}local otherwise.
func (n Name) String() string {
	if n.Namespace == "" {
		return n.Local
	}
	return "Q{" + n.Namespace + "}" + n.Local
}

// ParseName is the inverse of String.
func ParseName(s string) (Name, bool) {
	if !strings.HasPrefix(s, "Q{") {
		return Name{Local: s}, s != ""
	}
	end := strings.IndexByte(s, '}')
	if end < 0 || end == len(s)-1 {
		return Name{}, false
	}
	return Name{Namespace: s[2:end], Local: s[end+1:]}, true
}

func CompareNames(a, b Name) int {
	if c := cmp.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	return cmp.Compare(a.Local, b.Local)
}

// SortedNames returns the keys of m in name order.
func SortedNames[V any](m map[Name]V) []Name {
	return slices.SortedFunc(maps.Keys(m), CompareNames)
}
