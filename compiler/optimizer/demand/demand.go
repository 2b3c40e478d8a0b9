// Package demand computes which variables a plan needs from its input
// tuples and how much of each variable it needs.
package demand

import (
	"maps"
	"strings"

	"github.com/brimdata/jsoniq"
)

// Dependency is how much of a variable's value an expression needs.
type Dependency int

const (
	Full Dependency = iota
	Count
	Sum
	Avg
	Max
	Min
)

func (d Dependency) String() string {
	switch d {
	case Count:
		return "count"
	case Sum:
		return "sum"
	case Avg:
		return "avg"
	case Max:
		return "max"
	case Min:
		return "min"
	}
	return "full"
}

// Merge combines two dependencies on the same variable.  Two different
// partial needs can only be served by the full value.
func Merge(a, b Dependency) Dependency {
	if a == b {
		return a
	}
	return Full
}

// Set maps each needed variable to its dependency.  Sets are treated as
// immutable values: the functions below never modify their arguments.
type Set map[jsoniq.Name]Dependency

func None() Set {
	return Set{}
}

func Of(name jsoniq.Name, dep Dependency) Set {
	return Set{name: dep}
}

func IsNone(s Set) bool {
	return len(s) == 0
}

func (s Set) Has(name jsoniq.Name) bool {
	_, ok := s[name]
	return ok
}

// Get returns the dependency on name and whether there is one.
func (s Set) Get(name jsoniq.Name) (Dependency, bool) {
	d, ok := s[name]
	return d, ok
}

// Names returns the variables of s in name order.
func (s Set) Names() []jsoniq.Name {
	return jsoniq.SortedNames(s)
}

func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, name := range s.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("$" + name.String() + ":" + s[name].String())
	}
	b.WriteByte('}')
	return b.String()
}

func Union(sets ...Set) Set {
	out := None()
	for _, s := range sets {
		for name, d := range s {
			if d2, ok := out[name]; ok {
				out[name] = Merge(d, d2)
			} else {
				out[name] = d
			}
		}
	}
	return out
}

// Delete returns a without the given names.
func Delete(a Set, names ...jsoniq.Name) Set {
	copyOnWrite := true
	for _, name := range names {
		if _, ok := a[name]; !ok {
			continue
		}
		if copyOnWrite {
			a = maps.Clone(a)
			copyOnWrite = false
		}
		delete(a, name)
	}
	return a
}

// Restrict returns the entries of a whose names appear in names.
func Restrict(a Set, names []jsoniq.Name) Set {
	out := None()
	for _, name := range names {
		if d, ok := a[name]; ok {
			out[name] = d
		}
	}
	return out
}

// All returns a set with a full dependency on each of names.
func All(names []jsoniq.Name) Set {
	out := None()
	for _, name := range names {
		out[name] = Full
	}
	return out
}
