package semantic

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/brimdata/jsoniq"
)

// StaticContext is a scope of declared facts: in-scope variables with
// their sequence types, namespace bindings and function signatures.  Scopes
// form a parent-linked tree and lookups walk toward the module root, which
// also holds the module-wide settings.
type StaticContext struct {
	parent     *StaticContext
	variables  map[jsoniq.Name]*variable
	namespaces map[string]string
	functions  map[jsoniq.FunctionIdentifier]jsoniq.FunctionSignature

	// Module root only.
	emptyLeast bool
	udfModes   map[jsoniq.FunctionIdentifier]jsoniq.ExecutionMode
}

type variable struct {
	typ  jsoniq.SequenceType
	loc  jsoniq.Loc
	mode jsoniq.ExecutionMode
}

var defaultPrefixes = map[string]string{
	"local": jsoniq.LocalFunctionsNamespace,
	"xs":    jsoniq.SchemaNamespace,
	"fn":    jsoniq.FunctionsNamespace,
	"jn":    jsoniq.JSONiqNamespace,
}

// NewModuleContext returns the root scope of a module with the default
// prefixes bound and empty sequences ordered least.
func NewModuleContext() *StaticContext {
	s := newScope(nil)
	s.emptyLeast = true
	for prefix, uri := range defaultPrefixes {
		s.BindNamespace(prefix, uri)
	}
	return s
}

func NewStaticContext(parent *StaticContext) *StaticContext {
	if parent == nil {
		panic("semantic: NewStaticContext requires a parent scope")
	}
	return newScope(parent)
}

func newScope(parent *StaticContext) *StaticContext {
	return &StaticContext{
		parent:     parent,
		variables:  make(map[jsoniq.Name]*variable),
		namespaces: make(map[string]string),
		functions:  make(map[jsoniq.FunctionIdentifier]jsoniq.FunctionSignature),
	}
}

func (s *StaticContext) Parent() *StaticContext {
	return s.parent
}

func (s *StaticContext) IsModule() bool {
	return s.parent == nil
}

func (s *StaticContext) module() *StaticContext {
	scope := s
	for scope.parent != nil {
		scope = scope.parent
	}
	return scope
}

// AddVariable declares name in this scope, replacing any declaration of
// the same name here.
func (s *StaticContext) AddVariable(name jsoniq.Name, typ jsoniq.SequenceType, loc jsoniq.Loc, mode jsoniq.ExecutionMode) {
	s.variables[name] = &variable{typ: typ, loc: loc, mode: mode}
}

func (s *StaticContext) HasVariable(name jsoniq.Name) bool {
	return s.lookupVariable(name) != nil
}

func (s *StaticContext) VariableSequenceType(name jsoniq.Name, loc jsoniq.Loc) (jsoniq.SequenceType, error) {
	v := s.lookupVariable(name)
	if v == nil {
		return jsoniq.SequenceType{}, s.undeclared(name, loc)
	}
	return v.typ, nil
}

// VariableStorageMode returns the execution mode hint recorded for name.
func (s *StaticContext) VariableStorageMode(name jsoniq.Name, loc jsoniq.Loc) (jsoniq.ExecutionMode, error) {
	v := s.lookupVariable(name)
	if v == nil {
		return jsoniq.ModeUnset, s.undeclared(name, loc)
	}
	return v.mode, nil
}

// VariableLoc returns where name was declared.
func (s *StaticContext) VariableLoc(name jsoniq.Name) (jsoniq.Loc, error) {
	v := s.lookupVariable(name)
	if v == nil {
		return jsoniq.Loc{}, s.undeclared(name, jsoniq.Loc{})
	}
	return v.loc, nil
}

func (s *StaticContext) lookupVariable(name jsoniq.Name) *variable {
	for scope := s; scope != nil; scope = scope.parent {
		if v, ok := scope.variables[name]; ok {
			return v
		}
	}
	return nil
}

func (s *StaticContext) undeclared(name jsoniq.Name, loc jsoniq.Loc) error {
	return jsoniq.NewError(jsoniq.UndeclaredVariable, loc, "variable $%s is not declared%s", name, jsoniq.DidYouMean(name, s.InScopeVariables()))
}

// InScopeVariables returns every variable visible from this scope in name
// order.
func (s *StaticContext) InScopeVariables() []jsoniq.Name {
	seen := make(map[jsoniq.Name]struct{})
	for scope := s; scope != nil; scope = scope.parent {
		for name := range scope.variables {
			seen[name] = struct{}{}
		}
	}
	return jsoniq.SortedNames(seen)
}

// BindNamespace binds prefix to uri in this scope unless the prefix is
// already bound here.  It reports whether the binding was made.
func (s *StaticContext) BindNamespace(prefix, uri string) bool {
	if _, ok := s.namespaces[prefix]; ok {
		return false
	}
	s.namespaces[prefix] = uri
	return true
}

func (s *StaticContext) ResolveNamespace(prefix string, loc jsoniq.Loc) (string, error) {
	for scope := s; scope != nil; scope = scope.parent {
		if uri, ok := scope.namespaces[prefix]; ok {
			return uri, nil
		}
	}
	return "", jsoniq.NewError(jsoniq.UnboundPrefix, loc, "namespace prefix %q is not bound", prefix)
}

// ResolveQName resolves a lexical prefix:local name.  Unprefixed names
// have no namespace.
func (s *StaticContext) ResolveQName(lexical string, loc jsoniq.Loc) (jsoniq.Name, error) {
	prefix, local, ok := strings.Cut(lexical, ":")
	if !ok {
		return jsoniq.NewName(lexical), nil
	}
	uri, err := s.ResolveNamespace(prefix, loc)
	if err != nil {
		return jsoniq.Name{}, err
	}
	return jsoniq.NewQName(uri, local), nil
}

func (s *StaticContext) AddFunctionSignature(id jsoniq.FunctionIdentifier, sig jsoniq.FunctionSignature) {
	s.functions[id] = sig
}

func (s *StaticContext) FunctionSignature(id jsoniq.FunctionIdentifier, loc jsoniq.Loc) (jsoniq.FunctionSignature, error) {
	for scope := s; scope != nil; scope = scope.parent {
		if sig, ok := scope.functions[id]; ok {
			return sig, nil
		}
	}
	return jsoniq.FunctionSignature{}, jsoniq.NewError(jsoniq.UnknownFunctionCall, loc, "function %s is not declared", id)
}

func (s *StaticContext) SetEmptySequenceOrderLeast(least bool) {
	if !s.IsModule() {
		panic("semantic: empty sequence order set on a non-module scope")
	}
	s.emptyLeast = least
}

// EmptySequenceOrderLeast reports the module default placement of empty
// sequences in order by clauses.
func (s *StaticContext) EmptySequenceOrderLeast() bool {
	return s.module().emptyLeast
}

func (s *StaticContext) SetUserDefinedFunctionsExecutionModes(modes map[jsoniq.FunctionIdentifier]jsoniq.ExecutionMode) {
	if !s.IsModule() {
		panic("semantic: function execution modes set on a non-module scope")
	}
	s.udfModes = maps.Clone(modes)
}

func (s *StaticContext) UserDefinedFunctionExecutionMode(id jsoniq.FunctionIdentifier) jsoniq.ExecutionMode {
	if mode, ok := s.module().udfModes[id]; ok {
		return mode
	}
	return jsoniq.ModeUnset
}

// ImportModuleContext copies into this scope the variables and function
// signatures declared at the root of module whose names are in namespace.
func (s *StaticContext) ImportModuleContext(module *StaticContext, namespace string) {
	root := module.module()
	for name, v := range root.variables {
		if name.Namespace == namespace {
			cp := *v
			s.variables[name] = &cp
		}
	}
	for id, sig := range root.functions {
		if id.Name.Namespace == namespace {
			s.functions[id] = sig
		}
	}
}

// IncrementArities widens the declared arity of every variable declared in
// this scope and its ancestors up to but excluding stop, so that a variable
// of exactly one item becomes one or more and an optional one becomes zero
// or more.  Variables in excluded keep their types.
func (s *StaticContext) IncrementArities(stop *StaticContext, excluded []jsoniq.Name) {
	for scope := s; scope != nil && scope != stop; scope = scope.parent {
		for name, v := range scope.variables {
			if !slices.Contains(excluded, name) {
				v.typ = v.typ.Incremented()
			}
		}
	}
}

func (s *StaticContext) String() string {
	var b strings.Builder
	depth := 0
	for scope := s; scope != nil; scope = scope.parent {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%sscope %d\n", indent, depth)
		for _, name := range jsoniq.SortedNames(scope.variables) {
			v := scope.variables[name]
			fmt.Fprintf(&b, "%s  $%s as %s (%s)\n", indent, name, v.typ, v.mode)
		}
		for _, prefix := range slices.Sorted(maps.Keys(scope.namespaces)) {
			fmt.Fprintf(&b, "%s  %s = %s\n", indent, prefix, scope.namespaces[prefix])
		}
		ids := slices.SortedFunc(maps.Keys(scope.functions), func(a, b jsoniq.FunctionIdentifier) int {
			return strings.Compare(a.String(), b.String())
		})
		for _, id := range ids {
			fmt.Fprintf(&b, "%s  %s%s\n", indent, id, scope.functions[id])
		}
		depth++
	}
	return b.String()
}
