package runtime

import (
	"github.com/brimdata/jsoniq"
)

type registry struct {
	builtins  Builtins
	functions map[jsoniq.FunctionIdentifier]*jsoniq.Function
}

func newRegistry(builtins Builtins) *registry {
	return &registry{
		builtins:  builtins,
		functions: make(map[jsoniq.FunctionIdentifier]*jsoniq.Function),
	}
}

// AddUserDefinedFunction registers fn with the root context.  Its
// identifier must not name a builtin or an already registered function.
func (d *DynamicContext) AddUserDefinedFunction(fn *jsoniq.Function, loc jsoniq.Loc) error {
	r := d.registry()
	if r.builtins.IsBuiltin(fn.ID) {
		return jsoniq.NewError(jsoniq.DuplicateFunction, loc, "function %s collides with a builtin function", fn.ID)
	}
	if _, ok := r.functions[fn.ID]; ok {
		return jsoniq.NewError(jsoniq.DuplicateFunction, loc, "function %s is already declared", fn.ID)
	}
	if len(fn.Params) != fn.ID.Arity {
		return jsoniq.NewError(jsoniq.UnexpectedType, loc, "function %s declares %d parameters", fn.ID, len(fn.Params))
	}
	r.functions[fn.ID] = fn.Copy()
	return nil
}

func (d *DynamicContext) HasUserDefinedFunction(id jsoniq.FunctionIdentifier) bool {
	_, ok := d.registry().functions[id]
	return ok
}

// UserDefinedFunction returns a copy of the function registered as id.
func (d *DynamicContext) UserDefinedFunction(id jsoniq.FunctionIdentifier, loc jsoniq.Loc) (*jsoniq.Function, error) {
	fn, ok := d.registry().functions[id]
	if !ok {
		return nil, jsoniq.NewError(jsoniq.UnknownFunctionCall, loc, "function %s is not declared", id)
	}
	return fn.Copy(), nil
}

// UserDefinedFunctionCallIterator returns an iterator calling the function
// registered as id with args.  The result is checked against the declared
// return type unless it is item*.
func (d *DynamicContext) UserDefinedFunctionCallIterator(id jsoniq.FunctionIdentifier, args []Iterator, loc jsoniq.Loc) (Iterator, error) {
	fn, err := d.UserDefinedFunction(id, loc)
	if err != nil {
		return nil, err
	}
	call, err := NewCall(fn, args, loc)
	if err != nil {
		return nil, err
	}
	if fn.Signature.Return.IsAnySequence() {
		return call, nil
	}
	return NewTreat(call, fn.Signature.Return, fn.ID, loc), nil
}
