package semantic_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/compiler/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	one      = jsoniq.NewSequenceType(jsoniq.IDInteger, jsoniq.ArityOne)
	optional = jsoniq.NewSequenceType(jsoniq.IDString, jsoniq.ArityZeroOrOne)
	many     = jsoniq.NewSequenceType(jsoniq.IDItem, jsoniq.ArityZeroOrMore)
)

func TestVariableLookupWalksParents(t *testing.T) {
	module := semantic.NewModuleContext()
	x := jsoniq.NewName("x")
	module.AddVariable(x, one, jsoniq.NewLoc(1, 5), jsoniq.ModeLocal)
	inner := semantic.NewStaticContext(semantic.NewStaticContext(module))
	assert.True(t, inner.HasVariable(x))
	typ, err := inner.VariableSequenceType(x, jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, one, typ)
	loc, err := inner.VariableLoc(x)
	require.NoError(t, err)
	assert.Equal(t, jsoniq.NewLoc(1, 5), loc)

	inner.AddVariable(x, many, jsoniq.Loc{}, jsoniq.ModeRDD)
	mode, err := inner.VariableStorageMode(x, jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, jsoniq.ModeRDD, mode)
	mode, err = module.VariableStorageMode(x, jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, jsoniq.ModeLocal, mode)
}

func TestUndeclaredVariable(t *testing.T) {
	module := semantic.NewModuleContext()
	module.AddVariable(jsoniq.NewName("price"), one, jsoniq.Loc{}, jsoniq.ModeLocal)
	_, err := module.VariableSequenceType(jsoniq.NewName("prices"), jsoniq.NewLoc(2, 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, jsoniq.UndeclaredVariable))
	assert.Contains(t, err.Error(), "did you mean $price?")
	assert.Contains(t, err.Error(), "at line 2, column 3")
}

func TestNamespacesFirstWins(t *testing.T) {
	module := semantic.NewModuleContext()
	uri, err := module.ResolveNamespace("local", jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, jsoniq.LocalFunctionsNamespace, uri)
	assert.False(t, module.BindNamespace("local", "urn:other"))

	child := semantic.NewStaticContext(module)
	assert.True(t, child.BindNamespace("local", "urn:other"))
	assert.True(t, child.BindNamespace("ex", "urn:ex"))
	assert.False(t, child.BindNamespace("ex", "urn:ex2"))
	name, err := child.ResolveQName("ex:f", jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, jsoniq.NewQName("urn:ex", "f"), name)
	uri, err = child.ResolveNamespace("local", jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, "urn:other", uri)

	_, err = module.ResolveNamespace("ex", jsoniq.Loc{})
	assert.True(t, errors.Is(err, jsoniq.UnboundPrefix))
}

func TestFunctionSignatures(t *testing.T) {
	module := semantic.NewModuleContext()
	id := jsoniq.NewFunctionIdentifier(jsoniq.NewQName(jsoniq.LocalFunctionsNamespace, "f"), 1)
	sig := jsoniq.FunctionSignature{Params: []jsoniq.SequenceType{one}, Return: many}
	module.AddFunctionSignature(id, sig)
	child := semantic.NewStaticContext(module)
	got, err := child.FunctionSignature(id, jsoniq.Loc{})
	require.NoError(t, err)
	assert.Equal(t, sig, got)
	_, err = child.FunctionSignature(jsoniq.NewFunctionIdentifier(id.Name, 2), jsoniq.Loc{})
	assert.True(t, errors.Is(err, jsoniq.UnknownFunctionCall))
}

func TestModuleOnlySettings(t *testing.T) {
	module := semantic.NewModuleContext()
	child := semantic.NewStaticContext(module)
	assert.True(t, child.EmptySequenceOrderLeast())
	module.SetEmptySequenceOrderLeast(false)
	assert.False(t, child.EmptySequenceOrderLeast())
	assert.Panics(t, func() { child.SetEmptySequenceOrderLeast(true) })

	id := jsoniq.NewFunctionIdentifier(jsoniq.NewName("f"), 0)
	modes := map[jsoniq.FunctionIdentifier]jsoniq.ExecutionMode{id: jsoniq.ModeDataFrame}
	assert.Panics(t, func() { child.SetUserDefinedFunctionsExecutionModes(modes) })
	module.SetUserDefinedFunctionsExecutionModes(modes)
	assert.Equal(t, jsoniq.ModeDataFrame, child.UserDefinedFunctionExecutionMode(id))
	assert.Equal(t, jsoniq.ModeUnset, child.UserDefinedFunctionExecutionMode(jsoniq.NewFunctionIdentifier(jsoniq.NewName("g"), 0)))
}

func TestImportModuleContext(t *testing.T) {
	lib := semantic.NewModuleContext()
	mine := jsoniq.NewQName("urn:lib", "v")
	other := jsoniq.NewQName("urn:else", "w")
	lib.AddVariable(mine, one, jsoniq.Loc{}, jsoniq.ModeLocal)
	lib.AddVariable(other, one, jsoniq.Loc{}, jsoniq.ModeLocal)
	fid := jsoniq.NewFunctionIdentifier(jsoniq.NewQName("urn:lib", "f"), 0)
	lib.AddFunctionSignature(fid, jsoniq.FunctionSignature{Return: many})

	main := semantic.NewModuleContext()
	main.ImportModuleContext(semantic.NewStaticContext(lib), "urn:lib")
	assert.True(t, main.HasVariable(mine))
	assert.False(t, main.HasVariable(other))
	_, err := main.FunctionSignature(fid, jsoniq.Loc{})
	assert.NoError(t, err)
}

func TestIncrementArities(t *testing.T) {
	module := semantic.NewModuleContext()
	global := jsoniq.NewName("global")
	module.AddVariable(global, one, jsoniq.Loc{}, jsoniq.ModeLocal)
	outer := semantic.NewStaticContext(module)
	a, b, key := jsoniq.NewName("a"), jsoniq.NewName("b"), jsoniq.NewName("key")
	outer.AddVariable(a, one, jsoniq.Loc{}, jsoniq.ModeLocal)
	outer.AddVariable(key, one, jsoniq.Loc{}, jsoniq.ModeLocal)
	inner := semantic.NewStaticContext(outer)
	inner.AddVariable(b, optional, jsoniq.Loc{}, jsoniq.ModeLocal)

	inner.IncrementArities(module, []jsoniq.Name{key})

	check := func(name jsoniq.Name, expected string) {
		typ, err := inner.VariableSequenceType(name, jsoniq.Loc{})
		require.NoError(t, err)
		assert.Equal(t, expected, typ.String(), name.String())
	}
	check(a, "integer+")
	check(b, "string*")
	check(key, "integer")
	check(global, "integer")
}

func TestString(t *testing.T) {
	module := semantic.NewModuleContext()
	module.AddVariable(jsoniq.NewName("x"), one, jsoniq.Loc{}, jsoniq.ModeLocal)
	s := semantic.NewStaticContext(module).String()
	assert.True(t, strings.HasPrefix(s, "scope 0\n"))
	assert.Contains(t, s, "$x as integer (local)")
	assert.Contains(t, s, "local = "+jsoniq.LocalFunctionsNamespace)
}
