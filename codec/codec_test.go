package codec_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/brimdata/jsoniq"
	"github.com/brimdata/jsoniq/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencePreservesTypes(t *testing.T) {
	dec, err := jsoniq.ParseDecimal("10.50")
	require.NoError(t, err)
	when := time.Date(2024, 3, 1, 12, 30, 0, 5, time.FixedZone("", 3600))
	obj := jsoniq.NewObject()
	obj.Add("b", jsoniq.String(""))
	obj.Add("a", jsoniq.NewArray(jsoniq.Integer(1), jsoniq.Null{}))
	in := []jsoniq.Item{
		jsoniq.Integer(-7),
		dec,
		jsoniq.Float(1.5),
		jsoniq.Double(math.Inf(-1)),
		jsoniq.True,
		jsoniq.NewYearMonthDuration(14),
		jsoniq.Duration{Kind: jsoniq.IDDuration, Months: 1, Nanos: int64(time.Hour)},
		jsoniq.NewDateTime(when),
		obj,
	}
	s, err := codec.EncodeSequence(in)
	require.NoError(t, err)
	assert.True(t, codec.IsSequence(s))
	out, err := codec.DecodeSequence(s)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].Type(), out[i].Type())
		assert.Equal(t, jsoniq.Serialize(in[i]), jsoniq.Serialize(out[i]))
	}
	assert.True(t, out[7].(jsoniq.Temporal).Time.Equal(when))
	assert.Equal(t, "10.5", out[1].String())
}

func TestDecodeCell(t *testing.T) {
	s, err := codec.EncodeSequence(nil)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1,"s":[]}`, s)
	items, err := codec.DecodeCell([]byte(s))
	require.NoError(t, err)
	assert.Empty(t, items)
	_, err = codec.DecodeCell(nil)
	assert.Error(t, err)
	_, err = codec.DecodeCell(int64(3))
	assert.Error(t, err)
}

func TestFunctionItemsRejected(t *testing.T) {
	fn := &jsoniq.Function{ID: jsoniq.NewFunctionIdentifier(jsoniq.NewName("f"), 0)}
	_, err := codec.EncodeSequence([]jsoniq.Item{fn})
	assert.True(t, errors.Is(err, codec.ErrFunctionItem))
}

func TestVersionChecked(t *testing.T) {
	_, err := codec.DecodeSequence(`{"v":2,"s":[]}`)
	assert.True(t, errors.Is(err, codec.ErrVersion))
}

func TestVariableColumns(t *testing.T) {
	for _, name := range []jsoniq.Name{jsoniq.NewName("rowid"), jsoniq.NewName("oid"), jsoniq.NewQName("urn:x", "_rowid_")} {
		column := codec.EncodeVariable(name)
		assert.NotEqual(t, "rowid", strings.ToLower(column))
		assert.True(t, strings.HasPrefix(column, "$"))
		got, err := codec.DecodeVariable(column)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
	_, err := codec.DecodeVariable("rowid")
	assert.Error(t, err)
}

func TestIdentifierAndSignature(t *testing.T) {
	id := jsoniq.NewFunctionIdentifier(jsoniq.NewQName("urn:x#y", "f"), 2)
	got, err := codec.DecodeIdentifier(codec.EncodeIdentifier(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
	_, err = codec.DecodeIdentifier("f#two")
	assert.Error(t, err)

	sig := jsoniq.FunctionSignature{
		Params: []jsoniq.SequenceType{
			jsoniq.NewSequenceType(jsoniq.IDInteger, jsoniq.ArityOne),
			jsoniq.AnySequence,
		},
		Return: jsoniq.NewSequenceType(jsoniq.IDString, jsoniq.ArityZeroOrOne),
	}
	s, err := codec.EncodeSignature(sig)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1,"params":["integer","item*"],"return":"string?"}`, s)
	back, err := codec.DecodeSignature(s)
	require.NoError(t, err)
	assert.Equal(t, sig, back)
}
