package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/brimdata/jsoniq"
)

// VariablePrefix starts the column name of every variable so that no
// variable column can shadow rowid, oid or _rowid_.
const VariablePrefix = "$"

func EncodeName(name jsoniq.Name) string {
	return name.String()
}

func DecodeName(s string) (jsoniq.Name, error) {
	name, ok := jsoniq.ParseName(s)
	if !ok {
		return jsoniq.Name{}, fmt.Errorf("invalid encoded name %q", s)
	}
	return name, nil
}

// EncodeVariable returns the column name used for a variable in a table.
func EncodeVariable(name jsoniq.Name) string {
	return VariablePrefix + EncodeName(name)
}

func DecodeVariable(column string) (jsoniq.Name, error) {
	s, ok := strings.CutPrefix(column, VariablePrefix)
	if !ok {
		return jsoniq.Name{}, fmt.Errorf("column %q holds no variable", column)
	}
	return DecodeName(s)
}

func EncodeIdentifier(id jsoniq.FunctionIdentifier) string {
	return id.String()
}

func DecodeIdentifier(s string) (jsoniq.FunctionIdentifier, error) {
	i := strings.LastIndexByte(s, '#')
	if i < 0 {
		return jsoniq.FunctionIdentifier{}, fmt.Errorf("invalid encoded function identifier %q", s)
	}
	arity, err := strconv.Atoi(s[i+1:])
	if err != nil || arity < 0 {
		return jsoniq.FunctionIdentifier{}, fmt.Errorf("invalid arity in function identifier %q", s)
	}
	name, err := DecodeName(s[:i])
	if err != nil {
		return jsoniq.FunctionIdentifier{}, err
	}
	return jsoniq.NewFunctionIdentifier(name, arity), nil
}

type signature struct {
	V      int      `json:"v"`
	Params []string `json:"params"`
	Return string   `json:"return"`
}

func EncodeSignature(sig jsoniq.FunctionSignature) (string, error) {
	out := signature{V: Version, Params: make([]string, 0, len(sig.Params)), Return: sig.Return.String()}
	for _, p := range sig.Params {
		out.Params = append(out.Params, p.String())
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func DecodeSignature(s string) (jsoniq.FunctionSignature, error) {
	var in signature
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return jsoniq.FunctionSignature{}, err
	}
	if in.V != Version {
		return jsoniq.FunctionSignature{}, fmt.Errorf("%w: %d", ErrVersion, in.V)
	}
	var sig jsoniq.FunctionSignature
	for _, p := range in.Params {
		st, err := jsoniq.ParseSequenceType(p)
		if err != nil {
			return jsoniq.FunctionSignature{}, err
		}
		sig.Params = append(sig.Params, st)
	}
	ret, err := jsoniq.ParseSequenceType(in.Return)
	if err != nil {
		return jsoniq.FunctionSignature{}, err
	}
	sig.Return = ret
	return sig, nil
}
