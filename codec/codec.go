// Package codec defines the versioned text encoding of sequences and names
// that crosses the boundary to the distributed engine.  A sequence is
// encoded as a JSON envelope {"v":1,"s":[...]} whose items carry an explicit
// type tag, so every atomic type survives the trip exactly.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/brimdata/jsoniq"
)

const Version = 1

var (
	ErrFunctionItem = errors.New("function items cannot be encoded")
	ErrVersion      = errors.New("unsupported encoding version")
)

type envelope struct {
	V int    `json:"v"`
	S []node `json:"s"`
}

type node struct {
	T string  `json:"t"`
	V string  `json:"v,omitempty"`
	M int64   `json:"m,omitempty"`
	N int64   `json:"n,omitempty"`
	A []node  `json:"a,omitempty"`
	O []field `json:"o,omitempty"`
}

type field struct {
	K string `json:"k"`
	V node   `json:"v"`
}

// EncodeSequence returns the encoding of items.
func EncodeSequence(items []jsoniq.Item) (string, error) {
	env := envelope{V: Version, S: make([]node, 0, len(items))}
	for _, item := range items {
		n, err := encode(item)
		if err != nil {
			return "", err
		}
		env.S = append(env.S, n)
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsSequence reports whether s looks like an encoded sequence.
func IsSequence(s string) bool {
	return strings.HasPrefix(s, `{"v":`)
}

// DecodeSequence is the inverse of EncodeSequence.
func DecodeSequence(s string) ([]jsoniq.Item, error) {
	var env envelope
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return nil, fmt.Errorf("decoding sequence: %w", err)
	}
	if env.V != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, env.V)
	}
	items := make([]jsoniq.Item, 0, len(env.S))
	for _, n := range env.S {
		item, err := decode(n)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// DecodeCell decodes a sequence held in a table cell as returned by the
// engine's driver.
func DecodeCell(cell any) ([]jsoniq.Item, error) {
	switch cell := cell.(type) {
	case string:
		return DecodeSequence(cell)
	case []byte:
		return DecodeSequence(string(cell))
	case nil:
		return nil, errors.New("decoding sequence: null cell")
	}
	return nil, fmt.Errorf("decoding sequence: unexpected cell type %T", cell)
}

func encode(item jsoniq.Item) (node, error) {
	n := node{T: item.Type().String()}
	switch item := item.(type) {
	case jsoniq.Null:
	case jsoniq.Boolean, jsoniq.Integer, jsoniq.Decimal, jsoniq.String:
		n.V = item.String()
	case jsoniq.Float:
		n.V = formatFloat(float64(item), 32)
	case jsoniq.Double:
		n.V = formatFloat(float64(item), 64)
	case jsoniq.Duration:
		n.M, n.N = item.Months, item.Nanos
	case jsoniq.Temporal:
		n.V = item.Time.Format(time.RFC3339Nano)
	case *jsoniq.Array:
		n.A = make([]node, 0, len(item.Members))
		for _, m := range item.Members {
			mn, err := encode(m)
			if err != nil {
				return node{}, err
			}
			n.A = append(n.A, mn)
		}
	case *jsoniq.Object:
		n.O = make([]field, 0, item.Len())
		for _, k := range item.Keys() {
			v, _ := item.Get(k)
			vn, err := encode(v)
			if err != nil {
				return node{}, err
			}
			n.O = append(n.O, field{K: k, V: vn})
		}
	case *jsoniq.Function:
		return node{}, fmt.Errorf("%w: %s", ErrFunctionItem, item.ID)
	default:
		return node{}, fmt.Errorf("cannot encode item of type %T", item)
	}
	return n, nil
}

func decode(n node) (jsoniq.Item, error) {
	id, ok := jsoniq.LookupTypeID(n.T)
	if !ok {
		return nil, fmt.Errorf("decoding sequence: unknown type tag %q", n.T)
	}
	switch id {
	case jsoniq.IDNull:
		return jsoniq.Null{}, nil
	case jsoniq.IDBoolean:
		b, err := strconv.ParseBool(n.V)
		return jsoniq.Boolean(b), err
	case jsoniq.IDInteger:
		i, err := strconv.ParseInt(n.V, 10, 64)
		return jsoniq.Integer(i), err
	case jsoniq.IDDecimal:
		return jsoniq.ParseDecimal(n.V)
	case jsoniq.IDFloat:
		f, err := parseFloat(n.V, 32)
		return jsoniq.Float(f), err
	case jsoniq.IDDouble:
		f, err := parseFloat(n.V, 64)
		return jsoniq.Double(f), err
	case jsoniq.IDString:
		return jsoniq.String(n.V), nil
	case jsoniq.IDDuration, jsoniq.IDYearMonthDuration, jsoniq.IDDayTimeDuration:
		return jsoniq.Duration{Kind: id, Months: n.M, Nanos: n.N}, nil
	case jsoniq.IDDate, jsoniq.IDDateTime, jsoniq.IDTime:
		t, err := time.Parse(time.RFC3339Nano, n.V)
		if err != nil {
			return nil, err
		}
		return jsoniq.Temporal{Kind: id, Time: t}, nil
	case jsoniq.IDArray:
		arr := jsoniq.NewArray()
		for _, mn := range n.A {
			m, err := decode(mn)
			if err != nil {
				return nil, err
			}
			arr.Members = append(arr.Members, m)
		}
		return arr, nil
	case jsoniq.IDObject:
		obj := jsoniq.NewObject()
		for _, f := range n.O {
			v, err := decode(f.V)
			if err != nil {
				return nil, err
			}
			obj.Add(f.K, v)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("decoding sequence: cannot decode type %q", n.T)
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func parseFloat(s string, bits int) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, bits)
}
