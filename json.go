package jsoniq

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseJSON parses a single JSON value.  Integral numbers become Integer,
// numbers with a fraction become Decimal and numbers with an exponent
// become Double.
func ParseJSON(text string) (Item, error) {
	items, err := ParseJSONSequence(text)
	if err != nil {
		return nil, err
	}
	if len(items) != 1 {
		return nil, fmt.Errorf("expected one JSON value, found %d", len(items))
	}
	return items[0], nil
}

// ParseJSONSequence parses a stream of whitespace-separated JSON values.
func ParseJSONSequence(text string) ([]Item, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var items []Item
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		item, err := parseValue(dec, tok)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

func parseValue(dec *json.Decoder, tok json.Token) (Item, error) {
	switch tok := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Boolean(tok), nil
	case string:
		return String(tok), nil
	case json.Number:
		return parseNumber(string(tok))
	case json.Delim:
		switch tok {
		case '[':
			arr := NewArray()
			for dec.More() {
				t, err := dec.Token()
				if err != nil {
					return nil, err
				}
				member, err := parseValue(dec, t)
				if err != nil {
					return nil, err
				}
				arr.Members = append(arr.Members, member)
			}
			_, err := dec.Token()
			return arr, err
		case '{':
			obj := NewObject()
			for dec.More() {
				t, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := t.(string)
				if !ok {
					return nil, errors.New("object key is not a string")
				}
				if t, err = dec.Token(); err != nil {
					return nil, err
				}
				value, err := parseValue(dec, t)
				if err != nil {
					return nil, err
				}
				obj.Add(key, value)
			}
			_, err := dec.Token()
			return obj, err
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

func parseNumber(s string) (Item, error) {
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return Double(f), nil
	}
	if strings.Contains(s, ".") {
		return ParseDecimal(s)
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Integers beyond int64 range are kept exact as decimals.
		return ParseDecimal(s)
	}
	return Integer(i), nil
}

// parseZoned parses s with layout followed by an optional timezone.
func parseZoned(layout, s string) (time.Time, error) {
	if t, err := time.Parse(layout+"Z07:00", s); err == nil {
		return t, nil
	}
	return time.Parse(layout, s)
}

// ParseTemporal parses the lexical form of a date, dateTime or time.
// DateTimes that are not RFC 3339 are parsed leniently.
func ParseTemporal(kind TypeID, s string) (Temporal, error) {
	switch kind {
	case IDDate:
		t, err := parseZoned("2006-01-02", s)
		if err != nil {
			return Temporal{}, err
		}
		return NewDate(t), nil
	case IDTime:
		t, err := parseZoned("15:04:05.999999999", s)
		if err != nil {
			return Temporal{}, err
		}
		return NewTime(t), nil
	case IDDateTime:
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return NewDateTime(t), nil
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return Temporal{}, err
		}
		return NewDateTime(t), nil
	}
	return Temporal{}, fmt.Errorf("%s is not a temporal type", kind)
}
