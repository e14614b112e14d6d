package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// DefaultMaxSize is the parse budget used when Parser.MaxSize is zero.
const DefaultMaxSize = 2048

var (
	// ErrTooLarge is returned for input that exceeds the parse budget.
	ErrTooLarge = errors.New("sensor: payload exceeds parse budget")
	// ErrMalformed is wrapped by every syntax or shape failure.
	ErrMalformed = errors.New("sensor: malformed json object")
)

type parseError struct {
	reason string
}

func (e *parseError) Error() string { return ErrMalformed.Error() + ": " + e.reason }

func (e *parseError) Unwrap() error { return ErrMalformed }

// Parser decodes sensor records from JSON text with a fixed size budget.
type Parser struct {
	// MaxSize is the largest input, in bytes, the parser will attempt.
	MaxSize int
}

// Parse decodes s into a Record. On failure the zero Record is returned along
// with the error, so the result is never marked Valid.
//
// Each recognised key overwrites its field only if present. Values are
// coerced to the field's type without checking the JSON type: numbers are
// truncated for integer fields, booleans count as 1 and 0, numeric strings
// are parsed, and anything else reads as zero.
func (p Parser) Parse(s string) (Record, error) {
	max := p.MaxSize
	if max <= 0 {
		max = DefaultMaxSize
	}
	if len(s) > max {
		return Record{}, ErrTooLarge
	}

	// Only the first value is read. Anything after the object is ignored.
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(strings.NewReader(s)).Decode(&doc); err != nil {
		return Record{}, &parseError{reason: err.Error()}
	}
	if doc == nil {
		// The literal null unmarshals into a nil map without error.
		return Record{}, &parseError{reason: "not an object"}
	}

	var rec Record
	if raw, ok := doc[KeyCO2]; ok {
		rec.CO2Level = coerceInt(raw)
	}
	if raw, ok := doc[KeyComfortIndex]; ok {
		rec.ComfortIndex = float32(coerceFloat(raw))
	}
	if raw, ok := doc[KeyTemperature]; ok {
		rec.Temperature = float32(coerceFloat(raw))
	}
	if raw, ok := doc[KeyHumidity]; ok {
		rec.Humidity = float32(coerceFloat(raw))
	}
	if raw, ok := doc[KeyComfortLevel]; ok {
		rec.ComfortDescription = coerceString(raw)
	}
	if raw, ok := doc[KeyTimestamp]; ok {
		rec.Timestamp = coerceUint(raw)
	}
	rec.Valid = true
	return rec, nil
}

// scalar returns the textual scalar held by raw: the contents of a string,
// "1"/"0" for booleans, the literal for numbers, and "" for anything else.
func scalar(raw json.RawMessage) string {
	lit := strings.TrimSpace(string(raw))
	switch {
	case lit == "true":
		return "1"
	case lit == "false", lit == "null":
		return "0"
	case strings.HasPrefix(lit, `"`):
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return ""
		}
		return strings.TrimSpace(str)
	case strings.HasPrefix(lit, "{"), strings.HasPrefix(lit, "["):
		return ""
	}
	return lit
}

func coerceFloat(raw json.RawMessage) float64 {
	f, err := strconv.ParseFloat(scalar(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func coerceInt(raw json.RawMessage) int {
	lit := scalar(raw)
	if n, err := strconv.ParseInt(lit, 10, strconv.IntSize); err == nil {
		return int(n)
	}
	f := coerceFloat(raw)
	if f <= math.MinInt || f >= math.MaxInt {
		return 0
	}
	return int(f)
}

func coerceUint(raw json.RawMessage) uint64 {
	lit := scalar(raw)
	if n, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return n
	}
	f := coerceFloat(raw)
	if f <= 0 || f >= math.MaxUint64 {
		return 0
	}
	return uint64(f)
}

func coerceString(raw json.RawMessage) string {
	lit := bytes.TrimSpace(raw)
	if len(lit) > 0 && lit[0] == '"' {
		var str string
		if err := json.Unmarshal(lit, &str); err == nil {
			return str
		}
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, lit); err != nil {
		return string(lit)
	}
	return buf.String()
}
