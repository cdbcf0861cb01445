package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindEmpty ValueKind = iota
	KindNumber
	KindText
)

// Value is a single decoded cell.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

var Empty = Value{}

// Number wraps a finite float. NaN and the infinities have no place in the
// ordering and come back as Empty.
func Number(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Empty
	}
	return Value{kind: KindNumber, num: n}
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// NumberCell converts the raw text of a cell Excel stores as a number.
// Blank text is Empty; text that is not a finite float stays Text.
func NumberCell(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Empty
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return Text(raw)
	}
	return Number(n)
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String is the form sent over the wire.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// MarshalJSON writes numbers as JSON numbers and everything else as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.String())
}

// Compare orders Empty < Number < Text. Numbers compare numerically, text
// lexically. Empty doubles as "missing", so absent fields sort first. Number
// never holds NaN, which keeps the order total.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindText:
		return strings.Compare(a.text, b.text)
	default:
		return 0
	}
}

// Row maps column names to cell values.
type Row map[string]Value

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns Empty for missing columns.
func (r Row) Get(column string) Value {
	return r[column]
}

func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// KeyedRows is the accumulation unit: dense integer keys to rows.
type KeyedRows map[int]Row
