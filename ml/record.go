package ml

import (
	"math"
	"strconv"
	"strings"

	"churnform/schema"
)

// Value is one scalar captured from a submitted form.
type Value struct {
	kind schema.Kind
	num  float64
	text string
}

func Number(v float64) Value {
	return Value{kind: schema.KindNumber, num: v}
}

func Text(s string) Value {
	return Value{kind: schema.KindText, text: s}
}

func YesNo(yes bool) Value {
	if yes {
		return Value{kind: schema.KindYesNo, num: 1}
	}
	return Value{kind: schema.KindYesNo, num: 0}
}

func (v Value) Kind() schema.Kind {
	return v.kind
}

// Float returns the numeric form of v. Text is parsed; the second result is false
// when that fails or the number is not finite.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case schema.KindNumber, schema.KindYesNo:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return 0, false
		}
		return v.num, true
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
}

// String renders v the way it is persisted: yes/no as 1/0, numbers in their
// shortest form, text verbatim.
func (v Value) String() string {
	switch v.kind {
	case schema.KindNumber, schema.KindYesNo:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return v.text
	}
}

type Field struct {
	Name  string
	Value Value
}

// Record is the ordered, immutable capture of one submission.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord builds a record. A repeated name keeps its first position and takes the
// last value.
func NewRecord(fields ...Field) Record {
	r := Record{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if pos, ok := r.index[f.Name]; ok {
			r.fields[pos].Value = f.Value
			continue
		}
		r.index[f.Name] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r
}

func (r Record) Len() int {
	return len(r.fields)
}

func (r Record) Get(name string) (Value, bool) {
	pos, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[pos].Value, true
}

// Keys returns the field names in capture order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Name
	}
	return keys
}

func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Strings returns the persisted form of every value in capture order.
func (r Record) Strings() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Value.String()
	}
	return out
}
