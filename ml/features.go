package ml

import (
	"strconv"
	"strings"

	"churnform/schema"
)

// FeatureVector is an encoded record, aligned to the registry's column order.
type FeatureVector struct {
	Columns []string
	Values  []float64
}

func (v FeatureVector) Len() int {
	return len(v.Values)
}

// Key identifies the vector's content.
func (v FeatureVector) Key() string {
	var b strings.Builder
	for i, value := range v.Values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	}
	return b.String()
}

// Encoder turns records into feature vectors. It never fails: unmapped labels, bad
// numeric text and missing fields all degrade to defaults.
type Encoder struct {
	registry *schema.Registry
}

func NewEncoder(registry *schema.Registry) *Encoder {
	return &Encoder{registry: registry}
}

func (e *Encoder) Registry() *schema.Registry {
	return e.registry
}

func (e *Encoder) Encode(record Record) FeatureVector {
	encoded := make(map[string]float64, record.Len())
	for _, field := range record.Fields() {
		if value, ok := e.encodeValue(field.Name, field.Value); ok {
			encoded[field.Name] = value
		}
	}

	columns := e.registry.ExpectedFeatures()
	values := make([]float64, len(columns))
	for i, name := range columns {
		if value, ok := encoded[name]; ok {
			values[i] = value
			continue
		}
		d, _ := e.registry.Descriptor(name)
		values[i] = d.Default
	}
	return FeatureVector{Columns: columns, Values: values}
}

func (e *Encoder) encodeValue(name string, value Value) (float64, bool) {
	if e.registry.IsCategorical(name) {
		return float64(e.registry.CategoryCode(name, value.String())), true
	}
	return value.Float()
}
