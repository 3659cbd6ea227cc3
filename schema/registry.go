package schema

import (
	"errors"
	"fmt"
)

// DefaultCode is returned for labels the registry has never seen.
const DefaultCode = 0

// Registry is the column layout of the loaded classifier plus the label-to-code
// tables of its categorical fields. It is built once at startup and never mutated.
type Registry struct {
	features    []string
	descriptors map[string]Descriptor
	codes       map[string]map[string]int
	labels      map[string][]string
}

// NewRegistry builds a registry for the ordered feature list the classifier reports.
// Descriptors come from catalog; features the catalog does not know are plain
// numbers defaulting to zero. Tables are applied in order, so labels from an earlier
// table keep their codes when a later one repeats them. Codes start at 1.
func NewRegistry(features []string, catalog []Descriptor, tables ...Table) (*Registry, error) {
	if len(features) == 0 {
		return nil, errors.New("feature list is empty")
	}

	r := &Registry{
		features:    make([]string, len(features)),
		descriptors: make(map[string]Descriptor, len(catalog)),
		codes:       make(map[string]map[string]int),
		labels:      make(map[string][]string),
	}

	seen := make(map[string]struct{}, len(features))
	for i, name := range features {
		if name == "" {
			return nil, fmt.Errorf("feature %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate feature %q", name)
		}
		seen[name] = struct{}{}
		r.features[i] = name
	}

	for _, d := range catalog {
		r.descriptors[d.Name] = d
		if d.Categorical {
			r.codes[d.Name] = make(map[string]int)
			r.labels[d.Name] = make([]string, 0)
		}
	}

	for _, table := range tables {
		codes, ok := r.codes[table.Field]
		if !ok {
			continue
		}
		for _, label := range table.Labels {
			label = normalizeLabel(label)
			if label == "" {
				continue
			}
			if _, exists := codes[label]; exists {
				continue
			}
			r.labels[table.Field] = append(r.labels[table.Field], label)
			codes[label] = len(r.labels[table.Field])
		}
	}

	return r, nil
}

// ExpectedFeatures returns the classifier's column order.
func (r *Registry) ExpectedFeatures() []string {
	out := make([]string, len(r.features))
	copy(out, r.features)
	return out
}

// Len is the number of expected features.
func (r *Registry) Len() int {
	return len(r.features)
}

// Descriptor returns the descriptor of name. Unknown names get a numeric descriptor.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	if d, ok := r.descriptors[name]; ok {
		return d, true
	}
	return Descriptor{Name: name, Kind: KindNumber}, false
}

// IsCategorical reports whether field is encoded through a category table.
func (r *Registry) IsCategorical(field string) bool {
	_, ok := r.codes[field]
	return ok
}

// CategoryCode maps label to its stable code for field. Unknown fields and unseen
// labels yield DefaultCode.
func (r *Registry) CategoryCode(field, label string) int {
	codes, ok := r.codes[field]
	if !ok {
		return DefaultCode
	}
	if code, ok := codes[normalizeLabel(label)]; ok {
		return code
	}
	return DefaultCode
}

// Categories returns the known labels of field in code order.
func (r *Registry) Categories(field string) []string {
	labels := r.labels[field]
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// CategoricalFields returns the categorical fields that are part of the feature layout.
func (r *Registry) CategoricalFields() []string {
	out := make([]string, 0)
	for _, name := range r.features {
		if r.IsCategorical(name) {
			out = append(out, name)
		}
	}
	return out
}
