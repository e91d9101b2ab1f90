package reconcile

import (
	"reflect"
)

// Differ reports which tracked fields of an entity changed between two
// observations. Every exported top-level field is tracked unless ignored.
type Differ struct {
	ignoreFields map[string]bool
}

// DifferOption is a functional option for configuring a Differ.
type DifferOption func(*Differ)

// WithIgnoredFields excludes fields, by Go field name, from comparison.
func WithIgnoredFields(fields ...string) DifferOption {
	return func(d *Differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// NewDiffer creates a Differ.
func NewDiffer(opts ...DifferOption) *Differ {
	d := &Differ{ignoreFields: make(map[string]bool)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fields returns the names of the tracked fields that differ. Non-struct
// values are compared as a whole and reported as "value".
func (d *Differ) Fields(existing, updated any) []string {
	ev := reflect.Indirect(reflect.ValueOf(existing))
	uv := reflect.Indirect(reflect.ValueOf(updated))
	if ev.Kind() != reflect.Struct || ev.Type() != uv.Type() {
		if reflect.DeepEqual(existing, updated) {
			return nil
		}
		return []string{"value"}
	}

	var changed []string
	t := ev.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || d.ignoreFields[field.Name] {
			continue
		}
		if !reflect.DeepEqual(ev.Field(i).Interface(), uv.Field(i).Interface()) {
			changed = append(changed, field.Name)
		}
	}
	return changed
}
