package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// QueryFilter maps a metadata field to its constraint. Fields are combined
// conjunctively; fields not present in the filter are unconstrained.
type QueryFilter map[string]FieldFilter

// FieldFilter is either a set of accepted values (any-of) or a numeric range.
type FieldFilter struct {
	Values []string
	Range  *Range
}

// Range is a numeric interval; nil bounds are open.
type Range struct {
	Gte *float64 `json:"gte,omitempty"`
	Gt  *float64 `json:"gt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
}

// Eq is a FieldFilter accepting any of the given values.
func Eq(values ...string) FieldFilter {
	return FieldFilter{Values: values}
}

// Between is a FieldFilter accepting numbers in [lo, hi].
func Between(lo, hi float64) FieldFilter {
	return FieldFilter{Range: &Range{Gte: &lo, Lte: &hi}}
}

// Empty reports whether the filter constrains nothing.
func (f QueryFilter) Empty() bool { return len(f) == 0 }

// Fields returns the constrained field names in sorted order.
func (f QueryFilter) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ArticleLevel drops the constraints on chunk-level fields, leaving the
// part of the filter that a per-article metadata index can answer.
func (f QueryFilter) ArticleLevel() QueryFilter {
	out := make(QueryFilter, len(f))
	for k, ff := range f {
		if !IsChunkField(k) {
			out[k] = ff
		}
	}
	return out
}

// Validate rejects field filters with neither values nor bounds.
func (f QueryFilter) Validate() error {
	for _, k := range f.Fields() {
		ff := f[k]
		if k == "" {
			return fmt.Errorf("%w: filter field name is empty", ErrMalformedInput)
		}
		if len(ff.Values) == 0 && ff.Range == nil {
			return fmt.Errorf("%w: filter on %q has no values", ErrMalformedInput, k)
		}
		if ff.Range != nil && ff.Range.Gte == nil && ff.Range.Gt == nil && ff.Range.Lte == nil && ff.Range.Lt == nil {
			return fmt.Errorf("%w: range filter on %q has no bounds", ErrMalformedInput, k)
		}
	}
	return nil
}

// Matches evaluates the filter against a field lookup. A record missing a
// constrained field does not match.
func (f QueryFilter) Matches(lookup func(field string) (interface{}, bool)) bool {
	for field, ff := range f {
		v, ok := lookup(field)
		if !ok || !ff.Match(v) {
			return false
		}
	}
	return true
}

// Match reports whether any scalar element of v satisfies the field filter.
func (ff FieldFilter) Match(v interface{}) bool {
	for _, s := range Scalars(v) {
		if ff.matchScalar(s) {
			return true
		}
	}
	return false
}

func (ff FieldFilter) matchScalar(v interface{}) bool {
	if ff.Range != nil {
		n, ok := ToFloat(v)
		if !ok || !ff.Range.Contains(n) {
			return false
		}
		if len(ff.Values) == 0 {
			return true
		}
	}
	s := FormatValue(v)
	for _, want := range ff.Values {
		if s == want {
			return true
		}
		if n, ok := ToFloat(v); ok {
			if w, ok := ToFloat(want); ok && n == w {
				return true
			}
		}
	}
	return false
}

// Contains reports whether n lies within the range.
func (r *Range) Contains(n float64) bool {
	if r.Gte != nil && n < *r.Gte {
		return false
	}
	if r.Gt != nil && n <= *r.Gt {
		return false
	}
	if r.Lte != nil && n > *r.Lte {
		return false
	}
	if r.Lt != nil && n >= *r.Lt {
		return false
	}
	return true
}

// UnmarshalJSON accepts a scalar, an array of scalars, or a range object.
func (ff *FieldFilter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*ff = FieldFilter{}
		return nil
	}
	switch data[0] {
	case '{':
		var r Range
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("range filter: %w", err)
		}
		*ff = FieldFilter{Range: &r}
		return nil
	case '[':
		var raw []interface{}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		vals := make([]string, 0, len(raw))
		for _, v := range raw {
			vals = append(vals, FormatValue(v))
		}
		*ff = FieldFilter{Values: vals}
		return nil
	default:
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*ff = FieldFilter{Values: []string{FormatValue(v)}}
		return nil
	}
}

// MarshalJSON writes the compact form: scalar for one value, array for many, object for a range.
func (ff FieldFilter) MarshalJSON() ([]byte, error) {
	if ff.Range != nil {
		return json.Marshal(ff.Range)
	}
	if len(ff.Values) == 1 {
		return json.Marshal(ff.Values[0])
	}
	return json.Marshal(ff.Values)
}
