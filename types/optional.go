/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"encoding/json"
	"maps"
	"slices"
)

// Presence is implemented by values that know whether the caller set them.
type Presence interface {
	IsSet() bool
	Interface() any
}

// Optional wraps a payload field and records whether it was set.
// Set-to-null is expressed with a pointer V and a nil value.
type Optional[V any] struct {
	value V
	set   bool
}

var _ Presence = Optional[int]{}

// Some returns an Optional holding v.
func Some[V any](v V) Optional[V] {
	return Optional[V]{value: v, set: true}
}

// None returns an unset Optional.
func None[V any]() Optional[V] {
	return Optional[V]{}
}

func (o Optional[V]) IsSet() bool { return o.set }

// Get returns the value and whether it was set.
func (o Optional[V]) Get() (V, bool) { return o.value, o.set }

// OrElse returns the value when set, def otherwise.
func (o Optional[V]) OrElse(def V) V {
	if o.set {
		return o.value
	}
	return def
}

func (o Optional[V]) Interface() any { return o.value }

// UnmarshalJSON marks the field as set, including for an explicit null.
func (o *Optional[V]) UnmarshalJSON(data []byte) error {
	o.set = true
	if string(data) == "null" {
		var zero V
		o.value = zero
		return nil
	}
	return json.Unmarshal(data, &o.value)
}

// IsZero reports whether the Optional is unset, which lets the omitzero
// JSON option drop it.
func (o Optional[V]) IsZero() bool { return !o.set }

// MarshalJSON writes an unset Optional as null, which decodes as set to null.
// Tag fields with omitzero to keep them absent instead:
//
//	Note Optional[*string] `json:"note,omitzero"`
func (o Optional[V]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// Change is one column assignment taken from a payload.
type Change struct {
	Column string
	Value  any
}

// Changes is the ordered set of assignments a payload explicitly carries.
type Changes []Change

// NewChanges returns an empty change set.
func NewChanges() Changes {
	return make(Changes, 0)
}

// Put appends the assignment only when v was set by the caller.
func (c Changes) Put(column string, v Presence) Changes {
	if v == nil || !v.IsSet() {
		return c
	}
	return append(c, Change{Column: column, Value: v.Interface()})
}

// Set appends an unconditional assignment.
func (c Changes) Set(column string, value any) Changes {
	return append(c, Change{Column: column, Value: value})
}

// Columns returns the assigned column names in order.
func (c Changes) Columns() []string {
	columns := make([]string, 0, len(c))
	for _, change := range c {
		columns = append(columns, change.Column)
	}
	return columns
}

func (c Changes) IsEmpty() bool { return len(c) == 0 }

// Changes lets a bare change set be used directly as a create/update payload.
func (c Changes) Changes() Changes { return c }

// ChangesFromMap builds a change set from a loosely-typed payload, ordered by
// column name.
func ChangesFromMap(m map[string]any) Changes {
	c := make(Changes, 0, len(m))
	for _, column := range slices.Sorted(maps.Keys(m)) {
		c = append(c, Change{Column: column, Value: m[column]})
	}
	return c
}
