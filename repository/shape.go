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

package repository

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var shapes sync.Map // *schema.Table -> *Shape[T]

// Field is one persisted column of a record with its accessor and mutator.
type Field struct {
	Name   string       // column name, e.g. author_id
	GoName string       // struct field name, e.g. AuthorID
	Type   reflect.Type // indirect Go type of the column
	IsPK   bool

	field *schema.Field
}

// IsText reports whether the column holds a string and can be searched.
func (f *Field) IsText() bool {
	return f.Type.Kind() == reflect.String
}

func (f *Field) get(strct reflect.Value) any {
	return f.field.Value(strct).Interface()
}

func (f *Field) set(strct reflect.Value, value any) error {
	fv := f.field.Value(strct)
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		if v.Type().AssignableTo(fv.Type()) {
			fv.Set(v)
			return nil
		}
		v = v.Elem()
	}

	cv, err := coerce(v.Interface(), f.Type)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFieldType, f.Name, err)
	}
	if fv.Kind() == reflect.Ptr {
		p := reflect.New(f.Type)
		p.Elem().Set(cv)
		fv.Set(p)
		return nil
	}
	fv.Set(cv)
	return nil
}

// Shape is the field and relation registry of a record type, built once per
// Bun table from the struct tags and shared by every repository of that type.
type Shape[T any] struct {
	table     *schema.Table
	pk        *Field
	fields    []*Field
	byName    map[string]*Field
	relations sync.Map // resolved name -> canonical Bun relation path
}

// ShapeOf returns the cached shape of T for the dialect of db. It panics if T
// is not a Bun model with a single integer primary key.
func ShapeOf[T any](db bun.IDB) *Shape[T] {
	table := db.Dialect().Tables().Get(reflect.TypeFor[T]())
	if v, ok := shapes.Load(table); ok {
		return v.(*Shape[T])
	}
	v, _ := shapes.LoadOrStore(table, newShape[T](table))
	return v.(*Shape[T])
}

func newShape[T any](table *schema.Table) *Shape[T] {
	if len(table.PKs) != 1 || !isInteger(table.PKs[0].IndirectType.Kind()) {
		panic(fmt.Errorf("repository: %s must have a single integer primary key", table.TypeName))
	}

	s := &Shape[T]{
		table:  table,
		fields: make([]*Field, 0, len(table.Fields)),
		byName: make(map[string]*Field, len(table.Fields)*2),
	}
	for _, sf := range table.Fields {
		f := &Field{
			Name:   sf.Name,
			GoName: sf.GoName,
			Type:   sf.IndirectType,
			IsPK:   sf.IsPK,
			field:  sf,
		}
		if f.IsPK {
			s.pk = f
		}
		s.fields = append(s.fields, f)
		s.byName[f.Name] = f
	}
	for _, f := range s.fields {
		if _, ok := s.byName[f.GoName]; !ok {
			s.byName[f.GoName] = f
		}
	}
	return s
}

// Table returns the underlying Bun table.
func (s *Shape[T]) Table() *schema.Table { return s.table }

// PK returns the identifier field.
func (s *Shape[T]) PK() *Field { return s.pk }

// Fields returns the persisted columns in declaration order.
func (s *Shape[T]) Fields() []*Field { return s.fields }

// Field looks up a column by column name or, failing that, struct field name.
func (s *Shape[T]) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Relation resolves a relation name, optionally dotted ("Author.Books"), to
// the path Bun expects. Segments match the struct field name or the tag name,
// case-insensitively.
func (s *Shape[T]) Relation(name string) (string, bool) {
	if v, ok := s.relations.Load(name); ok {
		return v.(string), true
	}
	// only resolved names are cached
	path := resolveRelation(s.table, name)
	if path == "" {
		return "", false
	}
	s.relations.Store(name, path)
	return path, true
}

// Get reads a column of record.
func (s *Shape[T]) Get(record *T, column string) (any, bool) {
	f, ok := s.Field(column)
	if !ok {
		return nil, false
	}
	return f.get(reflect.ValueOf(record).Elem()), true
}

// Set assigns value to a column of record, converting between compatible
// kinds. A nil value, or a nil pointer, stores the zero value.
func (s *Shape[T]) Set(record *T, column string, value any) error {
	f, ok := s.Field(column)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, s.table.TypeName, column)
	}
	return f.set(reflect.ValueOf(record).Elem(), value)
}

// ID returns the identifier of record.
func (s *Shape[T]) ID(record *T) int64 {
	v := reflect.Indirect(s.pk.field.Value(reflect.ValueOf(record).Elem()))
	if !v.IsValid() {
		return 0
	}
	if isUnsigned(v.Kind()) {
		return int64(v.Uint())
	}
	return v.Int()
}

// New returns a zero record carrying only the given identifier.
func (s *Shape[T]) New(id int64) *T {
	record := new(T)
	_ = s.pk.set(reflect.ValueOf(record).Elem(), id)
	return record
}

func resolveRelation(table *schema.Table, name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, ".")
	path := make([]string, 0, len(parts))
	for _, part := range parts {
		rel := lookupRelation(table, part)
		if rel == nil {
			return ""
		}
		path = append(path, rel.Field.GoName)
		table = rel.JoinTable
	}
	return strings.Join(path, ".")
}

func lookupRelation(table *schema.Table, name string) *schema.Relation {
	if rel, ok := table.Relations[name]; ok {
		return rel
	}
	for goName, rel := range table.Relations {
		if strings.EqualFold(goName, name) || strings.EqualFold(rel.Field.Name, name) {
			return rel
		}
	}
	return nil
}

func isInteger(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
