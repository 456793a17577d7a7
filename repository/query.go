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
	"context"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/tomoncle/crudx/types"
	"github.com/uptrace/bun"
)

const likeEscape = '!'

var (
	timeType       = reflect.TypeOf(time.Time{})
	likeEscapeRepl = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
)

// Query lists one page of records. Stages run in a fixed order: equality
// filters, search, count, sort, eager relations, then limit and offset.
func (r *baseRepositoryImpl[T, I]) Query(ctx context.Context, spec *types.QuerySpec) (*types.Page[T], error) {
	if spec == nil {
		spec = types.NewQuerySpec(1, r.opts.defaultPageSize)
	}
	pageSpec := r.pageSpec(spec.Page)
	page := types.NewPage[T](pageSpec)

	query := r.db.NewSelect().Model(&page.Items)
	query, err := r.applyFilters(query, spec.Filters)
	if err != nil {
		return nil, err
	}
	query = r.applySearch(query, spec.SearchTerm, spec.SearchFields)

	total, err := query.Count(ctx)
	if err != nil || total == 0 {
		if err != nil {
			return nil, err
		}
		return page, nil
	}
	page.SetTotal(total)

	query = r.applySort(query, spec.SortField, spec.SortOrder)
	query = r.applyRelations(query, spec.Relations)
	err = query.
		Limit(pageSpec.GetSize()).
		Offset(pageSpec.GetOffset()).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (r *baseRepositoryImpl[T, I]) pageSpec(spec types.PageSpec) types.PageSpec {
	size := spec.Size
	if size < 1 {
		size = r.opts.defaultPageSize
	}
	if r.opts.maxPageSize > 0 && size > r.opts.maxPageSize {
		size = r.opts.maxPageSize
	}
	return types.NewPageSpec(spec.GetPage(), size)
}

func (r *baseRepositoryImpl[T, I]) applyFilters(query *bun.SelectQuery, filters map[string]any) (*bun.SelectQuery, error) {
	for _, name := range slices.Sorted(maps.Keys(filters)) {
		value := filters[name]
		if isNil(value) {
			continue
		}
		field, ok := r.shape.Field(name)
		if !ok {
			r.logger.Debug("Skipping unknown filter field", "table", r.shape.table.Name, "field", name)
			continue
		}
		v, err := coerce(value, field.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilterValue, name, err)
		}
		query = query.Where("?TableAlias.? = ?", bun.Ident(field.Name), v.Interface())
	}
	return query, nil
}

func (r *baseRepositoryImpl[T, I]) applySearch(query *bun.SelectQuery, term string, names []string) *bun.SelectQuery {
	if term == "" || len(names) == 0 {
		return query
	}
	fields := make([]*Field, 0, len(names))
	for _, name := range names {
		field, ok := r.shape.Field(name)
		if !ok || !field.IsText() {
			r.logger.Debug("Skipping unknown search field", "table", r.shape.table.Name, "field", name)
			continue
		}
		if !slices.Contains(fields, field) {
			fields = append(fields, field)
		}
	}
	if len(fields) == 0 {
		return query
	}

	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return query.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, field := range fields {
			q = q.WhereOr("LOWER(?TableAlias.?) LIKE ? ESCAPE '"+string(likeEscape)+"'", bun.Ident(field.Name), pattern)
		}
		return q
	})
}

func (r *baseRepositoryImpl[T, I]) applySort(query *bun.SelectQuery, name string, order types.SortOrder) *bun.SelectQuery {
	pk := r.shape.PK()
	if !order.IsValid() {
		order = types.SortDesc
	}
	if name != "" {
		if field, ok := r.shape.Field(name); ok {
			query = query.OrderExpr("?TableAlias.? "+order.String(), bun.Ident(field.Name))
			if field.IsPK {
				return query
			}
		} else {
			r.logger.Debug("Skipping unknown sort field", "table", r.shape.table.Name, "field", name)
		}
	}
	return query.OrderExpr("?TableAlias.? DESC", bun.Ident(pk.Name))
}

func (r *baseRepositoryImpl[T, I]) applyRelations(query *bun.SelectQuery, relations []string) *bun.SelectQuery {
	seen := make(map[string]struct{}, len(relations))
	for _, name := range relations {
		path, ok := r.shape.Relation(name)
		if !ok {
			r.logger.Debug("Skipping unknown relation", "table", r.shape.table.Name, "relation", name)
			continue
		}
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		query = query.Relation(path)
	}
	return query
}

// escapeLike escapes LIKE wildcards so that term matches literally.
func escapeLike(term string) string {
	return likeEscapeRepl.Replace(term)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// coerce converts value to typ. Values already assignable pass through;
// scalar kinds go through cast, so "10" becomes 10 for an integer column.
// Conversions that would lose a fraction or overflow typ are rejected.
func coerce(value any, typ reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr && !v.IsNil() {
		v = v.Elem()
	}
	if v.Type().AssignableTo(typ) {
		return v, nil
	}
	if v.Kind() == typ.Kind() && v.Type().ConvertibleTo(typ) {
		return v.Convert(typ), nil
	}

	var out any
	var err error
	switch k := typ.Kind(); {
	case isSigned(k):
		out, err = toInt64(v)
		if err == nil && reflect.Zero(typ).OverflowInt(out.(int64)) {
			err = fmt.Errorf("%v overflows %s", value, typ)
		}
	case isUnsigned(k):
		out, err = toUint64(v)
		if err == nil && reflect.Zero(typ).OverflowUint(out.(uint64)) {
			err = fmt.Errorf("%v overflows %s", value, typ)
		}
	case isFloat(k):
		out, err = cast.ToFloat64E(v.Interface())
		if err == nil && reflect.Zero(typ).OverflowFloat(out.(float64)) {
			err = fmt.Errorf("%v overflows %s", value, typ)
		}
	case k == reflect.String:
		out, err = cast.ToStringE(v.Interface())
	case k == reflect.Bool:
		out, err = cast.ToBoolE(v.Interface())
	case typ == timeType:
		out, err = cast.ToTimeE(v.Interface())
	default:
		return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", v.Type(), typ)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(out).Convert(typ), nil
}

func toInt64(v reflect.Value) (int64, error) {
	switch {
	case isFloat(v.Kind()):
		f := v.Float()
		n := int64(f)
		if f != math.Trunc(f) || float64(n) != f {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		return n, nil
	case isUnsigned(v.Kind()):
		if v.Uint() > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", v.Uint())
		}
	}
	return cast.ToInt64E(v.Interface())
}

func toUint64(v reflect.Value) (uint64, error) {
	if isFloat(v.Kind()) {
		f := v.Float()
		n := uint64(f)
		if f != math.Trunc(f) || f < 0 || float64(n) != f {
			return 0, fmt.Errorf("%v is not an unsigned integer", f)
		}
		return n, nil
	}
	if isSigned(v.Kind()) && v.Int() < 0 {
		return 0, fmt.Errorf("%d is negative", v.Int())
	}
	return cast.ToUint64E(v.Interface())
}
