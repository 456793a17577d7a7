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

// QuerySpec describes a single listing call: equality filters, a search term
// over a set of fields, ordering, eager relations and the requested page.
// Field names are column names of the record; names the record does not
// declare are ignored by the repository.
type QuerySpec struct {
	Page         PageSpec
	Filters      map[string]any
	SearchFields []string
	SearchTerm   string
	SortField    string
	SortOrder    SortOrder
	Relations    []string
}

// NewQuerySpec constructs a QuerySpec for the given page with no criteria.
func NewQuerySpec(page int, size int) *QuerySpec {
	return &QuerySpec{Page: NewPageSpec(page, size), SortOrder: SortDesc}
}

// Filter adds an equality filter. A nil value is kept but ignored at query time.
func (q *QuerySpec) Filter(field string, value any) *QuerySpec {
	if q.Filters == nil {
		q.Filters = make(map[string]any)
	}
	q.Filters[field] = value
	return q
}

// Search sets the search term and the fields it is matched against.
func (q *QuerySpec) Search(term string, fields ...string) *QuerySpec {
	q.SearchTerm = term
	q.SearchFields = append(q.SearchFields, fields...)
	return q
}

// SortBy sets the sort field and direction ("asc" or "desc", any case).
func (q *QuerySpec) SortBy(field string, order string) *QuerySpec {
	q.SortField = field
	q.SortOrder = ParseSortOrder(order)
	return q
}

// With adds relations to load eagerly.
func (q *QuerySpec) With(relations ...string) *QuerySpec {
	q.Relations = append(q.Relations, relations...)
	return q
}

// HasSearch reports whether both a term and at least one field are present.
func (q *QuerySpec) HasSearch() bool {
	return q.SearchTerm != "" && len(q.SearchFields) > 0
}
