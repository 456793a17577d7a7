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

// DefaultPageSize is used when a PageSpec carries no usable size.
const DefaultPageSize = 50

// PageSpec describes one page of a listing: a 1-based page number and a size.
type PageSpec struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// NewPageSpec constructs a PageSpec.
func NewPageSpec(page int, size int) PageSpec {
	return PageSpec{Page: page, Size: size}
}

func (p PageSpec) GetPage() int {
	if p.Page < 1 {
		return 1
	}
	return p.Page
}

func (p PageSpec) GetSize() int {
	if p.Size < 1 {
		return DefaultPageSize
	}
	return p.Size
}

func (p PageSpec) GetOffset() int {
	return (p.GetPage() - 1) * p.GetSize()
}

// Page holds one slice of an ordered result set with pagination metadata.
type Page[T any] struct {
	Items []*T `json:"items"`
	Total int  `json:"total"`
	Page  int  `json:"page"`
	Size  int  `json:"size"`
	Pages int  `json:"pages"`
}

// NewPage constructs an empty page for the given spec.
func NewPage[T any](spec PageSpec) *Page[T] {
	return &Page[T]{Items: make([]*T, 0), Page: spec.GetPage(), Size: spec.GetSize()}
}

// SetTotal records the total number of matching rows and derives Pages.
func (p *Page[T]) SetTotal(total int) {
	p.Total = total
	if p.Size > 0 {
		p.Pages = (total + p.Size - 1) / p.Size
	}
}

// HasNext reports whether a later page exists.
func (p *Page[T]) HasNext() bool {
	return p.Page < p.Pages
}
