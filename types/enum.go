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

import "strings"

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// SortOrder is the direction applied to a sort field.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

var _ BaseEnum = SortDesc

// ParseSortOrder maps "asc" (any case) to SortAsc and everything else,
// including the empty string, to SortDesc.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), "asc") {
		return SortAsc
	}
	return SortDesc
}

func (o SortOrder) IsValid() bool { return o == SortDesc || o == SortAsc }

func (o SortOrder) Number() int {
	if !o.IsValid() {
		return IllegalValue
	}
	return int(o)
}

func (o SortOrder) Name() string {
	switch o {
	case SortAsc:
		return "asc"
	case SortDesc:
		return "desc"
	default:
		return IllegalName
	}
}

// String returns the SQL keyword for the direction.
func (o SortOrder) String() string {
	switch o {
	case SortAsc:
		return "ASC"
	case SortDesc:
		return "DESC"
	default:
		return IllegalName
	}
}

func (o SortOrder) Desc() string {
	switch o {
	case SortAsc:
		return "ascending"
	case SortDesc:
		return "descending"
	default:
		return IllegalDesc
	}
}
