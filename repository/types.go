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

	"github.com/tomoncle/crudx/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Input is a create or update payload. Changes lists only the columns the
// caller explicitly set.
type Input interface {
	Changes() types.Changes
}

// CrudRepository defines single-record operations for a generic entity type.
// Absent records are reported as a nil record or false, never as an error.
type CrudRepository[T any, I Input] interface {
	Create(ctx context.Context, input I) (*T, error)

	GetByID(ctx context.Context, id int64, relations ...string) (*T, error)

	ListAll(ctx context.Context) ([]*T, error)

	Update(ctx context.Context, id int64, input I) (*T, error)

	Delete(ctx context.Context, id int64) (bool, error)
}

// PageQueryRepository defines filtered, searched, sorted and paginated listing.
type PageQueryRepository[T any] interface {
	Query(ctx context.Context, spec *types.QuerySpec) (*types.Page[T], error)
}

// TransactionRepository binds a repository to a caller-owned transaction.
type TransactionRepository[T any, I Input] interface {
	WithTx(tx bun.Tx) Repository[T, I]
}

// Repository combines CRUD, listing and transactional binding and exposes
// the record shape and a Bun select builder for advanced use cases.
type Repository[T any, I Input] interface {
	CrudRepository[T, I]
	PageQueryRepository[T]
	TransactionRepository[T, I]
	Shape() *Shape[T]
	Dialect() schema.Dialect
	NewSelect() *bun.SelectQuery
}
