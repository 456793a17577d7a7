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
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomoncle/crudx/database"
	"github.com/tomoncle/crudx/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	ErrUnknownField       = errors.New("repository: unknown field")
	ErrImmutableField     = errors.New("repository: field cannot be updated")
	ErrFieldType          = errors.New("repository: incompatible field value")
	ErrInvalidFilterValue = errors.New("repository: invalid filter value")
)

type options struct {
	defaultPageSize int
	maxPageSize     int
	logger          database.Logger
}

// Option configures a repository.
type Option func(*options)

// WithPageLimits sets the page size used when a request has none and the
// largest size honoured. maxSize <= 0 means no cap.
func WithPageLimits(defaultSize, maxSize int) Option {
	return func(o *options) {
		if defaultSize > 0 {
			o.defaultPageSize = defaultSize
		}
		o.maxPageSize = maxSize
	}
}

// WithLogger overrides the database package logger.
func WithLogger(logger database.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type baseRepositoryImpl[T any, I Input] struct {
	db     bun.IDB
	shape  *Shape[T]
	opts   options
	logger database.Logger
}

// NewRepository returns a generic repository bound to db, which may be a
// *bun.DB, bun.Conn or bun.Tx. It panics if T is not a Bun model with a
// single integer primary key.
func NewRepository[T any, I Input](db bun.IDB, opts ...Option) Repository[T, I] {
	o := options{defaultPageSize: types.DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.GetLogger()
	}
	return &baseRepositoryImpl[T, I]{
		db:     db,
		shape:  ShapeOf[T](db),
		opts:   o,
		logger: o.logger,
	}
}

func (r *baseRepositoryImpl[T, I]) WithTx(tx bun.Tx) Repository[T, I] {
	clone := *r
	clone.db = tx
	return &clone
}

func (r *baseRepositoryImpl[T, I]) Shape() *Shape[T] { return r.shape }

func (r *baseRepositoryImpl[T, I]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T, I]) NewSelect() *bun.SelectQuery {
	return r.db.NewSelect().Model((*T)(nil))
}

func (r *baseRepositoryImpl[T, I]) Create(ctx context.Context, input I) (*T, error) {
	entity := new(T)
	if _, err := r.apply(entity, input.Changes(), true); err != nil {
		return nil, err
	}
	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		return nil, err
	}
	// reload so that store defaults are populated
	if err := r.db.NewSelect().Model(entity).WherePK().Scan(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, I]) GetByID(ctx context.Context, id int64, relations ...string) (*T, error) {
	entity := r.shape.New(id)
	query := r.applyRelations(r.db.NewSelect().Model(entity).WherePK(), relations)
	if err := query.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, I]) ListAll(ctx context.Context) ([]*T, error) {
	entities := make([]*T, 0)
	if err := r.db.NewSelect().Model(&entities).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T, I]) Update(ctx context.Context, id int64, input I) (*T, error) {
	entity, err := r.GetByID(ctx, id)
	if err != nil || entity == nil {
		return nil, err
	}
	columns, err := r.apply(entity, input.Changes(), false)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return entity, nil
	}

	_, err = r.db.NewUpdate().
		Model(entity).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes the record in one conditional statement and reports whether
// a row was affected.
func (r *baseRepositoryImpl[T, I]) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.NewDelete().Model(r.shape.New(id)).WherePK().Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// apply assigns changes to entity and returns the distinct columns touched.
func (r *baseRepositoryImpl[T, I]) apply(entity *T, changes types.Changes, creating bool) ([]string, error) {
	columns := make([]string, 0, len(changes))
	seen := make(map[string]struct{}, len(changes))
	for _, change := range changes {
		field, ok := r.shape.Field(change.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.shape.table.TypeName, change.Column)
		}
		if field.IsPK && !creating {
			return nil, fmt.Errorf("%w: %s.%s", ErrImmutableField, r.shape.table.TypeName, field.Name)
		}
		if err := r.shape.Set(entity, field.Name, change.Value); err != nil {
			return nil, err
		}
		if _, dup := seen[field.Name]; !dup {
			seen[field.Name] = struct{}{}
			columns = append(columns, field.Name)
		}
	}
	return columns, nil
}
