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

package crudx

import (
	"context"
	"sync"

	"github.com/tomoncle/crudx/database"
	"github.com/tomoncle/crudx/repository"
	"github.com/tomoncle/crudx/types"
	"github.com/uptrace/bun"
)

// Service is the CRUD and paging facade over a repository of T written from inputs of type I.
type Service[T any, I repository.Input] interface {
	// Get returns a single entity by its identifier, or nil if it does not exist.
	Get(ctx context.Context, id int64, relations ...string) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// Page returns one page of entities matching the query.
	Page(ctx context.Context, query *types.QuerySpec) (*types.Page[T], error)

	// Save inserts a new entity and returns it as stored.
	Save(ctx context.Context, input I) (*T, error)

	// Update applies the fields set in input, or returns nil if the entity does not exist.
	Update(ctx context.Context, id int64, input I) (*T, error)

	// Delete removes an entity by its identifier and reports whether it existed.
	Delete(ctx context.Context, id int64) (bool, error)

	// InTx runs fn with a repository bound to a new transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T, I]) error) error

	// SelectBuilder returns a Bun select query builder for the entity.
	SelectBuilder() *bun.SelectQuery
}

type baseServiceImpl[T any, I repository.Input] struct {
	db *bun.DB // nil follows database.GetDB()

	mu     sync.Mutex
	repo   repository.Repository[T, I]
	repoDB *bun.DB
}

// NewService returns a default Service implementation using the generic
// repository backed by the global database connection. The connection is
// resolved on every call, so the service keeps working after a reconnect.
// Page sizes follow the pagination section of the configuration passed to
// database.InitDB.
func NewService[T any, I repository.Input]() Service[T, I] {
	return &baseServiceImpl[T, I]{}
}

// NewServiceWithDB is NewService bound to an explicit database.
func NewServiceWithDB[T any, I repository.Input](db *bun.DB) Service[T, I] {
	return &baseServiceImpl[T, I]{db: db}
}

func (s *baseServiceImpl[T, I]) baseRepo() (repository.Repository[T, I], *bun.DB) {
	db := s.db
	if db == nil {
		db = database.GetDB()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil || s.repoDB != db {
		pagination := database.GetConfig().PaginationConfig
		s.repo = repository.NewRepository[T, I](db,
			repository.WithPageLimits(pagination.DefaultPageSize, pagination.MaxPageSize))
		s.repoDB = db
	}
	return s.repo, db
}

func (s *baseServiceImpl[T, I]) current() repository.Repository[T, I] {
	repo, _ := s.baseRepo()
	return repo
}

func (s *baseServiceImpl[T, I]) Get(ctx context.Context, id int64, relations ...string) (*T, error) {
	return s.current().GetByID(ctx, id, relations...)
}

func (s *baseServiceImpl[T, I]) All(ctx context.Context) ([]*T, error) {
	return s.current().ListAll(ctx)
}

func (s *baseServiceImpl[T, I]) Page(ctx context.Context, query *types.QuerySpec) (*types.Page[T], error) {
	return s.current().Query(ctx, query)
}

func (s *baseServiceImpl[T, I]) Save(ctx context.Context, input I) (*T, error) {
	return s.current().Create(ctx, input)
}

func (s *baseServiceImpl[T, I]) Update(ctx context.Context, id int64, input I) (*T, error) {
	return s.current().Update(ctx, id, input)
}

func (s *baseServiceImpl[T, I]) Delete(ctx context.Context, id int64) (bool, error) {
	return s.current().Delete(ctx, id)
}

func (s *baseServiceImpl[T, I]) InTx(ctx context.Context, fn func(ctx context.Context, repo repository.Repository[T, I]) error) error {
	repo, db := s.baseRepo()
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, repo.WithTx(tx))
	})
}

func (s *baseServiceImpl[T, I]) SelectBuilder() *bun.SelectQuery {
	return s.current().NewSelect()
}
