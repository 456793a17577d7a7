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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudx/database"
	"github.com/tomoncle/crudx/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID    int64   `bun:"id,pk,autoincrement" json:"id"`
	Name  string  `bun:"name,notnull" json:"name"`
	Books []*Book `bun:"rel:has-many,join:id=author_id" json:"books,omitempty"`
}

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID       int64   `bun:"id,pk,autoincrement" json:"id"`
	Name     string  `bun:"name,notnull" json:"name"`
	Tag      string  `bun:"tag" json:"tag"`
	Price    int64   `bun:"price" json:"price"`
	Note     *string `bun:"note" json:"note"`
	Status   string  `bun:"status,nullzero,notnull,default:'draft'" json:"status"`
	AuthorID int64   `bun:"author_id,nullzero" json:"author_id"`
	Author   *Author `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
}

type BookInput struct {
	Name     types.Optional[string]  `json:"name"`
	Tag      types.Optional[string]  `json:"tag"`
	Price    types.Optional[int64]   `json:"price"`
	Note     types.Optional[*string] `json:"note"`
	Status   types.Optional[string]  `json:"status"`
	AuthorID types.Optional[int64]   `json:"author_id"`
}

func (in BookInput) Changes() types.Changes {
	return types.NewChanges().
		Put("name", in.Name).
		Put("tag", in.Tag).
		Put("price", in.Price).
		Put("note", in.Note).
		Put("status", in.Status).
		Put("author_id", in.AuthorID)
}

type AuthorInput struct {
	Name types.Optional[string] `json:"name"`
}

func (in AuthorInput) Changes() types.Changes {
	return types.NewChanges().Put("name", in.Name)
}

// newTestDB opens a private in-memory SQLite database with the fixture tables.
func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	err = database.CreateTablesFor(context.Background(), db, (*Author)(nil), (*Book)(nil))
	require.NoError(t, err)
	return db
}

func newBookRepo(t *testing.T, opts ...Option) (Repository[Book, BookInput], *bun.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewRepository[Book, BookInput](db, opts...), db
}

func seedBooks(t *testing.T, repo Repository[Book, BookInput], books ...BookInput) []*Book {
	t.Helper()
	out := make([]*Book, 0, len(books))
	for _, in := range books {
		b, err := repo.Create(context.Background(), in)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func book(name, tag string, price int64) BookInput {
	return BookInput{
		Name:  types.Some(name),
		Tag:   types.Some(tag),
		Price: types.Some(price),
	}
}

func ids(books []*Book) []int64 {
	out := make([]int64, 0, len(books))
	for _, b := range books {
		out = append(out, b.ID)
	}
	return out
}
