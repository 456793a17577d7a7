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
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudx/types"
)

func seedFruit(t *testing.T) Repository[Book, BookInput] {
	t.Helper()
	repo, _ := newBookRepo(t)
	seedBooks(t, repo,
		book("apple", "x", 10),
		book("banana", "y", 20),
		book("Apricot", "x", 30),
	)
	return repo
}

func TestQueryFilterAndSearch(t *testing.T) {
	repo := seedFruit(t)

	spec := types.NewQuerySpec(1, 10).
		Filter("tag", "x").
		Search("ap", "name")
	page, err := repo.Query(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1}, ids(page.Items))
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Pages)
}

func TestQueryFilterExactMatch(t *testing.T) {
	repo := seedFruit(t)
	ctx := context.Background()

	page, err := repo.Query(ctx, types.NewQuerySpec(1, 10).Filter("tag", "x").Filter("price", int64(30)))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(page.Items))

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).Filter("price", "20"))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(page.Items))

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).Filter("tag", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).Filter("name", "apric"))
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Total)
}

func TestQueryInvalidFilterValue(t *testing.T) {
	repo := seedFruit(t)

	_, err := repo.Query(context.Background(), types.NewQuerySpec(1, 10).Filter("price", "cheap"))
	assert.ErrorIs(t, err, ErrInvalidFilterValue)

	_, err = repo.Query(context.Background(), types.NewQuerySpec(1, 10).Filter("price", 10.7))
	assert.ErrorIs(t, err, ErrInvalidFilterValue)

	page, err := repo.Query(context.Background(), types.NewQuerySpec(1, 10).Filter("price", 10.0))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page.Items))
}

func TestQueryUnknownFieldsAreIgnored(t *testing.T) {
	repo := seedFruit(t)
	ctx := context.Background()

	base, err := repo.Query(ctx, types.NewQuerySpec(1, 10).Filter("tag", "x"))
	require.NoError(t, err)

	cases := map[string]*types.QuerySpec{
		"filter":   types.NewQuerySpec(1, 10).Filter("tag", "x").Filter("color", "red"),
		"sort":     types.NewQuerySpec(1, 10).Filter("tag", "x").SortBy("color", "asc"),
		"search":   types.NewQuerySpec(1, 10).Filter("tag", "x").Search("zzz", "color"),
		"relation": types.NewQuerySpec(1, 10).Filter("tag", "x").With("publisher"),
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			page, err := repo.Query(ctx, spec)
			require.NoError(t, err)
			assert.Equal(t, ids(base.Items), ids(page.Items))
			assert.Equal(t, base.Total, page.Total)
		})
	}

	page, err := repo.Query(ctx, types.NewQuerySpec(1, 10).Search("ban", "color", "name"))
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(page.Items))
}

func TestQuerySearchIsDisjunctive(t *testing.T) {
	repo, _ := newBookRepo(t)
	seedBooks(t, repo,
		book("red apple", "plain", 1),
		book("plain", "RED", 2),
		book("green", "plain", 3),
	)

	page, err := repo.Query(context.Background(), types.NewQuerySpec(1, 10).Search("Red", "name", "tag"))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(page.Items))
}

func TestQuerySearchEscapesWildcards(t *testing.T) {
	repo, _ := newBookRepo(t)
	seedBooks(t, repo,
		book("100% cotton", "a", 1),
		book("1000 cotton", "b", 2),
		book("snake_case", "c", 3),
		book("snakecase", "d", 4),
	)
	ctx := context.Background()

	page, err := repo.Query(ctx, types.NewQuerySpec(1, 10).Search("0%", "name"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(page.Items))

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).Search("e_c", "name"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids(page.Items))
}

func TestQuerySearchSkipsNonTextFields(t *testing.T) {
	repo := seedFruit(t)

	page, err := repo.Query(context.Background(), types.NewQuerySpec(1, 10).Search("10", "price"))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestQueryDefaultOrder(t *testing.T) {
	repo := seedFruit(t)
	ctx := context.Background()

	first, err := repo.Query(ctx, types.NewQuerySpec(1, 10))
	require.NoError(t, err)
	second, err := repo.Query(ctx, types.NewQuerySpec(1, 10))
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2, 1}, ids(first.Items))
	assert.Equal(t, ids(first.Items), ids(second.Items))

	all, err := repo.Query(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(all.Items))
}

func TestQuerySort(t *testing.T) {
	repo, _ := newBookRepo(t)
	seedBooks(t, repo,
		book("b", "x", 20),
		book("a", "x", 20),
		book("c", "x", 10),
	)
	ctx := context.Background()

	page, err := repo.Query(ctx, types.NewQuerySpec(1, 10).SortBy("name", "ASC"))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 3}, ids(page.Items))

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).SortBy("name", ""))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids(page.Items))

	// ties on price fall back to id descending
	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).SortBy("price", "asc"))
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, ids(page.Items))

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 10).SortBy("id", "asc"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(page.Items))
}

func TestQueryPaginationCompleteness(t *testing.T) {
	repo, _ := newBookRepo(t)
	for i := 0; i < 7; i++ {
		tag := "even"
		if i%2 == 1 {
			tag = "odd"
		}
		seedBooks(t, repo, book("item", tag, int64(i%3)))
	}
	ctx := context.Background()
	spec := func(page, size int) *types.QuerySpec {
		return types.NewQuerySpec(page, size).Filter("name", "item").SortBy("price", "asc")
	}

	whole, err := repo.Query(ctx, spec(1, 7))
	require.NoError(t, err)
	require.Equal(t, 7, whole.Total)

	var paged []int64
	for p := 1; ; p++ {
		page, err := repo.Query(ctx, spec(p, 2))
		require.NoError(t, err)
		assert.Equal(t, 7, page.Total)
		assert.Equal(t, 4, page.Pages)
		paged = append(paged, ids(page.Items)...)
		if !page.HasNext() {
			break
		}
	}
	assert.Equal(t, ids(whole.Items), paged)

	beyond, err := repo.Query(ctx, spec(9, 2))
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 7, beyond.Total)
}

func TestQueryPageLimits(t *testing.T) {
	repo, _ := newBookRepo(t, WithPageLimits(2, 3))
	seedBooks(t, repo, book("a", "x", 1), book("b", "x", 2), book("c", "x", 3), book("d", "x", 4))
	ctx := context.Background()

	page, err := repo.Query(ctx, types.NewQuerySpec(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Size)
	assert.Len(t, page.Items, 2)

	page, err = repo.Query(ctx, types.NewQuerySpec(1, 100))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Size)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 2, page.Pages)
}

func TestQueryRelations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	authors := NewRepository[Author, AuthorInput](db)
	books := NewRepository[Book, BookInput](db)

	ann, err := authors.Create(ctx, AuthorInput{Name: types.Some("ann")})
	require.NoError(t, err)
	in := book("apple", "x", 1)
	in.AuthorID = types.Some(ann.ID)
	seedBooks(t, books, in, book("avocado", "x", 2))

	page, err := books.Query(ctx, types.NewQuerySpec(1, 10).Search("a", "name").With("Author", "author"))
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Nil(t, page.Items[0].Author)
	require.NotNil(t, page.Items[1].Author)
	assert.Equal(t, "ann", page.Items[1].Author.Name)

	withBooks, err := authors.Query(ctx, types.NewQuerySpec(1, 10).With("books"))
	require.NoError(t, err)
	require.Len(t, withBooks.Items, 1)
	assert.Len(t, withBooks.Items[0].Books, 1)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!%", escapeLike("100%"))
	assert.Equal(t, "a!_b", escapeLike("a_b"))
	assert.Equal(t, "wow!!", escapeLike("wow!"))
	assert.Equal(t, "plain", escapeLike("plain"))
}

func TestCoerce(t *testing.T) {
	type status string

	v, err := coerce("42", reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Interface())

	v, err = coerce(7, reflect.TypeOf(""))
	require.NoError(t, err)
	assert.Equal(t, "7", v.Interface())

	v, err = coerce("draft", reflect.TypeOf(status("")))
	require.NoError(t, err)
	assert.Equal(t, status("draft"), v.Interface())

	v, err = coerce("true", reflect.TypeOf(false))
	require.NoError(t, err)
	assert.Equal(t, true, v.Interface())

	v, err = coerce(int32(3), reflect.TypeOf(uint8(0)))
	require.NoError(t, err)
	assert.Equal(t, uint8(3), v.Interface())

	v, err = coerce("2025-01-02T03:04:05Z", reflect.TypeOf(time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, 2025, v.Interface().(time.Time).Year())

	_, err = coerce("abc", reflect.TypeOf(0))
	assert.Error(t, err)

	_, err = coerce("abc", reflect.TypeOf([]int{}))
	assert.Error(t, err)

	v, err = coerce(4.0, reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.Equal(t, int64(4), v.Interface())

	for _, tt := range []struct {
		value any
		typ   reflect.Type
	}{
		{int64(1) << 32, reflect.TypeOf(int32(0))},
		{300, reflect.TypeOf(uint8(0))},
		{-1, reflect.TypeOf(uint(0))},
		{uint64(1) << 63, reflect.TypeOf(int64(0))},
		{1.9, reflect.TypeOf(int64(0))},
		{-2.5, reflect.TypeOf(uint32(0))},
		{1e19, reflect.TypeOf(int64(0))},
		{1e39, reflect.TypeOf(float32(0))},
		{"10.7", reflect.TypeOf(0)},
	} {
		_, err := coerce(tt.value, tt.typ)
		assert.Error(t, err, "%v to %s", tt.value, tt.typ)
	}
}
