// Package repository provides a generic repository built on Bun: single-record
// CRUD with partial updates, and a listing query composed at call time from
// equality filters, a case-insensitive search across fields, ordering, eager
// relations and pagination. Unknown field and relation names are skipped.
package repository
