// Package store persists content items and their embedding vectors in SQLite.
//
// The package supports two build modes, selected by build tags:
//
//   - purego (default): modernc.org/sqlite, no C compiler required, vector
//     similarity computed in Go
//   - sqlite_vec: github.com/mattn/go-sqlite3 with the sqlite-vec extension,
//     similarity computed in SQL
//
// Both modes share one schema and one Store interface. Vectors are stored as
// little-endian float32 blobs on the owning content row; an embedding is
// never garbage-collected independently of its item.
//
// Metadata filters on search are conjunctive: every non-empty filter field
// must match.
package store
