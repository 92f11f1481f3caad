package core

import "context"

type (
	// Record is a row of a single table keyed by an integer id.
	// Struct fields carry `db` tags matching Columns.
	Record interface {
		TableName() string
		// Columns lists the non-key columns.
		Columns() []string
		PK() int64
		SetPK(id int64)
	}

	// RecordPtr constrains P to be a *T implementing Record.
	RecordPtr[T any] interface {
		*T
		Record
	}

	Query struct {
		Where  map[string]interface{} // column = value, AND-ed; nil value means IS NULL
		Order  []DBOrdering
		Limit  int
		Offset int
	}

	// Table stores and loads records of a single type.
	// Store inserts when the key is zero (binding the generated key back), updates otherwise.
	// Load of a missing row returns ErrNotFound.
	Table[T any] interface {
		Load(ctx context.Context, id int64) (T, error)
		Store(ctx context.Context, rec *T) error
		Delete(ctx context.Context, ids ...int64) error
		Find(ctx context.Context, q Query) ([]T, error)
	}
)

// Eq is a shorthand for a single-column Query.Where.
func Eq(column string, value interface{}) map[string]interface{} {
	return map[string]interface{}{column: value}
}
