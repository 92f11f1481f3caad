package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klassenbuch/core"
)

type note struct {
	ID    int64       `db:"id"`
	Title string      `db:"title"`
	Body  null.String `db:"body"`
}

func (*note) TableName() string { return "notes" }
func (*note) Columns() []string { return []string{"title", "body"} }
func (n *note) PK() int64       { return n.ID }
func (n *note) SetPK(id int64)  { n.ID = id }

func newMockTable(t *testing.T) (core.Table[note], sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTable[note](sqlx.NewDb(db, "postgres")), mock
}

func TestTable_Load(t *testing.T) {
	ctx := context.Background()
	const q = "SELECT id, title, body FROM notes WHERE id = $1"

	t.Run("found", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectQuery(q).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "body"}).AddRow(7, "Maths", "p. 12"))

		n, err := tbl.Load(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, note{ID: 7, Title: "Maths", Body: null.StringFrom("p. 12")}, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectQuery(q).WithArgs(int64(8)).WillReturnError(sql.ErrNoRows)

		_, err := tbl.Load(ctx, 8)
		assert.Equal(t, core.ErrNotFound, err)
	})

	t.Run("backend error", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectQuery(q).WithArgs(int64(9)).WillReturnError(sql.ErrConnDone)

		_, err := tbl.Load(ctx, 9)
		var qErr *core.QueryError
		require.ErrorAs(t, err, &qErr)
		assert.Equal(t, "loading from notes", qErr.Op)
		assert.Equal(t, sql.ErrConnDone, qErr.Err)
	})
}

func TestTable_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("insert binds the generated key", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectQuery("INSERT INTO notes (title, body) VALUES ($1, $2) RETURNING id").
			WithArgs("Maths", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		n := note{Title: "Maths"}
		require.NoError(t, tbl.Store(ctx, &n))
		assert.Equal(t, int64(42), n.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectExec("UPDATE notes SET title = $1, body = $2 WHERE id = $3").
			WithArgs("Physics", sqlmock.AnyArg(), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		n := note{ID: 3, Title: "Physics"}
		require.NoError(t, tbl.Store(ctx, &n))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update of a missing row", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectExec("UPDATE notes SET title = $1, body = $2 WHERE id = $3").
			WithArgs("Physics", sqlmock.AnyArg(), int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		n := note{ID: 4, Title: "Physics"}
		assert.Equal(t, core.ErrNotFound, tbl.Store(ctx, &n))
	})
}

func TestTable_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("no ids", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		require.NoError(t, tbl.Delete(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("many ids", func(t *testing.T) {
		tbl, mock := newMockTable(t)
		mock.ExpectExec("DELETE FROM notes WHERE id IN ($1, $2, $3)").
			WithArgs(int64(1), int64(2), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 3))

		require.NoError(t, tbl.Delete(ctx, 1, 2, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTable_Find(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		query core.Query
		sql   string
		args  []driver.Value
	}{
		{
			name: "all",
			sql:  "SELECT id, title, body FROM notes",
		},
		{
			name:  "where with null",
			query: core.Query{Where: map[string]interface{}{"title": "Maths", "body": nil}},
			sql:   "SELECT id, title, body FROM notes WHERE body IS NULL AND title = $1",
			args:  []driver.Value{"Maths"},
		},
		{
			name: "order limit offset",
			query: core.Query{
				Order:  []core.DBOrdering{{Field: "title", Ascending: true}, {Field: "id"}},
				Limit:  10,
				Offset: 20,
			},
			sql:  "SELECT id, title, body FROM notes ORDER BY title ASC, id DESC LIMIT $1 OFFSET $2",
			args: []driver.Value{10, 20},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tbl, mock := newMockTable(t)
			exp := mock.ExpectQuery(tc.sql)
			if len(tc.args) > 0 {
				exp = exp.WithArgs(tc.args...)
			}
			exp.WillReturnRows(sqlmock.NewRows([]string{"id", "title", "body"}).
				AddRow(1, "Maths", nil).
				AddRow(2, "Physics", "lab"))

			notes, err := tbl.Find(ctx, tc.query)
			require.NoError(t, err)
			assert.Len(t, notes, 2)
			assert.Equal(t, "lab", notes[1].Body.String)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("unknown column", func(t *testing.T) {
		tbl, _ := newMockTable(t)
		_, err := tbl.Find(ctx, core.Query{Where: core.Eq("title; DROP TABLE notes", 1)})
		assert.EqualError(t, err, `unknown column "title; DROP TABLE notes" for notes`)

		_, err = tbl.Find(ctx, core.Query{Order: []core.DBOrdering{{Field: "nope"}}})
		assert.Error(t, err)
	})
}
