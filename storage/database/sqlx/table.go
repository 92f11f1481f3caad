package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

const pkColumn = "id"

type table[T any, P core.RecordPtr[T]] struct {
	db      core.DBExecutor
	name    string
	columns []string
	known   map[string]bool
}

// NewTable returns a core.Table backed by the given sqlx executor (a *sqlx.DB or *sqlx.Tx).
func NewTable[T any, P core.RecordPtr[T]](db core.DBExecutor) core.Table[T] {
	var zero T
	rec := P(&zero)

	t := &table[T, P]{
		db:      db,
		name:    rec.TableName(),
		columns: rec.Columns(),
		known:   map[string]bool{pkColumn: true},
	}
	for _, col := range t.columns {
		t.known[col] = true
	}
	return t
}

func (t *table[T, P]) selectClause() string {
	return fmt.Sprintf("SELECT %s, %s FROM %s", pkColumn, strings.Join(t.columns, ", "), t.name)
}

func (t *table[T, P]) Load(ctx context.Context, id int64) (T, error) {
	var rec T
	q := t.db.Rebind(t.selectClause() + " WHERE " + pkColumn + " = ?")
	if err := t.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, core.ErrNotFound
		}
		return rec, core.NewQueryError("loading from "+t.name, err)
	}
	return rec, nil
}

func (t *table[T, P]) Store(ctx context.Context, rec *T) error {
	if P(rec).PK() == 0 {
		return t.insert(ctx, rec)
	}
	return t.update(ctx, rec)
}

func (t *table[T, P]) insert(ctx context.Context, rec *T) error {
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (:%s) RETURNING %s",
		t.name, strings.Join(t.columns, ", "), strings.Join(t.columns, ", :"), pkColumn,
	)
	rows, err := sqlx.NamedQueryContext(ctx, t.db, q, rec)
	if err != nil {
		return core.NewQueryError("inserting into "+t.name, err)
	}
	defer func() { _ = rows.Close() }()

	var id int64
	if rows.Next() {
		if err = rows.Scan(&id); err != nil {
			return core.NewQueryError("inserting into "+t.name, err)
		}
	}
	if err = rows.Err(); err != nil {
		return core.NewQueryError("inserting into "+t.name, err)
	}
	P(rec).SetPK(id)
	return nil
}

func (t *table[T, P]) update(ctx context.Context, rec *T) error {
	sets := make([]string, len(t.columns))
	for i, col := range t.columns {
		sets[i] = col + " = :" + col
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", t.name, strings.Join(sets, ", "), pkColumn, pkColumn)

	res, err := sqlx.NamedExecContext(ctx, t.db, q, rec)
	if err != nil {
		return core.NewQueryError("updating "+t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.NewQueryError("updating "+t.name, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (t *table[T, P]) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM "+t.name+" WHERE "+pkColumn+" IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = t.db.ExecContext(ctx, t.db.Rebind(q), args...); err != nil {
		return core.NewQueryError("deleting from "+t.name, err)
	}
	return nil
}

func (t *table[T, P]) Find(ctx context.Context, query core.Query) ([]T, error) {
	q, args, err := t.buildFind(query)
	if err != nil {
		return nil, err
	}

	recs := make([]T, 0)
	if err = t.db.SelectContext(ctx, &recs, t.db.Rebind(q), args...); err != nil {
		return nil, core.NewQueryError("querying "+t.name, err)
	}
	return recs, nil
}

func (t *table[T, P]) buildFind(query core.Query) (string, []interface{}, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(t.selectClause())

	if len(query.Where) > 0 {
		cols := make([]string, 0, len(query.Where))
		for col := range query.Where {
			if !t.known[col] {
				return "", nil, errors.Errorf("unknown column %q for %s", col, t.name)
			}
			cols = append(cols, col)
		}
		sort.Strings(cols)

		conds := make([]string, len(cols))
		for i, col := range cols {
			val := query.Where[col]
			if val == nil {
				conds[i] = col + " IS NULL"
				continue
			}
			conds[i] = col + " = ?"
			args = append(args, val)
		}
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if len(query.Order) > 0 {
		ords := make([]string, len(query.Order))
		for i, ord := range query.Order {
			if !t.known[ord.Field] {
				return "", nil, errors.Errorf("unknown column %q for %s", ord.Field, t.name)
			}
			ords[i] = ord.String()
		}
		sb.WriteString(" ORDER BY " + strings.Join(ords, ", "))
	}

	if query.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, query.Limit)
	}
	if query.Offset > 0 {
		sb.WriteString(" OFFSET ?")
		args = append(args, query.Offset)
	}
	return sb.String(), args, nil
}
