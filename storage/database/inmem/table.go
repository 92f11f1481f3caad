package inmemdb

import (
	"context"
	"database/sql/driver"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

// mapper resolves `db` tags the same way sqlx does.
var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

type table[T any, P core.RecordPtr[T]] struct {
	mutex  sync.RWMutex
	name   string
	fields map[string][]int
	rows   map[int64]T
	pkSeq  int64
}

// NewTable returns an in-process core.Table. It is safe for concurrent use.
func NewTable[T any, P core.RecordPtr[T]]() core.Table[T] {
	var zero T
	rec := P(&zero)

	tm := mapper.TypeMap(reflect.TypeOf(zero))
	fields := make(map[string][]int)
	for _, col := range append([]string{"id"}, rec.Columns()...) {
		if fi, ok := tm.Names[col]; ok {
			fields[col] = fi.Index
		}
	}

	return &table[T, P]{
		name:   rec.TableName(),
		fields: fields,
		rows:   make(map[int64]T),
	}
}

func (t *table[T, P]) Load(_ context.Context, id int64) (T, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if rec, ok := t.rows[id]; ok {
		return rec, nil
	}
	var zero T
	return zero, core.ErrNotFound
}

func (t *table[T, P]) Store(_ context.Context, rec *T) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	p := P(rec)
	if p.PK() == 0 {
		t.pkSeq++
		p.SetPK(t.pkSeq)
	} else if _, ok := t.rows[p.PK()]; !ok {
		return core.ErrNotFound
	}
	t.rows[p.PK()] = *rec
	return nil
}

func (t *table[T, P]) Delete(_ context.Context, ids ...int64) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, id := range ids {
		delete(t.rows, id)
	}
	return nil
}

func (t *table[T, P]) Find(_ context.Context, q core.Query) ([]T, error) {
	for col := range q.Where {
		if _, ok := t.fields[col]; !ok {
			return nil, errors.Errorf("unknown column %q for %s", col, t.name)
		}
	}
	for _, ord := range q.Order {
		if _, ok := t.fields[ord.Field]; !ok {
			return nil, errors.Errorf("unknown column %q for %s", ord.Field, t.name)
		}
	}

	t.mutex.RLock()
	recs := make([]T, 0, len(t.rows))
	for _, rec := range t.rows {
		if t.matches(rec, q.Where) {
			recs = append(recs, rec)
		}
	}
	t.mutex.RUnlock()

	// insertion order unless told otherwise
	sort.Slice(recs, func(i, j int) bool { return P(&recs[i]).PK() < P(&recs[j]).PK() })
	if len(q.Order) > 0 {
		sort.SliceStable(recs, func(i, j int) bool {
			for _, ord := range q.Order {
				c := compare(t.value(recs[i], ord.Field), t.value(recs[j], ord.Field))
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(recs) {
			return []T{}, nil
		}
		recs = recs[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(recs) {
		recs = recs[:q.Limit]
	}
	return recs, nil
}

func (t *table[T, P]) matches(rec T, where map[string]interface{}) bool {
	for col, want := range where {
		if !reflect.DeepEqual(t.value(rec, col), normalize(want)) {
			return false
		}
	}
	return true
}

func (t *table[T, P]) value(rec T, col string) interface{} {
	v := reflectx.FieldByIndexesReadOnly(reflect.ValueOf(rec), t.fields[col])
	return normalize(v.Interface())
}

// normalize reduces a column value to what a SQL driver would see.
func normalize(v interface{}) interface{} {
	if valuer, ok := v.(driver.Valuer); ok {
		val, err := valuer.Value()
		if err != nil {
			return nil
		}
		v = val
	}
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return normalize(rv.Elem().Interface())
	}
	if ts, ok := v.(time.Time); ok {
		return ts.UTC()
	}
	return v
}

// compare orders normalized values. NULLs sort last ascending, as in Postgres.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return cmpOrdered(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmpOrdered(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmpOrdered(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok && av != bv {
			if av {
				return 1
			}
			return -1
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
		}
	}
	return 0
}

func cmpOrdered[V int64 | float64 | string](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
