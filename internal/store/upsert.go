// Package store implements the diff-aware idempotent upsert every persisted
// write in the engine goes through: look up by unique key, compare with
// type-aware semantics, skip the write when nothing meaningful changed,
// merge-and-save otherwise, insert when absent. Re-running any pass with
// identical inputs therefore produces no observable change.
package store

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.Named("store")}
}

// WithDB returns a store bound to a different gorm handle (e.g. a tx).
func (s *Store) WithDB(db *gorm.DB) *Store {
	return &Store{db: db, log: s.log}
}

// Result counts what one batch of upserts actually did.
type Result struct {
	Inserted  int
	Updated   int
	Unchanged int
	Failed    int
}

// UpsertMany upserts each record keyed by keyColumn. A single failed record
// is logged and skipped; it never aborts the batch. An optional column list
// restricts which fields are diffed and merged onto an existing row; columns
// outside the list keep their persisted value, so callers never clobber
// fields another pass owns.
func UpsertMany[T any](ctx context.Context, s *Store, records []T, keyColumn string, columns ...string) Result {
	var res Result
	for i := range records {
		out, err := UpsertOne(ctx, s, &records[i], keyColumn, columns...)
		if err != nil {
			res.Failed++
			s.log.Error("upsert failed",
				zap.String("key_column", keyColumn),
				zap.Error(err),
			)
			continue
		}
		switch out {
		case OutcomeInserted:
			res.Inserted++
		case OutcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}
	return res
}

type Outcome int

const (
	OutcomeUnchanged Outcome = iota
	OutcomeInserted
	OutcomeUpdated
)

// UpsertOne implements the single-record contract. The record's key field is
// resolved by its gorm column name; a non-empty column list narrows the diff
// and the merge to those columns only.
func UpsertOne[T any](ctx context.Context, s *Store, record *T, keyColumn string, columns ...string) (Outcome, error) {
	fields := collectFields(reflect.TypeOf(record).Elem())

	keyField, ok := fields.byColumn[keyColumn]
	if !ok {
		return OutcomeUnchanged, &UnknownKeyError{Column: keyColumn}
	}
	keyValue := reflect.ValueOf(record).Elem().Field(keyField.index).Interface()

	var merge map[string]struct{}
	if len(columns) > 0 {
		merge = make(map[string]struct{}, len(columns))
		for _, c := range columns {
			if _, ok := fields.byColumn[c]; !ok {
				return OutcomeUnchanged, &UnknownKeyError{Column: c}
			}
			merge[c] = struct{}{}
		}
	}

	existing := new(T)
	err := s.db.WithContext(ctx).
		Where(keyColumn+" = ?", keyValue).
		First(existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return OutcomeUnchanged, err
		}
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			return OutcomeUnchanged, err
		}
		return OutcomeInserted, nil
	}

	ev := reflect.ValueOf(existing).Elem()
	rv := reflect.ValueOf(record).Elem()

	if !hasMeaningfulDiff(fields, merge, ev, rv) {
		*record = *existing
		return OutcomeUnchanged, nil
	}

	// Merge incoming fields onto the existing row, preserving its identity,
	// auto-managed timestamps and any column outside the merge set.
	for _, f := range fields.ordered {
		if skipField(f, merge) {
			continue
		}
		ev.Field(f.index).Set(rv.Field(f.index))
	}
	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return OutcomeUnchanged, err
	}
	*record = *existing
	return OutcomeUpdated, nil
}

type UnknownKeyError struct{ Column string }

func (e *UnknownKeyError) Error() string {
	return "store: no field mapped to column " + e.Column
}

type fieldInfo struct {
	index       int
	column      string
	primaryKey  bool
	autoManaged bool
	association bool
}

type fieldSet struct {
	ordered  []fieldInfo
	byColumn map[string]fieldInfo
}

var namer = schema.NamingStrategy{}

func collectFields(t reflect.Type) fieldSet {
	fs := fieldSet{byColumn: make(map[string]fieldInfo)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("gorm")
		if tag == "-" {
			continue
		}

		info := fieldInfo{
			index:       i,
			column:      columnFromTag(tag, sf.Name),
			primaryKey:  strings.Contains(tag, "primaryKey"),
			autoManaged: isAutoManaged(sf.Name, tag),
			association: isAssociation(sf.Type),
		}
		fs.ordered = append(fs.ordered, info)
		fs.byColumn[info.column] = info
	}
	return fs
}

func columnFromTag(tag, fieldName string) string {
	for _, part := range strings.Split(tag, ";") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), "column:"); ok {
			return v
		}
	}
	return namer.ColumnName("", fieldName)
}

func isAutoManaged(name, tag string) bool {
	if name == "CreatedAt" || name == "UpdatedAt" {
		return true
	}
	return strings.Contains(tag, "autoCreateTime") || strings.Contains(tag, "autoUpdateTime")
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// isAssociation reports struct-shaped fields (preloaded relations). They are
// compared by their scalar foreign-key column instead, so diff and merge
// ignore them entirely.
func isAssociation(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	return t != timeType && t != decimalType
}

func skipField(f fieldInfo, merge map[string]struct{}) bool {
	if f.primaryKey || f.autoManaged || f.association {
		return true
	}
	if merge == nil {
		return false
	}
	_, ok := merge[f.column]
	return !ok
}

func hasMeaningfulDiff(fields fieldSet, merge map[string]struct{}, existing, incoming reflect.Value) bool {
	for _, f := range fields.ordered {
		if skipField(f, merge) {
			continue
		}
		if !valuesEqual(existing.Field(f.index), incoming.Field(f.index)) {
			return true
		}
	}
	return false
}

// valuesEqual applies the type-aware comparison rules: timestamps compared
// truncated to the second, decimals by normalized value, pointers by pointee
// with nil == nil.
func valuesEqual(a, b reflect.Value) bool {
	if a.Kind() == reflect.Ptr {
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return valuesEqual(a.Elem(), b.Elem())
	}

	switch a.Type() {
	case timeType:
		at := a.Interface().(time.Time)
		bt := b.Interface().(time.Time)
		return at.Truncate(time.Second).Equal(bt.Truncate(time.Second))
	case decimalType:
		ad := a.Interface().(decimal.Decimal)
		bd := b.Interface().(decimal.Decimal)
		return ad.Equal(bd)
	}

	return reflect.DeepEqual(a.Interface(), b.Interface())
}
