// Package docstore is a small document store over SQL: named collections
// of JSON documents with point writes and ordered, cursor-positioned
// queries. It has no transactions, joins, or aggregation.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Update when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidField is returned for field names that are not plain identifiers.
	ErrInvalidField = errors.New("invalid field name")
	// ErrInvalidQuery is returned when a query cannot be executed as written.
	ErrInvalidQuery = errors.New("invalid query")
)

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Filter is an equality match on a single field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection.
//
// When OrderBy is set, documents lacking that field are excluded, and ties
// are broken by document ID in the same direction. StartAfter and StartAt
// position the window relative to a cursor document using its OrderBy
// value and ID; at most one may be set. A Limit of zero or less is unlimited.
type Query struct {
	Where      *Filter
	OrderBy    string
	Desc       bool
	Limit      int
	StartAfter *Document
	StartAt    *Document
}

// Store is a document store backed by the documents table.
type Store struct {
	db      *sql.DB
	dialect dialect
	newID   func() string
}

// New returns a Store for db. driver selects the SQL dialect ("sqlite" or
// "postgres").
func New(db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, newID: uuid.NewString}
	switch driver {
	case "sqlite", "":
		s.dialect = sqliteDialect{}
	case "postgres":
		s.dialect = postgresDialect{}
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	return s, nil
}

// Insert writes a new document and returns its assigned ID.
func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return "", err
	}
	id := s.newID()
	if _, err := s.db.ExecContext(ctx, s.dialect.insertSQL(), collection, id, data); err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

// Put writes the document with the given ID, replacing any existing fields.
func (s *Store) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.upsertSQL(), collection, id, data); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges fields into an existing document. Fields not named are
// left untouched.
func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, s.dialect.mergeSQL(), data, collection, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// Delete removes a document. Deleting a nonexistent ID succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	b := &builder{d: s.dialect}
	b.write("DELETE FROM documents WHERE collection = " + b.arg(collection) + " AND id = " + b.arg(id))
	if _, err := s.db.ExecContext(ctx, b.sb.String(), b.args...); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get returns the document, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, collection, id string) (*Document, error) {
	b := &builder{d: s.dialect}
	b.write("SELECT id, data FROM documents WHERE collection = " + b.arg(collection) + " AND id = " + b.arg(id))

	doc, err := scanDocument(s.db.QueryRowContext(ctx, b.sb.String(), b.args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Query returns the documents in collection matching q, in order.
func (s *Store) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	stmt, args, err := s.buildQuery(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *Store) buildQuery(collection string, q Query) (string, []any, error) {
	if q.StartAfter != nil && q.StartAt != nil {
		return "", nil, fmt.Errorf("%w: both StartAfter and StartAt set", ErrInvalidQuery)
	}
	for _, name := range []string{q.OrderBy, filterField(q.Where)} {
		if name != "" && !fieldName.MatchString(name) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
	}
	if q.Where != nil && q.Where.Field == "" {
		return "", nil, fmt.Errorf("%w: empty filter field", ErrInvalidField)
	}

	return s.renderQuery(collection, q)
}

// renderQuery renders the statement in one pass so bind arguments appear in
// the same order as their placeholders.
func (s *Store) renderQuery(collection string, q Query) (string, []any, error) {
	b := &builder{d: s.dialect}
	b.write("SELECT id, data FROM documents WHERE collection = " + b.arg(collection))

	if q.Where != nil {
		f := s.dialect.field(b, q.Where.Field)
		v, err := s.dialect.value(b, q.Where.Value)
		if err != nil {
			return "", nil, err
		}
		b.write(" AND " + f + " = " + v)
	}

	dir, cmp, cmpEq := "ASC", ">", ">="
	if q.Desc {
		dir, cmp, cmpEq = "DESC", "<", "<="
	}

	if q.OrderBy != "" {
		b.write(" AND " + s.dialect.field(b, q.OrderBy) + " IS NOT NULL")
	}

	cursor, op := q.StartAfter, cmp
	if q.StartAt != nil {
		cursor, op = q.StartAt, cmpEq
	}
	if cursor != nil {
		if q.OrderBy == "" {
			b.write(" AND id " + op + " " + b.arg(cursor.ID))
		} else {
			cv, ok := cursor.Fields[q.OrderBy]
			if !ok || cv == nil {
				return "", nil, fmt.Errorf("%w: cursor %s has no %q", ErrInvalidQuery, cursor.ID, q.OrderBy)
			}
			f1 := s.dialect.field(b, q.OrderBy)
			v1, err := s.dialect.value(b, cv)
			if err != nil {
				return "", nil, err
			}
			f2 := s.dialect.field(b, q.OrderBy)
			v2, err := s.dialect.value(b, cv)
			if err != nil {
				return "", nil, err
			}
			b.write(" AND (" + f1 + " " + cmp + " " + v1 +
				" OR (" + f2 + " = " + v2 + " AND id " + op + " " + b.arg(cursor.ID) + "))")
		}
	}

	if q.OrderBy != "" {
		b.write(" ORDER BY " + s.dialect.field(b, q.OrderBy) + " " + dir + ", id " + dir)
	} else {
		b.write(" ORDER BY id " + dir)
	}

	if q.Limit > 0 {
		b.write(" LIMIT " + strconv.Itoa(q.Limit))
	}

	return b.sb.String(), b.args, nil
}

func filterField(f *Filter) string {
	if f == nil {
		return ""
	}
	return f.Field
}

func scanDocument(scanner interface{ Scan(...any) error }) (*Document, error) {
	var (
		id   string
		data []byte
	)
	if err := scanner.Scan(&id, &data); err != nil {
		return nil, err
	}
	fields, err := decodeFields(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

func encodeFields(fields map[string]any) (string, error) {
	for name := range fields {
		if !fieldName.MatchString(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}
