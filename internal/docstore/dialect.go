package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// dialect renders the backend-specific pieces of the SQL the store issues.
type dialect interface {
	// field renders an expression extracting the named JSON field.
	field(b *builder, name string) string
	// value renders a bound comparison value for a JSON field.
	value(b *builder, v any) (string, error)
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder(n int) string

	insertSQL() string
	upsertSQL() string
	mergeSQL() string
}

type sqliteDialect struct{}

func (sqliteDialect) field(b *builder, name string) string {
	return "json_extract(data, " + b.arg("$."+name) + ")"
}

// json_extract yields native SQL values, so cursors and filters bind the
// matching Go type.
func (sqliteDialect) value(b *builder, v any) (string, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return b.arg(i), nil
		}
		f, err := x.Float64()
		if err != nil {
			return "", fmt.Errorf("number %q: %w", x, err)
		}
		return b.arg(f), nil
	case bool:
		if x {
			return b.arg(int64(1)), nil
		}
		return b.arg(int64(0)), nil
	case int:
		return b.arg(int64(x)), nil
	case string, int64, float64:
		return b.arg(x), nil
	default:
		return "", fmt.Errorf("unsupported comparison value %T", v)
	}
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) insertSQL() string {
	return `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`
}

func (sqliteDialect) upsertSQL() string {
	return `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`
}

func (sqliteDialect) mergeSQL() string {
	return `UPDATE documents SET data = json_patch(data, ?), updated_at = CURRENT_TIMESTAMP
		WHERE collection = ? AND id = ?`
}

type postgresDialect struct{}

func (postgresDialect) field(b *builder, name string) string {
	return "data->(" + b.arg(name) + "::text)"
}

// jsonb compares jsonb, so values are bound as JSON text and cast.
func (postgresDialect) value(b *builder, v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal comparison value: %w", err)
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

func (postgresDialect) placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) insertSQL() string {
	return `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`
}

func (postgresDialect) upsertSQL() string {
	return `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = now()`
}

func (postgresDialect) mergeSQL() string {
	return `UPDATE documents SET data = data || $1::jsonb, updated_at = now()
		WHERE collection = $2 AND id = $3`
}

// builder accumulates SQL text and its bind arguments in order.
type builder struct {
	d    dialect
	sb   strings.Builder
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return b.d.placeholder(len(b.args))
}

func (b *builder) write(s string) {
	b.sb.WriteString(s)
}
