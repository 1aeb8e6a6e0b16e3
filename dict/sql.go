package dict

import (
	"context"
	"database/sql"
)

// Execer is the narrow slice of *sql.DB / *sql.Tx this package needs.
// Connection pooling, prepared-statement caching, and the rest of the SQL
// driver abstraction are deliberately out of scope (§1) — database/sql
// itself plays that external-collaborator role here, and dict never cares
// whether it's talking to a pooled *sql.DB or a single *sql.Tx.
type Execer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// bindArgs converts an ordered Param slice into database/sql bind
// arguments, preserving order (§3 "Parameter": "order must match '?'
// placeholder order").
func bindArgs(params []Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p.Value
	}
	return args
}

// scanTyped reads one result row into path-text values, decoding each
// configured Type and skipping over expiry/value columns already consumed
// by the caller. raw holds the column bytes read via rows.Scan into
// sql.RawBytes-compatible []byte slots; null[i] reports whether column i
// was SQL NULL.
func scanTyped(types []Type, raw [][]byte, null []bool) ([]string, error) {
	out := make([]string, len(types))
	for i, t := range types {
		v, err := Decode(t, raw[i], null[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scanRowInto scans n columns of *sql.Rows into byte/null slots, the
// shape scanTyped expects. database/sql represents NULL as a nil
// sql.RawBytes, and a non-NULL textual/binary column as its raw bytes.
func scanRowInto(rows *sql.Rows, n int) ([][]byte, []bool, error) {
	raws := make([]sql.RawBytes, n)
	dest := make([]any, n)
	for i := range raws {
		dest[i] = &raws[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, nil, err
	}
	out := make([][]byte, n)
	isNull := make([]bool, n)
	for i, r := range raws {
		if r == nil {
			isNull[i] = true
			continue
		}
		out[i] = append([]byte(nil), r...)
	}
	return out, isNull, nil
}
