package dict

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock lets callers substitute a fixed time source in tests; production
// code passes time.Now. It stands in for the shared monotonic time source
// (ioloop_time) referenced by §4.4a.
type Clock func() time.Time

// LookupRow is the decoded outcome of a single-key read (§4.4).
type LookupRow struct {
	Found bool
	// Values holds one decoded string per map.ValueTypes column, in order.
	Values []string
	// PrimaryNull reports whether Values[0]'s underlying SQL column was
	// NULL. The synchronous path already folded that into Values[0]==""
	// (§9 open question); LookupAsync uses this to coerce the whole
	// result to "not found" instead.
	PrimaryNull bool
}

// Lookup performs a synchronous single-key read (§4.4). It returns
// Found=false, no error, if key is mapped but no row survives (missing or
// expired); it returns an error for an unmapped key or a backend failure.
func Lookup(ctx context.Context, ex Execer, maps []*Map, tablePrefix, username, key string, now Clock) (LookupRow, error) {
	m, patternValues := findMap(maps, key)
	if m == nil {
		return LookupRow{}, newError(KindUnmappedKey, "invalid/unmapped key: %s", key)
	}

	var qb strings.Builder
	qb.WriteString("SELECT ")
	if m.ExpireField != "" {
		fmt.Fprintf(&qb, "%s,", m.ExpireField)
	}
	qb.WriteString(m.ValueField)
	fmt.Fprintf(&qb, " FROM %s%s", tablePrefix, m.Table)

	var params []Param
	if err := BuildWhere(username, m, patternValues, IsPrivatePath(key), RecurseNone, &qb, &params); err != nil {
		return LookupRow{}, err
	}

	rows, err := ex.QueryContext(ctx, qb.String(), bindArgs(params)...)
	if err != nil {
		return LookupRow{}, wrapError(KindBackendError, err, "lookup key %s", key)
	}
	defer rows.Close()

	hasExpire := m.ExpireField != ""
	numCols := len(m.ValueTypes)
	if hasExpire {
		numCols++
	}

	for rows.Next() {
		raw, isNull, err := scanRowInto(rows, numCols)
		if err != nil {
			return LookupRow{}, wrapError(KindBackendError, err, "scan lookup row")
		}

		valueRaw, valueNull := raw, isNull
		if hasExpire {
			if !isNull[0] {
				expiry, err := strconv.ParseInt(string(raw[0]), 10, 64)
				if err == nil && expiry <= now().Unix() {
					continue // expired row, skip (§4.4a)
				}
			}
			valueRaw, valueNull = raw[1:], isNull[1:]
		}

		values, err := scanTyped(m.ValueTypes, valueRaw, valueNull)
		if err != nil {
			return LookupRow{}, err
		}
		return LookupRow{Found: true, Values: values, PrimaryNull: len(valueNull) > 0 && valueNull[0]}, nil
	}
	if err := rows.Err(); err != nil {
		return LookupRow{}, wrapError(KindBackendError, err, "iterate lookup result")
	}
	return LookupRow{Found: false}, nil
}

// LookupAsync wraps Lookup and invokes cb exactly once, on its own
// goroutine, never blocking the caller — the idiomatic Go rendition of
// §5's "suspend by handing a callback to the driver" for a language
// without cooperative single-threaded suspension points. A NULL primary
// value column coerces Found to false here, per §4.4 point 5 and the §9
// open question ("NULL primary value": async MISSING vs. sync "").
func LookupAsync(ctx context.Context, ex Execer, maps []*Map, tablePrefix, username, key string, now Clock, cb func(LookupRow, error)) {
	go func() {
		row, err := Lookup(ctx, ex, maps, tablePrefix, username, key, now)
		if err == nil && row.Found && row.PrimaryNull {
			row.Found = false
		}
		cb(row, err)
	}()
}
