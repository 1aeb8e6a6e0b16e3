package dict

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// IterFlags mirrors the flag set in §4.5.
type IterFlags struct {
	Recurse     bool
	ExactKey    bool
	NoValue     bool
	SortByKey   bool
	SortByValue bool
	Async       bool
}

// IterRow is one (key, values) pair yielded by an Iterator.
type IterRow struct {
	Key    string
	Values []string
}

// Iterator walks one or more Maps under path, in the order they appear in
// the maps slice, rebuilding full keys as it goes (§4.5). Its zero value is
// not usable; construct with NewIterator.
type Iterator struct {
	ctx         context.Context
	ex          Execer
	maps        []*Map
	tablePrefix string
	username    string
	path        string
	flags       IterFlags
	now         Clock
	maxRows     int // < 0: unlimited

	nextMapIdx   int
	allowNullMap bool
	emitted      int
	done         bool

	// per-current-map state
	curMap           *Map
	patternValues    []string
	keyPrefixLen     int
	patternPrefixLen int
	sqlFieldsStart   int
	patternCols      []Field

	rows      *sql.Rows
	hasExpire bool
	hasValue  bool
}

// NewIterator constructs an Iterator over path. maxRows < 0 means
// unlimited.
func NewIterator(ctx context.Context, ex Execer, maps []*Map, tablePrefix, username, path string, flags IterFlags, maxRows int, now Clock) *Iterator {
	return &Iterator{
		ctx:         ctx,
		ex:          ex,
		maps:        maps,
		tablePrefix: tablePrefix,
		username:    username,
		path:        path,
		flags:       flags,
		now:         now,
		maxRows:     maxRows,
	}
}

// Next returns the next surviving (key, values) pair. ok is false, err nil
// at clean end of iteration; err is non-nil on InvalidPath or a backend
// failure.
func (it *Iterator) Next() (IterRow, bool, error) {
	if it.done {
		return IterRow{}, false, nil
	}
	if it.maxRows >= 0 && it.emitted >= it.maxRows {
		it.closeRows()
		it.done = true
		return IterRow{}, false, nil
	}

	for {
		if it.rows == nil {
			if err := it.advanceMap(); err != nil {
				it.done = true
				return IterRow{}, false, err
			}
			if it.done {
				return IterRow{}, false, nil
			}
		}

		row, ok, err := it.nextRowFromCursor()
		if err != nil {
			it.done = true
			return IterRow{}, false, err
		}
		if ok {
			it.emitted++
			return row, true, nil
		}

		// current map exhausted
		it.closeRows()
		if it.flags.ExactKey {
			it.done = true
			return IterRow{}, false, nil
		}
		it.allowNullMap = true
		// loop back around: advanceMap() runs on next iteration
	}
}

func (it *Iterator) closeRows() {
	if it.rows != nil {
		it.rows.Close()
		it.rows = nil
	}
}

// advanceMap finds the next map to query and runs its query, populating
// it.rows. Sets it.done (clean EOF) instead of returning an error when no
// further map exists and a prior map has already been read to its end,
// whether or not that map yielded any rows.
func (it *Iterator) advanceMap() error {
	recurse := RecurseOne
	if it.flags.Recurse {
		recurse = RecurseFull
	} else if it.flags.ExactKey {
		recurse = RecurseNone
	}

	m, ok := findNextMapForIter(it.maps, it.path, it.nextMapIdx, it.flags.Recurse)
	if !ok {
		if it.allowNullMap {
			it.done = true
			return nil
		}
		return newError(KindInvalidPath, "no map matches iteration path %s", it.path)
	}
	it.nextMapIdx = m.Index + 1
	it.curMap = m.Map
	it.patternValues = m.Values
	it.keyPrefixLen = m.PathPrefixLen
	it.patternPrefixLen = m.PatternPrefixLen

	start := len(m.Values)
	if start == len(m.Map.PatternFields) && start > 0 {
		start--
	}
	it.sqlFieldsStart = start
	it.patternCols = m.Map.PatternFields[start:]

	it.hasExpire = m.Map.ExpireField != ""
	it.hasValue = !it.flags.NoValue

	var qb strings.Builder
	qb.WriteString("SELECT ")
	var cols []string
	if it.hasExpire {
		cols = append(cols, m.Map.ExpireField)
	}
	if it.hasValue {
		cols = append(cols, m.Map.ValueField)
	}
	for _, f := range it.patternCols {
		cols = append(cols, f.Name)
	}
	if len(cols) == 0 {
		cols = []string{"1"}
	}
	qb.WriteString(strings.Join(cols, ","))
	fmt.Fprintf(&qb, " FROM %s%s", it.tablePrefix, m.Map.Table)

	var params []Param
	if err := BuildWhere(it.username, m.Map, m.Values, IsPrivatePath(it.path), recurse, &qb, &params); err != nil {
		return err
	}

	if it.flags.SortByKey && len(it.patternCols) > 0 {
		fmt.Fprintf(&qb, " ORDER BY %s", it.patternCols[0].Name)
	} else if it.flags.SortByValue && it.hasValue {
		fmt.Fprintf(&qb, " ORDER BY %s", m.Map.FirstValueColumn())
	}

	if it.maxRows >= 0 {
		fmt.Fprintf(&qb, " LIMIT %d", it.maxRows-it.emitted)
	}

	rows, err := it.ex.QueryContext(it.ctx, qb.String(), bindArgs(params)...)
	if err != nil {
		return wrapError(KindBackendError, err, "iterate path %s", it.path)
	}
	it.rows = rows
	return nil
}

// nextRowFromCursor pulls the next surviving row (expiry-skipped) off the
// current map's cursor, or ok=false at its EOF.
func (it *Iterator) nextRowFromCursor() (IterRow, bool, error) {
	valueTypesLen := 0
	if it.hasValue {
		valueTypesLen = len(it.curMap.ValueTypes)
	}
	numCols := valueTypesLen + len(it.patternCols)
	if it.hasExpire {
		numCols++
	}

	for it.rows.Next() {
		raw, isNull, err := scanRowInto(it.rows, numCols)
		if err != nil {
			return IterRow{}, false, wrapError(KindBackendError, err, "scan iteration row")
		}

		idx := 0
		if it.hasExpire {
			if !isNull[0] {
				expiry, err := strconv.ParseInt(string(raw[0]), 10, 64)
				if err == nil && expiry <= it.now().Unix() {
					continue
				}
			}
			idx = 1
		}

		var values []string
		if it.hasValue {
			values, err = scanTyped(it.curMap.ValueTypes, raw[idx:idx+valueTypesLen], isNull[idx:idx+valueTypesLen])
			if err != nil {
				return IterRow{}, false, err
			}
			idx += valueTypesLen
		}

		patternValues := make([]string, len(it.patternCols))
		for i, f := range it.patternCols {
			v, err := Decode(f.Type, raw[idx+i], isNull[idx+i])
			if err != nil {
				return IterRow{}, false, err
			}
			patternValues[i] = v
		}

		key := it.rebuildKey(patternValues)
		return IterRow{Key: key, Values: values}, true, nil
	}
	if err := it.rows.Err(); err != nil {
		return IterRow{}, false, wrapError(KindBackendError, err, "iterate rows")
	}
	return IterRow{}, false, nil
}

// rebuildKey reconstructs the full key for a row: the already-matched
// prefix of it.path, plus the remainder of it.curMap.Pattern walked from
// patternPrefixLen, substituting patternValues at each '$' in order (§4.5
// "Row emission").
func (it *Iterator) rebuildKey(patternValues []string) string {
	var kb strings.Builder
	prefix := it.path[:it.keyPrefixLen]
	kb.WriteString(prefix)
	if !strings.HasSuffix(prefix, "/") && it.keyPrefixLen < len(it.curMap.Pattern) {
		kb.WriteByte('/')
	}

	vi := 0
	for _, c := range it.curMap.Pattern[it.patternPrefixLen:] {
		if c == '$' {
			if vi < len(patternValues) {
				kb.WriteString(patternValues[vi])
				vi++
			}
			continue
		}
		kb.WriteRune(c)
	}
	return kb.String()
}

// Close releases the iterator's open cursor, if any. Safe to call more
// than once.
func (it *Iterator) Close() {
	it.closeRows()
	it.done = true
}
