package dict

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UpsertMode selects which conflict-handling clause Set's flush emits,
// based on what the backend driver advertises (§4.6, §6).
type UpsertMode int

const (
	UpsertPlain UpsertMode = iota
	UpsertOnDuplicateKey
	UpsertOnConflictDo
)

// Committer is the subset of *sql.Tx a Transaction needs.
type Committer interface {
	Execer
	Commit() error
	Rollback() error
}

// CommitStatus is the three-way commit outcome from §4.6.
type CommitStatus int

const (
	CommitOK CommitStatus = iota
	CommitNotFound
	CommitFailed
)

type setEntry struct {
	patternValues []string
	value         string
	expireSecs    int64
}

type incEntry struct {
	patternValues []string
	delta         int64
}

type mergeKey struct {
	table         string
	private       bool
	usernameField string
	patternValues string
}

func mergeKeyFor(m *Map, patternValues []string, private bool) mergeKey {
	uf := ""
	if private {
		uf = m.UsernameField
	}
	return mergeKey{table: m.Table, private: private, usernameField: uf, patternValues: strings.Join(patternValues, "\x00")}
}

// Transaction stages set/atomic_inc/unset calls and flushes them to SQL in
// call order, coalescing consecutive mergeable operations of the same kind
// into a single statement (§4.6).
type Transaction struct {
	ctx         context.Context
	tx          Committer
	maps        []*Map
	tablePrefix string
	username    string
	upsert      UpsertMode
	now         Clock

	prevSetMap     *Map
	prevSetKey     mergeKey
	prevSetPrivate bool
	prevSet        []setEntry

	prevIncMap     *Map
	prevIncKey     mergeKey
	prevIncPrivate bool
	prevInc        []incEntry

	err        error
	changed    bool
	anyIncZero bool
}

// NewTransaction wraps tx (typically the result of (*sql.DB).BeginTx).
func NewTransaction(ctx context.Context, tx Committer, maps []*Map, tablePrefix, username string, upsert UpsertMode, now Clock) *Transaction {
	return &Transaction{ctx: ctx, tx: tx, maps: maps, tablePrefix: tablePrefix, username: username, upsert: upsert, now: now}
}

func (t *Transaction) latch(err error) error {
	if t.err == nil {
		t.err = err
	}
	return err
}

// Set stages a value write. expireSecs <= 0 means the row never expires.
func (t *Transaction) Set(key, value string, expireSecs int64) error {
	if t.err != nil {
		return t.err
	}
	m, pv := findMap(t.maps, key)
	if m == nil {
		return t.latch(newError(KindUnmappedKey, "invalid/unmapped key: %s", key))
	}
	private := IsPrivatePath(key)
	mk := mergeKeyFor(m, pv, private)

	if err := t.flushInc(); err != nil {
		return err
	}
	if len(t.prevSet) > 0 && (t.prevSetMap != m || t.prevSetKey != mk) {
		if err := t.flushSet(); err != nil {
			return err
		}
	}
	t.prevSetMap, t.prevSetKey, t.prevSetPrivate = m, mk, private
	t.prevSet = append(t.prevSet, setEntry{patternValues: pv, value: value, expireSecs: expireSecs})
	t.changed = true
	return nil
}

// AtomicInc stages a numeric increment of the map's first value column.
func (t *Transaction) AtomicInc(key string, delta int64) error {
	if t.err != nil {
		return t.err
	}
	m, pv := findMap(t.maps, key)
	if m == nil {
		return t.latch(newError(KindUnmappedKey, "invalid/unmapped key: %s", key))
	}
	private := IsPrivatePath(key)
	mk := mergeKeyFor(m, pv, private)

	if err := t.flushSet(); err != nil {
		return err
	}
	if len(t.prevInc) > 0 && (t.prevIncMap != m || t.prevIncKey != mk) {
		if err := t.flushInc(); err != nil {
			return err
		}
	}
	t.prevIncMap, t.prevIncKey, t.prevIncPrivate = m, mk, private
	t.prevInc = append(t.prevInc, incEntry{patternValues: pv, delta: delta})
	t.changed = true
	return nil
}

// Unset stages a delete. It flushes both buffers first, then executes the
// DELETE immediately — deletes never coalesce across calls.
func (t *Transaction) Unset(key string) error {
	if t.err != nil {
		return t.err
	}
	m, pv := findMap(t.maps, key)
	if m == nil {
		return t.latch(newError(KindUnmappedKey, "invalid/unmapped key: %s", key))
	}
	if err := t.flushSet(); err != nil {
		return err
	}
	if err := t.flushInc(); err != nil {
		return err
	}

	private := IsPrivatePath(key)
	var qb strings.Builder
	fmt.Fprintf(&qb, "DELETE FROM %s%s", t.tablePrefix, m.Table)
	var params []Param
	if err := BuildWhere(t.username, m, pv, private, RecurseNone, &qb, &params); err != nil {
		return t.latch(err)
	}
	if _, err := t.tx.ExecContext(t.ctx, qb.String(), bindArgs(params)...); err != nil {
		return t.latch(wrapError(KindBackendError, err, "unset key %s", key))
	}
	t.changed = true
	return nil
}

// flushSet emits the buffered set batch as a single upsert. Per §4.6's
// mergeability test every buffered entry shares identical pattern_values —
// they all target the same row — so the most recently staged value wins;
// earlier entries in the same run are superseded, never double-written.
func (t *Transaction) flushSet() error {
	if len(t.prevSet) == 0 {
		return nil
	}
	m := t.prevSetMap
	entry := t.prevSet[len(t.prevSet)-1]
	private := t.prevSetPrivate
	t.prevSet = nil
	t.prevSetMap = nil

	firstParam, err := Encode(m.FirstValueType(), entry.value, "")
	if err != nil {
		return t.latch(err)
	}

	// Only the first value_field comma-segment is ever written; any
	// additional columns are left untouched, matching dict-sql.c's
	// t_strcut(map->value_field, ',') (only the first segment is used).
	var cols []string
	var args []any
	cols = append(cols, m.FirstValueColumn())
	args = append(args, firstParam.Value)

	if private {
		cols = append(cols, m.UsernameField)
		args = append(args, t.username)
	}

	expire := entry.expireSecs > 0 && m.ExpireField != ""
	if expire {
		cols = append(cols, m.ExpireField)
		args = append(args, t.now().Unix()+entry.expireSecs)
	}

	for i, f := range m.PatternFields {
		cols = append(cols, f.Name)
		p, err := Encode(f.Type, entry.patternValues[i], "")
		if err != nil {
			return t.latch(err)
		}
		args = append(args, p.Value)
	}

	var qb strings.Builder
	fmt.Fprintf(&qb, "INSERT INTO %s%s (%s) VALUES (%s)", t.tablePrefix, m.Table, strings.Join(cols, ","), placeholders(len(cols)))

	switch t.upsert {
	case UpsertOnDuplicateKey:
		qb.WriteString(" ON DUPLICATE KEY UPDATE ")
		writeUpdateClause(&qb, &args, m.FirstValueColumn(), firstParam.Value, expire, m.ExpireField, t.now, entry.expireSecs)
	case UpsertOnConflictDo:
		var conflictCols []string
		for _, f := range m.PatternFields {
			conflictCols = append(conflictCols, f.Name)
		}
		if private {
			conflictCols = append(conflictCols, m.UsernameField)
		}
		fmt.Fprintf(&qb, " ON CONFLICT (%s) DO UPDATE SET ", strings.Join(conflictCols, ","))
		writeUpdateClause(&qb, &args, m.FirstValueColumn(), firstParam.Value, expire, m.ExpireField, t.now, entry.expireSecs)
	case UpsertPlain:
		// conflict handling left to the backend
	}

	if _, err := t.tx.ExecContext(t.ctx, qb.String(), args...); err != nil {
		return t.latch(wrapError(KindBackendError, err, "flush set on %s%s", t.tablePrefix, m.Table))
	}
	return nil
}

func writeUpdateClause(qb *strings.Builder, args *[]any, firstValCol string, firstValue any, expire bool, expireField string, now Clock, expireSecs int64) {
	fmt.Fprintf(qb, "%s = ?", firstValCol)
	*args = append(*args, firstValue)
	if expire {
		fmt.Fprintf(qb, ", %s = ?", expireField)
		*args = append(*args, now().Unix()+expireSecs)
	}
}

// flushInc emits the buffered increment batch as a single UPDATE, summing
// deltas for the run of calls that share identical pattern_values — N
// consecutive increments of the same key are equivalent to one increment
// by their sum.
func (t *Transaction) flushInc() error {
	if len(t.prevInc) == 0 {
		return nil
	}
	m := t.prevIncMap
	private := t.prevIncPrivate
	var total int64
	var pv []string
	for _, e := range t.prevInc {
		total += e.delta
		pv = e.patternValues
	}
	t.prevInc = nil
	t.prevIncMap = nil

	col := m.FirstValueColumn()
	var qb strings.Builder
	fmt.Fprintf(&qb, "UPDATE %s%s SET %s = %s + ?", t.tablePrefix, m.Table, col, col)
	params := []Param{{Type: TypeInt, Value: total}}

	if err := BuildWhere(t.username, m, pv, private, RecurseNone, &qb, &params); err != nil {
		return t.latch(err)
	}

	res, err := t.tx.ExecContext(t.ctx, qb.String(), bindArgs(params)...)
	if err != nil {
		return t.latch(wrapError(KindBackendError, err, "flush atomic_inc on %s%s", t.tablePrefix, m.Table))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		t.anyIncZero = true
	}
	return nil
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ",")
}

// Commit flushes any staged operations and commits synchronously (§4.6).
func (t *Transaction) Commit() (CommitStatus, error) {
	t.flushSet()
	t.flushInc()

	if t.err != nil {
		t.tx.Rollback()
		return CommitFailed, t.err
	}
	if !t.changed {
		t.tx.Rollback()
		return CommitOK, nil
	}
	if err := t.tx.Commit(); err != nil {
		return CommitFailed, wrapError(KindCommitFailed, err, "commit transaction")
	}
	if t.anyIncZero {
		return CommitNotFound, nil
	}
	return CommitOK, nil
}

// CommitAsync runs Commit on its own goroutine and reports the outcome via
// cb, remapping a failure whose cause is context.DeadlineExceeded or
// context.Canceled (the write's fate is then unknown) to WriteUncertain
// rather than Failed (§4.6 "Async path"). Any other failure, including a
// dropped connection, is reported unchanged.
func (t *Transaction) CommitAsync(cb func(CommitStatus, error)) {
	go func() {
		status, err := t.Commit()
		if err != nil && status == CommitFailed {
			var derr *Error
			if errors.As(err, &derr) && (errors.Is(derr.Cause, context.DeadlineExceeded) || errors.Is(derr.Cause, context.Canceled)) {
				err = wrapError(KindWriteUncertain, derr.Cause, derr.Message)
			}
		}
		cb(status, err)
	}()
}

// Rollback discards staged operations without emitting them and rolls back
// the underlying SQL transaction.
func (t *Transaction) Rollback() error {
	t.prevSet = nil
	t.prevInc = nil
	return t.tx.Rollback()
}
