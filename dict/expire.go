package dict

import (
	"context"
	"fmt"

	"github.com/sqldef/dictsql/util"
)

// ExpireScan deletes expired rows from every map with an expire_field
// configured, one fresh single-statement DELETE per map, fanned out
// concurrently (§4.7).
//
// nowMicros is wall_secs*1_000_000 + wall_usecs — a deliberately different
// unit from the seconds-based expiry check in Lookup/Iterator (§4.7 "Units
// note"; preserved per the §9 open question).
//
// Return value mirrors the reaper's C signature: > 0 if at least one
// expiring map exists (regardless of rows deleted), 0 if none is
// configured, and the call reports an error instead of a negative count on
// backend failure.
func ExpireScan(ctx context.Context, ex Execer, maps []*Map, tablePrefix string, nowMicros int64, concurrency int) (int, error) {
	var expiring []*Map
	for _, m := range maps {
		if m.ExpireField != "" {
			expiring = append(expiring, m)
		}
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	_, err := util.ConcurrentMapFuncWithError(expiring, concurrency, func(m *Map) (struct{}, error) {
		query := fmt.Sprintf("DELETE FROM %s%s WHERE %s <= ?", tablePrefix, m.Table, m.ExpireField)
		_, err := ex.ExecContext(ctx, query, nowMicros)
		return struct{}{}, err
	})
	if err != nil {
		return 0, wrapError(KindBackendError, err, "expire scan")
	}
	return len(expiring), nil
}
