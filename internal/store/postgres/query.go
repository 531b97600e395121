package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/btcarb/internal/domain"
)

// pageQuery appends time filters, ordering and pagination from opts to a
// SELECT with no WHERE clause, returning the final SQL and its arguments.
func pageQuery(base, timeCol string, opts domain.ListOpts) (string, []any) {
	var (
		where []string
		args  []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		where = append(where, timeCol+" >= "+next(*opts.Since))
	}
	if opts.Until != nil {
		where = append(where, timeCol+" <= "+next(*opts.Until))
	}

	q := base
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + timeCol + " DESC, id DESC"
	if opts.Limit > 0 {
		q += " LIMIT " + next(opts.Limit)
	}
	if opts.Offset > 0 {
		q += " OFFSET " + next(opts.Offset)
	}
	return q, args
}
