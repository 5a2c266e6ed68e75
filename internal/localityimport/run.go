package localityimport

import (
	"context"

	"github.com/landtitle/titling-backend/internal/locality"
	"github.com/landtitle/titling-backend/internal/logger"
)

// Stats summarizes an import. Added is After minus Before, so duplicates
// within and across sources never count.
type Stats struct {
	Read    int
	Invalid int
	Before  int64
	After   int64
	Added   int64
}

// Run feeds every record to the catalogue once. Invalid records are logged
// and skipped; a store failure aborts the import.
func Run(ctx context.Context, cat *locality.Catalogue, records []Record) (Stats, error) {
	var st Stats
	log := logger.L()

	before, err := cat.Count(ctx)
	if err != nil {
		return st, err
	}
	st.Before = before

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Read++

		if _, err := cat.UpsertLocality(ctx, rec.Type, rec.Name); err != nil {
			if locality.IsValidation(err) {
				st.Invalid++
				log.Warn("locality_import_invalid", "source", rec.Source, "line", rec.Line, "err", err)
				continue
			}
			return st, err
		}
	}

	after, err := cat.Count(ctx)
	if err != nil {
		return st, err
	}
	st.After = after
	st.Added = after - before

	log.Info("locality_import_done",
		"read", st.Read,
		"invalid", st.Invalid,
		"added", st.Added,
		"total", st.After,
	)
	return st, nil
}
