package locality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/landtitle/titling-backend/internal/logger"
	"github.com/landtitle/titling-backend/internal/metrics"
)

// DefaultNormalizeType is assumed for bare legacy names, which carry no
// category. It is a guess pending product confirmation, not an inference:
// a bare department name is indistinguishable from a district name.
const DefaultNormalizeType = District

// BatchResult summarizes one normalization pass.
type BatchResult struct {
	Scanned   int             `json:"scanned"`
	Converted int             `json:"converted"`
	Skipped   int             `json:"skipped"`
	DryRun    bool            `json:"dry_run,omitempty"`
	Failures  []RecordFailure `json:"failures,omitempty"`
}

// FailedIDs returns the identifiers of records that could not be rewritten.
func (r BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.ID)
	}
	return ids
}

// Err returns a *PartialBatchFailure when some records failed, nil otherwise.
func (r BatchResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &PartialBatchFailure{Failures: r.Failures}
}

// Normalizer rewrites legacy bare-string locality fields into the structured
// form. Passes are single-flight through its Locker.
type Normalizer struct {
	sources     []RecordSource
	locker      Locker
	defaultType LocalityType
	dryRun      bool
	log         *slog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithDefaultType overrides the category assigned to bare names.
func WithDefaultType(t LocalityType) NormalizerOption {
	return func(n *Normalizer) { n.defaultType = t }
}

// WithLocker sets the lock guarding concurrent passes.
func WithLocker(l Locker) NormalizerOption {
	return func(n *Normalizer) { n.locker = l }
}

// WithDryRun counts conversions without writing them.
func WithDryRun(dry bool) NormalizerOption {
	return func(n *Normalizer) { n.dryRun = dry }
}

// WithNormalizerLogger overrides the default logger.
func WithNormalizerLogger(l *slog.Logger) NormalizerOption {
	return func(n *Normalizer) { n.log = l }
}

func NewNormalizer(sources []RecordSource, opts ...NormalizerOption) (*Normalizer, error) {
	n := &Normalizer{
		sources:     sources,
		locker:      &LocalLocker{},
		defaultType: DefaultNormalizeType,
		log:         logger.L(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := validateType(n.defaultType); err != nil {
		return nil, err
	}
	return n, nil
}

// NormalizeBatch scans every source and converts bare-string fields. Records
// already in structured form are never rewritten, so a second pass converts
// nothing. Per-record write failures are collected in the result and do not
// abort the pass; a failing scan or a cancelled context does.
func (n *Normalizer) NormalizeBatch(ctx context.Context) (BatchResult, error) {
	res := BatchResult{DryRun: n.dryRun}

	unlock, err := n.locker.TryLock(ctx)
	if err != nil {
		return res, err
	}
	defer unlock()

	for _, src := range n.sources {
		if err := n.normalizeSource(ctx, src, &res); err != nil {
			return res, err
		}
	}

	n.log.Info("locality_normalize_done",
		"scanned", res.Scanned,
		"converted", res.Converted,
		"skipped", res.Skipped,
		"failed", len(res.Failures),
		"dry_run", n.dryRun,
	)
	return res, nil
}

func (n *Normalizer) normalizeSource(ctx context.Context, src RecordSource, res *BatchResult) error {
	fields, err := src.ScanLocalityFields(ctx)
	if err != nil {
		return wrapStore("scan "+src.Name(), err)
	}
	n.log.Debug("locality_normalize_scan", "source", src.Name(), "records", len(fields))

	for _, f := range fields {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("normalize %s: %w", src.Name(), err)
		}
		res.Scanned++

		ref := ParseReference(f.Value)
		if ref.Kind != ReferenceBare {
			res.Skipped++
			metrics.NormalizerRecordsTotal.WithLabelValues(src.Name(), "skipped").Inc()
			continue
		}

		encoded, err := ref.Normalize(n.defaultType).Encode()
		if err == nil && !n.dryRun {
			err = src.WriteLocalityField(ctx, f.ID, f.Value, encoded)
		}
		if err != nil {
			n.log.Error("locality_normalize_record_failed", "source", src.Name(), "id", f.ID, "err", err)
			res.Failures = append(res.Failures, RecordFailure{
				Source: src.Name(),
				ID:     f.ID,
				Err:    err,
				Reason: err.Error(),
			})
			metrics.NormalizerRecordsTotal.WithLabelValues(src.Name(), "failed").Inc()
			continue
		}

		res.Converted++
		metrics.NormalizerRecordsTotal.WithLabelValues(src.Name(), "converted").Inc()
	}
	return nil
}
