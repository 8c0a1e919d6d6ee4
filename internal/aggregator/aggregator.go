package aggregator

import (
	stderrors "errors"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/window"
	"github.com/pulsewatch/pulsewatch/pkg/errors"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Column 0 of both buffers is the per-bucket sample count; monitored fields
// occupy columns 1..n in the order they were configured.
const CountColumn = 0

// Aggregator folds incoming records into a pair of window buffers: sums holds
// the raw running totals plus the sample count, published holds the derived
// running averages plus the same count. Only published is exposed to
// detection and emission; sums is internal state.
type Aggregator struct {
	fields    []string
	sums      *window.Buffer
	published *window.Buffer
	logger    *logrus.Logger

	dropped int64
}

// New creates an aggregator over the given monitored fields. Both buffers are
// created with rows buckets of widthSec seconds and one column per field plus
// the count column.
func New(fields []string, rows int, widthSec int64, logger *logrus.Logger) *Aggregator {
	if logger == nil {
		logger = logrus.New()
	}

	cols := len(fields) + 1
	a := &Aggregator{
		fields:    fields,
		sums:      window.NewBuffer(rows, cols, widthSec),
		published: window.NewBuffer(rows, cols, widthSec),
		logger:    logger,
	}

	a.sums.SetColumnMeta(CountColumn, "count", "count", models.AggregationSum)
	a.published.SetColumnMeta(CountColumn, "count", "count", models.AggregationSum)
	for i, f := range fields {
		a.sums.SetColumnMeta(i+1, f, "sum", models.AggregationSum)
		a.published.SetColumnMeta(i+1, f, "avg", models.AggregationNone)
	}
	return a
}

// Published returns the buffer of running averages. Callers must not mutate
// it; the owning series serializes access.
func (a *Aggregator) Published() *window.Buffer {
	return a.published
}

// Dropped returns how many records were discarded as too old for the window.
func (a *Aggregator) Dropped() int64 {
	return a.dropped
}

// Ingest folds one record into the buffers. Records without a usable
// timestamp are dropped, as are records whose bucket has already been evicted
// from the window. A monitored field missing from the record contributes zero
// to its running sum; the sample still counts, so sparse records dilute the
// bucket average. Ingest never fails the caller.
func (a *Aggregator) Ingest(rec models.Record) error {
	if rec.TimestampNs <= 0 {
		a.dropped++
		return errors.ErrMissingTimestamp
	}
	ts := rec.Timestamp()

	count, err := a.sums.Accumulate(ts, CountColumn, 1)
	if err != nil {
		if stderrors.Is(err, errors.ErrOutOfWindow) {
			a.dropped++
			a.logger.WithFields(logrus.Fields{
				"timestamp_ns": rec.TimestampNs,
			}).Debug("record outside retained window, dropped")
			return errors.ErrOutOfWindow
		}
		return err
	}
	a.published.Overwrite(ts, CountColumn, count)

	for i, f := range a.fields {
		value := rec.Fields[f] // absent field contributes 0
		col := i + 1
		sum, err := a.sums.Accumulate(ts, col, value)
		if err != nil {
			// Local to this field only; other fields of the record
			// still aggregate.
			continue
		}
		a.published.Overwrite(ts, col, sum/count)
	}
	return nil
}
