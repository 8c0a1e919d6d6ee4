package window

import (
	"github.com/pulsewatch/pulsewatch/pkg/errors"
	"github.com/pulsewatch/pulsewatch/pkg/models"
)

// Cell is one scalar of a bucket. Valid is false until the cell has been
// written for the bucket's current epoch, so sparse buckets stay
// distinguishable from buckets holding a genuine zero.
type Cell struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Row is one bucket of a snapshot, oldest-first ordering is guaranteed by
// Buffer.Snapshot.
type Row struct {
	BucketStart int64  `json:"bucket_start"`
	Cells       []Cell `json:"cells"`
}

// Buffer is a fixed-size circular window of time buckets. It retains the most
// recent rows buckets of widthSec seconds each; the origin (newest bucket
// start) only moves forward. Slots are reused as real time advances, and every
// slot that falls out of the retained range is cleared before reuse so data
// from a previous epoch can never leak into a new bucket.
//
// Buffer is not synchronized. The owning series serializes all access.
type Buffer struct {
	rows     int
	widthSec int64
	columns  []models.ColumnMeta

	data    [][]float64
	written [][]bool

	// origin is the bucket start of the newest known bucket, -1 until the
	// first write.
	origin int64
}

// NewBuffer creates a buffer of rows buckets by cols columns, each bucket
// covering widthSec seconds.
func NewBuffer(rows, cols int, widthSec int64) *Buffer {
	b := &Buffer{
		rows:     rows,
		widthSec: widthSec,
		columns:  make([]models.ColumnMeta, cols),
		data:     make([][]float64, rows),
		written:  make([][]bool, rows),
		origin:   -1,
	}
	for i := range b.data {
		b.data[i] = make([]float64, cols)
		b.written[i] = make([]bool, cols)
	}
	return b
}

// Rows returns the bucket capacity of the window.
func (b *Buffer) Rows() int { return b.rows }

// WidthSec returns the bucket width in seconds.
func (b *Buffer) WidthSec() int64 { return b.widthSec }

// SpanSec returns the total wall-clock span the window can retain.
func (b *Buffer) SpanSec() int64 { return int64(b.rows) * b.widthSec }

// SetColumnMeta records the name, unit and aggregation hint for a column. The
// hint is carried as metadata for downstream renderers and not enforced here.
func (b *Buffer) SetColumnMeta(col int, name, unit string, hint models.AggregationHint) error {
	if col < 0 || col >= len(b.columns) {
		return errors.ErrColumnOutOfRange
	}
	b.columns[col] = models.ColumnMeta{Name: name, Unit: unit, Hint: hint}
	return nil
}

// Columns returns the column metadata in column order.
func (b *Buffer) Columns() []models.ColumnMeta {
	out := make([]models.ColumnMeta, len(b.columns))
	copy(out, b.columns)
	return out
}

// Accumulate adds delta to the cell for ts in the given column and returns the
// new total. A timestamp newer than the current origin advances the window
// first; a timestamp older than the retained range is rejected with
// ErrOutOfWindow and leaves the buffer untouched.
func (b *Buffer) Accumulate(ts int64, col int, delta float64) (float64, error) {
	if col < 0 || col >= len(b.columns) {
		return 0, errors.ErrColumnOutOfRange
	}
	slot, err := b.seek(ts)
	if err != nil {
		return 0, err
	}
	b.data[slot][col] += delta
	b.written[slot][col] = true
	return b.data[slot][col], nil
}

// Overwrite replaces the cell for ts in the given column. Same windowing rules
// as Accumulate.
func (b *Buffer) Overwrite(ts int64, col int, value float64) error {
	if col < 0 || col >= len(b.columns) {
		return errors.ErrColumnOutOfRange
	}
	slot, err := b.seek(ts)
	if err != nil {
		return err
	}
	b.data[slot][col] = value
	b.written[slot][col] = true
	return nil
}

// Read returns the cell for ts in the given column. The second return is
// false when the bucket is outside the retained range or the cell has never
// been written. Read never moves the origin.
func (b *Buffer) Read(ts int64, col int) (float64, bool) {
	if col < 0 || col >= len(b.columns) || b.origin < 0 {
		return 0, false
	}
	slot, bucketStart := BucketIndex(ts, b.widthSec, b.rows)
	if bucketStart > b.origin || bucketStart < b.oldestBucket() {
		return 0, false
	}
	if !b.written[slot][col] {
		return 0, false
	}
	return b.data[slot][col], true
}

// Snapshot returns the retained buckets oldest to newest. Cells that were
// never written carry Valid=false. An empty buffer yields nil.
func (b *Buffer) Snapshot() []Row {
	if b.origin < 0 {
		return nil
	}
	rows := make([]Row, 0, b.rows)
	for i := b.rows - 1; i >= 0; i-- {
		bucketStart := b.origin - int64(i)*b.widthSec
		if bucketStart < 0 {
			continue
		}
		slot, _ := BucketIndex(bucketStart, b.widthSec, b.rows)
		cells := make([]Cell, len(b.columns))
		for c := range cells {
			cells[c] = Cell{Value: b.data[slot][c], Valid: b.written[slot][c]}
		}
		rows = append(rows, Row{BucketStart: bucketStart, Cells: cells})
	}
	return rows
}

// oldestBucket returns the bucket start of the oldest retained bucket.
func (b *Buffer) oldestBucket() int64 {
	return b.origin - int64(b.rows-1)*b.widthSec
}

// seek resolves ts to a slot, advancing and clearing the window when ts lands
// past the current origin. Advancing clears at most rows slots: a jump larger
// than the whole window wipes the buffer once instead of iterating the gap.
func (b *Buffer) seek(ts int64) (int, error) {
	slot, bucketStart := BucketIndex(ts, b.widthSec, b.rows)
	if b.origin < 0 {
		b.origin = bucketStart
		return slot, nil
	}
	if bucketStart > b.origin {
		steps := (bucketStart - b.origin) / b.widthSec
		if steps >= int64(b.rows) {
			b.clearAll()
		} else {
			for s := b.origin + b.widthSec; s <= bucketStart; s += b.widthSec {
				i, _ := BucketIndex(s, b.widthSec, b.rows)
				b.clearSlot(i)
			}
		}
		b.origin = bucketStart
		return slot, nil
	}
	if bucketStart < b.oldestBucket() {
		return 0, errors.ErrOutOfWindow
	}
	return slot, nil
}

func (b *Buffer) clearSlot(slot int) {
	for c := range b.data[slot] {
		b.data[slot][c] = 0
		b.written[slot][c] = false
	}
}

func (b *Buffer) clearAll() {
	for i := 0; i < b.rows; i++ {
		b.clearSlot(i)
	}
}
