package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketIndex(t *testing.T) {
	slot, start := BucketIndex(125, 60, 3)
	assert.Equal(t, 2, slot)
	assert.Equal(t, int64(120), start)

	slot, start = BucketIndex(0, 60, 3)
	assert.Equal(t, 0, slot)
	assert.Equal(t, int64(0), start)

	slot, start = BucketIndex(59, 60, 3)
	assert.Equal(t, 0, slot)
	assert.Equal(t, int64(0), start)
}

func TestBucketIndexWrapsOnExactWindowMultiples(t *testing.T) {
	// Two timestamps share a slot iff their bucket starts differ by a
	// multiple of rows*width.
	rows, width := 3, int64(60)

	slotA, _ := BucketIndex(30, width, rows)
	slotB, _ := BucketIndex(30+int64(rows)*width, width, rows)
	slotC, _ := BucketIndex(30+2*int64(rows)*width, width, rows)
	assert.Equal(t, slotA, slotB)
	assert.Equal(t, slotA, slotC)

	slotD, _ := BucketIndex(30+width, width, rows)
	assert.NotEqual(t, slotA, slotD)
}
