package window

// BucketIndex maps an absolute unix-second timestamp onto a circular window of
// rows buckets, each widthSec wide. It returns the slot the timestamp lands in
// and the start of its bucket. Two timestamps share a slot iff their bucket
// starts differ by an exact multiple of rows*widthSec.
func BucketIndex(ts, widthSec int64, rows int) (slot int, bucketStart int64) {
	bucketStart = (ts / widthSec) * widthSec
	slot = int((bucketStart / widthSec) % int64(rows))
	return slot, bucketStart
}
