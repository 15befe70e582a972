package chainstate

import "time"

// nowSeconds returns the current wall-clock time as a header-compatible
// Unix timestamp, split out so tests can stub future-skew scenarios by
// calling checkContextual directly with a fixed value instead.
func nowSeconds() uint32 {
	return uint32(time.Now().Unix())
}
