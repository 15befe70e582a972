package blockindex

// invertLowestOne clears the lowest set bit of n.
func invertLowestOne(n uint64) uint64 {
	return n & (n - 1)
}

// skipHeight computes the height an entry's Skip pointer should target,
// following the classic logarithmic-ancestor scheme: bit-twiddling on the
// height picks a skip target such that repeated hops from any height down
// to any lower height take O(log n) steps instead of O(n).
func skipHeight(height uint64) uint64 {
	if height < 2 {
		return 0
	}
	if height&1 != 0 {
		return invertLowestOne(invertLowestOne(height-1)) + 1
	}
	return invertLowestOne(height)
}

// getAncestor walks from e down to the entry at the given height, using
// Skip pointers to avoid a full linear walk of Parent pointers.
func getAncestor(e *Entry, height uint64) *Entry {
	if e == nil || height > e.Height {
		return nil
	}

	walk := e
	walkHeight := e.Height
	for walkHeight > height {
		skipH := skipHeight(walkHeight)
		skipPrevH := skipHeight(walkHeight - 1)
		if walk.Skip != nil && (skipH == height ||
			(skipH > height && !(skipPrevH < skipH-2 && skipPrevH >= height))) {
			walk = walk.Skip
			walkHeight = skipH
		} else {
			walk = walk.Parent
			walkHeight--
		}
	}
	return walk
}
