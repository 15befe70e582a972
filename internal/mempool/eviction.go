package mempool

import "sort"

// Evict removes the lowest descendant-fee-rate packages until the pool is at
// or below its configured byte cap, raising the dynamic fee floor so
// immediately re-offered low-fee transactions don't bounce straight back in.
func (p *Pool) Evict() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evictUnderPressure()
}

// evictUnderPressure assumes mu is already held. A root's standing for
// eviction is its whole descendant package's combined rate, not its own —
// so a low-fee root with a high-fee child is evicted together with that
// child only if the combined package rate is itself the worst in the pool,
// and a cheap root next to an unrelated high-fee package is evicted first
// on its own merits.
func (p *Pool) evictUnderPressure() int {
	evicted := 0
	var evictedMaxRate float64

	for p.totalBytes > p.cfg.MaxMempoolBytes && len(p.entries) > 0 {
		worst := p.worstPackageRoot()
		if worst == nil {
			break
		}
		rate := worst.DescendantFeeRate()
		if rate > evictedMaxRate {
			evictedMaxRate = rate
		}
		root := worst.TxID
		before := len(p.entries)
		p.removeWithDescendants(root)
		evicted += before - len(p.entries)
	}

	if evicted > 0 {
		// Ratchet the floor just above the worst package evicted, so the
		// next admission attempt at that rate is rejected outright rather
		// than re-triggering eviction.
		const increment = 1.0 / 1000 // one base unit per kilobyte.
		floor := evictedMaxRate + increment
		if floor > p.minFeeRate {
			p.minFeeRate = floor
		}
	}
	return evicted
}

// worstPackageRoot finds the package — a package root plus its full
// descendant set — with the lowest combined fee-rate. Only entries with no
// in-pool ancestors are considered roots, so each candidate package is
// disjoint from every other and evicting one never partially evicts
// another package's ancestor.
func (p *Pool) worstPackageRoot() *Entry {
	var roots []*Entry
	for _, e := range p.entries {
		if len(e.Ancestors) == 0 {
			roots = append(roots, e)
		}
	}
	if len(roots) == 0 {
		return nil
	}
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].DescendantFeeRate() < roots[j].DescendantFeeRate()
	})
	return roots[0]
}
