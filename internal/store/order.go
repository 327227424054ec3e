package store

import "net/netip"

// hostLess orders IP addresses numerically and anything else lexically
// after them.
func hostLess(a, b string) bool {
	ia, errA := netip.ParseAddr(a)
	ib, errB := netip.ParseAddr(b)
	switch {
	case errA == nil && errB == nil:
		return ia.Less(ib)
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
