package ui

import (
	"net/netip"
	"sort"
)

// sortHosts orders IP addresses numerically, anything else after them.
func sortHosts(hosts []string) {
	sort.Slice(hosts, func(i, j int) bool {
		a, errA := netip.ParseAddr(hosts[i])
		b, errB := netip.ParseAddr(hosts[j])
		switch {
		case errA == nil && errB == nil:
			return a.Less(b)
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return hosts[i] < hosts[j]
		}
	})
}
