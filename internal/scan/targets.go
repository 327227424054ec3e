package scan

import (
	stderrors "errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/computergenieco/pimon/internal/errors"
)

// MaxTargets caps how many addresses a single segment may expand to.
const MaxTargets = 65536

// ParseTargets expands a comma-separated target list into IPv4 addresses.
//
// Each segment is one of:
//   - a single address: 192.168.1.5
//   - an inclusive range: 192.168.1.21-192.168.3.254
//   - a short range on the last octet: 192.168.1.21-40
//   - a CIDR block: 192.168.1.0/24 (network and broadcast dropped below /31)
//
// Malformed segments are collected into the returned error while the valid
// segments are still expanded, so callers may log the error and carry on.
// Duplicates are dropped; first occurrence wins.
func ParseTargets(list string) ([]netip.Addr, error) {
	var (
		addrs []netip.Addr
		seen  = make(map[netip.Addr]struct{})
		errs  []error
	)

	for _, raw := range strings.Split(list, ",") {
		seg := strings.TrimSpace(raw)
		if seg == "" {
			continue
		}
		expanded, err := parseSegment(seg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", seg, err))
			continue
		}
		for _, a := range expanded {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			addrs = append(addrs, a)
		}
	}

	if len(errs) > 0 {
		return addrs, errors.WrapWithCode(stderrors.Join(errs...), errors.ErrScan,
			fmt.Sprintf("%d malformed scan target(s)", len(errs)),
			"Use addresses, a.b.c.d-e.f.g.h ranges, a.b.c.d-n short ranges, or CIDR blocks in scan.range.")
	}
	return addrs, nil
}

func parseSegment(seg string) ([]netip.Addr, error) {
	if strings.Contains(seg, "/") {
		return expandPrefix(seg)
	}
	if start, end, ok := strings.Cut(seg, "-"); ok {
		return expandRange(strings.TrimSpace(start), strings.TrimSpace(end))
	}
	a, err := parseIPv4(seg)
	if err != nil {
		return nil, err
	}
	return []netip.Addr{a}, nil
}

func parseIPv4(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	if !a.Is4() {
		return netip.Addr{}, fmt.Errorf("%s is not an IPv4 address", s)
	}
	return a, nil
}

func expandRange(startStr, endStr string) ([]netip.Addr, error) {
	start, err := parseIPv4(startStr)
	if err != nil {
		return nil, err
	}

	var end netip.Addr
	if n, convErr := strconv.Atoi(endStr); convErr == nil {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("last octet %d out of range", n)
		}
		b := start.As4()
		b[3] = byte(n)
		end = netip.AddrFrom4(b)
	} else {
		end, err = parseIPv4(endStr)
		if err != nil {
			return nil, err
		}
	}

	lo, hi := toUint32(start), toUint32(end)
	if hi < lo {
		return nil, fmt.Errorf("range end %s is before start %s", end, start)
	}
	if uint64(hi)-uint64(lo)+1 > MaxTargets {
		return nil, fmt.Errorf("range covers %d addresses, limit is %d", uint64(hi)-uint64(lo)+1, MaxTargets)
	}

	out := make([]netip.Addr, 0, hi-lo+1)
	for a := start; ; a = a.Next() {
		out = append(out, a)
		if a == end {
			break
		}
	}
	return out, nil
}

func expandPrefix(s string) ([]netip.Addr, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return nil, err
	}
	if !p.Addr().Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 prefix", s)
	}
	p = p.Masked()

	size := uint64(1) << (32 - p.Bits())
	if size > MaxTargets {
		return nil, fmt.Errorf("prefix covers %d addresses, limit is %d", size, MaxTargets)
	}

	out := make([]netip.Addr, 0, size)
	for a := p.Addr(); p.Contains(a); a = a.Next() {
		out = append(out, a)
		if !a.Next().IsValid() {
			break
		}
	}

	if p.Bits() < 31 && len(out) > 2 {
		out = out[1 : len(out)-1]
	}
	return out, nil
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
