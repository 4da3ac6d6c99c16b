package domain

import (
	"cmp"
	"net/netip"
	"strconv"
	"strings"
)

// NormalizeMAC trims and lowercases a MAC address. The format itself is left
// for the backend to judge.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}

// MACDigits strips separators from a MAC address and returns its upper-case hex digits.
func MACDigits(mac string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		case r >= 'a' && r <= 'f':
			return r - 'a' + 'A'
		}
		return -1
	}, mac)
}

// IsRandomizedMAC reports whether the locally administered bit of the first
// octet is set, which is how phones and laptops mark privacy addresses.
func IsRandomizedMAC(mac string) bool {
	digits := MACDigits(mac)
	if len(digits) < 2 {
		return false
	}
	first, err := strconv.ParseUint(digits[:2], 16, 8)
	if err != nil {
		return false
	}
	return first&0b10 != 0
}

// CompareIP orders addresses numerically. Unparsable addresses sort after
// valid ones, by string.
func CompareIP(left, right string) int {
	l, lerr := netip.ParseAddr(strings.TrimSpace(left))
	r, rerr := netip.ParseAddr(strings.TrimSpace(right))
	switch {
	case lerr == nil && rerr == nil:
		return l.Compare(r)
	case lerr == nil:
		return -1
	case rerr == nil:
		return 1
	}
	return cmp.Compare(left, right)
}
