package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Cmp is a numeric comparison kind used by size: and date-modified: atoms.
type Cmp int

const (
	CmpEQ Cmp = iota
	CmpLT
	CmpLE
	CmpGT
	CmpGE
	CmpRange
)

// SizeAtom is the parsed form of a size: filter: a comparison against a
// value in bytes, or a closed-open [Lo, Hi) range for CmpRange.
type SizeAtom struct {
	Cmp Cmp
	Lo  uint64
	Hi  uint64
}

// unit powers of 1000, matching spec.md §4.9: "size units apply powers of
// 1000, not 1024".
var sizeUnits = map[string]uint64{
	"":  1,
	"b": 1,
	"k": 1_000, "kb": 1_000,
	"m": 1_000_000, "mb": 1_000_000,
	"g": 1_000_000_000, "gb": 1_000_000_000,
	"t": 1_000_000_000_000, "tb": 1_000_000_000_000,
}

// ParseSize parses the size: argument grammar:
//
//	[<|<=|>|>=] N[k|m|g|t][b]
//	N..M
//
// For a bare "=" (no comparator) with a unit, the range silently widens
// per spec.md §4.9's "imprecise but intuitive" rule: size:5mb matches
// [5_000_000, 5_000_000 + (1_000_000 - 1_000_000/20 - 1)] =
// [5_000_000, 5_949_999].
func ParseSize(s string) (SizeAtom, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SizeAtom{}, fmt.Errorf("query: empty size argument")
	}

	if idx := strings.Index(s, ".."); idx >= 0 {
		lo, err := parseSizeValue(s[:idx])
		if err != nil {
			return SizeAtom{}, err
		}
		hi, err := parseSizeValue(s[idx+2:])
		if err != nil {
			return SizeAtom{}, err
		}
		return SizeAtom{Cmp: CmpRange, Lo: lo, Hi: hi}, nil
	}

	cmp := CmpEQ
	switch {
	case strings.HasPrefix(s, "<="):
		cmp, s = CmpLE, s[2:]
	case strings.HasPrefix(s, ">="):
		cmp, s = CmpGE, s[2:]
	case strings.HasPrefix(s, "<"):
		cmp, s = CmpLT, s[1:]
	case strings.HasPrefix(s, ">"):
		cmp, s = CmpGT, s[1:]
	}

	n, unit, err := splitNumberUnit(s)
	if err != nil {
		return SizeAtom{}, err
	}
	mult, ok := sizeUnits[strings.ToLower(unit)]
	if !ok {
		return SizeAtom{}, fmt.Errorf("query: unknown size unit %q", unit)
	}
	val := n * mult

	if cmp == CmpEQ && mult > 1 {
		// Widen per the "imprecise but intuitive" rule.
		slack := mult - mult/20 - 1
		return SizeAtom{Cmp: CmpRange, Lo: val, Hi: val + slack + 1}, nil
	}
	return SizeAtom{Cmp: cmp, Lo: val}, nil
}

func splitNumberUnit(s string) (uint64, string, error) {
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("query: invalid numeric size %q", s)
	}
	n, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, "", err
	}
	return n, s[i:], nil
}

func parseSizeValue(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	n, unit, err := splitNumberUnit(s)
	if err != nil {
		return 0, err
	}
	mult, ok := sizeUnits[strings.ToLower(unit)]
	if !ok {
		return 0, fmt.Errorf("query: unknown size unit %q", unit)
	}
	return n * mult, nil
}

// Match reports whether v (a size in bytes) satisfies the atom.
func (a SizeAtom) Match(v uint64) bool {
	switch a.Cmp {
	case CmpEQ:
		return v == a.Lo
	case CmpLT:
		return v < a.Lo
	case CmpLE:
		return v <= a.Lo
	case CmpGT:
		return v > a.Lo
	case CmpGE:
		return v >= a.Lo
	case CmpRange:
		return v >= a.Lo && v < a.Hi
	}
	return false
}
