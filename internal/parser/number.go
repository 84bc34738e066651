package parser

import (
	"regexp"
	"strconv"
	"time"
)

var plainNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses s as a plain decimal number. Hex, infinities, NaN and
// anything with surrounding garbage are rejected.
func ParseNumber(s string) (float64, bool) {
	if !plainNumber.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DefaultOutputEpoch is the fractional year used to prefill the output epoch.
func DefaultOutputEpoch(now time.Time) string {
	now = now.UTC()
	year := float64(now.Year()) + float64(now.Month()-1)/12.0
	return strconv.FormatFloat(year, 'f', 2, 64)
}
