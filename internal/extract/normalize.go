// Package extract turns OCR text and tabular exports into analytics metrics.
package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericResidue = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// Normalize converts a numeric-looking OCR token such as "1,234", "2.5K" or
// "3M" into an integer. Fractions are truncated. Anything that does not parse
// yields 0.
func Normalize(token string) int {
	s := strings.TrimSpace(token)
	s = strings.ReplaceAll(s, ",", "")
	s = dropStrayPeriods(s)

	var multiplier int64 = 1
	if n := len(s); n > 0 {
		switch s[n-1] {
		case 'K', 'k':
			multiplier = 1_000
			s = s[:n-1]
		case 'M', 'm':
			multiplier = 1_000_000
			s = s[:n-1]
		}
	}
	if !numericResidue.MatchString(s) {
		return 0
	}

	whole, frac, _ := strings.Cut(s, ".")
	var value int64
	if whole != "" {
		w, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || w > math.MaxInt64/multiplier {
			return 0
		}
		value = w * multiplier
	}
	if frac != "" && multiplier > 1 {
		f := scaleFraction(frac, multiplier)
		if value > math.MaxInt64-f {
			return 0
		}
		value += f
	}
	if value > math.MaxInt {
		return 0
	}
	return int(value)
}

// dropStrayPeriods removes periods that neither start a decimal fraction nor
// sit directly before a magnitude suffix.
func dropStrayPeriods(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			if i+1 >= len(s) || !keepsPeriod(s[i+1]) {
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func keepsPeriod(next byte) bool {
	switch {
	case next >= '0' && next <= '9':
		return true
	case next == 'K', next == 'k', next == 'M', next == 'm':
		return true
	}
	return false
}

// scaleFraction returns the fractional digits expressed in units of
// multiplier, truncating digits finer than one unit.
func scaleFraction(frac string, multiplier int64) int64 {
	places := len(strconv.FormatInt(multiplier, 10)) - 1
	if len(frac) > places {
		frac = frac[:places]
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0
	}
	for i := len(frac); i < places; i++ {
		f *= 10
	}
	return f
}
