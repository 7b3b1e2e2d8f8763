package nmea

import (
	"math"
	"strconv"
)

const (
	mphPerKnot    = 1.15077945
	mpsPerKnot    = 0.51444444
	kmphPerKnot   = 1.852
	milesPerMeter = 0.00062137112
	kmPerMeter    = 0.001
	feetPerMeter  = 3.2808399
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// toFixed truncates v toward zero to the given number of decimal places.
func toFixed(v float64, digits int) float64 {
	step := math.Pow(10, float64(digits))
	return math.Trunc(step*v) / step
}

// parseUint accepts only a non-empty run of ASCII digits.
func parseUint(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimal accepts [+-]digits[.digits] with at least one digit. The
// grammar is checked up front so strconv never sees "Inf", "NaN" or exponents.
func parseDecimal(s string) (float64, bool) {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits, dot := 0, false
	for ; i < len(s); i++ {
		switch c := s[i]; {
		case isDigit(c):
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseChecksum reads the two leading hex digits of a checksum term.
func parseChecksum(term string) (byte, bool) {
	if len(term) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(term[:2], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
