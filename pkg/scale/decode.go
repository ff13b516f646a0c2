package scale

// DecodeFunc turns a framed line into a weight value. ok reports whether
// a numeric token was actually consumed, which distinguishes a parsed
// zero from a line with no number at all. Implementations must be pure,
// allocation-free and non-blocking.
type DecodeFunc func(line []byte) (value float64, ok bool)

// DecodeWeight extracts the first numeric token from a vendor line.
//
// The scan tolerates a leading status/unit prefix (e.g. "ST,+..."), an
// explicit sign separated from the digits by whitespace (Sartorius sends
// "+   27.350"), and a trailing unit suffix. It fails when no digit was
// consumed.
func DecodeWeight(line []byte) (float64, bool) {
	i := 0
	for i < len(line) && !isNumberStart(line[i]) {
		i++
	}
	sign := 1.0
	if i < len(line) && (line[i] == '+' || line[i] == '-') {
		if line[i] == '-' {
			sign = -1.0
		}
		i++
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
	}

	// Accumulate the mantissa digits as an integer and divide by the
	// fractional scale afterwards. Scale readouts carry a handful of
	// digits; a pathological mantissa beyond float64's 15 exact digits
	// rounds the way any float parse would.
	var mantissa float64
	digits := 0
	for i < len(line) && isDigit(line[i]) {
		mantissa = mantissa*10 + float64(line[i]-'0')
		digits++
		i++
	}
	frac := 1.0
	if i < len(line) && line[i] == '.' {
		i++
		for i < len(line) && isDigit(line[i]) {
			mantissa = mantissa*10 + float64(line[i]-'0')
			frac *= 10
			digits++
			i++
		}
	}
	if digits == 0 {
		return 0, false
	}
	return sign * mantissa / frac, true
}

func isNumberStart(b byte) bool {
	return isDigit(b) || b == '-' || b == '+' || b == '.'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
