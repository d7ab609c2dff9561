// internal/observation/mgrs.go
package observation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnknownLocation is the mgrs value for an untagged observation
const UnknownLocation = "UNKNOWN"

// ErrInvalidMGRS indicates a malformed grid reference
var ErrInvalidMGRS = errors.New("invalid MGRS grid reference")

// zone (1-60), latitude band (C-X without I/O), 100 km square, then an even
// count of easting/northing digits
var mgrsPattern = regexp.MustCompile(`^[0-9]{1,2}[C-HJ-NP-X][A-HJ-NP-Z]{2}[0-9]{2,10}$`)

// NormalizeMGRS strips whitespace and upper-cases ref. Empty or "unknown"
// maps to UnknownLocation.
func NormalizeMGRS(ref string) (string, error) {
	compact := strings.ToUpper(strings.Join(strings.Fields(ref), ""))
	if compact == "" || compact == UnknownLocation {
		return UnknownLocation, nil
	}

	if !mgrsPattern.MatchString(compact) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMGRS, ref)
	}

	zone := compact[:len(compact)-len(strings.TrimLeft(compact, "0123456789"))]
	if z, err := strconv.Atoi(zone); err != nil || z < 1 || z > 60 {
		return "", fmt.Errorf("%w: zone %s out of range in %q", ErrInvalidMGRS, zone, ref)
	}

	digits := len(compact) - len(zone) - 3
	if digits%2 != 0 {
		return "", fmt.Errorf("%w: odd easting/northing digits in %q", ErrInvalidMGRS, ref)
	}
	return compact, nil
}
