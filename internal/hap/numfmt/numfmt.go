// Package numfmt provides locale-independent integer and float
// formatting/parsing for the wire representations used throughout the HAP
// JSON payloads. It is a thin wrapper over strconv: Go's strconv package
// is already locale-independent (unlike libc's atof/strtod family that
// the original C reference implementation had to work around with its
// own bignum-backed formatter), so there is no constraint strconv fails
// to satisfy here — wrapping it keeps call sites in this module free of
// base/bitsize arguments and gives the HAP-specific NaN/Inf string forms
// a single home.
package numfmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatUint64 renders v as a decimal string.
func FormatUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// FormatInt64 renders v as a decimal string.
func FormatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatUint64HexUpper renders v as uppercase hexadecimal, no "0x" prefix.
func FormatUint64HexUpper(v uint64) string {
	return strings.ToUpper(strconv.FormatUint(v, 16))
}

// FormatUint64HexLower is an alias kept for symmetry with the upper-case
// formatter; strconv already emits lowercase hex digits by default.
func FormatUint64HexLower(v uint64) string {
	return strconv.FormatUint(v, 16)
}

// ParseUint64 parses a decimal, non-negative integer. It rejects leading
// '+' and whitespace, matching the strict Content-Length parsing spec.md
// §4.3 requires upstream of this package.
func ParseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// ParseInt64 parses a decimal signed integer.
func ParseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// FormatFloat32 renders v using the shortest decimal string that
// round-trips to the identical float32 bit pattern, matching the HAP JSON
// characteristic value encoding (spec.md §8 property 4). NaN and
// infinities use the HAP wire literals rather than Go's "NaN"/"+Inf".
func FormatFloat32(v float32) string {
	switch {
	case isNaN32(v):
		return "nan"
	case isInf32(v, 1):
		return "inf"
	case isInf32(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
}

// ParseFloat32 parses a float32 formatted by FormatFloat32, including the
// HAP "nan"/"inf"/"-inf" literals.
func ParseFloat32(s string) (float32, error) {
	switch s {
	case "nan":
		return float32(math.NaN()), nil
	case "inf":
		return float32(math.Inf(1)), nil
	case "-inf":
		return float32(math.Inf(-1)), nil
	}

	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("numfmt: parse float32 %q: %w", s, err)
	}
	return float32(v), nil
}

func isNaN32(f float32) bool {
	return math.IsNaN(float64(f))
}

func isInf32(f float32, sign int) bool {
	return math.IsInf(float64(f), sign)
}
