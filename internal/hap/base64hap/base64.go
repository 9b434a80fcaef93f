// Package base64hap implements RFC 4648 standard-alphabet base64 encoding
// and decoding using constant-time, table-free arithmetic instead of a
// lookup table, so that encoding/decoding pairing material and TLV8
// payloads does not leak timing information through data-dependent table
// indexing.
//
// Both directions support in-place operation: Decode allows the output
// slice to alias the input (the decoded form is never longer than the
// encoded form), and Encode supports writing into the tail of a buffer
// that already holds the plaintext at its head, by shifting the input to
// the tail of the output region before encoding forward.
package base64hap

import "fmt"

const (
	padChar byte = '='
)

// EncodedLen returns the length of the base64 encoding of n source bytes,
// including padding.
func EncodedLen(n int) int {
	return ((n + 2) / 3) * 4
}

// DecodedLen returns an upper bound on the number of decoded bytes for an
// encoded input of length n. The exact length depends on trailing padding
// and is only known after decoding.
func DecodedLen(n int) int {
	return (n / 4) * 3
}

// encodeSextet maps a 6-bit value to its base64 alphabet byte using
// branchless comparison masks instead of a lookup table.
//
// The standard alphabet is four contiguous ranges: 'A'-'Z' (0-25),
// 'a'-'z' (26-51), '0'-'9' (52-61), '+' (62), '/' (63). Each range
// contributes its mapped byte when v falls inside it; exactly one range
// matches for any v in [0,63], so ORing the masked contributions together
// selects the right one without a data-dependent branch.
func encodeSextet(v byte) byte {
	var out byte

	inUpper := inRange(v, 0, 25)
	inLower := inRange(v, 26, 51)
	inDigit := inRange(v, 52, 61)
	isPlus := eqMask(v, 62)
	isSlash := eqMask(v, 63)

	out |= inUpper & (v + 'A')
	out |= inLower & (v - 26 + 'a')
	out |= inDigit & (v - 52 + '0')
	out |= isPlus & '+'
	out |= isSlash & '/'

	return out
}

// inRange returns 0xFF if lo <= v <= hi, else 0x00, without branching on v.
func inRange(v, lo, hi byte) byte {
	return ^byte((int(v)-int(lo))>>8 | (int(hi)-int(v))>>8)
}

// eqMask returns 0xFF if v == want, else 0x00.
func eqMask(v, want byte) byte {
	return byte((int(v^want) - 1) >> 8)
}

// decodeSextet maps a base64 alphabet byte back to its 6-bit value. ok is
// false if c is not in the alphabet.
func decodeSextet(c byte) (v byte, ok bool) {
	upper := inRange(c, 'A', 'Z')
	lower := inRange(c, 'a', 'z')
	digit := inRange(c, '0', '9')
	plus := eqMask(c, '+')
	slash := eqMask(c, '/')
	v = upper&(c-'A') | lower&(c-'a'+26) | digit&(c-'0'+52) | plus&62 | slash&63
	return v, (upper|lower|digit|plus|slash) != 0
}

// Encode writes the base64 encoding of src into dst, which must be at
// least EncodedLen(len(src)) bytes, and returns the number of bytes
// written. dst and src may overlap only if dst's tail is where src
// currently lives and the caller has arranged for src to occupy the
// trailing len(src) bytes of dst — see EncodeInPlace.
func Encode(dst, src []byte) int {
	n := 0
	i := 0
	for ; i+3 <= len(src); i += 3 {
		b0, b1, b2 := src[i], src[i+1], src[i+2]
		dst[n+0] = encodeSextet(b0 >> 2)
		dst[n+1] = encodeSextet((b0&0x03)<<4 | b1>>4)
		dst[n+2] = encodeSextet((b1&0x0F)<<2 | b2>>6)
		dst[n+3] = encodeSextet(b2 & 0x3F)
		n += 4
	}

	switch len(src) - i {
	case 1:
		b0 := src[i]
		dst[n+0] = encodeSextet(b0 >> 2)
		dst[n+1] = encodeSextet((b0 & 0x03) << 4)
		dst[n+2] = padChar
		dst[n+3] = padChar
		n += 4
	case 2:
		b0, b1 := src[i], src[i+1]
		dst[n+0] = encodeSextet(b0 >> 2)
		dst[n+1] = encodeSextet((b0&0x03)<<4 | b1>>4)
		dst[n+2] = encodeSextet((b1 & 0x0F) << 2)
		dst[n+3] = padChar
		n += 4
	}

	return n
}

// EncodeToString returns the base64 encoding of src as a new string.
func EncodeToString(src []byte) string {
	dst := make([]byte, EncodedLen(len(src)))
	n := Encode(dst, src)
	return string(dst[:n])
}

// EncodeInPlace encodes the first srcLen bytes of buf in place: it first
// shifts those bytes to the tail of buf (so the region
// [len(buf)-srcLen:len(buf)] holds the plaintext), then encodes forward
// into buf[0:EncodedLen(srcLen)]. buf must be at least
// EncodedLen(srcLen) bytes long. Returns the number of bytes written.
func EncodeInPlace(buf []byte, srcLen int) int {
	tailStart := len(buf) - srcLen
	copy(buf[tailStart:], buf[:srcLen])
	return Encode(buf, buf[tailStart:tailStart+srcLen])
}

// Decode decodes src into dst, which must be at least DecodedLen(len(src))
// bytes. dst and src may alias the same underlying array (the decoded
// form is never longer than the encoded form) provided dst starts at or
// before src. Returns the number of decoded bytes.
//
// Decode rejects: any byte outside [A-Za-z0-9+/=], more than two pad
// characters, a non-pad byte following a pad byte within the same
// four-byte group, and any additional group following a padded group.
func Decode(dst, src []byte) (int, error) {
	if len(src)%4 != 0 {
		return 0, fmt.Errorf("base64hap: input length %d is not a multiple of 4", len(src))
	}

	n := 0
	padded := false
	for i := 0; i < len(src); i += 4 {
		if padded {
			return 0, fmt.Errorf("base64hap: data after padded group at offset %d", i)
		}

		group := src[i : i+4]
		padCount := 0
		for _, c := range group {
			if c == padChar {
				padCount++
			}
		}
		if padCount > 2 {
			return 0, fmt.Errorf("base64hap: more than two pad characters in group at offset %d", i)
		}
		// Pad bytes, if any, must be trailing within the group.
		for j := 0; j < 4-padCount; j++ {
			if group[j] == padChar {
				return 0, fmt.Errorf("base64hap: non-pad byte after pad at offset %d", i+j)
			}
		}

		var sx [4]byte
		for j := 0; j < 4-padCount; j++ {
			v, ok := decodeSextet(group[j])
			if !ok {
				return 0, fmt.Errorf("base64hap: invalid character %q at offset %d", group[j], i+j)
			}
			sx[j] = v
		}

		switch padCount {
		case 0:
			dst[n+0] = sx[0]<<2 | sx[1]>>4
			dst[n+1] = sx[1]<<4 | sx[2]>>2
			dst[n+2] = sx[2]<<6 | sx[3]
			n += 3
		case 1:
			dst[n+0] = sx[0]<<2 | sx[1]>>4
			dst[n+1] = sx[1]<<4 | sx[2]>>2
			n += 2
			padded = true
		case 2:
			dst[n+0] = sx[0]<<2 | sx[1]>>4
			n++
			padded = true
		}
	}

	return n, nil
}

// DecodeString decodes s and returns the decoded bytes.
func DecodeString(s string) ([]byte, error) {
	dst := make([]byte, DecodedLen(len(s)))
	n, err := Decode(dst, []byte(s))
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}
