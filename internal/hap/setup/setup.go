// Package setup implements the accessory setup surface (spec.md §3, C12):
// generating and formatting the eight-digit setup code and four-character
// setup id provisioned at manufacturing time, and rendering them into the
// three label forms a controller can consume — a dashed display string,
// an NFC tag payload, and the "X-HM://" QR payload.
//
// This package is thin by design (spec.md's own characterization): the
// pairing cryptography that actually consumes the setup code (SRP
// verifier derivation) is out of scope per spec.md §1's external-
// collaborator boundary, so everything here is generation, validation,
// and wire-format rendering. It imports neither C1
// (internal/hap/base64hap) nor C14 (internal/hap/numfmt): the QR
// payload's bit-packing is done by hand and the setup code is formatted
// with fmt.
package setup

import (
	"fmt"
	"io"
	"strings"
)

// Code is an eight-digit accessory setup code, stored as ASCII digits
// without separators.
type Code [8]byte

// invalidCodes lists the two sequential codes the original
// provisioning tooling specifically forbids.
var invalidCodes = map[string]bool{
	"12345678": true,
	"87654321": true,
}

// String renders the code in the "XXX-XX-XXX" display form used on
// printed labels and the pairing UI.
func (c Code) String() string {
	s := string(c[:])
	return s[0:3] + "-" + s[3:5] + "-" + s[5:8]
}

// Digits renders the code as a bare eight-digit string, the form
// deployed to an NFC tag without a display (spec's "raw setup code" and
// the numeric half of the QR payload).
func (c Code) Digits() string {
	return string(c[:])
}

// ParseCode parses either the dashed "XXX-XX-XXX" form or a bare eight
// digit string.
func ParseCode(s string) (Code, error) {
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) != 8 {
		return Code{}, fmt.Errorf("setup: code must have 8 digits, got %d", len(digits))
	}
	var c Code
	for i := 0; i < 8; i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Code{}, fmt.Errorf("setup: code contains non-digit %q", digits[i])
		}
		c[i] = digits[i]
	}
	return c, nil
}

// isRepeatingDigit reports whether every digit in s is identical, the
// other class of code the provisioning tooling forbids alongside the two
// named sequential codes.
func isRepeatingDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

// GenerateCode draws a cryptographically random eight-digit setup code
// from random, rejecting the repeating-digit and sequential codes the
// original provisioning steps (PAL/HAPPlatformAccessorySetup.h) forbid.
func GenerateCode(random io.Reader) (Code, error) {
	for {
		n, err := randomUint32Below(random, 100000000)
		if err != nil {
			return Code{}, err
		}
		digits := fmt.Sprintf("%08d", n)
		if isRepeatingDigit(digits) || invalidCodes[digits] {
			continue
		}
		return ParseCode(digits)
	}
}

// ID is the four-character setup id deployed alongside a setup code to
// let a QR/NFC scan identify which accessory a label belongs to. Valid
// characters are '0'-'9' and uppercase 'A'-'Z'; lowercase is explicitly
// disallowed by the provisioning steps this package follows.
type ID [4]byte

func (id ID) String() string { return string(id[:]) }

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ParseID validates s as a four-character uppercase alphanumeric setup
// id.
func ParseID(s string) (ID, error) {
	if len(s) != 4 {
		return ID{}, fmt.Errorf("setup: id must have 4 characters, got %d", len(s))
	}
	var id ID
	for i := 0; i < 4; i++ {
		if strings.IndexByte(idAlphabet, s[i]) < 0 {
			return ID{}, fmt.Errorf("setup: id contains invalid character %q", s[i])
		}
		id[i] = s[i]
	}
	return id, nil
}

// GenerateID draws a random four-character setup id from random.
func GenerateID(random io.Reader) (ID, error) {
	var id ID
	var buf [4]byte
	if _, err := io.ReadFull(random, buf[:]); err != nil {
		return ID{}, fmt.Errorf("setup: generate id: %w", err)
	}
	for i, b := range buf {
		id[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return id, nil
}

func randomUint32Below(random io.Reader, bound uint32) (uint32, error) {
	var buf [4]byte
	for {
		if _, err := io.ReadFull(random, buf[:]); err != nil {
			return 0, fmt.Errorf("setup: read random: %w", err)
		}
		v := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		// Reject values in the tail that would bias the modulo toward
		// smaller results.
		limit := (1 << 32) - (1<<32)%uint64(bound)
		if uint64(v) < limit {
			return v % bound, nil
		}
	}
}
