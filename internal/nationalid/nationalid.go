// Package nationalid validates and formats Chilean RUN numbers.
//
// A RUN is a numeric body followed by a check character in {0-9, K}
// computed with the modulo-11 algorithm.
package nationalid

import (
	"errors"
	"strings"
)

var (
	ErrEmpty      = errors.New("run is empty")
	ErrMalformed  = errors.New("run is malformed")
	ErrCheckDigit = errors.New("run check digit mismatch")
)

// MaxBodyDigits bounds the numeric part; bodies are at most 8 digits.
const MaxBodyDigits = 8

// CheckDigit returns the expected check character for a numeric body.
// Weights 2,3,4,5,6,7 cycle from the rightmost digit; 11 maps to '0' and 10 to 'K'.
func CheckDigit(body string) (byte, error) {
	if body == "" {
		return 0, ErrEmpty
	}
	sum, w := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, ErrMalformed
		}
		sum += int(c-'0') * w
		w++
		if w > 7 {
			w = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return '0', nil
	case 10:
		return 'K', nil
	default:
		return byte('0' + r), nil
	}
}

// Split separates raw input into body and check character, dropping dots,
// spaces and hyphens. Leading zeros are removed from the body.
func Split(raw string) (body string, dv byte, err error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteByte('K')
		case r == '.' || r == '-' || r == ' ' || r == '‐' || r == '–':
		default:
			return "", 0, ErrMalformed
		}
	}
	s := b.String()
	if s == "" {
		return "", 0, ErrEmpty
	}
	if len(s) < 2 {
		return "", 0, ErrMalformed
	}
	body, dv = s[:len(s)-1], s[len(s)-1]
	if strings.ContainsRune(body, 'K') {
		return "", 0, ErrMalformed
	}
	body = strings.TrimLeft(body, "0")
	if body == "" || len(body) > MaxBodyDigits {
		return "", 0, ErrMalformed
	}
	return body, dv, nil
}

// Normalize returns the canonical form "12345678-5" without checking the digit.
func Normalize(raw string) (string, error) {
	body, dv, err := Split(raw)
	if err != nil {
		return "", err
	}
	return body + "-" + string(dv), nil
}

// Validate normalizes raw and verifies its check character.
func Validate(raw string) (string, error) {
	body, dv, err := Split(raw)
	if err != nil {
		return "", err
	}
	want, err := CheckDigit(body)
	if err != nil {
		return "", err
	}
	if want != dv {
		return body + "-" + string(dv), ErrCheckDigit
	}
	return body + "-" + string(dv), nil
}

// Valid reports whether raw is a well-formed RUN with a matching check character.
func Valid(raw string) bool {
	_, err := Validate(raw)
	return err == nil
}

// Compact drops separators: "12345678-5" -> "123456785". Used as the student folder name.
func Compact(raw string) string {
	body, dv, err := Split(raw)
	if err != nil {
		return ""
	}
	return body + string(dv)
}

// Format renders the dotted form "12.345.678-5".
func Format(raw string) string {
	body, dv, err := Split(raw)
	if err != nil {
		return raw
	}
	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteByte(dv)
	return b.String()
}
