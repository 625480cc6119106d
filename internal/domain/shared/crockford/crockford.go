// Package crockford implements a Crockford-style base32 codec for short,
// human-friendly reference codes.
//
// Values are written most-significant symbol first using a 32 symbol
// alphabet that leaves out I, L, O and U. An optional check symbol
// (value mod 37) is drawn from an extended 37 symbol table. Decoding is
// case-insensitive, ignores dashes and accepts common misreadings
// (O for 0, I/L for 1, U for V).
package crockford

import (
	"errors"
	"fmt"
	"strings"
)

const (
	base     = 32
	checkMod = 37
)

// symbols holds the encoding table. The first 32 entries are data symbols;
// the last five are only valid as a check symbol.
const symbols = "0123456789ABCDEFGHJKMNPQRSTVWXYZ*~$=U"

var (
	// ErrInvalidFormat is returned when the input is empty or contains a
	// character outside the alphabet.
	ErrInvalidFormat = errors.New("crockford: invalid format")
	// ErrChecksumMismatch is returned when a check symbol is present but
	// does not match the decoded value.
	ErrChecksumMismatch = errors.New("crockford: checksum mismatch")
)

// Options controls the optional parts of the encoded form.
type Options struct {
	// WithCheck appends a single check symbol.
	WithCheck bool
	// MinLength left-pads the result with '0' up to this many symbols.
	MinLength int
	// BlockWidth inserts a dash every BlockWidth symbols.
	BlockWidth int
}

// Encode returns the plain base32 form of n.
func Encode(n uint64) string {
	return EncodeWith(n, Options{})
}

// EncodeWith returns the base32 form of n shaped by opts.
func EncodeWith(n uint64, opts Options) string {
	checksum := n % checkMod

	buf := make([]byte, 0, 16)
	for {
		buf = append(buf, symbols[n%base])
		n /= base
		if n == 0 {
			break
		}
	}
	reverse(buf)

	if opts.WithCheck {
		buf = append(buf, symbols[checksum])
	}

	if pad := opts.MinLength - len(buf); pad > 0 {
		buf = append([]byte(strings.Repeat("0", pad)), buf...)
	}

	if opts.BlockWidth <= 0 {
		return string(buf)
	}

	var sb strings.Builder
	sb.Grow(len(buf) + len(buf)/opts.BlockWidth)
	for i, c := range buf {
		if i > 0 && i%opts.BlockWidth == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Decode parses a code without a check symbol.
func Decode(s string) (uint64, error) {
	return decode(s, false)
}

// DecodeChecked parses a code whose final symbol is a check symbol.
func DecodeChecked(s string) (uint64, error) {
	return decode(s, true)
}

// Valid reports whether s decodes cleanly.
func Valid(s string, withCheck bool) bool {
	_, err := decode(s, withCheck)
	return err == nil
}

func decode(s string, withCheck bool) (uint64, error) {
	cleaned := strings.ReplaceAll(s, "-", "")
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidFormat)
	}
	if withCheck && len(cleaned) < 2 {
		return 0, fmt.Errorf("%w: %q is too short to carry a check symbol", ErrInvalidFormat, s)
	}

	data := cleaned
	if withCheck {
		data = cleaned[:len(cleaned)-1]
	}

	var result uint64
	for i := 0; i < len(data); i++ {
		v, ok := dataValue(data[i])
		if !ok {
			return 0, fmt.Errorf("%w: illegal symbol %q in %q", ErrInvalidFormat, data[i], s)
		}
		next := result*base + v
		if result > (^uint64(0)-v)/base {
			return 0, fmt.Errorf("%w: %q overflows 64 bits", ErrInvalidFormat, s)
		}
		result = next
	}

	if withCheck {
		last := cleaned[len(cleaned)-1]
		cv, ok := checkValue(last)
		if !ok {
			return 0, fmt.Errorf("%w: illegal check symbol %q in %q", ErrInvalidFormat, last, s)
		}
		if result%checkMod != cv {
			return 0, fmt.Errorf("%w: %q", ErrChecksumMismatch, s)
		}
	}

	return result, nil
}

// dataValue maps a data symbol to its value. U is read as V outside the
// check position.
func dataValue(c byte) (uint64, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0'), true
	case c >= 'a' && c <= 'z':
		c -= 'a' - 'A'
	}

	switch c {
	case 'O':
		return 0, true
	case 'I', 'L':
		return 1, true
	case 'U':
		return 27, true
	}

	if c >= 'A' && c <= 'Z' {
		if idx := strings.IndexByte(symbols[:base], c); idx >= 0 {
			return uint64(idx), true
		}
	}
	return 0, false
}

func checkValue(c byte) (uint64, bool) {
	switch c {
	case '*':
		return 32, true
	case '~':
		return 33, true
	case '$':
		return 34, true
	case '=':
		return 35, true
	case 'U', 'u':
		return 36, true
	}
	return dataValue(c)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
