// Package utf7mod implements the "Modified UTF-7" mailbox name
// encoding from RFC 3501 section 5.1.3, derived from the UTF-7 of
// RFC 2152.
//
// Decoding is more lenient than the RFC's MUSTs. A server that sends
// bad UTF-7 leaves no good options, so decoding recovers what it can
// and only reports errors for undecodable base64 runs.
package utf7mod

import (
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

var ErrInvalidUTF7 = errors.New("utf7mod: invalid modified UTF-7")

// Modified base64: the UTF-7 alphabet with "," in place of "/",
// and no padding.
const modB64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,"

var modB64 = base64.NewEncoding(modB64Alphabet).WithPadding(base64.NoPadding)

// Decode converts a wire-form mailbox name to UTF-8 text.
func Decode(src []byte) (string, error) {
	dst, err := AppendDecode(nil, src)
	if err != nil {
		return "", err
	}
	return string(dst), nil
}

// AppendDecode appends the UTF-8 decoding of src to dst.
func AppendDecode(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != '&' {
			dst = append(dst, c)
			continue
		}
		end := i + 1
		for end < len(src) && src[end] != '-' {
			end++
		}
		if end == len(src) {
			return nil, ErrInvalidUTF7
		}
		if end == i+1 {
			// "&-" is the escape for a literal '&'.
			dst = append(dst, '&')
			i = end
			continue
		}
		var err error
		dst, err = appendB64Run(dst, src[i+1:end])
		if err != nil {
			return nil, err
		}
		i = end
	}
	return dst, nil
}

// appendB64Run decodes one &...- run of modified base64 holding
// big-endian UTF-16 code units.
func appendB64Run(dst, run []byte) ([]byte, error) {
	units := make([]byte, modB64.DecodedLen(len(run)))
	n, err := modB64.Decode(units, run)
	if err != nil {
		return nil, fmt.Errorf("utf7mod: decode: %v", err)
	}
	units = units[:n]
	if len(units)%2 == 1 {
		return nil, ErrInvalidUTF7
	}
	for len(units) > 0 {
		r := rune(units[0])<<8 | rune(units[1])
		units = units[2:]
		if utf16.IsSurrogate(r) {
			if len(units) < 2 {
				return nil, ErrInvalidUTF7
			}
			r2 := rune(units[0])<<8 | rune(units[1])
			units = units[2:]
			r = utf16.DecodeRune(r, r2)
		}
		dst = utf8.AppendRune(dst, r)
	}
	return dst, nil
}

// Encode converts UTF-8 text to the wire form of a mailbox name.
func Encode(s string) []byte {
	return AppendEncode(nil, s)
}

// AppendEncode appends the wire form of the UTF-8 text s to dst.
func AppendEncode(dst []byte, s string) []byte {
	for i := 0; i < len(s); {
		r, sz := utf8.DecodeRuneInString(s[i:])
		if r == '&' {
			dst = append(dst, '&', '-')
			i += sz
			continue
		}
		if r < utf8.RuneSelf {
			dst = append(dst, byte(r))
			i += sz
			continue
		}

		// A run of non-ASCII becomes base64-encoded UTF-16BE.
		var units []byte
		for i < len(s) {
			r, sz = utf8.DecodeRuneInString(s[i:])
			if r < utf8.RuneSelf {
				break
			}
			i += sz
			if r1, r2 := utf16.EncodeRune(r); r1 != '�' {
				units = append(units, byte(r1>>8), byte(r1))
				r = r2
			}
			units = append(units, byte(r>>8), byte(r))
		}
		n := modB64.EncodedLen(len(units))
		dst = append(dst, '&')
		dst = append(dst, make([]byte, n)...)
		modB64.Encode(dst[len(dst)-n:], units)
		dst = append(dst, '-')
	}
	return dst
}
