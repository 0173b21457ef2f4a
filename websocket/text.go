package websocket

import (
	"strings"
	"unicode/utf8"
)

// decodeText decodes p as UTF-8 without rejecting malformed input.
//
// Each byte that does not start a valid encoding becomes U+FFFD.
// Valid input is converted without extra work.
func decodeText(p []byte) string {
	if utf8.Valid(p) {
		return string(p)
	}

	var sb strings.Builder
	sb.Grow(len(p) + 2*utf8.UTFMax)
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.Write(p[:size])
		}
		p = p[size:]
	}
	return sb.String()
}

// ValidateText reports ErrInvalidUTF8 if p is not valid UTF-8.
//
// RFC 6455 Section 8.1: Text messages must be valid UTF-8. This is the strict
// counterpart of the lenient Text views; call it before trusting a payload.
func ValidateText(p []byte) error {
	if !utf8.Valid(p) {
		return ErrInvalidUTF8
	}
	return nil
}

// utf8Validator checks a text message fragment by fragment.
//
// A code point may be split across fragments (RFC 6455 Section 5.4 places no
// alignment rule on fragment boundaries), so up to three trailing bytes of an
// unfinished sequence are carried into the next call.
type utf8Validator struct {
	pending [utf8.UTFMax]byte
	n       int
}

// feed validates the next fragment. final marks the last fragment of the
// message, at which point an unfinished sequence is an error.
func (v *utf8Validator) feed(p []byte, final bool) bool {
	// Complete a sequence left open by the previous fragment.
	for v.n > 0 && len(p) > 0 {
		v.pending[v.n] = p[0]
		v.n++
		p = p[1:]
		if utf8.FullRune(v.pending[:v.n]) {
			if r, size := utf8.DecodeRune(v.pending[:v.n]); r == utf8.RuneError && size == 1 {
				return false
			}
			v.n = 0
		}
	}
	if v.n > 0 {
		return !final
	}

	// Find an unfinished sequence at the end of p.
	cut := len(p)
	for i := len(p) - 1; i >= 0 && i > len(p)-utf8.UTFMax; i-- {
		if utf8.RuneStart(p[i]) {
			if !utf8.FullRune(p[i:]) {
				cut = i
			}
			break
		}
	}

	if !utf8.Valid(p[:cut]) {
		return false
	}
	if tail := p[cut:]; len(tail) > 0 {
		if final {
			return false
		}
		v.n = copy(v.pending[:], tail)
	}
	return true
}

// reset discards any carried bytes.
func (v *utf8Validator) reset() {
	v.n = 0
}
