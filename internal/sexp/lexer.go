package sexp

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// isDelimiter reports whether c ends an atom.
func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v',
		'(', ')', '[', ']', '{', '}', '"', ';', '\'', '`', ',':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func closerFor(open byte) byte {
	switch open {
	case '[':
		return ']'
	case '{':
		return '}'
	}
	return ')'
}

// isDirectiveLine reports whether the hash at off starts a line the reader
// ignores: a #lang line or a shebang on the first line.
func isDirectiveLine(text []byte, off int) bool {
	rest := text[off:]
	if bytes.HasPrefix(rest, []byte("#lang")) {
		return len(rest) == 5 || isSpace(rest[5])
	}
	return off == 0 && bytes.HasPrefix(rest, []byte("#!")) && len(rest) > 2 && (rest[2] == '/' || rest[2] == ' ')
}

// skipAtmosphere advances past whitespace, line comments and (nested) block
// comments, returning the offset of the next significant byte.
func (r *reader) skipAtmosphere(off int) (int, error) {
	text := r.text
	for off < len(text) {
		c := text[off]
		switch {
		case isSpace(c):
			off++
		case c == ';':
			for off < len(text) && text[off] != '\n' {
				off++
			}
		case c == '#' && isDirectiveLine(text, off):
			for off < len(text) && text[off] != '\n' {
				off++
			}
		case c == '#' && off+1 < len(text) && text[off+1] == '|':
			start := off
			depth := 1
			off += 2
			for depth > 0 {
				if off+1 >= len(text) {
					return 0, syntaxErrorf(start, "unterminated block comment")
				}
				switch {
				case text[off] == '|' && text[off+1] == '#':
					depth--
					off += 2
				case text[off] == '#' && text[off+1] == '|':
					depth++
					off += 2
				default:
					off++
				}
			}
		default:
			return off, nil
		}
	}
	return off, nil
}

// scanAtom returns the end of the atom starting at off together with its
// decoded text. escaped reports whether any byte was backslash-escaped,
// which forces the atom to read as a symbol.
func (r *reader) scanAtom(off int) (end int, name string, escaped bool, err error) {
	var b strings.Builder
	text := r.text
	i := off
	for i < len(text) && !isDelimiter(text[i]) {
		if text[i] == '\\' {
			if i+1 >= len(text) {
				return 0, "", false, syntaxErrorf(i, "trailing escape")
			}
			escaped = true
			b.WriteByte(text[i+1])
			i += 2
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return i, b.String(), escaped, nil
}

// parseNumber interprets an unescaped atom as an integer or float. A
// trailing dot marks an integer ("1." reads as 1). Integers that overflow
// int64 read as floats.
func parseNumber(s string) (Form, bool) {
	if s == "" {
		return nil, false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	digits := false
	for j := i; j < len(s); j++ {
		c := s[j]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-':
		default:
			return nil, false
		}
	}
	if !digits {
		return nil, false
	}
	n, err := strconv.ParseInt(strings.TrimSuffix(s, "."), 10, 64)
	if err == nil {
		return Int(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return Float(f), true
	}
	return nil, false
}

// scanRegex reads a #"..." regex literal whose hash is at off. Escapes are
// kept as written.
func (r *reader) scanRegex(off int) (int, string, error) {
	text := r.text
	for i := off + 2; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i + 1, string(text[off+2 : i]), nil
		}
	}
	return 0, "", syntaxErrorf(off, "unterminated regex")
}

// parseHashNumber interprets #x1F, #o17, #b101, #36rZZ and the Scheme
// exactness prefixes #e and #i.
func parseHashNumber(s string) (Form, bool) {
	if len(s) < 3 {
		return nil, false
	}
	base, digits := 0, s[2:]
	switch s[1] {
	case 'x', 'X':
		base = 16
	case 'o', 'O':
		base = 8
	case 'b', 'B':
		base = 2
	case 'd', 'D':
		base = 10
	case 'e', 'E', 'i', 'I':
		return parseNumber(digits)
	default:
		i := 1
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 1 || i+1 >= len(s) || (s[i] != 'r' && s[i] != 'R') {
			return nil, false
		}
		b, err := strconv.Atoi(s[1:i])
		if err != nil || b < 2 || b > 36 {
			return nil, false
		}
		base, digits = b, s[i+1:]
	}
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return nil, false
	}
	return Int(n), true
}

// scanString reads a double-quoted string whose opening quote is at off.
func (r *reader) scanString(off int) (int, string, error) {
	text := r.text
	var b strings.Builder
	i := off + 1
	for i < len(text) {
		c := text[i]
		switch c {
		case '"':
			return i + 1, b.String(), nil
		case '\\':
			if i+1 >= len(text) {
				return 0, "", syntaxErrorf(off, "unterminated string")
			}
			if text[i+1] == '\n' {
				i += 2
				continue
			}
			ru, n, err := r.scanEscape(i+1, true)
			if err != nil {
				return 0, "", err
			}
			// Meta in a string sets the high bit of the byte.
			if ru&metaBit != 0 {
				ru = ru&^metaBit | 0x80
			}
			if ru&^charMask != 0 {
				return 0, "", syntaxErrorf(i, "invalid modifier in string")
			}
			b.WriteRune(ru)
			i = n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return 0, "", syntaxErrorf(off, "unterminated string")
}

// Emacs Lisp character modifier bits.
const (
	altBit     rune = 1 << 22
	superBit   rune = 1 << 23
	hyperBit   rune = 1 << 24
	shiftBit   rune = 1 << 25
	controlBit rune = 1 << 26
	metaBit    rune = 1 << 27

	charMask = altBit - 1
)

// charModifiers lists the modifier escapes in the order they are printed.
var charModifiers = []struct {
	key byte
	bit rune
}{
	{'A', altBit},
	{'s', superBit},
	{'H', hyperBit},
	{'S', shiftBit},
	{'C', controlBit},
	{'M', metaBit},
}

// scanEscape decodes the escape sequence whose first byte (after the
// backslash) is at off. It returns the rune and the offset just past it.
// Modifier escapes (\C-x, \M-x, \^x and the like) stack; inside a string
// \s is always a space.
func (r *reader) scanEscape(off int, inString bool) (rune, int, error) {
	text := r.text
	c := text[off]
	dash := off+1 < len(text) && text[off+1] == '-'
	switch c {
	case 's':
		if dash && !inString {
			return r.scanModified(off, off+2, superBit, inString)
		}
		return ' ', off + 1, nil
	case 'C', 'M', 'S', 'H', 'A':
		if dash {
			for _, m := range charModifiers {
				if m.key == c {
					return r.scanModified(off, off+2, m.bit, inString)
				}
			}
		}
	case '^':
		return r.scanModified(off, off+1, controlBit, inString)
	case 'n':
		return '\n', off + 1, nil
	case 't':
		return '\t', off + 1, nil
	case 'r':
		return '\r', off + 1, nil
	case 'f':
		return '\f', off + 1, nil
	case 'a':
		return '\a', off + 1, nil
	case 'e':
		return 0x1b, off + 1, nil
	case 'b':
		return '\b', off + 1, nil
	case 'v':
		return '\v', off + 1, nil
	case 'd':
		return 0x7f, off + 1, nil
	case 'x':
		return r.scanHexEscape(off+1, 0)
	case 'u':
		return r.scanHexEscape(off+1, 4)
	case 'U':
		return r.scanHexEscape(off+1, 8)
	}
	if c >= '0' && c <= '7' {
		v := 0
		i := off
		for i < len(text) && i < off+3 && text[i] >= '0' && text[i] <= '7' {
			v = v*8 + int(text[i]-'0')
			i++
		}
		return rune(v), i, nil
	}
	ru, size := utf8.DecodeRune(text[off:])
	return ru, off + size, nil
}

// scanModified applies bit to the character that starts at at. off is the
// start of the escape, used for errors.
func (r *reader) scanModified(off, at int, bit rune, inString bool) (rune, int, error) {
	text := r.text
	if at >= len(text) || (text[at] == '\\' && at+1 >= len(text)) {
		return 0, 0, syntaxErrorf(off, "incomplete modifier escape")
	}
	var base rune
	var end int
	if text[at] == '\\' {
		var err error
		base, end, err = r.scanEscape(at+1, inString)
		if err != nil {
			return 0, 0, err
		}
	} else {
		var size int
		base, size = utf8.DecodeRune(text[at:])
		end = at + size
	}
	if bit == controlBit {
		return controlChar(base), end, nil
	}
	return base | bit, end, nil
}

// controlChar applies the control modifier. ASCII characters that have a
// control code fold into it; any other character keeps the modifier bit.
func controlChar(ru rune) rune {
	mods, base := ru&^charMask, ru&charMask
	switch {
	case base == '?':
		return mods | 0x7f
	case base >= '@' && base <= '_':
		return mods | (base - '@')
	case base >= 'a' && base <= 'z':
		return mods | (base - 'a' + 1)
	}
	return ru | controlBit
}

// scanHexEscape reads hex digits starting at off. width 0 means "as many as
// follow"; otherwise exactly width digits are required.
func (r *reader) scanHexEscape(off, width int) (rune, int, error) {
	text := r.text
	v := 0
	i := off
	for i < len(text) && (width == 0 || i < off+width) {
		d, ok := hexDigit(text[i])
		if !ok {
			break
		}
		v = v*16 + d
		i++
		if v > utf8.MaxRune {
			return 0, 0, syntaxErrorf(off, "escape out of range")
		}
	}
	if i == off || (width > 0 && i-off != width) {
		return 0, 0, syntaxErrorf(off, "invalid hex escape")
	}
	return rune(v), i, nil
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// scanQuestionChar reads an Emacs Lisp character literal (?a, ?\n, ?\C-x)
// whose question mark is at off.
func (r *reader) scanQuestionChar(off int) (int, Char, error) {
	text := r.text
	i := off + 1
	if i >= len(text) {
		return 0, 0, syntaxErrorf(off, "incomplete character literal")
	}
	var ru rune
	if text[i] == '\\' {
		if i+1 >= len(text) {
			return 0, 0, syntaxErrorf(off, "incomplete character literal")
		}
		var err error
		ru, i, err = r.scanEscape(i+1, false)
		if err != nil {
			return 0, 0, err
		}
	} else {
		var size int
		ru, size = utf8.DecodeRune(text[i:])
		i += size
	}
	if i < len(text) && !isDelimiter(text[i]) {
		return 0, 0, syntaxErrorf(off, "invalid character literal")
	}
	return i, Char(ru), nil
}

var charNames = map[string]rune{
	"space":     ' ',
	"newline":   '\n',
	"linefeed":  '\n',
	"tab":       '\t',
	"return":    '\r',
	"nul":       0,
	"null":      0,
	"escape":    0x1b,
	"altmode":   0x1b,
	"backspace": '\b',
	"delete":    0x7f,
	"rubout":    0x7f,
	"alarm":     '\a',
	"page":      '\f',
}

// scanHashChar reads a Scheme character literal (#\a, #\space, #\x41) whose
// hash is at off.
func (r *reader) scanHashChar(off int) (int, Char, error) {
	text := r.text
	i := off + 2
	if i >= len(text) {
		return 0, 0, syntaxErrorf(off, "incomplete character literal")
	}
	first, size := utf8.DecodeRune(text[i:])
	end := i + size
	for end < len(text) && !isDelimiter(text[end]) {
		end++
	}
	name := string(text[i:end])
	if end-i == size {
		return end, Char(first), nil
	}
	if ru, ok := charNames[strings.ToLower(name)]; ok {
		return end, Char(ru), nil
	}
	if name[0] == 'x' || name[0] == 'U' || name[0] == 'u' {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil && v <= utf8.MaxRune {
			return end, Char(rune(v)), nil
		}
	}
	return 0, 0, syntaxErrorf(off, "unknown character name %q", name)
}
