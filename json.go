package fudge

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
)

// jsonTokenKind enumerates the JSON lexer's token alphabet (spec.md §4.4).
type jsonTokenKind int

const (
	jsonEOF jsonTokenKind = iota
	jsonBeginObject
	jsonEndObject
	jsonBeginArray
	jsonEndArray
	jsonString
	jsonInteger
	jsonLong
	jsonDouble
	jsonBoolean
	jsonNull
	jsonNameSeparator
	jsonValueSeparator
)

type jsonToken struct {
	kind   jsonTokenKind
	str    string
	i32    int32
	i64    int64
	f64    float64
	bo     bool
	offset int
}

// jsonLexer tokenizes a JSON document. Numbers without '.', 'e' or 'E' are
// integers, parsed as int64 then narrowed to int32 when in range;
// otherwise they're doubles (spec.md §4.4).
type jsonLexer struct {
	src    []byte
	pos    int
}

func newJSONLexer(src []byte) *jsonLexer { return &jsonLexer{src: src} }

func (l *jsonLexer) skipWhitespace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *jsonLexer) next() (jsonToken, error) {
	l.skipWhitespace()
	if l.pos >= len(l.src) {
		return jsonToken{kind: jsonEOF, offset: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch c {
	case '{':
		l.pos++
		return jsonToken{kind: jsonBeginObject, offset: start}, nil
	case '}':
		l.pos++
		return jsonToken{kind: jsonEndObject, offset: start}, nil
	case '[':
		l.pos++
		return jsonToken{kind: jsonBeginArray, offset: start}, nil
	case ']':
		l.pos++
		return jsonToken{kind: jsonEndArray, offset: start}, nil
	case ':':
		l.pos++
		return jsonToken{kind: jsonNameSeparator, offset: start}, nil
	case ',':
		l.pos++
		return jsonToken{kind: jsonValueSeparator, offset: start}, nil
	case '"':
		return l.lexString()
	case 't':
		return l.lexLiteral("true", jsonToken{kind: jsonBoolean, bo: true, offset: start})
	case 'f':
		return l.lexLiteral("false", jsonToken{kind: jsonBoolean, bo: false, offset: start})
	case 'n':
		return l.lexLiteral("null", jsonToken{kind: jsonNull, offset: start})
	default:
		if c == '-' || (c >= '0' && c <= '9') {
			return l.lexNumber()
		}
	}
	return jsonToken{}, ParseError{Reason: fmt.Sprintf("unexpected character %q", c), Offset: start}
}

func (l *jsonLexer) lexLiteral(lit string, tok jsonToken) (jsonToken, error) {
	if l.pos+len(lit) > len(l.src) || string(l.src[l.pos:l.pos+len(lit)]) != lit {
		return jsonToken{}, ParseError{Reason: "bad literal", Offset: l.pos}
	}
	l.pos += len(lit)
	return tok, nil
}

func (l *jsonLexer) lexNumber() (jsonToken, error) {
	start := l.pos
	isFloat := false
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		isFloat = true
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		isFloat = true
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
	}
	lit := string(l.src[start:l.pos])
	if isFloat {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return jsonToken{}, ParseError{Reason: "malformed number", Offset: start}
		}
		return jsonToken{kind: jsonDouble, f64: f, offset: start}, nil
	}
	i, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(lit, 64)
		if ferr != nil {
			return jsonToken{}, ParseError{Reason: "malformed number", Offset: start}
		}
		return jsonToken{kind: jsonDouble, f64: f, offset: start}, nil
	}
	if i >= -(1<<31) && i <= (1<<31-1) {
		return jsonToken{kind: jsonInteger, i32: int32(i), i64: i, offset: start}, nil
	}
	return jsonToken{kind: jsonLong, i64: i, offset: start}, nil
}

func (l *jsonLexer) lexString() (jsonToken, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return jsonToken{}, ParseError{Reason: "unterminated string", Offset: start}
		}
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return jsonToken{kind: jsonString, str: sb.String(), offset: start}, nil
		}
		if c == '\\' {
			l.pos++
			if l.pos >= len(l.src) {
				return jsonToken{}, ParseError{Reason: "unterminated escape", Offset: start}
			}
			esc := l.src[l.pos]
			switch esc {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case '/':
				sb.WriteByte('/')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'u':
				r, err := l.lexUnicodeEscape()
				if err != nil {
					return jsonToken{}, err
				}
				sb.WriteRune(r)
				continue
			default:
				return jsonToken{}, ParseError{Reason: "bad escape", Offset: l.pos}
			}
			l.pos++
			continue
		}
		sb.WriteByte(c)
		l.pos++
	}
}

func (l *jsonLexer) lexUnicodeEscape() (rune, error) {
	if l.pos+5 > len(l.src) {
		return 0, ParseError{Reason: "truncated \\u escape", Offset: l.pos}
	}
	hi, err := strconv.ParseUint(string(l.src[l.pos+1:l.pos+5]), 16, 32)
	if err != nil {
		return 0, ParseError{Reason: "bad \\u escape", Offset: l.pos}
	}
	l.pos += 5
	r := rune(hi)
	if utf16.IsSurrogate(r) && l.pos+6 <= len(l.src) && l.src[l.pos] == '\\' && l.src[l.pos+1] == 'u' {
		lo, err := strconv.ParseUint(string(l.src[l.pos+2:l.pos+6]), 16, 32)
		if err == nil {
			dec := utf16.DecodeRune(r, rune(lo))
			if dec != 0xFFFD {
				l.pos += 6
				return dec, nil
			}
		}
	}
	return r, nil
}
