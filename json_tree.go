package fudge

// jsonValue is a generic JSON value tree, used as the intermediate form
// between the lexer and the event mapping described in spec.md §4.4. JSON
// object order and duplicate semantics are irrelevant to strict JSON
// (object keys are unique), but array element order and homogeneity are
// significant, so arr is an ordered slice.
type jsonValue struct {
	kind jsonValueKind
	obj  []jsonKV
	arr  []jsonValue
	str  string
	i32  int32
	i64  int64
	f64  float64
	bo   bool
}

type jsonValueKind byte

const (
	jvObject jsonValueKind = iota
	jvArray
	jvString
	jvInt32
	jvInt64
	jvDouble
	jvBool
	jvNull
)

type jsonKV struct {
	key string
	val jsonValue
}

type jsonTreeParser struct {
	lex *jsonLexer
	tok jsonToken
}

func parseJSONDocument(src []byte) (jsonValue, error) {
	p := &jsonTreeParser{lex: newJSONLexer(src)}
	if err := p.advance(); err != nil {
		return jsonValue{}, err
	}
	v, err := p.parseValue()
	if err != nil {
		return jsonValue{}, err
	}
	return v, nil
}

func (p *jsonTreeParser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *jsonTreeParser) parseValue() (jsonValue, error) {
	switch p.tok.kind {
	case jsonBeginObject:
		return p.parseObject()
	case jsonBeginArray:
		return p.parseArray()
	case jsonString:
		v := jsonValue{kind: jvString, str: p.tok.str}
		return v, p.advance()
	case jsonInteger:
		v := jsonValue{kind: jvInt32, i32: p.tok.i32, i64: p.tok.i64}
		return v, p.advance()
	case jsonLong:
		v := jsonValue{kind: jvInt64, i64: p.tok.i64}
		return v, p.advance()
	case jsonDouble:
		v := jsonValue{kind: jvDouble, f64: p.tok.f64}
		return v, p.advance()
	case jsonBoolean:
		v := jsonValue{kind: jvBool, bo: p.tok.bo}
		return v, p.advance()
	case jsonNull:
		v := jsonValue{kind: jvNull}
		return v, p.advance()
	default:
		return jsonValue{}, ParseError{Reason: "expected a value", Offset: p.tok.offset}
	}
}

func (p *jsonTreeParser) parseObject() (jsonValue, error) {
	if err := p.advance(); err != nil { // consume '{'
		return jsonValue{}, err
	}
	v := jsonValue{kind: jvObject}
	if p.tok.kind == jsonEndObject {
		return v, p.advance()
	}
	for {
		if p.tok.kind != jsonString {
			return jsonValue{}, ParseError{Reason: "expected object key", Offset: p.tok.offset}
		}
		key := p.tok.str
		if err := p.advance(); err != nil { // consume key
			return jsonValue{}, err
		}
		if p.tok.kind != jsonNameSeparator {
			return jsonValue{}, ParseError{Reason: "expected ':'", Offset: p.tok.offset}
		}
		if err := p.advance(); err != nil { // consume ':'
			return jsonValue{}, err
		}
		val, err := p.parseValue()
		if err != nil {
			return jsonValue{}, err
		}
		v.obj = append(v.obj, jsonKV{key: key, val: val})
		if p.tok.kind == jsonValueSeparator {
			if err := p.advance(); err != nil {
				return jsonValue{}, err
			}
			continue
		}
		if p.tok.kind == jsonEndObject {
			return v, p.advance()
		}
		return jsonValue{}, ParseError{Reason: "expected ',' or '}'", Offset: p.tok.offset}
	}
}

func (p *jsonTreeParser) parseArray() (jsonValue, error) {
	if err := p.advance(); err != nil { // consume '['
		return jsonValue{}, err
	}
	v := jsonValue{kind: jvArray}
	if p.tok.kind == jsonEndArray {
		return v, p.advance()
	}
	for {
		val, err := p.parseValue()
		if err != nil {
			return jsonValue{}, err
		}
		v.arr = append(v.arr, val)
		if p.tok.kind == jsonValueSeparator {
			if err := p.advance(); err != nil {
				return jsonValue{}, err
			}
			continue
		}
		if p.tok.kind == jsonEndArray {
			return v, p.advance()
		}
		return jsonValue{}, ParseError{Reason: "expected ',' or ']'", Offset: p.tok.offset}
	}
}
