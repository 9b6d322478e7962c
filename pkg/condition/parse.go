package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenHas
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	raw  string
}

func isBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '!', '=', '&', '|':
		return true
	}
	return false
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}

	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			tokens = append(tokens, token{kind: tokenLParen, raw: "("})
			i++
		case ch == ')':
			tokens = append(tokens, token{kind: tokenRParen, raw: ")"})
			i++
		case ch == '!':
			if peek(1) == '=' {
				tokens = append(tokens, token{kind: tokenNeq, raw: "!="})
				i += 2
				continue
			}
			tokens = append(tokens, token{kind: tokenNot, raw: "!"})
			i++
		case ch == '=':
			if peek(1) != '=' {
				return nil, errors.New("condition: unexpected '='; use '=='")
			}
			tokens = append(tokens, token{kind: tokenEq, raw: "=="})
			i += 2
		case ch == '&':
			if peek(1) != '&' {
				return nil, errors.New("condition: unexpected '&'; use '&&'")
			}
			tokens = append(tokens, token{kind: tokenAnd, raw: "&&"})
			i += 2
		case ch == '|':
			if peek(1) != '|' {
				return nil, errors.New("condition: unexpected '|'; use '||'")
			}
			tokens = append(tokens, token{kind: tokenOr, raw: "||"})
			i += 2
		case ch == '"' || ch == '\'':
			value, next, err := readString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, raw: value})
			i = next
		default:
			start := i
			for i < len(input) && !isBoundary(input[i]) {
				i++
			}
			tokens = append(tokens, classifyWord(input[start:i]))
		}
	}

	return tokens, nil
}

func readString(input string, start int) (string, int, error) {
	quote := input[start]
	escaped := false
	for i := start + 1; i < len(input); i++ {
		c := input[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c != quote {
			continue
		}
		body := input[start+1 : i]
		if quote == '\'' {
			// strconv.Unquote only accepts single-rune literals in single quotes.
			body = strings.ReplaceAll(body, `\'`, `'`)
			body = strings.ReplaceAll(body, `"`, `\"`)
		}
		value, err := strconv.Unquote(`"` + body + `"`)
		if err != nil {
			return "", 0, fmt.Errorf("condition: invalid string literal: %w", err)
		}
		return value, i + 1, nil
	}
	return "", 0, errors.New("condition: unterminated string literal")
}

func classifyWord(raw string) token {
	switch strings.ToLower(raw) {
	case "true", "false":
		return token{kind: tokenBool, raw: strings.ToLower(raw)}
	case "null", "nil":
		return token{kind: tokenNull, raw: "null"}
	case "has":
		return token{kind: tokenHas, raw: "has"}
	case "and":
		return token{kind: tokenAnd, raw: "&&"}
	case "or":
		return token{kind: tokenOr, raw: "||"}
	case "not":
		return token{kind: tokenNot, raw: "!"}
	}
	if looksLikeNumber(raw) {
		return token{kind: tokenNumber, raw: raw}
	}
	return token{kind: tokenIdentifier, raw: raw}
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+'
}

type tokenStream struct {
	tokens []token
	pos    int
}

func parseExpression(tokens []token) (node, error) {
	stream := &tokenStream{tokens: tokens}
	n, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("condition: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return n, nil
}

func parseOr(stream *tokenStream) (node, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = exprOr{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (node, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = exprAnd{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (node, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return exprNot{inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (node, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("condition: missing closing ')'")
		}
		return inner, nil
	}

	ident, ok := stream.consume(tokenIdentifier)
	if !ok {
		if stream.pos >= len(stream.tokens) {
			return nil, errors.New("condition: unexpected end of rule")
		}
		return nil, fmt.Errorf("condition: expected identifier, got %q", stream.tokens[stream.pos].raw)
	}

	switch {
	case stream.match(tokenEq):
		lit, err := stream.consumeLiteral()
		if err != nil {
			return nil, err
		}
		return exprCompare{identifier: ident.raw, op: tokenEq, literal: lit}, nil
	case stream.match(tokenNeq):
		lit, err := stream.consumeLiteral()
		if err != nil {
			return nil, err
		}
		return exprCompare{identifier: ident.raw, op: tokenNeq, literal: lit}, nil
	case stream.match(tokenHas):
		lit, err := stream.consumeLiteral()
		if err != nil {
			return nil, err
		}
		return exprHas{identifier: ident.raw, literal: lit}, nil
	}

	return exprTruthy{identifier: ident.raw}, nil
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) consume(kind tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return token{}, false
	}
	out := s.tokens[s.pos]
	s.pos++
	return out, true
}

func (s *tokenStream) consumeLiteral() (literal, error) {
	if s.pos >= len(s.tokens) {
		return literal{}, errors.New("condition: missing literal")
	}
	tok := s.tokens[s.pos]
	s.pos++
	switch tok.kind {
	case tokenString:
		return literal{kind: litString, raw: tok.raw}, nil
	case tokenNumber:
		if _, err := strconv.ParseFloat(tok.raw, 64); err != nil {
			return literal{}, fmt.Errorf("condition: invalid number literal %q", tok.raw)
		}
		return literal{kind: litNumber, raw: tok.raw}, nil
	case tokenBool:
		return literal{kind: litBool, raw: tok.raw}, nil
	case tokenNull:
		return literal{kind: litNull, raw: "null"}, nil
	case tokenIdentifier:
		// bare words compare as strings: `kitchenAccess == none`
		return literal{kind: litString, raw: tok.raw}, nil
	default:
		return literal{}, fmt.Errorf("condition: expected literal, got %q", tok.raw)
	}
}
