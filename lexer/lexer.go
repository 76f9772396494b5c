// Package lexer tokenizes SQL text (spec §4.1). The scanning shape —
// buffered single-rune lookahead, explicit line/column tracking — is
// grounded on the teacher's parser/token.go Tokenizer, rebuilt as a
// standalone scanner since this engine owns its own grammar (see
// DESIGN.md's dropped-dependency note on external SQL parsers).
package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sqldef/qldb/token"
)

// Lexer scans SQL text into a Token stream.
type Lexer struct {
	src       []rune
	pos       int
	line      int
	col       int
}

// New creates a Lexer over sql.
func New(sql string) *Lexer {
	return &Lexer{src: []rune(sql), pos: 0, line: 1, col: 1}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.src) {
		r := l.peek()
		if unicode.IsSpace(r) {
			l.advance()
			continue
		}
		if r == '-' && l.peekAt(1) == '-' {
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		if r == '#' {
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		break
	}
}

// Tokenize scans the full input and returns the token stream, terminated by
// a single EOF token. An unterminated string literal is a fatal lex error
// (spec §4.1), returned as the second value.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, nil
}

// Next scans and returns the next token.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespaceAndComments()
	line, col := l.line, l.col

	if l.pos >= len(l.src) {
		return token.Token{Kind: token.EOF, Line: line, Column: col}, nil
	}

	r := l.peek()

	switch {
	case r == '`':
		return l.scanBacktickIdent(line, col)
	case r == '\'' || r == '"':
		return l.scanString(line, col)
	case unicode.IsDigit(r):
		return l.scanNumber(line, col), nil
	case isIdentStart(r):
		return l.scanIdentOrKeyword(line, col), nil
	case r == ';':
		l.advance()
		return token.Token{Kind: token.SEMICOLON, Text: ";", Line: line, Column: col}, nil
	default:
		return l.scanOperatorOrPunct(line, col)
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (l *Lexer) scanBacktickIdent(line, col int) (token.Token, error) {
	l.advance() // opening backtick
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token.Token{}, fmt.Errorf("unterminated backtick identifier at line %d, column %d", line, col)
		}
		r := l.advance()
		if r == '`' {
			if l.peek() == '`' { // doubled backtick escapes a literal backtick
				l.advance()
				sb.WriteRune('`')
				continue
			}
			break
		}
		sb.WriteRune(r)
	}
	return token.Token{Kind: token.IDENT, Text: sb.String(), Value: sb.String(), Line: line, Column: col}, nil
}

func (l *Lexer) scanString(line, col int) (token.Token, error) {
	quote := l.advance()
	var raw, val strings.Builder
	raw.WriteRune(quote)
	for {
		if l.pos >= len(l.src) {
			return token.Token{}, fmt.Errorf("unterminated string literal at line %d, column %d", line, col)
		}
		r := l.advance()
		if r == '\\' {
			if l.pos >= len(l.src) {
				return token.Token{}, fmt.Errorf("unterminated string literal at line %d, column %d", line, col)
			}
			esc := l.advance()
			raw.WriteRune('\\')
			raw.WriteRune(esc)
			val.WriteRune(decodeEscape(esc))
			continue
		}
		if r == quote {
			if l.peek() == quote { // doubled quote escapes itself
				l.advance()
				val.WriteRune(quote)
				raw.WriteRune(quote)
				raw.WriteRune(quote)
				continue
			}
			raw.WriteRune(quote)
			break
		}
		raw.WriteRune(r)
		val.WriteRune(r)
	}
	return token.Token{Kind: token.STRING, Text: raw.String(), Value: val.String(), Line: line, Column: col, Quote: byte(quote)}, nil
}

func decodeEscape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return r
	}
}

func (l *Lexer) scanNumber(line, col int) token.Token {
	var sb strings.Builder
	for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
		sb.WriteRune(l.advance())
	}
	if l.peek() == '.' && unicode.IsDigit(l.peekAt(1)) {
		sb.WriteRune(l.advance())
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			sb.WriteRune(l.advance())
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.pos
		exp := string(l.peek())
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			exp += string(l.peek())
			l.advance()
		}
		if unicode.IsDigit(l.peek()) {
			for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
				exp += string(l.peek())
				l.advance()
			}
			sb.WriteString(exp)
		} else {
			l.pos = save
		}
	}
	return token.Token{Kind: token.NUMBER, Text: sb.String(), Value: sb.String(), Line: line, Column: col}
}

func (l *Lexer) scanIdentOrKeyword(line, col int) token.Token {
	var sb strings.Builder
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		sb.WriteRune(l.advance())
	}
	text := sb.String()
	if token.Keywords[strings.ToUpper(text)] {
		return token.Token{Kind: token.KEYWORD, Text: text, Value: strings.ToUpper(text), Line: line, Column: col}
	}
	return token.Token{Kind: token.IDENT, Text: text, Value: text, Line: line, Column: col}
}

func (l *Lexer) scanOperatorOrPunct(line, col int) (token.Token, error) {
	for _, op := range token.MultiCharOperators {
		rs := []rune(op)
		if l.pos+len(rs) > len(l.src) {
			continue
		}
		match := true
		for i, rr := range rs {
			if l.src[l.pos+i] != rr {
				match = false
				break
			}
		}
		if match {
			for range rs {
				l.advance()
			}
			return token.Token{Kind: token.OP, Text: op, Value: op, Line: line, Column: col}, nil
		}
	}
	r := l.advance()
	switch r {
	case '(', ')', ',', '.', '*':
		return token.Token{Kind: token.PUNCT, Text: string(r), Value: string(r), Line: line, Column: col}, nil
	case '=', '<', '>', '+', '-', '/', '%':
		return token.Token{Kind: token.OP, Text: string(r), Value: string(r), Line: line, Column: col}, nil
	default:
		return token.Token{}, fmt.Errorf("unexpected character %q at line %d, column %d", r, line, col)
	}
}
