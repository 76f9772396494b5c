package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/qldb/token"
)

func tokenize(t *testing.T, sql string) []token.Token {
	t.Helper()
	toks, err := New(sql).Tokenize()
	require.NoError(t, err)
	return toks
}

func TestTokenizeSelectStatement(t *testing.T) {
	toks := tokenize(t, "SELECT id, name FROM users WHERE id = 1;")
	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.KEYWORD, token.IDENT, token.PUNCT, token.IDENT,
		token.KEYWORD, token.IDENT, token.KEYWORD, token.IDENT,
		token.OP, token.NUMBER, token.SEMICOLON, token.EOF,
	}, kinds)
}

func TestKeywordMatchingIsCaseInsensitive(t *testing.T) {
	toks := tokenize(t, "select")
	require.Len(t, toks, 2)
	assert.Equal(t, token.KEYWORD, toks[0].Kind)
	assert.Equal(t, "select", toks[0].Text)
	assert.Equal(t, "SELECT", toks[0].Value)
}

func TestBacktickIdentifierWithDoubledEscape(t *testing.T) {
	toks := tokenize(t, "`my``table`")
	require.Len(t, toks, 2)
	assert.Equal(t, token.IDENT, toks[0].Kind)
	assert.Equal(t, "my`table", toks[0].Value)
}

func TestStringLiteralEscapesAndDoubledQuote(t *testing.T) {
	toks := tokenize(t, `'it''s a \ntest'`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "it's a \ntest", toks[0].Value)
	assert.Equal(t, byte('\''), toks[0].Quote)
}

func TestUnterminatedStringIsAnError(t *testing.T) {
	_, err := New(`'unterminated`).Tokenize()
	assert.Error(t, err)
}

func TestNumberLiteralsPreserveSourceText(t *testing.T) {
	cases := []string{"42", "3.14", "1e10", "1.5e-3"}
	for _, c := range cases {
		toks := tokenize(t, c)
		require.Len(t, toks, 2)
		assert.Equal(t, token.NUMBER, toks[0].Kind)
		assert.Equal(t, c, toks[0].Text)
	}
}

func TestMultiCharOperators(t *testing.T) {
	toks := tokenize(t, "a <= b <> c >= d != e")
	var ops []string
	for _, tok := range toks {
		if tok.Kind == token.OP {
			ops = append(ops, tok.Text)
		}
	}
	assert.Equal(t, []string{"<=", "<>", ">=", "!="}, ops)
}

func TestLineAndColumnTracking(t *testing.T) {
	toks := tokenize(t, "SELECT 1\nFROM t")
	require.True(t, len(toks) >= 4)
	assert.Equal(t, 1, toks[0].Line)
	from := toks[2]
	assert.Equal(t, "FROM", from.Value)
	assert.Equal(t, 2, from.Line)
}
