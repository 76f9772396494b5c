// Package token defines the lexical tokens produced by the lexer (spec
// §4.1). The token set and the position bookkeeping are grounded on the
// teacher's own Tokenizer (parser/token.go in sqldef), adapted to a
// standalone scanner rather than a cgo-wrapped grammar.
package token

// Kind classifies a Token.
type Kind int

const (
	EOF Kind = iota
	ERROR

	IDENT      // bare or backtick-quoted identifier
	KEYWORD    // reserved word, matched case-insensitively
	STRING     // '...' or "..." literal; Value has escapes resolved
	NUMBER     // integer or floating literal, kept as source text
	PUNCT      // single-char punctuation: ( ) , . *
	OP         // operator: = != <> < > <= >= ==  + - / %
	SEMICOLON  // ';' kept distinct from PUNCT for statement splitting
)

// Token is one lexical unit plus its 1-based source position, used for
// error reporting (spec §4.2's Syntax errors).
type Token struct {
	Kind    Kind
	Text    string // raw source text (for KEYWORD, matches keyword spelling)
	Value   string // decoded value (escapes resolved for STRING, delimiters stripped for backtick IDENT)
	Line    int
	Column  int
	Quote   byte // original quote byte for STRING ('\'' or '"'), 0 otherwise
}

// Keywords recognized by the dialect (spec §6). Matching is
// case-insensitive; the lexer uppercases for lookup but Token.Text retains
// the original spelling.
var Keywords = buildKeywordSet([]string{
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "AS", "DISTINCT",
	"INSERT", "INTO", "VALUES", "IGNORE", "UPDATE", "SET", "DELETE",
	"CREATE", "DROP", "ALTER", "TABLE", "DATABASE", "USE", "INDEX",
	"UNIQUE", "KEY", "PRIMARY", "FOREIGN", "REFERENCES", "CONSTRAINT",
	"ON", "DELETE", "CASCADE", "RESTRICT", "ACTION", "NO", "DEFAULT",
	"NULL", "IS", "IN", "BETWEEN", "LIKE", "REGEXP", "RLIKE", "EXISTS",
	"ANY", "ALL", "SOME", "JOIN", "INNER", "LEFT", "RIGHT", "FULL",
	"CROSS", "OUTER", "USING", "GROUP", "BY", "HAVING", "ORDER", "ASC",
	"DESC", "LIMIT", "OFFSET", "UNION", "INTERSECT", "EXCEPT", "CASE",
	"WHEN", "THEN", "ELSE", "END", "OVER", "PARTITION", "BEGIN", "START",
	"TRANSACTION", "COMMIT", "ROLLBACK", "TO", "SAVEPOINT", "RELEASE",
	"TRUNCATE", "IF", "EXISTS", "AUTO_INCREMENT", "COMMENT", "ENGINE",
	"CHARSET", "ADD", "COLUMN", "MODIFY", "RENAME", "COUNT", "SUM", "AVG",
	"MIN", "MAX", "GROUP_CONCAT", "ROW_NUMBER", "RANK", "DENSE_RANK",
	"NTILE", "LEAD", "LAG", "FIRST_VALUE", "LAST_VALUE", "ENUM", "SET",
	"ISOLATION", "LEVEL", "NATURAL",
})

func buildKeywordSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// multiCharOperators is checked longest-first by the lexer.
var MultiCharOperators = []string{"<=", ">=", "!=", "<>", "=="}
