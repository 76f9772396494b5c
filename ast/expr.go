package ast

// Expr is the marker interface for scalar/boolean expressions (spec §4.2's
// WHERE grammar and projection expressions).
type Expr interface{ expr() }

type (
	// ColumnRef resolves lexically as table.column or bare column.
	ColumnRef struct {
		Table  string
		Column string
	}

	// Literal is a constant value as written in source: NUMBER, STRING,
	// NULL, or TRUE/FALSE.
	Literal struct {
		Kind  LiteralKind
		Text  string // source text for NUMBER/STRING (decoded)
		IsNil bool
	}

	LiteralKind int

	BinaryExpr struct {
		Op    string // "=", "!=", "<>", "<", ">", "<=", ">=", "AND", "OR", "+", "-", "*", "/", "%"
		Left  Expr
		Right Expr
	}

	UnaryExpr struct {
		Op      string // "NOT", "-"
		Operand Expr
	}

	IsNullExpr struct {
		Operand Expr
		Not     bool
	}

	InExpr struct {
		Operand Expr
		Not     bool
		List    []Expr
		SubSel  *Select
	}

	BetweenExpr struct {
		Operand Expr
		Not     bool
		Lo, Hi  Expr
	}

	LikeExpr struct {
		Operand Expr
		Not     bool
		Pattern Expr
		Regexp  bool // REGEXP/RLIKE instead of LIKE
	}

	ExistsExpr struct {
		Not    bool
		SubSel *Select
	}

	QuantifiedExpr struct {
		Operand Expr
		Op      string // comparison operator applied per-row
		Kind    string // "ANY", "ALL", "SOME"
		SubSel  *Select
	}

	ScalarSubquery struct {
		SubSel *Select
	}

	CaseExpr struct {
		Operand Expr // non-nil for "simple" CASE expr WHEN val THEN ...
		Whens   []WhenClause
		Else    Expr
	}

	WhenClause struct {
		Cond Expr
		Then Expr
	}

	// FuncCall covers aggregates (COUNT/SUM/AVG/MIN/MAX/GROUP_CONCAT) and
	// plain scalar function calls; window functions additionally carry a
	// non-nil Over.
	FuncCall struct {
		Name     string
		Args     []Expr
		Distinct bool
		Star     bool // COUNT(*)
		Over     *OverClause
	}

	OverClause struct {
		PartitionBy []Expr
		OrderBy     []OrderItem
	}
)

const (
	LitNumber LiteralKind = iota
	LitString
	LitNull
	LitBool
)

func (ColumnRef) expr()      {}
func (Literal) expr()        {}
func (BinaryExpr) expr()     {}
func (UnaryExpr) expr()      {}
func (IsNullExpr) expr()     {}
func (InExpr) expr()         {}
func (BetweenExpr) expr()    {}
func (LikeExpr) expr()       {}
func (ExistsExpr) expr()     {}
func (QuantifiedExpr) expr() {}
func (ScalarSubquery) expr() {}
func (CaseExpr) expr()       {}
func (FuncCall) expr()       {}

// WindowFuncNames lists the pure window functions (no OVER-less form),
// distinct from windowed aggregates which reuse FuncCall.Name of an
// aggregate name.
var WindowFuncNames = map[string]bool{
	"ROW_NUMBER": true, "RANK": true, "DENSE_RANK": true, "NTILE": true,
	"LEAD": true, "LAG": true, "FIRST_VALUE": true, "LAST_VALUE": true,
}

// AggregateNames lists the aggregate functions usable with or without OVER.
var AggregateNames = map[string]bool{
	"COUNT": true, "SUM": true, "AVG": true, "MIN": true, "MAX": true,
	"GROUP_CONCAT": true,
}
