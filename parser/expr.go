package parser

import (
	"strconv"
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/token"
)

// parseExpr parses a full boolean/scalar expression at OR precedence, the
// lowest level of spec §4.2's WHERE grammar.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.kw("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.kw("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.kw("NOT") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return ast.UnaryExpr{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true, "==": true}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	// IS [NOT] NULL
	if p.kw("IS") {
		p.advance()
		not := false
		if p.kw("NOT") {
			not = true
			p.advance()
		}
		if err := p.expectKw("NULL"); err != nil {
			return nil, err
		}
		return ast.IsNullExpr{Operand: left, Not: not}, nil
	}

	not := false
	if p.kw("NOT") {
		not = true
		p.advance()
	}

	switch {
	case p.kw("IN"):
		p.advance()
		return p.parseInTail(left, not)
	case p.kw("BETWEEN"):
		p.advance()
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.BetweenExpr{Operand: left, Not: not, Lo: lo, Hi: hi}, nil
	case p.kw("LIKE"):
		p.advance()
		pat, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.LikeExpr{Operand: left, Not: not, Pattern: pat}, nil
	case p.kw("REGEXP") || p.kw("RLIKE"):
		p.advance()
		pat, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.LikeExpr{Operand: left, Not: not, Pattern: pat, Regexp: true}, nil
	}

	if not {
		return nil, p.errorf("unexpected NOT before %q", p.cur().Text)
	}

	t := p.cur()
	if (t.Kind == token.OP) && comparisonOps[t.Text] {
		op := t.Text
		p.advance()
		if p.kw("ANY") || p.kw("ALL") || p.kw("SOME") {
			kind := t2upper(p.advance().Text)
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			sub, err := p.parseSelectBody()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return ast.QuantifiedExpr{Operand: left, Op: op, Kind: kind, SubSel: sub}, nil
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
	}

	return left, nil
}

func t2upper(s string) string { return strings.ToUpper(s) }

func (p *Parser) parseInTail(left ast.Expr, not bool) (ast.Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	if p.kw("SELECT") {
		sub, err := p.parseSelectBody()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.InExpr{Operand: left, Not: not, SubSel: sub}, nil
	}
	var list []ast.Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return ast.InExpr{Operand: left, Not: not, List: list}, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.punct("+") || p.punct("-") {
		op := p.advance().Text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnaryArith()
	if err != nil {
		return nil, err
	}
	for p.punct("*") || p.punct("/") || p.punct("%") {
		op := p.advance().Text
		right, err := p.parseUnaryArith()
		if err != nil {
			return nil, err
		}
		left = ast.BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnaryArith() (ast.Expr, error) {
	if p.punct("-") {
		p.advance()
		operand, err := p.parseUnaryArith()
		if err != nil {
			return nil, err
		}
		return ast.UnaryExpr{Op: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()

	switch {
	case t.Kind == token.NUMBER:
		p.advance()
		return ast.Literal{Kind: ast.LitNumber, Text: t.Text}, nil
	case t.Kind == token.STRING:
		p.advance()
		return ast.Literal{Kind: ast.LitString, Text: t.Value}, nil
	case t.Kind == token.KEYWORD && t.Value == "NULL":
		p.advance()
		return ast.Literal{Kind: ast.LitNull, IsNil: true}, nil
	case t.Kind == token.KEYWORD && t.Value == "EXISTS":
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		sub, err := p.parseSelectBody()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return ast.ExistsExpr{SubSel: sub}, nil
	case t.Kind == token.KEYWORD && t.Value == "CASE":
		return p.parseCase()
	case t.Kind == token.PUNCT && t.Text == "(":
		p.advance()
		if p.kw("SELECT") {
			sub, err := p.parseSelectBody()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return ast.ScalarSubquery{SubSel: sub}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.Kind == token.IDENT:
		return p.parseIdentExpr()
	case t.Kind == token.KEYWORD && (ast.AggregateNames[t.Value] || ast.WindowFuncNames[t.Value]):
		return p.parseFuncCall(t.Value)
	default:
		return nil, p.errorf("unexpected token %q in expression", t.Text)
	}
}

func (p *Parser) parseIdentExpr() (ast.Expr, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.punct(".") {
		p.advance()
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.ColumnRef{Table: name, Column: col}, nil
	}
	if p.punct("(") {
		return p.parseFuncCall(name)
	}
	return ast.ColumnRef{Column: name}, nil
}

func (p *Parser) parseFuncCall(name string) (ast.Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	fc := ast.FuncCall{Name: strings.ToUpper(name)}
	if p.punct("*") {
		p.advance()
		fc.Star = true
	} else if !p.punct(")") {
		if p.kw("DISTINCT") {
			fc.Distinct = true
			p.advance()
		}
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fc.Args = append(fc.Args, arg)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if p.kw("OVER") {
		p.advance()
		over, err := p.parseOverClause()
		if err != nil {
			return nil, err
		}
		fc.Over = over
	}
	return fc, nil
}

func (p *Parser) parseOverClause() (*ast.OverClause, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	over := &ast.OverClause{}
	if p.kw("PARTITION") {
		p.advance()
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			over.PartitionBy = append(over.PartitionBy, e)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if p.kw("ORDER") {
		p.advance()
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		items, err := p.parseOrderByList()
		if err != nil {
			return nil, err
		}
		over.OrderBy = items
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return over, nil
}

func (p *Parser) parseCase() (ast.Expr, error) {
	p.advance() // CASE
	ce := ast.CaseExpr{}
	if !p.kw("WHEN") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Operand = operand
	}
	for p.kw("WHEN") {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKw("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, ast.WhenClause{Cond: cond, Then: then})
	}
	if p.kw("ELSE") {
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Else = e
	}
	if err := p.expectKw("END"); err != nil {
		return nil, err
	}
	return ce, nil
}

func (p *Parser) parseOrderByList() ([]ast.OrderItem, error) {
	var items []ast.OrderItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.kw("ASC") {
			p.advance()
		} else if p.kw("DESC") {
			desc = true
			p.advance()
		}
		items = append(items, ast.OrderItem{Expr: e, Desc: desc})
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
