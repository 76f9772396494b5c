package parser

import (
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/token"
)

func (p *Parser) parseSelectStatement() (ast.Statement, error) {
	sel, err := p.parseSelectBody()
	if err != nil {
		return nil, err
	}
	return *sel, nil
}

// parseSelectBody parses one SELECT including its trailing UNION/INTERSECT/
// EXCEPT tail (spec §4.2). Used both at the statement level and wherever a
// parenthesized sub-select is expected.
func (p *Parser) parseSelectBody() (*ast.Select, error) {
	if err := p.expectKw("SELECT"); err != nil {
		return nil, err
	}
	sel := &ast.Select{}
	if p.kw("DISTINCT") {
		sel.Distinct = true
		p.advance()
	}

	items, err := p.parseProjection()
	if err != nil {
		return nil, err
	}
	sel.Projection = items

	if p.kw("FROM") {
		p.advance()
		from, err := p.parseTableExpr()
		if err != nil {
			return nil, err
		}
		sel.From = from

		joins, err := p.parseJoins()
		if err != nil {
			return nil, err
		}
		sel.Joins = joins
	}

	if p.kw("WHERE") {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}

	if p.kw("GROUP") {
		p.advance()
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, e)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if p.kw("HAVING") {
			p.advance()
			h, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.Having = h
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
		sel.OrderBy = items
	}

	if p.kw("LIMIT") {
		p.advance()
		first, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.punct(",") {
			// LIMIT offset, count
			p.advance()
			count, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.Offset = first
			sel.Limit = count
		} else {
			sel.Limit = first
			if p.kw("OFFSET") {
				p.advance()
				off, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				sel.Offset = off
			}
		}
	}

	for p.kw("UNION") || p.kw("INTERSECT") || p.kw("EXCEPT") {
		var kind ast.SetOpKind
		switch p.advance().Value {
		case "UNION":
			kind = ast.SetUnion
			if p.kw("ALL") {
				kind = ast.SetUnionAll
				p.advance()
			}
		case "INTERSECT":
			kind = ast.SetIntersect
		case "EXCEPT":
			kind = ast.SetExcept
		}
		right, err := p.parseSelectBodyNoSetOp()
		if err != nil {
			return nil, err
		}
		tail := right.SetOps
		right.SetOps = nil
		sel.SetOps = append(sel.SetOps, ast.SetOp{Kind: kind, Select: right})
		sel.SetOps = append(sel.SetOps, tail...)
	}

	return sel, nil
}

// parseSelectBodyNoSetOp parses the right-hand side of a set operator. It
// delegates to parseSelectBody, which also consumes any further set-op
// tail; the caller moves that tail up onto the outer SELECT so the chain
// of set operations stays left-associative.
func (p *Parser) parseSelectBodyNoSetOp() (*ast.Select, error) {
	if !p.kw("SELECT") {
		return nil, p.errorf("expected SELECT, got %q", p.cur().Text)
	}
	return p.parseSelectBody()
}

func (p *Parser) parseProjection() ([]ast.SelectItem, error) {
	var items []ast.SelectItem
	for {
		item, err := p.parseProjectionItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseProjectionItem() (ast.SelectItem, error) {
	if p.punct("*") {
		p.advance()
		return ast.SelectItem{Star: true}, nil
	}
	// "table.*"
	if p.cur().Kind == token.IDENT && p.peekIsDotStar() {
		table := p.advance().Value
		p.advance() // .
		p.advance() // *
		return ast.SelectItem{Star: true, Table: table}, nil
	}

	e, err := p.parseExpr()
	if err != nil {
		return ast.SelectItem{}, err
	}
	item := ast.SelectItem{Expr: e}
	if p.kw("AS") {
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return ast.SelectItem{}, err
		}
		item.Alias = name
	} else if p.cur().Kind == token.IDENT {
		item.Alias = p.advance().Value
	}
	return item, nil
}

func (p *Parser) peekIsDotStar() bool {
	if p.pos+2 >= len(p.toks) {
		return false
	}
	dot := p.toks[p.pos+1]
	star := p.toks[p.pos+2]
	return dot.Kind == token.PUNCT && dot.Text == "." && star.Kind == token.PUNCT && star.Text == "*"
}

func (p *Parser) parseTableExpr() (ast.TableExpr, error) {
	if p.punct("(") {
		p.advance()
		sub, err := p.parseSelectBody()
		if err != nil {
			return ast.TableExpr{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return ast.TableExpr{}, err
		}
		if p.kw("AS") {
			p.advance()
		}
		alias, err := p.expectIdent()
		if err != nil {
			return ast.TableExpr{}, p.errorf("sub-select in FROM requires an alias")
		}
		return ast.TableExpr{SubQuery: sub, Alias: alias}, nil
	}

	name, err := p.expectIdent()
	if err != nil {
		return ast.TableExpr{}, err
	}
	te := ast.TableExpr{Table: name}
	if p.kw("AS") {
		p.advance()
		alias, err := p.expectIdent()
		if err != nil {
			return ast.TableExpr{}, err
		}
		te.Alias = alias
	} else if p.cur().Kind == token.IDENT && !p.startsJoinOrClause() {
		te.Alias = p.advance().Value
	}
	return te, nil
}

// startsJoinOrClause reports whether the current token begins a JOIN or a
// clause keyword, used to decide whether a following bare identifier is an
// implicit table alias.
func (p *Parser) startsJoinOrClause() bool {
	return false // identifiers never collide with our reserved clause keywords
}

func (p *Parser) parseJoins() ([]ast.Join, error) {
	var joins []ast.Join
	for {
		kind, ok, err := p.tryParseJoinKind()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		table, err := p.parseTableExpr()
		if err != nil {
			return nil, err
		}
		j := ast.Join{Kind: kind, Table: table}
		if kind != ast.JoinCross {
			if p.kw("ON") {
				p.advance()
				on, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				j.On = on
			} else if p.kw("USING") {
				p.advance()
				if err := p.expectPunct("("); err != nil {
					return nil, err
				}
				for {
					col, err := p.expectIdent()
					if err != nil {
						return nil, err
					}
					j.Using = append(j.Using, col)
					if p.punct(",") {
						p.advance()
						continue
					}
					break
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
			}
		}
		joins = append(joins, j)
	}
	return joins, nil
}

func (p *Parser) tryParseJoinKind() (ast.JoinKind, bool, error) {
	switch {
	case p.kw("JOIN"):
		p.advance()
		return ast.JoinInner, true, nil
	case p.kw("INNER"):
		p.advance()
		if err := p.expectKw("JOIN"); err != nil {
			return 0, false, err
		}
		return ast.JoinInner, true, nil
	case p.kw("CROSS"):
		p.advance()
		if err := p.expectKw("JOIN"); err != nil {
			return 0, false, err
		}
		return ast.JoinCross, true, nil
	case p.kw("LEFT"):
		p.advance()
		p.skipOuter()
		if err := p.expectKw("JOIN"); err != nil {
			return 0, false, err
		}
		return ast.JoinLeft, true, nil
	case p.kw("RIGHT"):
		p.advance()
		p.skipOuter()
		if err := p.expectKw("JOIN"); err != nil {
			return 0, false, err
		}
		return ast.JoinRight, true, nil
	case p.kw("FULL"):
		p.advance()
		p.skipOuter()
		if err := p.expectKw("JOIN"); err != nil {
			return 0, false, err
		}
		return ast.JoinFull, true, nil
	default:
		return 0, false, nil
	}
}

func (p *Parser) skipOuter() {
	if p.kw("OUTER") {
		p.advance()
	}
}

// formatExprLabel produces a human-readable projection alias for an
// unaliased computed expression (spec §4.7 step 10).
func formatExprLabel(e ast.Expr) string {
	switch v := e.(type) {
	case ast.ColumnRef:
		if v.Table != "" {
			return v.Table + "." + v.Column
		}
		return v.Column
	case ast.FuncCall:
		name := strings.ToLower(v.Name)
		return name + "(...)"
	default:
		return "expr"
	}
}
