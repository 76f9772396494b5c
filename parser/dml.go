package parser

import (
	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/token"
)

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance() // INSERT
	ins := ast.Insert{}
	if p.kw("IGNORE") {
		ins.Ignore = true
		p.advance()
	}
	if err := p.expectKw("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ins.Table = table

	if p.punct("(") {
		p.advance()
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ins.Columns = append(ins.Columns, col)
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

	if err := p.expectKw("VALUES"); err != nil {
		return nil, err
	}
	for {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var tuple []ast.Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, e)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		ins.Values = append(ins.Values, tuple)
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	return ins, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.advance() // UPDATE
	upd := ast.Update{}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	upd.Table = table
	if !p.kw("SET") && p.cur().Kind == token.IDENT {
		upd.Alias = p.advance().Value
	}
	if err := p.expectKw("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Set = append(upd.Set, ast.Assignment{Column: col, Value: val})
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if p.kw("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Where = w
	}
	return upd, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance() // DELETE
	if err := p.expectKw("FROM"); err != nil {
		return nil, err
	}
	del := ast.Delete{}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	del.Table = table
	if !p.kw("WHERE") && p.cur().Kind == token.IDENT {
		del.Alias = p.advance().Value
	}
	if p.kw("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		del.Where = w
	}
	return del, nil
}
