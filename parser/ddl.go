package parser

import (
	"strings"

	"github.com/sqldef/qldb/ast"
	"github.com/sqldef/qldb/token"
)

func (p *Parser) parseCreate() (ast.Statement, error) {
	p.advance() // CREATE
	switch {
	case p.kw("TABLE"):
		p.advance()
		return p.parseCreateTable()
	case p.kw("UNIQUE"):
		p.advance()
		if err := p.expectKw("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndex(true)
	case p.kw("INDEX"):
		p.advance()
		return p.parseCreateIndex(false)
	case p.kw("DATABASE"):
		p.advance()
		ifNotExists := p.consumeIfNotExists()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.CreateDatabase{Name: name, IfNotExists: ifNotExists}, nil
	default:
		return nil, p.errorf("unsupported CREATE target %q", p.cur().Text)
	}
}

func (p *Parser) consumeIfNotExists() bool {
	if p.kw("IF") {
		p.advance()
		_ = p.expectKw("NOT")
		_ = p.expectKw("EXISTS")
		return true
	}
	return false
}

func (p *Parser) consumeIfExists() bool {
	if p.kw("IF") {
		p.advance()
		_ = p.expectKw("EXISTS")
		return true
	}
	return false
}

func (p *Parser) parseDrop() (ast.Statement, error) {
	p.advance() // DROP
	switch {
	case p.kw("TABLE"):
		p.advance()
		ifExists := p.consumeIfExists()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.DropTable{Table: name, IfExists: ifExists}, nil
	case p.kw("INDEX"):
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		table := ""
		if p.kw("ON") {
			p.advance()
			t, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			table = t
		}
		return ast.DropIndex{Name: name, Table: table}, nil
	case p.kw("DATABASE"):
		p.advance()
		ifExists := p.consumeIfExists()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.DropDatabase{Name: name, IfExists: ifExists}, nil
	default:
		return nil, p.errorf("unsupported DROP target %q", p.cur().Text)
	}
}

func (p *Parser) parseCreateIndex(unique bool) (ast.Statement, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKw("ON"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	return ast.CreateIndex{Name: name, Table: table, Columns: cols, Unique: unique}, nil
}

func (p *Parser) parseColumnList() ([]string, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		// tolerate an ASC/DESC direction marker on index columns
		if p.kw("ASC") || p.kw("DESC") {
			p.advance()
		}
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return cols, nil
}

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	ct := ast.CreateTable{}
	ct.IfNotExists = p.consumeIfNotExists()
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ct.Table = table

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	for {
		if err := p.parseTableElement(&ct); err != nil {
			return nil, err
		}
		if p.punct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	for {
		switch {
		case p.kw("ENGINE"):
			p.advance()
			if p.punct("=") {
				p.advance()
			}
			v, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ct.Engine = v
		case p.kw("CHARSET"):
			p.advance()
			if p.punct("=") {
				p.advance()
			}
			v, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ct.Charset = v
		default:
			return ct, nil
		}
	}
}

// parseTableElement parses one element of CREATE TABLE's column list: a
// column definition or a table-level constraint (spec §4.2).
func (p *Parser) parseTableElement(ct *ast.CreateTable) error {
	switch {
	case p.kw("PRIMARY"):
		p.advance()
		if err := p.expectKw("KEY"); err != nil {
			return err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return err
		}
		ct.PrimaryKey = cols
		return nil
	case p.kw("FOREIGN"):
		p.advance()
		if err := p.expectKw("KEY"); err != nil {
			return err
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return err
		}
		fk, err := p.parseReferences(cols)
		if err != nil {
			return err
		}
		ct.ForeignKeys = append(ct.ForeignKeys, fk)
		return nil
	case p.kw("UNIQUE"):
		p.advance()
		if p.kw("KEY") || p.kw("INDEX") {
			p.advance()
		}
		if p.cur().Kind == token.IDENT && !p.punct("(") {
			p.advance() // optional constraint name
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return err
		}
		ct.Uniques = append(ct.Uniques, cols)
		return nil
	case p.kw("INDEX") || p.kw("KEY"):
		p.advance()
		name := ""
		if p.cur().Kind == token.IDENT {
			name = p.advance().Value
		}
		cols, err := p.parseColumnList()
		if err != nil {
			return err
		}
		ct.Indexes = append(ct.Indexes, ast.IndexDef{Name: name, Columns: cols})
		return nil
	case p.kw("CONSTRAINT"):
		p.advance()
		if p.cur().Kind == token.IDENT {
			p.advance() // constraint name, not tracked separately
		}
		return p.parseTableElement(ct)
	default:
		col, err := p.parseColumnDef()
		if err != nil {
			return err
		}
		ct.Columns = append(ct.Columns, col)
		return nil
	}
}

func (p *Parser) parseReferences(cols []string) (ast.ForeignKeyDef, error) {
	if err := p.expectKw("REFERENCES"); err != nil {
		return ast.ForeignKeyDef{}, err
	}
	refTable, err := p.expectIdent()
	if err != nil {
		return ast.ForeignKeyDef{}, err
	}
	refCols, err := p.parseColumnList()
	if err != nil {
		return ast.ForeignKeyDef{}, err
	}
	fk := ast.ForeignKeyDef{Columns: cols, RefTable: refTable, RefColumns: refCols, OnDelete: ast.Restrict, OnUpdate: ast.Restrict}
	for p.kw("ON") {
		p.advance()
		isDelete := false
		if p.kw("DELETE") {
			isDelete = true
			p.advance()
		} else if err := p.expectKw("UPDATE"); err != nil {
			return ast.ForeignKeyDef{}, err
		}
		action, err := p.parseReferentialAction()
		if err != nil {
			return ast.ForeignKeyDef{}, err
		}
		if isDelete {
			fk.OnDelete = action
		} else {
			fk.OnUpdate = action
		}
	}
	return fk, nil
}

func (p *Parser) parseReferentialAction() (ast.ReferentialAction, error) {
	switch {
	case p.kw("CASCADE"):
		p.advance()
		return ast.Cascade, nil
	case p.kw("RESTRICT"):
		p.advance()
		return ast.Restrict, nil
	case p.kw("SET"):
		p.advance()
		if p.kw("NULL") {
			p.advance()
			return ast.SetNull, nil
		}
		if err := p.expectKw("DEFAULT"); err != nil {
			return 0, err
		}
		return ast.SetDefault, nil
	case p.kw("NO"):
		p.advance()
		if err := p.expectKw("ACTION"); err != nil {
			return 0, err
		}
		return ast.NoAction, nil
	default:
		return 0, p.errorf("expected referential action, got %q", p.cur().Text)
	}
}

func (p *Parser) parseColumnDef() (ast.ColumnDef, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	typ, err := p.parseTypeName()
	if err != nil {
		return ast.ColumnDef{}, err
	}
	col := ast.ColumnDef{Name: name, Type: typ}

	for {
		switch {
		case p.kw("NOT"):
			p.advance()
			if err := p.expectKw("NULL"); err != nil {
				return ast.ColumnDef{}, err
			}
			col.NotNull = true
		case p.kw("NULL"):
			p.advance()
		case p.kw("DEFAULT"):
			p.advance()
			v, err := p.parsePrimary()
			if err != nil {
				return ast.ColumnDef{}, err
			}
			col.Default = v
		case p.kw("PRIMARY"):
			p.advance()
			if err := p.expectKw("KEY"); err != nil {
				return ast.ColumnDef{}, err
			}
			col.PrimaryKey = true
		case p.kw("UNIQUE"):
			p.advance()
			col.Unique = true
		case p.kw("AUTO_INCREMENT"):
			p.advance()
			col.AutoIncrement = true
		case p.kw("COMMENT"):
			p.advance()
			t := p.cur()
			if t.Kind != token.STRING {
				return ast.ColumnDef{}, p.errorf("expected string after COMMENT")
			}
			p.advance()
			col.Comment = t.Value
		case p.kw("REFERENCES"):
			fk, err := p.parseReferences([]string{name})
			if err != nil {
				return ast.ColumnDef{}, err
			}
			col.FK = &fk
		default:
			return col, nil
		}
	}
}

var typeLengthless = map[string]bool{
	"TEXT": true, "TINYTEXT": true, "MEDIUMTEXT": true, "LONGTEXT": true,
	"BLOB": true, "TINYBLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true,
	"BOOLEAN": true, "BOOL": true, "JSON": true, "UUID": true, "DATE": true,
	"DATETIME": true, "TIMESTAMP": true, "TIME": true,
}

func (p *Parser) parseTypeName() (ast.TypeName, error) {
	t := p.cur()
	if t.Kind != token.KEYWORD && t.Kind != token.IDENT {
		return ast.TypeName{}, p.errorf("expected type name, got %q", t.Text)
	}
	name := strings.ToUpper(t.Text)
	p.advance()

	tn := ast.TypeName{Name: name}

	switch name {
	case "ENUM", "SET":
		if err := p.expectPunct("("); err != nil {
			return ast.TypeName{}, err
		}
		for {
			v := p.cur()
			if v.Kind != token.STRING {
				return ast.TypeName{}, p.errorf("expected string literal in %s value list", name)
			}
			p.advance()
			tn.Values = append(tn.Values, v.Value)
			if p.punct(",") {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return ast.TypeName{}, err
		}
		return tn, nil
	}

	if typeLengthless[name] {
		return tn, nil
	}

	if p.punct("(") {
		p.advance()
		first := p.cur()
		n, err := parseIntLiteral(first)
		if err != nil {
			return ast.TypeName{}, p.errorf("%s", err.Error())
		}
		p.advance()
		if name == "DECIMAL" || name == "NUMERIC" {
			tn.Precision = n
			if p.punct(",") {
				p.advance()
				scaleTok := p.cur()
				scale, err := parseIntLiteral(scaleTok)
				if err != nil {
					return ast.TypeName{}, p.errorf("%s", err.Error())
				}
				p.advance()
				tn.Scale = scale
			}
		} else {
			tn.Length = n
		}
		if err := p.expectPunct(")"); err != nil {
			return ast.TypeName{}, err
		}
	}

	// tolerate MySQL's UNSIGNED/ZEROFILL trailers by ignoring them
	for p.cur().Kind == token.IDENT && (strings.EqualFold(p.cur().Text, "UNSIGNED") || strings.EqualFold(p.cur().Text, "ZEROFILL")) {
		p.advance()
	}

	return tn, nil
}

func (p *Parser) parseAlterTable() (ast.Statement, error) {
	p.advance() // ALTER
	if err := p.expectKw("TABLE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	action, err := p.parseAlterAction()
	if err != nil {
		return nil, err
	}
	return ast.AlterTable{Table: table, Action: action}, nil
}

func (p *Parser) parseAlterAction() (ast.AlterAction, error) {
	switch {
	case p.kw("ADD"):
		p.advance()
		switch {
		case p.kw("COLUMN"):
			p.advance()
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			return ast.AddColumn{Column: col}, nil
		case p.kw("INDEX") || p.kw("KEY"):
			p.advance()
			name := ""
			if p.cur().Kind == token.IDENT {
				name = p.advance().Value
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			return ast.AddIndex{Index: ast.IndexDef{Name: name, Columns: cols}}, nil
		case p.kw("UNIQUE"):
			p.advance()
			if p.kw("INDEX") || p.kw("KEY") {
				p.advance()
			}
			name := ""
			if p.cur().Kind == token.IDENT {
				name = p.advance().Value
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			return ast.AddIndex{Index: ast.IndexDef{Name: name, Columns: cols, Unique: true}}, nil
		case p.kw("PRIMARY"):
			p.advance()
			if err := p.expectKw("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			return ast.AddPK{Columns: cols}, nil
		case p.kw("FOREIGN"):
			p.advance()
			if err := p.expectKw("KEY"); err != nil {
				return nil, err
			}
			cols, err := p.parseColumnList()
			if err != nil {
				return nil, err
			}
			fk, err := p.parseReferences(cols)
			if err != nil {
				return nil, err
			}
			return ast.AddFK{FK: fk}, nil
		default:
			col, err := p.parseColumnDef()
			if err != nil {
				return nil, err
			}
			return ast.AddColumn{Column: col}, nil
		}
	case p.kw("DROP"):
		p.advance()
		switch {
		case p.kw("COLUMN"):
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.DropColumn{Name: name}, nil
		case p.kw("INDEX") || p.kw("KEY"):
			p.advance()
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.DropIndex2{Name: name}, nil
		case p.kw("PRIMARY"):
			p.advance()
			if err := p.expectKw("KEY"); err != nil {
				return nil, err
			}
			return ast.DropPK{}, nil
		case p.kw("FOREIGN"):
			p.advance()
			if err := p.expectKw("KEY"); err != nil {
				return nil, err
			}
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.DropFK{Name: name}, nil
		default:
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.DropColumn{Name: name}, nil
		}
	case p.kw("MODIFY"):
		p.advance()
		if p.kw("COLUMN") {
			p.advance()
		}
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		return ast.ModifyColumn{Column: col}, nil
	case p.kw("RENAME"):
		p.advance()
		switch {
		case p.kw("COLUMN"):
			p.advance()
			from, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectKw("TO"); err != nil {
				return nil, err
			}
			to, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.RenameColumn{From: from, To: to}, nil
		case p.kw("TO"):
			p.advance()
			to, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return ast.RenameTable{To: to}, nil
		default:
			return nil, p.errorf("expected COLUMN or TO after RENAME, got %q", p.cur().Text)
		}
	default:
		return nil, p.errorf("unsupported ALTER TABLE action %q", p.cur().Text)
	}
}
