// Package schema models table/column/index/foreign-key descriptors (spec
// §3's Column descriptor and Table schema). Field shapes are grounded on
// the teacher's schema/ast.go (Column, Table, Index, ForeignKey), extended
// with the nullability/constraint/type-family fields this spec requires.
package schema

import "fmt"

// Family classifies a column's data type (spec §3's Column descriptor).
type Family int

const (
	FamilyInt Family = iota
	FamilyFloat
	FamilyDecimal
	FamilyChar
	FamilyVarchar
	FamilyText
	FamilyBlob
	FamilyDate
	FamilyDateTime
	FamilyTime
	FamilyBoolean
	FamilyJSON
	FamilyUUID
	FamilyEnum
	FamilySet
)

// DataType is a fully-resolved column type: family plus whatever
// parameters that family needs (length, precision/scale, enum values).
type DataType struct {
	Family    Family
	Length    int // CHAR/VARCHAR(n)
	Precision int // DECIMAL(p,s)
	Scale     int
	Values    []string // ENUM/SET value list
}

func (t DataType) String() string {
	switch t.Family {
	case FamilyVarchar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length)
	case FamilyChar:
		return fmt.Sprintf("CHAR(%d)", t.Length)
	case FamilyDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	case FamilyEnum:
		return "ENUM"
	case FamilySet:
		return "SET"
	default:
		return familyNames[t.Family]
	}
}

var familyNames = map[Family]string{
	FamilyInt: "INT", FamilyFloat: "FLOAT", FamilyText: "TEXT",
	FamilyBlob: "BLOB", FamilyDate: "DATE", FamilyDateTime: "DATETIME",
	FamilyTime: "TIME", FamilyBoolean: "BOOLEAN", FamilyJSON: "JSON",
	FamilyUUID: "UUID",
}

// typeNameFamilies maps a parsed type-name keyword to a Family. Several
// source spellings collapse onto one family (e.g. INTEGER/BIGINT -> Int).
var typeNameFamilies = map[string]Family{
	"INT": FamilyInt, "INTEGER": FamilyInt, "SMALLINT": FamilyInt,
	"TINYINT": FamilyInt, "BIGINT": FamilyInt, "MEDIUMINT": FamilyInt,
	"FLOAT": FamilyFloat, "DOUBLE": FamilyFloat, "REAL": FamilyFloat,
	"DECIMAL": FamilyDecimal, "NUMERIC": FamilyDecimal,
	"CHAR": FamilyChar, "VARCHAR": FamilyVarchar,
	"TEXT": FamilyText, "TINYTEXT": FamilyText, "MEDIUMTEXT": FamilyText, "LONGTEXT": FamilyText,
	"BLOB": FamilyBlob, "TINYBLOB": FamilyBlob, "MEDIUMBLOB": FamilyBlob, "LONGBLOB": FamilyBlob,
	"DATE": FamilyDate, "DATETIME": FamilyDateTime, "TIMESTAMP": FamilyDateTime, "TIME": FamilyTime,
	"BOOLEAN": FamilyBoolean, "BOOL": FamilyBoolean,
	"JSON": FamilyJSON, "UUID": FamilyUUID,
	"ENUM": FamilyEnum, "SET": FamilySet,
}

// FamilyFromName resolves a parsed type keyword to a Family.
func FamilyFromName(name string) (Family, bool) {
	f, ok := typeNameFamilies[name]
	return f, ok
}

// Numeric reports whether the family participates in numeric comparisons
// and arithmetic (spec §4.7's SUM/AVG/MIN/MAX).
func (f Family) Numeric() bool {
	return f == FamilyInt || f == FamilyFloat || f == FamilyDecimal || f == FamilyBoolean
}

// Compatible reports whether two families may be compared/joined.
// Foreign-key validation (executor.validateForeignKeyTarget) does not call it.
func Compatible(a, b Family) bool {
	if a == b {
		return true
	}
	if a.Numeric() && b.Numeric() {
		return true
	}
	stringy := map[Family]bool{FamilyChar: true, FamilyVarchar: true, FamilyText: true, FamilyUUID: true, FamilyEnum: true}
	return stringy[a] && stringy[b]
}
