// Package executor evaluates a parsed statement against storage,
// producing a QueryResult (spec §4.7). Grounded on the teacher's
// sqldef.go Run() top-level orchestration (dump -> parse -> diff/generate
// -> apply), reshaped into scan -> join -> filter -> group -> window ->
// sort -> project -> set-op pipeline stages.
package executor

import (
	"time"

	"github.com/sqldef/qldb/dberrors"
	"github.com/sqldef/qldb/types"
)

// QueryResult is the outcome of executing one statement (spec §4.7).
type QueryResult struct {
	Success       bool
	Rows          []types.Row
	Columns       []string
	Affected      int
	InsertID      int64
	ExecutionTime time.Duration
	Error         *dberrors.Error
}

func okResult(rows []types.Row, columns []string) *QueryResult {
	return &QueryResult{Success: true, Rows: rows, Columns: columns}
}

func okDML(affected int, insertID int64) *QueryResult {
	return &QueryResult{Success: true, Affected: affected, InsertID: insertID}
}

func errResult(err error) *QueryResult {
	if dberr, ok := dberrors.As(err); ok {
		return &QueryResult{Success: false, Error: dberr}
	}
	return &QueryResult{Success: false, Error: dberrors.New(dberrors.Internal, "%s", err.Error())}
}
