// Package planner implements the cost-based query planner (spec §4.8),
// grounded on the teacher's schema/generator.go Generator (holds
// desired/current state, produces an ordered action list) reshaped here
// into a cost-estimating planner over scan/join/sort/aggregate decisions.
package planner

// ScanType classifies how a single table access plan reads its rows.
type ScanType int

const (
	FullTableScan ScanType = iota
	IndexScan
	IndexRangeScan
	IndexLookup
	UniqueScan
)

func (s ScanType) String() string {
	switch s {
	case UniqueScan:
		return "UNIQUE_SCAN"
	case IndexLookup:
		return "INDEX_LOOKUP"
	case IndexRangeScan:
		return "INDEX_RANGE_SCAN"
	case IndexScan:
		return "INDEX_SCAN"
	default:
		return "FULL_TABLE_SCAN"
	}
}

// JoinMethod classifies how two row streams are combined.
type JoinMethod int

const (
	NestedLoop JoinMethod = iota
	HashJoin
	IndexNestedLoop
	MergeJoin
)

func (m JoinMethod) String() string {
	switch m {
	case HashJoin:
		return "HASH_JOIN"
	case IndexNestedLoop:
		return "INDEX_NESTED_LOOP"
	case MergeJoin:
		return "MERGE_JOIN"
	default:
		return "NESTED_LOOP"
	}
}

// TableAccess is the chosen access strategy for one FROM/JOIN table.
type TableAccess struct {
	Table         string
	Alias         string
	ScanType      ScanType
	Index         string // empty for FullTableScan
	EstimatedRows float64
	EstimatedCost float64
}

// JoinStep describes how one joined table combines with everything
// already accumulated to its left.
type JoinStep struct {
	Outer         string // alias of the accumulated left side
	Inner         string // alias of the table being joined in
	Method        JoinMethod
	EstimatedCost float64
}

// SortPlan describes how ORDER BY is satisfied.
type SortPlan struct {
	UsingIndex bool
	Keys       []string
	Cost       float64
}

// AggPlan describes how GROUP BY/aggregation is computed.
type AggPlan struct {
	Strategy string // "HASH" or "INDEX"
	Cost     float64
}

// Plan is the planner's full output (spec §4.8).
type Plan struct {
	TableAccess   []TableAccess
	Joins         []JoinStep
	Sort          *SortPlan
	Aggregation   *AggPlan
	Limit         *int
	Offset        *int
	EstimatedRows float64
	EstimatedCost float64
	Hints         []string
	Warnings      []string
}
