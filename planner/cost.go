package planner

import "math"

// Cost model constants (spec §4.8).
const (
	seqPageCost      = 1.0
	randomPageCost   = 4.0
	cpuPerTuple      = 0.01
	cpuPerIndexTuple = 0.005
	hashQualCost     = 0.02
	mergeQualCost    = 0.01
	rowsPerPage      = 100.0

	// largeTableThreshold gates the "full table scan on large table" warning.
	largeTableThreshold = 1000
	// workingMemoryThreshold gates HASH_JOIN vs NESTED_LOOP when no index
	// nested-loop is available (spec §4.8).
	workingMemoryThreshold = 1000
)

// selectivity estimates the fraction of rows an operator passes (spec
// §4.8's per-operator table).
func selectivity(op string, inListLen int) float64 {
	switch op {
	case "=":
		return 0.1
	case "<", ">", "<=", ">=", "BETWEEN":
		return 0.3
	case "!=", "<>":
		return 0.9
	case "IN":
		v := 0.05 * float64(inListLen)
		if v > 0.5 {
			v = 0.5
		}
		return v
	case "LIKE_ANCHORED":
		return 0.1
	case "LIKE":
		return 0.5
	case "IS NULL":
		return 0.05
	case "IS NOT NULL":
		return 0.95
	default:
		return 1.0
	}
}

// combineSelectivity composes independent predicates by multiplication
// (spec §4.8: "combined via independence").
func combineSelectivity(sels []float64) float64 {
	combined := 1.0
	for _, s := range sels {
		combined *= s
	}
	return combined
}

func fullScanCost(rows float64) float64 {
	pages := math.Ceil(rows / rowsPerPage)
	return pages*seqPageCost + rows*cpuPerTuple
}

func indexScanCost(matchedRows, tableRows float64) float64 {
	pages := math.Ceil(matchedRows / rowsPerPage)
	return pages*randomPageCost + matchedRows*cpuPerIndexTuple + math.Log2(math.Max(tableRows, 2))*cpuPerIndexTuple
}

func sortCost(rows float64) float64 {
	if rows <= 1 {
		return 0
	}
	return rows * math.Log2(rows) * cpuPerTuple
}

func hashJoinCost(outerRows, innerRows float64) float64 {
	return (outerRows + innerRows) * hashQualCost
}

func nestedLoopCost(outerRows, innerRows float64) float64 {
	return outerRows * innerRows * cpuPerTuple
}

func indexNestedLoopCost(outerRows, innerMatchRows float64) float64 {
	return outerRows * (innerMatchRows*cpuPerIndexTuple + randomPageCost)
}

func mergeJoinCost(outerRows, innerRows float64) float64 {
	return (outerRows + innerRows) * mergeQualCost
}
