package trace

import "gonum.org/v1/gonum/stat"

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions    int
	ExploredCount     int
	Conflicts         int
	NewRules          int
	Rollbacks         int
	MeanCandidates    float64
	MeanRollbackDepth float64        // mean of conflict clock minus rollback time
	YieldDistribution map[string]int // train -> times it yielded
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		YieldDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	if len(st.Decisions) > 0 {
		candidates := make([]float64, len(st.Decisions))
		for i, d := range st.Decisions {
			candidates[i] = float64(d.Candidates)
			if d.Explored {
				summary.ExploredCount++
			}
		}
		summary.MeanCandidates = stat.Mean(candidates, nil)
	}

	summary.Conflicts = len(st.Conflicts)
	if len(st.Conflicts) > 0 {
		depths := make([]float64, len(st.Conflicts))
		for i, c := range st.Conflicts {
			depths[i] = float64(c.Clock - c.RollbackTime)
			summary.YieldDistribution[c.Yielder]++
			if c.NewRule {
				summary.NewRules++
			}
		}
		summary.MeanRollbackDepth = stat.Mean(depths, nil)
	}

	summary.Rollbacks = len(st.Rollbacks)
	return summary
}
