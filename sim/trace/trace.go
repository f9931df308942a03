package trace

// TraceLevel controls the verbosity of planner tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures dispatch decisions, conflicts and rollbacks.
	TraceLevelDecisions TraceLevel = "decisions"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects records across every pass of a planning run.
type SimulationTrace struct {
	Config    TraceConfig
	Decisions []DecisionRecord
	Conflicts []ConflictRecord
	Rollbacks []RollbackRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Decisions: make([]DecisionRecord, 0),
		Conflicts: make([]ConflictRecord, 0),
		Rollbacks: make([]RollbackRecord, 0),
	}
}

// RecordDecision appends a dispatch decision record.
func (st *SimulationTrace) RecordDecision(record DecisionRecord) {
	st.Decisions = append(st.Decisions, record)
}

// RecordConflict appends a conflict record.
func (st *SimulationTrace) RecordConflict(record ConflictRecord) {
	st.Conflicts = append(st.Conflicts, record)
}

// RecordRollback appends a rollback record.
func (st *SimulationTrace) RecordRollback(record RollbackRecord) {
	st.Rollbacks = append(st.Rollbacks, record)
}
