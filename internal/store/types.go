package store

// Run is one optimization of one plan.
type Run struct {
	ID                string
	PlanName          string
	Seq               int64 // assigned by WriteRun; insertion order across runs
	BeforeFingerprint string
	AfterFingerprint  string
	BeforePlan        string // formatted plan text
	AfterPlan         string // formatted plan text
	AfterPlanJSON     string // canonical JSON of the final plan
	Steps             int
	EngineVersion     string
	IRVersion         string
}

// Firing is one rule application within a run.
type Firing struct {
	RunID             string
	Seq               int64
	Rule              string
	GroupID           int
	NodeID            string
	BeforeFingerprint string
	AfterFingerprint  string
	BeforePlan        string
	AfterPlan         string
}
