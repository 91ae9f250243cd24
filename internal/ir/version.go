package ir

// Stored with every recorded run. A trace whose IRVersion differs from
// the running binary may not decode.
const (
	IRVersion     = "1"     // expression and plan JSON encoding
	EngineVersion = "0.1.0" // optimizer and rule set
)

// Version is what projmerge --version prints.
func Version() string {
	return EngineVersion + " (plan encoding v" + IRVersion + ")"
}
