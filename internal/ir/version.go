package ir

// Version constants recorded with every stored session.
const (
	// TraceVersion is the schema version of serialized trace events.
	TraceVersion = "1"

	// EngineVersion is the checker version.
	EngineVersion = "0.1.0"
)
