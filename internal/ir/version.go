package ir

// Version constants for the IR schema and tool.
const (
	// IRVersion is the layout/journal schema version.
	IRVersion = "1"

	// ToolVersion is the varpath version.
	ToolVersion = "0.1.0"
)
