package testutil

// DefaultSessionID is used by FixedSessionGenerator when no id is given.
const DefaultSessionID = "test-session-default"

// FixedSessionGenerator returns the same session id on every call.
//
// Journal write IDs hash the session id, so scenarios that pin it produce
// identical journals and golden traces across runs.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a generator for id, or DefaultSessionID if id is empty.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session id.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
